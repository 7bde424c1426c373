package logger

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewMultiLogger_RequiresLogsDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{Level: "info"})
	assert.Error(t, err)
}

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogQueueEvent("run_started", zap.String("run_id", "abc"))
	ml.LogTransferEvent("range_rejected", zap.String("video_id", "v1"), zap.Int64("offset", 1000))
	ml.LogAppError("resolve failed", zap.String("video_id", "v2"))
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)
	for _, category := range Categories {
		_, err := os.Stat(reader.GetTodayLogPath(category))
		assert.NoError(t, err, "missing log file for %s", category)
	}

	entries, err := reader.ReadTodayLogs(CategoryTransfer, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "range_rejected", entries[0].Message)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "v1", entries[0].Fields["video_id"])
	assert.EqualValues(t, 1000, entries[0].Fields["offset"])
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(CategoryQueue))
	assert.True(t, ValidCategory(CategoryTransfer))
	assert.True(t, ValidCategory(CategoryError))
	assert.False(t, ValidCategory("download"))
}

func TestLoggerAdapter_WithoutMultiLogger(t *testing.T) {
	adapter := NewNopAdapter()
	assert.Nil(t, adapter.GetMultiLogger())
	assert.NotPanics(t, func() {
		adapter.LogQueueEvent("event")
		adapter.LogTransferEvent("event")
		adapter.LogError("boom")
	})
}

func TestMultiLogger_RollsOverAtMidnight(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 1, 23, 59, 0, 0, time.Local)
	ml, err := newMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir}, func() time.Time { return now })
	require.NoError(t, err)

	ml.LogQueueEvent("before_midnight")
	now = now.Add(2 * time.Minute)
	ml.LogQueueEvent("after_midnight")
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)
	first, err := reader.ReadLogs(CategoryQueue, time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), 0)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "before_midnight", first[0].Message)

	second, err := reader.ReadLogs(CategoryQueue, time.Date(2024, 3, 2, 0, 0, 0, 0, time.Local), 0)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "after_midnight", second[0].Message)
}

func TestMultiLogger_DiscardsAfterClose(t *testing.T) {
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, ml.Close())

	assert.NotPanics(t, func() { ml.LogTransferEvent("late") })
	assert.NoError(t, ml.Sync())
}
