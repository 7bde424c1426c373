package logger

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, reader *LogReader, category LogCategory, lines ...string) {
	t.Helper()
	path := reader.GetTodayLogPath(category)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
}

func TestReadLogs_MissingFile(t *testing.T) {
	reader := NewLogReader(t.TempDir())
	entries, err := reader.ReadTodayLogs(CategoryQueue, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadLogs_Limit(t *testing.T) {
	reader := NewLogReader(t.TempDir())
	writeLog(t, reader, CategoryQueue,
		`{"level":"info","ts":"2024-01-01T00:00:00Z","msg":"one"}`,
		`{"level":"info","ts":"2024-01-01T00:00:01Z","msg":"two"}`,
		`{"level":"info","ts":"2024-01-01T00:00:02Z","msg":"three"}`,
	)

	entries, err := reader.ReadTodayLogs(CategoryQueue, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Message)
	assert.Equal(t, "three", entries[1].Message)
	assert.Equal(t, "2024-01-01T00:00:02Z", entries[1].Timestamp)
}

func TestReadLogs_PlainTextLine(t *testing.T) {
	reader := NewLogReader(t.TempDir())
	writeLog(t, reader, CategoryError, "not json at all")

	entries, err := reader.ReadTodayLogs(CategoryError, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "not json at all", entries[0].Message)
	assert.Equal(t, "error", entries[0].Category)
}

func TestSearchLogs_MatchesVideoID(t *testing.T) {
	reader := NewLogReader(t.TempDir())
	writeLog(t, reader, CategoryTransfer,
		`{"level":"info","ts":"t","msg":"streaming","video_id":"AbC123"}`,
		`{"level":"info","ts":"t","msg":"streaming","video_id":"zzz"}`,
	)

	entries, err := reader.SearchLogs(CategoryTransfer, time.Now(), "abc123", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "AbC123", entries[0].Fields["video_id"])
}

func TestTailLogs_StopsOnCancel(t *testing.T) {
	reader := NewLogReader(t.TempDir())
	entryChan := make(chan LogEntry)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- reader.TailLogs(ctx, CategoryQueue, entryChan)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("TailLogs did not stop")
	}
}

func TestTailLogs_FollowsAppendedLines(t *testing.T) {
	reader := NewLogReader(t.TempDir())
	writeLog(t, reader, CategoryTransfer, `{"level":"info","ts":"t","msg":"old"}`)

	entryChan := make(chan LogEntry, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = reader.TailLogs(ctx, CategoryTransfer, entryChan)
	}()

	// TailLogs starts from the end, give it time to seek before appending
	time.Sleep(300 * time.Millisecond)
	file, err := os.OpenFile(reader.GetTodayLogPath(CategoryTransfer), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = file.WriteString(`{"level":"info","ts":"t","msg":"new","video_id":"v9"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	select {
	case entry := <-entryChan:
		assert.Equal(t, "new", entry.Message)
		assert.Equal(t, "v9", entry.Fields["video_id"])
	case <-time.After(3 * time.Second):
		t.Fatal("appended line was not delivered")
	}
}

func TestSearchLogs_MatchesAnyStringField(t *testing.T) {
	reader := NewLogReader(t.TempDir())
	writeLog(t, reader, CategoryQueue,
		`{"level":"info","ts":"t","msg":"run_finished","run_id":"R-42"}`,
		`{"level":"info","ts":"t","msg":"run_started","run_id":"R-7"}`,
	)

	entries, err := reader.SearchLogs(CategoryQueue, time.Now(), "r-42", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run_finished", entries[0].Message)
}
