package infrastructure

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/iwara-dl-go/internal/domain"
)

func setupTestLedger(t *testing.T) *JSONLedger {
	t.Helper()
	return NewJSONLedger(filepath.Join(t.TempDir(), "download_log.json"), nil, nil)
}

func testEntry(id string, success bool) domain.LedgerEntry {
	entry := domain.LedgerEntry{
		Video: domain.VideoDescriptor{
			ID:         id,
			Title:      "title " + id,
			AuthorName: "author",
			TagIDs:     []string{"tag"},
		},
		Success: success,
		At:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local),
	}
	if success {
		entry.VideoPath = "/videos/" + id + ".mp4"
		entry.SizeBytes = 2 * 1024 * 1024
	} else {
		entry.Error = errors.New("connection reset")
	}
	return entry
}

func TestJSONLedger_UpsertAssignsOrdinals(t *testing.T) {
	ledger := setupTestLedger(t)

	result, err := ledger.Upsert(testEntry("a", true))
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertInserted, result)

	_, err = ledger.Upsert(testEntry("b", false))
	require.NoError(t, err)

	store, err := ledger.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, store.Total.Number)
	assert.Equal(t, 1, store.Records["a"].LocalID)
	assert.Equal(t, 2, store.Records["b"].LocalID)
	assert.Equal(t, 2.0, store.Records["a"].VideoSizeMB)
	assert.Nil(t, store.Records["b"].VideoPath)
	assert.Equal(t, "connection reset", store.Records["b"].ErrorMessage)
}

func TestJSONLedger_SuccessIsImmutable(t *testing.T) {
	ledger := setupTestLedger(t)

	_, err := ledger.Upsert(testEntry("a", true))
	require.NoError(t, err)
	before, err := os.ReadFile(ledger.Path())
	require.NoError(t, err)

	result, err := ledger.Upsert(testEntry("a", false))
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertRejected, result)

	again := testEntry("a", true)
	again.VideoPath = "/elsewhere.mp4"
	result, err = ledger.Upsert(again)
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertRejected, result)

	after, err := os.ReadFile(ledger.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestJSONLedger_OrdinalStableAcrossFailures(t *testing.T) {
	ledger := setupTestLedger(t)

	_, err := ledger.Upsert(testEntry("x", true))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := ledger.Upsert(testEntry("a", false))
		require.NoError(t, err)
	}
	result, err := ledger.Upsert(testEntry("a", true))
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertUpdated, result)

	record, err := ledger.Get("a")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 2, record.LocalID)
	assert.True(t, record.Success)
	assert.Empty(t, record.ErrorMessage)

	store, err := ledger.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, store.Total.Number)
}

func TestJSONLedger_ConcurrentDistinctUpserts(t *testing.T) {
	ledger := setupTestLedger(t)
	const n = 40

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Upsert(testEntry(fmt.Sprintf("v%02d", i), i%2 == 0))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	store, err := ledger.Snapshot()
	require.NoError(t, err)
	assert.Len(t, store.Records, n)
	assert.Equal(t, n, store.Total.Number)

	seen := make(map[int]bool)
	for _, record := range store.Records {
		assert.False(t, seen[record.LocalID], "duplicate local id %d", record.LocalID)
		seen[record.LocalID] = true
	}

	stats, err := ledger.Stats()
	require.NoError(t, err)
	assert.Equal(t, n, stats.Total)
	assert.Equal(t, n/2, stats.Succeeded)
	assert.Equal(t, n/2, stats.Failed)
}

func TestJSONLedger_CorruptFileStartsEmpty(t *testing.T) {
	ledger := setupTestLedger(t)
	require.NoError(t, os.WriteFile(ledger.Path(), []byte("{not json"), 0644))

	store, err := ledger.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, store.Records)

	_, err = ledger.Upsert(testEntry("a", true))
	require.NoError(t, err)
	record, err := ledger.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, record.LocalID)
}

func TestJSONLedger_FileShape(t *testing.T) {
	ledger := setupTestLedger(t)
	entry := testEntry("a", true)
	entry.Video.Title = "<b>&</b>"
	_, err := ledger.Upsert(entry)
	require.NoError(t, err)

	data, err := os.ReadFile(ledger.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "<b>&</b>")

	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 1, raw["total"]["number"])
	assert.Equal(t, "a", raw["a"]["video_id"])
	assert.Equal(t, "2024-05-01 12:00:00", raw["a"]["download_time"])
	assert.Equal(t, true, raw["a"]["success"])

	// no temp files left behind
	files, err := os.ReadDir(filepath.Dir(ledger.Path()))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestJSONLedger_RejectsEmptyID(t *testing.T) {
	ledger := setupTestLedger(t)
	_, err := ledger.Upsert(domain.LedgerEntry{})
	assert.Error(t, err)
}
