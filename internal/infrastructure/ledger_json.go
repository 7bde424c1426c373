package infrastructure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/yourusername/iwara-dl-go/internal/domain"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
	"go.uber.org/zap"
)

// JSONLedger implements domain.LedgerRepository on a single JSON file.
// One mutex covers every read-modify-write of the whole file, and each write
// replaces the file atomically so readers never see a torn document.
type JSONLedger struct {
	path    string
	mu      sync.Mutex
	logger  *logger.LoggerAdapter
	metrics *Metrics
}

// NewJSONLedger creates a ledger backed by the file at path
func NewJSONLedger(path string, log *logger.LoggerAdapter, metrics *Metrics) *JSONLedger {
	if log == nil {
		log = logger.NewNopAdapter()
	}
	return &JSONLedger{
		path:    path,
		logger:  log,
		metrics: metrics,
	}
}

// Path returns the backing file path
func (l *JSONLedger) Path() string {
	return l.path
}

// Upsert merges one outcome into the ledger
func (l *JSONLedger) Upsert(entry domain.LedgerEntry) (domain.UpsertResult, error) {
	if entry.Video.ID == "" {
		return "", errors.New("ledger entry has no video id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	store, err := l.load()
	if err != nil {
		return "", err
	}

	result := domain.UpsertInserted
	existing, seen := store.Records[entry.Video.ID]
	var localID int
	if !seen {
		store.Total.Number++
		localID = store.Total.Number
	} else {
		if existing.Success {
			l.logger.Base().Info("Video already recorded as downloaded, ledger left untouched",
				zap.String("video_id", entry.Video.ID),
				zap.Int("local_id", existing.LocalID))
			l.metrics.ObserveLedgerUpsert(string(domain.UpsertRejected))
			return domain.UpsertRejected, nil
		}
		localID = existing.LocalID
		result = domain.UpsertUpdated
	}

	store.Records[entry.Video.ID] = domain.NewLedgerRecord(entry, localID)
	if err := l.save(store); err != nil {
		l.logger.LogError("Failed to write ledger",
			zap.String("path", l.path),
			zap.String("video_id", entry.Video.ID),
			zap.Error(err))
		return "", err
	}

	l.metrics.ObserveLedgerUpsert(string(result))
	l.logger.Base().Info("Ledger updated",
		zap.String("video_id", entry.Video.ID),
		zap.Bool("success", entry.Success),
		zap.Int("local_id", localID),
		zap.String("result", string(result)))
	return result, nil
}

// Get returns the record of a video, nil if unseen
func (l *JSONLedger) Get(videoID string) (*domain.LedgerRecord, error) {
	store, err := l.Snapshot()
	if err != nil {
		return nil, err
	}
	return store.Records[videoID], nil
}

// Snapshot returns a copy of the whole store
func (l *JSONLedger) Snapshot() (*domain.LedgerFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Stats counts succeeded and failed records
func (l *JSONLedger) Stats() (*domain.LedgerStats, error) {
	store, err := l.Snapshot()
	if err != nil {
		return nil, err
	}
	stats := &domain.LedgerStats{Total: len(store.Records)}
	for _, record := range store.Records {
		if record.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	return stats, nil
}

// load reads the backing file. A missing file is an empty store; an unparsable one is
// logged and replaced by an empty store.
func (l *JSONLedger) load() (*domain.LedgerFile, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewLedgerFile(), nil
		}
		return nil, fmt.Errorf("failed to read ledger %s: %w", l.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.NewLedgerFile(), nil
	}

	store := domain.NewLedgerFile()
	if err := json.Unmarshal(data, store); err != nil {
		l.logger.LogError("Ledger file is corrupt, starting from an empty ledger",
			zap.String("path", l.path),
			zap.Error(err))
		return domain.NewLedgerFile(), nil
	}
	return store, nil
}

func (l *JSONLedger) save(store *domain.LedgerFile) error {
	// MarshalJSON is called directly: json.Marshal would re-escape HTML characters
	data, err := store.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	var indented bytes.Buffer
	if err := json.Indent(&indented, data, "", "    "); err != nil {
		return fmt.Errorf("failed to indent ledger: %w", err)
	}
	indented.WriteByte('\n')
	return writeFileAtomic(l.path, indented.Bytes())
}

// writeFileAtomic writes data to a temp file next to path and renames it into place
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}
