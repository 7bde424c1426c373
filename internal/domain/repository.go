package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// ledgerTotalKey is the reserved top-level key holding the running total
const ledgerTotalKey = "total"

// LedgerRecord is the per-video outcome record persisted in the ledger file.
// JSON keys are shared with the web view that reads the file.
type LedgerRecord struct {
	VideoID             string   `json:"video_id"`
	AvatarName          string   `json:"avatar_name"`
	VideoTitle          string   `json:"video_title"`
	VideoNumComments    int      `json:"video_numComments"`
	VideoNumLikes       int      `json:"video_numLikes"`
	VideoNumViews       int      `json:"video_numViews"`
	VideoTagList        []string `json:"video_tagList"`
	VideoCreateTime     string   `json:"video_createTime"`
	DownloadTime        string   `json:"download_time"`
	VideoPath           *string  `json:"video_path"`
	ThumbnailPath       *string  `json:"thumbnail_path"`
	VideoSizeMB         float64  `json:"video_size_mb"`
	Success             bool     `json:"success"`
	LocalID             int      `json:"local_id"`
	LastUpdateTimestamp float64  `json:"last_update_timestamp"`
	ErrorMessage        string   `json:"error_message,omitempty"`
	Attempts            int      `json:"attempts,omitempty"`
}

// LedgerTotal holds the running counter used to assign ordinals
type LedgerTotal struct {
	Number int `json:"number"`
}

// LedgerFile is the whole ledger store: records keyed by video id plus the running total
type LedgerFile struct {
	Total   LedgerTotal
	Records map[string]*LedgerRecord
}

// NewLedgerFile returns an empty ledger store
func NewLedgerFile() *LedgerFile {
	return &LedgerFile{Records: make(map[string]*LedgerRecord)}
}

// SortedRecords returns the records ordered by local id
func (f *LedgerFile) SortedRecords() []*LedgerRecord {
	records := make([]*LedgerRecord, 0, len(f.Records))
	for _, record := range f.Records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].LocalID != records[j].LocalID {
			return records[i].LocalID < records[j].LocalID
		}
		return records[i].VideoID < records[j].VideoID
	})
	return records
}

// MarshalJSON writes the flat on-disk shape: "total" first, then one key per video id
// in local id order. HTML characters in titles are left unescaped.
func (f *LedgerFile) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	if err := writeLedgerMember(&buf, ledgerTotalKey, f.Total); err != nil {
		return nil, err
	}
	for _, record := range f.SortedRecords() {
		buf.WriteByte(',')
		if err := writeLedgerMember(&buf, record.VideoID, record); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeLedgerMember(buf *bytes.Buffer, key string, value interface{}) error {
	keyJSON, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(keyJSON)
	buf.WriteByte(':')

	var valueBuf bytes.Buffer
	enc := json.NewEncoder(&valueBuf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("failed to encode ledger entry %s: %w", key, err)
	}
	buf.Write(bytes.TrimRight(valueBuf.Bytes(), "\n"))
	return nil
}

// UnmarshalJSON reads the flat on-disk shape. A missing total is rebuilt from the
// highest local id so new ordinals never collide.
func (f *LedgerFile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Total = LedgerTotal{}
	f.Records = make(map[string]*LedgerRecord, len(raw))
	hasTotal := false
	maxLocalID := 0

	for key, value := range raw {
		if key == ledgerTotalKey {
			if err := json.Unmarshal(value, &f.Total); err != nil {
				return fmt.Errorf("invalid total: %w", err)
			}
			hasTotal = true
			continue
		}
		var record LedgerRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return fmt.Errorf("invalid record %s: %w", key, err)
		}
		if record.VideoID == "" {
			record.VideoID = key
		}
		if record.LocalID > maxLocalID {
			maxLocalID = record.LocalID
		}
		f.Records[key] = &record
	}

	if !hasTotal || f.Total.Number < maxLocalID {
		f.Total.Number = maxLocalID
	}
	return nil
}

// LedgerEntry is what a worker reports to the ledger for one video
type LedgerEntry struct {
	Video         VideoDescriptor
	VideoPath     string
	ThumbnailPath string
	SizeBytes     int64
	Success       bool
	Error         error
	Attempts      int
	At            time.Time
}

// UpsertResult describes what an upsert did
type UpsertResult string

const (
	UpsertInserted UpsertResult = "inserted"
	UpsertUpdated  UpsertResult = "updated"
	UpsertRejected UpsertResult = "rejected" // record already successful, left untouched
)

// LedgerStats summarizes the ledger
type LedgerStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// LedgerRepository is the durable per-video completion ledger
type LedgerRepository interface {
	// Upsert merges one outcome. Successful records are immutable.
	Upsert(entry LedgerEntry) (UpsertResult, error)

	// Get returns the record for a video, or nil if unseen
	Get(videoID string) (*LedgerRecord, error)

	// Snapshot returns a copy of the whole store
	Snapshot() (*LedgerFile, error)

	// Stats returns record counts
	Stats() (*LedgerStats, error)
}

// SizeMB converts a byte count to megabytes rounded to one decimal place
func SizeMB(sizeBytes int64) float64 {
	if sizeBytes <= 0 {
		return 0
	}
	return math.Round(float64(sizeBytes)/(1024*1024)*10) / 10
}

// NewLedgerRecord builds the record for an entry with the given ordinal
func NewLedgerRecord(entry LedgerEntry, localID int) *LedgerRecord {
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}

	record := &LedgerRecord{
		VideoID:             entry.Video.ID,
		AvatarName:          entry.Video.AuthorName,
		VideoTitle:          entry.Video.Title,
		VideoNumComments:    entry.Video.NumComments,
		VideoNumLikes:       entry.Video.NumLikes,
		VideoNumViews:       entry.Video.NumViews,
		VideoTagList:        entry.Video.TagIDs,
		VideoCreateTime:     entry.Video.CreatedAt,
		DownloadTime:        at.Format("2006-01-02 15:04:05"),
		Success:             entry.Success,
		LocalID:             localID,
		LastUpdateTimestamp: float64(at.UnixNano()) / 1e9,
		Attempts:            entry.Attempts,
	}
	if record.VideoTagList == nil {
		record.VideoTagList = []string{}
	}
	if entry.ThumbnailPath != "" {
		thumb := entry.ThumbnailPath
		record.ThumbnailPath = &thumb
	}
	if entry.Success {
		path := entry.VideoPath
		record.VideoPath = &path
		record.VideoSizeMB = SizeMB(entry.SizeBytes)
	} else if entry.Error != nil {
		record.ErrorMessage = entry.Error.Error()
	}
	return record
}
