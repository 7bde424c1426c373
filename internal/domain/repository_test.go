package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeMB(t *testing.T) {
	assert.Equal(t, 0.0, SizeMB(0))
	assert.Equal(t, 0.0, SizeMB(-5))
	assert.Equal(t, 1.0, SizeMB(1024*1024))
	assert.Equal(t, 1.5, SizeMB(1024*1024*3/2))
	assert.Equal(t, 0.1, SizeMB(100*1024))
}

func TestNewLedgerRecord_Success(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.Local)
	entry := LedgerEntry{
		Video: VideoDescriptor{
			ID:          "abc",
			Title:       "title",
			AuthorName:  "author",
			NumComments: 1,
			NumLikes:    2,
			NumViews:    3,
			TagIDs:      []string{"t1"},
			CreatedAt:   "2024-04-30T10:00:00.000Z",
		},
		VideoPath:     "/data/abc.mp4",
		ThumbnailPath: "/data/thumbnails/abc.jpg",
		SizeBytes:     2 * 1024 * 1024,
		Success:       true,
		At:            at,
	}

	record := NewLedgerRecord(entry, 7)

	assert.Equal(t, "abc", record.VideoID)
	assert.Equal(t, "author", record.AvatarName)
	assert.Equal(t, 7, record.LocalID)
	assert.Equal(t, "2024-05-01 12:30:00", record.DownloadTime)
	require.NotNil(t, record.VideoPath)
	assert.Equal(t, "/data/abc.mp4", *record.VideoPath)
	require.NotNil(t, record.ThumbnailPath)
	assert.Equal(t, 2.0, record.VideoSizeMB)
	assert.True(t, record.Success)
	assert.Empty(t, record.ErrorMessage)
}

func TestNewLedgerRecord_Failure(t *testing.T) {
	entry := LedgerEntry{
		Video:     VideoDescriptor{ID: "abc"},
		VideoPath: "/data/abc.mp4",
		SizeBytes: 1024,
		Success:   false,
		Error:     errors.New("no download link available"),
	}

	record := NewLedgerRecord(entry, 1)

	assert.Nil(t, record.VideoPath)
	assert.Nil(t, record.ThumbnailPath)
	assert.Equal(t, 0.0, record.VideoSizeMB)
	assert.False(t, record.Success)
	assert.Equal(t, "no download link available", record.ErrorMessage)
	assert.NotNil(t, record.VideoTagList)
}

func TestLedgerFile_JSONRoundTrip(t *testing.T) {
	store := NewLedgerFile()
	store.Total.Number = 2
	store.Records["b"] = &LedgerRecord{VideoID: "b", LocalID: 2, VideoTagList: []string{}}
	store.Records["a"] = &LedgerRecord{VideoID: "a", LocalID: 1, VideoTitle: "<x>", VideoTagList: []string{"t"}}

	data, err := store.MarshalJSON()
	require.NoError(t, err)
	assert.Regexp(t, `^\{"total":\{"number":2\},"a":.*,"b":`, string(data))
	assert.Contains(t, string(data), `"video_title":"<x>"`)

	decoded := NewLedgerFile()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, 2, decoded.Total.Number)
	require.Len(t, decoded.Records, 2)
	assert.Equal(t, "<x>", decoded.Records["a"].VideoTitle)
}

func TestLedgerFile_UnmarshalRebuildsMissingTotal(t *testing.T) {
	decoded := NewLedgerFile()
	err := json.Unmarshal([]byte(`{"x":{"local_id":7,"success":true}}`), decoded)
	require.NoError(t, err)
	assert.Equal(t, 7, decoded.Total.Number)
	assert.Equal(t, "x", decoded.Records["x"].VideoID)
}

func TestLedgerFile_UnmarshalRejectsGarbage(t *testing.T) {
	decoded := NewLedgerFile()
	assert.Error(t, json.Unmarshal([]byte(`{"x": 5}`), decoded))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), decoded))
}
