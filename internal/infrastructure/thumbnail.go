package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/yourusername/iwara-dl-go/internal/domain"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
	"go.uber.org/zap"
)

// ThumbnailDownloader stores one thumbnail image per video as <dir>/<video id>.jpg
type ThumbnailDownloader struct {
	dir        string
	userAgent  string
	httpClient *http.Client
	logger     *logger.LoggerAdapter
}

// NewThumbnailDownloader creates a thumbnail downloader writing into dir
func NewThumbnailDownloader(dir string, apiConfig domain.APIConfig, log *logger.LoggerAdapter) *ThumbnailDownloader {
	if log == nil {
		log = logger.NewNopAdapter()
	}
	return &ThumbnailDownloader{
		dir:        dir,
		userAgent:  apiConfig.UserAgent,
		httpClient: &http.Client{Timeout: apiConfig.Timeout},
		logger:     log,
	}
}

// PathFor returns where the thumbnail of a video is stored
func (d *ThumbnailDownloader) PathFor(videoID string) string {
	return filepath.Join(d.dir, videoID+".jpg")
}

// FetchThumbnail downloads the thumbnail unless it already exists.
// A partially written file is removed on failure.
func (d *ThumbnailDownloader) FetchThumbnail(ctx context.Context, videoID string, target *domain.ThumbnailTarget) (string, error) {
	path := d.PathFor(videoID)
	if _, err := os.Stat(path); err == nil {
		d.logger.Base().Debug("Thumbnail already exists, skipping",
			zap.String("video_id", videoID),
			zap.String("path", path))
		return path, nil
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	if err := d.download(ctx, target.URL, path); err != nil {
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			d.logger.Base().Warn("Failed to remove partial thumbnail",
				zap.String("path", path),
				zap.Error(removeErr))
		}
		return "", fmt.Errorf("failed to download thumbnail of video %s: %w", videoID, err)
	}

	d.logger.Base().Info("Thumbnail downloaded",
		zap.String("video_id", videoID),
		zap.String("path", path))
	return path, nil
}

func (d *ThumbnailDownloader) download(ctx context.Context, link, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Op: http.MethodGet, URL: link, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newHTTPError(resp)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
