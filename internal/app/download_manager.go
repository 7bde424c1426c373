package app

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/yourusername/iwara-dl-go/internal/domain"
	"github.com/yourusername/iwara-dl-go/internal/infrastructure"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
	"go.uber.org/zap"
)

// DownloadManager processes one video: thumbnail, source resolution, transfer and ledger record
type DownloadManager struct {
	resolver   domain.Resolver
	downloader domain.Downloader
	thumbnails domain.ThumbnailFetcher
	ledger     domain.LedgerRepository
	leases     *VideoLeases
	config     *domain.DownloadConfig
	logger     *logger.LoggerAdapter
	metrics    *infrastructure.Metrics
	now        func() time.Time
}

// NewDownloadManager creates a new download manager
func NewDownloadManager(
	resolver domain.Resolver,
	downloader domain.Downloader,
	thumbnails domain.ThumbnailFetcher,
	ledger domain.LedgerRepository,
	leases *VideoLeases,
	config *domain.DownloadConfig,
	log *logger.LoggerAdapter,
	metrics *infrastructure.Metrics,
) *DownloadManager {
	if leases == nil {
		leases = NewVideoLeases()
	}
	if log == nil {
		log = logger.NewNopAdapter()
	}
	return &DownloadManager{
		resolver:   resolver,
		downloader: downloader,
		thumbnails: thumbnails,
		ledger:     ledger,
		leases:     leases,
		config:     config,
		logger:     log,
		metrics:    metrics,
		now:        time.Now,
	}
}

// ProcessVideo downloads one video and records the result. cycle is the number of
// external retries already spent on it. Failures are returned as an Outcome, never as an error.
func (dm *DownloadManager) ProcessVideo(ctx context.Context, video domain.VideoDescriptor, cycle int) domain.Outcome {
	release, err := dm.leases.Acquire(ctx, video.ID)
	if err != nil {
		return domain.Fatal(video.ID, err)
	}
	defer release()

	dm.logger.Base().Info("Processing video",
		zap.String("video_id", video.ID),
		zap.String("title", video.Title),
		zap.Int("cycle", cycle))

	thumbnailPath := dm.fetchThumbnail(ctx, video.ID)

	outcome := dm.fetchVideo(ctx, video.ID)
	outcome.ThumbnailPath = thumbnailPath
	dm.metrics.ObserveOutcome(string(outcome.Kind))

	dm.record(video, cycle, outcome)

	switch outcome.Kind {
	case domain.OutcomeOK:
		dm.logger.Base().Info("Video downloaded",
			zap.String("video_id", video.ID),
			zap.String("path", outcome.Path),
			zap.Float64("size_mb", domain.SizeMB(outcome.Size)))
	case domain.OutcomeRetryable:
		dm.logger.Base().Warn("Video download failed, retryable",
			zap.String("video_id", video.ID),
			zap.Error(outcome.Reason))
	default:
		dm.logger.LogError("Video download failed",
			zap.String("video_id", video.ID),
			zap.Error(outcome.Reason))
	}
	return outcome
}

// RecordFailure writes a failed ledger entry for a video that never reached a worker,
// such as a single-video fetch whose metadata lookup failed
func (dm *DownloadManager) RecordFailure(video domain.VideoDescriptor, err error) {
	dm.record(video, 0, domain.Fatal(video.ID, err))
}

// record upserts the final state of one processing cycle into the ledger
func (dm *DownloadManager) record(video domain.VideoDescriptor, cycle int, outcome domain.Outcome) {
	entry := domain.LedgerEntry{
		Video:         video,
		ThumbnailPath: outcome.ThumbnailPath,
		Success:       outcome.Succeeded(),
		Error:         outcome.Reason,
		Attempts:      cycle + 1,
		At:            dm.now(),
	}
	if outcome.Succeeded() {
		entry.VideoPath = outcome.Path
		entry.SizeBytes = outcome.Size
	}
	if _, err := dm.ledger.Upsert(entry); err != nil {
		dm.logger.LogError("Failed to record outcome in ledger",
			zap.String("video_id", video.ID),
			zap.Error(err))
	}
}

// fetchThumbnail is best effort: any failure is logged and yields an empty path
func (dm *DownloadManager) fetchThumbnail(ctx context.Context, videoID string) string {
	if dm.thumbnails == nil {
		return ""
	}
	target, err := dm.resolver.ResolveThumbnail(ctx, videoID)
	if err != nil {
		dm.logger.Base().Warn("Cannot resolve thumbnail",
			zap.String("video_id", videoID),
			zap.Error(err))
		return ""
	}
	path, err := dm.thumbnails.FetchThumbnail(ctx, videoID, target)
	if err != nil {
		dm.logger.Base().Warn("Thumbnail download failed",
			zap.String("video_id", videoID),
			zap.Error(err))
		return ""
	}
	return path
}

func (dm *DownloadManager) fetchVideo(ctx context.Context, videoID string) domain.Outcome {
	source, err := dm.resolver.ResolveSource(ctx, videoID)
	if err != nil {
		return dm.classify(ctx, videoID, err)
	}

	path := filepath.Join(dm.config.BaseDir, videoID+"."+source.Format)
	result, err := dm.downloader.Fetch(ctx, videoID, source.DownloadURL, path)
	if err != nil {
		return dm.classify(ctx, videoID, err)
	}
	return domain.OK(videoID, result.Path, result.Size)
}

func (dm *DownloadManager) classify(ctx context.Context, videoID string, err error) domain.Outcome {
	return domain.Outcome{Kind: ClassifyError(ctx, err, dm.config.RetryMarkers...), VideoID: videoID, Reason: err}
}

// ClassifyError decides between requeue and abandon. Transient failures (network including
// client timeouts, HTTP, interrupted stream, re-authentication) and anything carrying a retry
// marker are requeued. A terminal transfer error is requeued only when it carries a marker;
// its own attempt budget already covered transient causes. Everything is fatal once ctx is done.
func ClassifyError(ctx context.Context, err error, retryMarkers ...string) domain.OutcomeKind {
	if err == nil {
		return domain.OutcomeOK
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return domain.OutcomeFatal
	}

	var transferErr *domain.TransferError
	if errors.As(err, &transferErr) {
		if domain.HasRetryMarker(err, retryMarkers...) {
			return domain.OutcomeRetryable
		}
		return domain.OutcomeFatal
	}

	if domain.IsTransient(err) || domain.HasRetryMarker(err, retryMarkers...) {
		return domain.OutcomeRetryable
	}
	return domain.OutcomeFatal
}
