package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/yourusername/iwara-dl-go/internal/domain"
	"github.com/yourusername/iwara-dl-go/internal/infrastructure"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
)

// ErrRunInProgress is returned when a batch run is started while another one is active
var ErrRunInProgress = errors.New("a download run is already in progress")

// Notifier receives end-of-run and abandoned-video notifications
type Notifier interface {
	NotifyRunFinished(succeeded, failed, abandoned int)
	NotifyVideoFailed(videoID, title string, err error)
}

// VideoProcessor processes one video and reports the outcome
type VideoProcessor interface {
	ProcessVideo(ctx context.Context, video domain.VideoDescriptor, cycle int) domain.Outcome
	RecordFailure(video domain.VideoDescriptor, err error)
}

// RunSummary describes a finished batch run
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Listed    int           `json:"listed"`
	Skipped   int           `json:"skipped"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Requeued  int           `json:"requeued"`
	Abandoned int           `json:"abandoned"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
}

// add merges another summary's counters
func (s *RunSummary) add(other *RunSummary) {
	s.Listed += other.Listed
	s.Skipped += other.Skipped
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.Requeued += other.Requeued
	s.Abandoned += other.Abandoned
}

// Orchestrator fans videos out over a bounded worker pool and drains the retry queue
type Orchestrator struct {
	lister    domain.Lister
	resolver  domain.Resolver
	processor VideoProcessor
	notifier  Notifier
	config    *domain.OrchestratorConfig
	logger    *logger.LoggerAdapter
	metrics   *infrastructure.Metrics

	mu      sync.Mutex
	running bool
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	lister domain.Lister,
	resolver domain.Resolver,
	processor VideoProcessor,
	notifier Notifier,
	config *domain.OrchestratorConfig,
	log *logger.LoggerAdapter,
	metrics *infrastructure.Metrics,
) *Orchestrator {
	if log == nil {
		log = logger.NewNopAdapter()
	}
	return &Orchestrator{
		lister:    lister,
		resolver:  resolver,
		processor: processor,
		notifier:  notifier,
		config:    config,
		logger:    log,
		metrics:   metrics,
	}
}

// Run lists one page and downloads every video on it
func (o *Orchestrator) Run(ctx context.Context, params domain.ListParams) (*RunSummary, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()

	summary := o.newSummary()
	o.logger.LogQueueEvent("run_started",
		zap.String("run_id", summary.RunID),
		zap.String("sort", string(params.Sort)),
		zap.String("rating", string(params.Rating)),
		zap.Int("page", params.Page),
		zap.Int("limit", params.Limit),
		zap.Bool("subscribed", params.Subscribed))

	if err := o.runPage(ctx, params, summary); err != nil {
		return nil, err
	}
	o.finish(summary)
	return summary, nil
}

// RunPages runs `pages` consecutive pages starting at params.Page. With limitSteps > 1 each
// page is fetched limitSteps times with limits growing in equal steps up to params.Limit.
func (o *Orchestrator) RunPages(ctx context.Context, params domain.ListParams, pages, limitSteps int) (*RunSummary, error) {
	if pages < 1 {
		return nil, fmt.Errorf("pages must be at least 1")
	}
	if limitSteps < 1 {
		limitSteps = 1
	}
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()

	total := o.newSummary()
	o.logger.LogQueueEvent("run_started",
		zap.String("run_id", total.RunID),
		zap.Int("first_page", params.Page),
		zap.Int("pages", pages),
		zap.Int("limit_steps", limitSteps))

	for page := params.Page; page < params.Page+pages; page++ {
		for step := 1; step <= limitSteps; step++ {
			if ctx.Err() != nil {
				o.finish(total)
				return total, ctx.Err()
			}
			pageParams := params
			pageParams.Page = page
			pageParams.Limit = stepLimit(params.Limit, step, limitSteps)

			pageSummary := &RunSummary{RunID: total.RunID}
			if err := o.runPage(ctx, pageParams, pageSummary); err != nil {
				// A failed listing skips this page; later pages may still work
				o.logger.LogError("Failed to process page",
					zap.String("run_id", total.RunID),
					zap.Int("page", page),
					zap.Int("limit", pageParams.Limit),
					zap.Error(err))
				continue
			}
			total.add(pageSummary)
		}
	}

	o.finish(total)
	return total, nil
}

// FetchOne downloads a single video by id, with the same retry rules as a batch run
func (o *Orchestrator) FetchOne(ctx context.Context, videoID string) (*RunSummary, error) {
	if videoID == "" {
		return nil, fmt.Errorf("video id is required")
	}
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()

	video, err := o.resolver.FetchMetadata(ctx, videoID)
	if err != nil {
		o.processor.RecordFailure(domain.VideoDescriptor{ID: videoID}, err)
		o.logger.LogQueueEvent("fetch_failed",
			zap.String("video_id", videoID),
			zap.Error(err))
		return nil, err
	}

	summary := o.newSummary()
	summary.Listed = 1
	o.logger.LogQueueEvent("fetch_started",
		zap.String("run_id", summary.RunID),
		zap.String("video_id", videoID))
	o.process(ctx, []domain.VideoDescriptor{*video}, summary)
	o.finish(summary)
	return summary, nil
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrRunInProgress
	}
	o.running = true
	return nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
}

// IsRunning returns whether a batch run is active
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) newSummary() *RunSummary {
	return &RunSummary{RunID: uuid.NewString(), Started: time.Now()}
}

func (o *Orchestrator) finish(summary *RunSummary) {
	summary.Duration = time.Since(summary.Started)
	o.logger.LogQueueEvent("run_finished",
		zap.String("run_id", summary.RunID),
		zap.Int("listed", summary.Listed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("requeued", summary.Requeued),
		zap.Int("abandoned", summary.Abandoned),
		zap.Duration("duration", summary.Duration))
	if o.notifier != nil {
		o.notifier.NotifyRunFinished(summary.Succeeded, summary.Failed, summary.Abandoned)
	}
}

// runPage lists one page and processes it
func (o *Orchestrator) runPage(ctx context.Context, params domain.ListParams, summary *RunSummary) error {
	videos, err := o.lister.ListVideos(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to list videos: %w", err)
	}
	summary.Listed += len(videos)
	if len(videos) == 0 {
		o.logger.LogQueueEvent("page_empty",
			zap.String("run_id", summary.RunID),
			zap.Int("page", params.Page))
		return nil
	}

	valid := make([]domain.VideoDescriptor, 0, len(videos))
	for _, video := range videos {
		if video.ID == "" {
			summary.Skipped++
			o.logger.Base().Warn("Skipping listed video without id",
				zap.String("run_id", summary.RunID),
				zap.String("title", video.Title))
			continue
		}
		valid = append(valid, video)
	}

	o.process(ctx, valid, summary)
	return nil
}

// process runs the initial pass over videos, then drains the retry queue until it is empty
// and no worker that could refill it is still running.
func (o *Orchestrator) process(ctx context.Context, videos []domain.VideoDescriptor, summary *RunSummary) {
	concurrency := o.config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	queue := NewRetryQueue(o.metrics)
	var wg sync.WaitGroup
	var summaryMu sync.Mutex

	record := func(video domain.VideoDescriptor, cycle int, outcome domain.Outcome) {
		summaryMu.Lock()
		defer summaryMu.Unlock()
		o.recordOutcome(ctx, video, cycle, outcome, queue, summary)
	}

	for i, video := range videos {
		if i > 0 {
			if err := infrastructure.SleepContext(ctx, o.config.StaggerDelay); err != nil {
				break
			}
		}
		if err := o.launch(ctx, sem, &wg, video, 0, record); err != nil {
			break
		}
	}
	wg.Wait()

	o.logger.LogQueueEvent("initial_pass_finished",
		zap.String("run_id", summary.RunID),
		zap.Int("retry_queue", queue.Len()))

	for ctx.Err() == nil {
		ticket, ok := queue.Pop()
		if !ok {
			// Workers launched while draining may still requeue
			wg.Wait()
			if queue.Len() == 0 {
				break
			}
			continue
		}

		if !ticket.Ready(time.Now()) {
			o.logger.Base().Info("Waiting before retry",
				zap.String("video_id", ticket.VideoID),
				zap.Duration("wait", time.Until(ticket.NotBefore)),
				zap.Int("cycle", ticket.Cycle))
			if err := sleepUntil(ctx, ticket.NotBefore); err != nil {
				break
			}
		}

		o.logger.LogQueueEvent("retry_started",
			zap.String("run_id", summary.RunID),
			zap.String("video_id", ticket.VideoID),
			zap.Int("cycle", ticket.Cycle))
		if err := o.launch(ctx, sem, &wg, ticket.Video, ticket.Cycle, record); err != nil {
			break
		}
	}
	wg.Wait()

	if remaining := queue.Len(); remaining > 0 {
		o.logger.LogQueueEvent("retry_queue_dropped",
			zap.String("run_id", summary.RunID),
			zap.Int("tickets", remaining),
			zap.String("reason", "context_cancelled"))
	}
}

// launch waits for a pool slot and starts a worker for video
func (o *Orchestrator) launch(
	ctx context.Context,
	sem *semaphore.Weighted,
	wg *sync.WaitGroup,
	video domain.VideoDescriptor,
	cycle int,
	record func(domain.VideoDescriptor, int, domain.Outcome),
) error {
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer sem.Release(1)
		o.metrics.WorkerStarted()
		defer o.metrics.WorkerFinished()

		outcome := o.processor.ProcessVideo(ctx, video, cycle)
		record(video, cycle, outcome)
	}()
	return nil
}

// recordOutcome updates the summary and requeues retryable failures while the budget allows
func (o *Orchestrator) recordOutcome(
	ctx context.Context,
	video domain.VideoDescriptor,
	cycle int,
	outcome domain.Outcome,
	queue *RetryQueue,
	summary *RunSummary,
) {
	switch outcome.Kind {
	case domain.OutcomeOK:
		summary.Succeeded++
		o.logger.LogQueueEvent("video_completed",
			zap.String("run_id", summary.RunID),
			zap.String("video_id", video.ID),
			zap.String("path", outcome.Path),
			zap.Int64("size", outcome.Size))

	case domain.OutcomeRetryable:
		if ctx.Err() != nil {
			summary.Failed++
			return
		}
		if cycle >= o.config.MaxExternalRetries {
			summary.Abandoned++
			o.logger.LogQueueEvent("video_abandoned",
				zap.String("run_id", summary.RunID),
				zap.String("video_id", video.ID),
				zap.Int("cycles", cycle),
				zap.Error(outcome.Reason))
			if o.notifier != nil {
				o.notifier.NotifyVideoFailed(video.ID, video.Title, outcome.Reason)
			}
			return
		}
		summary.Requeued++
		ticket := domain.RetryTicket{
			VideoID:   video.ID,
			Video:     video,
			NotBefore: time.Now().Add(o.config.RetryDelay),
			Cycle:     cycle + 1,
		}
		queue.Push(ticket)
		o.logger.LogQueueEvent("video_requeued",
			zap.String("run_id", summary.RunID),
			zap.String("video_id", video.ID),
			zap.Int("cycle", ticket.Cycle),
			zap.Time("not_before", ticket.NotBefore),
			zap.Error(outcome.Reason))

	default:
		summary.Failed++
		o.logger.LogQueueEvent("video_failed",
			zap.String("run_id", summary.RunID),
			zap.String("video_id", video.ID),
			zap.Error(outcome.Reason))
		if o.notifier != nil && ctx.Err() == nil {
			o.notifier.NotifyVideoFailed(video.ID, video.Title, outcome.Reason)
		}
	}
}

// stepLimit returns the listing limit for step of steps, growing evenly up to limit
func stepLimit(limit, step, steps int) int {
	if steps <= 1 {
		return limit
	}
	l := limit * step / steps
	if l < 1 {
		l = 1
	}
	return l
}

// sleepUntil waits until t or until ctx is done
func sleepUntil(ctx context.Context, t time.Time) error {
	return infrastructure.SleepContext(ctx, time.Until(t))
}
