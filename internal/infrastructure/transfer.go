package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/iwara-dl-go/internal/domain"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
	"go.uber.org/zap"
)

// chunkSize is the size of each read from the response body
const chunkSize = 32 * 1024

// errStalled cancels a request that stopped delivering bytes
var errStalled = errors.New("transfer stalled")

// attemptResult is where one pass of the state machine ended
type attemptResult struct {
	state domain.TransferStateName
	size  int64
	delay time.Duration
	err   error
}

// TransferEngine streams a remote file to disk, resuming from the local partial file.
// The file on disk is the only checkpoint.
type TransferEngine struct {
	config      domain.DownloadConfig
	userAgent   string
	headTimeout time.Duration
	httpClient  *http.Client
	logger      *logger.LoggerAdapter
	metrics     *Metrics
}

// NewTransferEngine creates a transfer engine. Streaming requests carry no overall timeout;
// the stall guard aborts them when no bytes arrive for config.StallTimeout.
func NewTransferEngine(config domain.DownloadConfig, apiConfig domain.APIConfig, log *logger.LoggerAdapter, metrics *Metrics) *TransferEngine {
	if log == nil {
		log = logger.NewNopAdapter()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.StallTimeout <= 0 {
		config.StallTimeout = domain.DefaultConfig().Download.StallTimeout
	}
	return &TransferEngine{
		config:      config,
		userAgent:   apiConfig.UserAgent,
		headTimeout: apiConfig.Timeout,
		httpClient:  &http.Client{},
		logger:      log,
		metrics:     metrics,
	}
}

// Fetch downloads link into path. It returns the final size once the file is complete,
// or a *domain.TransferError once the attempt budget is spent or a fatal condition is hit.
func (e *TransferEngine) Fetch(ctx context.Context, videoID, link, path string) (*domain.TransferResult, error) {
	started := time.Now()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &domain.TransferError{VideoID: videoID, Err: fmt.Errorf("failed to create download directory: %w", err)}
	}

	state := &domain.TransferState{VideoID: videoID, Path: path, State: domain.StateInit}
	var result attemptResult
	var lastErr error

attempts:
	for !state.IsTerminal() && state.Attempt < e.config.MaxAttempts {
		state.Attempt++
		state.Transition(domain.StateInit)
		offset, err := localSize(path)
		if err != nil {
			lastErr = err
			break
		}
		state.Offset = offset

		e.logger.Base().Info("Starting transfer attempt",
			zap.String("video_id", videoID),
			zap.Int("attempt", state.Attempt),
			zap.Int("max_attempts", e.config.MaxAttempts),
			zap.Int64("offset", state.Offset))

		result = e.attempt(ctx, state, link)
		e.metrics.ObserveTransferAttempt(string(result.state))
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		state.Transition(result.state)

		if result.state == domain.StateFatal && state.Attempt < e.config.MaxAttempts &&
			domain.HasRetryMarker(result.err, e.config.RetryMarkers...) {
			e.logger.LogTransferEvent("retry_marker_detected",
				zap.String("video_id", videoID),
				zap.Int("attempt", state.Attempt),
				zap.Error(result.err))
			result.state = domain.StateRetryable
			result.delay = e.config.MarkerBackoff
			state.Transition(domain.StateRetryable)
		}

		switch result.state {
		case domain.StateInit:
			// Partial file discarded after a range reset or a misaligned 206
			lastErr = result.err

		case domain.StateRetryable:
			lastErr = result.err
			e.logger.LogTransferEvent("transfer_retryable",
				zap.String("video_id", videoID),
				zap.Int("attempt", state.Attempt),
				zap.Int64("offset", state.Offset),
				zap.Duration("backoff", result.delay),
				zap.Error(result.err))
			if state.Attempt < e.config.MaxAttempts {
				if err := SleepContext(ctx, result.delay); err != nil {
					lastErr = err
					break attempts
				}
			}
		}
	}

	switch state.State {
	case domain.StateComplete:
		e.metrics.ObserveTransfer("complete", started)
		e.logger.LogTransferEvent("transfer_complete",
			zap.String("video_id", videoID),
			zap.String("path", path),
			zap.Int64("size", result.size),
			zap.Int("attempts", state.Attempt))
		return &domain.TransferResult{Path: path, Size: result.size, Attempts: state.Attempt}, nil

	case domain.StateFatal:
		e.metrics.ObserveTransfer("fatal", started)
		e.logger.LogError("Transfer failed",
			zap.String("video_id", videoID),
			zap.Int("attempt", state.Attempt),
			zap.Error(result.err))
		return nil, &domain.TransferError{VideoID: videoID, Attempts: state.Attempt, Err: result.err}
	}

	if lastErr == nil {
		lastErr = errors.New("attempt budget exhausted")
	}
	e.metrics.ObserveTransfer("exhausted", started)
	e.logger.LogError("Transfer gave up",
		zap.String("video_id", videoID),
		zap.Int("attempts", state.Attempt),
		zap.Error(lastErr))
	return nil, &domain.TransferError{VideoID: videoID, Attempts: state.Attempt, Err: lastErr}
}

// attempt runs Requesting through Verifying once
func (e *TransferEngine) attempt(ctx context.Context, state *domain.TransferState, link string) attemptResult {
	state.Transition(domain.StateRequesting)

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stall := time.AfterFunc(e.config.StallTimeout, func() { cancel(errStalled) })
	defer stall.Stop()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, link, nil)
	if err != nil {
		return attemptResult{state: domain.StateFatal, err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("User-Agent", e.userAgent)
	if state.Offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", state.Offset))
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return e.networkFailure(reqCtx, state, err, link)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		return e.rangeRejected(ctx, state, link)
	}
	if resp.StatusCode >= 400 {
		return attemptResult{state: domain.StateRetryable, delay: e.config.NetworkBackoff, err: newHTTPError(resp)}
	}

	state.Transition(domain.StateStreaming)
	if total, ok := expectedTotal(resp); ok {
		state.SetExpectedTotal(total)
	} else if resp.Header.Get("Content-Range") != "" {
		e.logger.Base().Warn("Cannot parse total size from Content-Range",
			zap.String("video_id", state.VideoID),
			zap.String("content_range", resp.Header.Get("Content-Range")))
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	state.Downloaded = 0
	if state.Offset > 0 && resp.StatusCode == http.StatusPartialContent {
		start, ok := contentRangeStart(resp)
		switch {
		case resp.Header.Get("Content-Range") == "" || (ok && start == state.Offset):
			// a 206 without Content-Range cannot be checked and is taken as the requested range
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
			state.Downloaded = state.Offset
		case ok && start == 0:
			// whole file sent as a 206, rewrite from the first byte
			e.logger.LogTransferEvent("range_ignored",
				zap.String("video_id", state.VideoID),
				zap.Int64("offset", state.Offset))
		default:
			return e.rangeMismatch(state, resp.Header.Get("Content-Range"))
		}
	}

	e.logger.LogTransferEvent("streaming",
		zap.String("video_id", state.VideoID),
		zap.Int("status", resp.StatusCode),
		zap.Bool("append", flags&os.O_APPEND != 0),
		zap.Int64("offset", state.Offset),
		zap.Int64p("expected_total", state.ExpectedTotal))

	file, err := os.OpenFile(state.Path, flags, 0644)
	if err != nil {
		return attemptResult{state: domain.StateFatal, err: fmt.Errorf("failed to open %s: %w", state.Path, err)}
	}

	streamErr := e.stream(state, file, resp.Body, stall)
	if closeErr := file.Close(); closeErr != nil && streamErr == nil {
		return attemptResult{state: domain.StateFatal, err: fmt.Errorf("failed to close %s: %w", state.Path, closeErr)}
	}
	if streamErr != nil {
		var writeErr *fileWriteError
		if errors.As(streamErr, &writeErr) {
			return attemptResult{state: domain.StateFatal, err: writeErr.err}
		}
		return e.networkFailure(reqCtx, state, streamErr, link)
	}

	return e.verify(state)
}

// fileWriteError marks a local disk failure while streaming
type fileWriteError struct{ err error }

func (e *fileWriteError) Error() string { return e.err.Error() }

// stream copies the body into file chunk by chunk, logging progress periodically
func (e *TransferEngine) stream(state *domain.TransferState, file *os.File, body io.Reader, stall *time.Timer) error {
	buf := make([]byte, chunkSize)
	lastLog := time.Now()

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			stall.Reset(e.config.StallTimeout)
			if _, err := file.Write(buf[:n]); err != nil {
				return &fileWriteError{err: fmt.Errorf("failed to write %s: %w", state.Path, err)}
			}
			state.Downloaded += int64(n)
			e.metrics.AddTransferBytes(n)

			if e.config.ProgressInterval > 0 && time.Since(lastLog) >= e.config.ProgressInterval {
				e.logProgress(state)
				lastLog = time.Now()
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

func (e *TransferEngine) logProgress(state *domain.TransferState) {
	fields := []zap.Field{
		zap.String("video_id", state.VideoID),
		zap.Float64("downloaded_mb", domain.SizeMB(state.Downloaded)),
	}
	if state.ExpectedTotal != nil && *state.ExpectedTotal > 0 {
		fields = append(fields,
			zap.Float64("total_mb", domain.SizeMB(*state.ExpectedTotal)),
			zap.String("progress", fmt.Sprintf("%.1f%%", float64(state.Downloaded)/float64(*state.ExpectedTotal)*100)))
	}
	e.logger.Base().Info("Downloading", fields...)
}

// verify checks the local size against the expected total once the stream ended
func (e *TransferEngine) verify(state *domain.TransferState) attemptResult {
	state.Transition(domain.StateVerifying)
	size, err := localSize(state.Path)
	if err != nil {
		return attemptResult{state: domain.StateFatal, err: err}
	}

	if state.Incomplete(size) {
		state.Offset = size
		return attemptResult{
			state: domain.StateRetryable,
			delay: e.config.VerifyBackoff,
			err:   fmt.Errorf("%w: have %d of %d bytes", domain.ErrIncompleteRead, size, *state.ExpectedTotal),
		}
	}
	if state.ExpectedTotal == nil {
		e.logger.Base().Warn("Transfer finished without a known size, skipping verification",
			zap.String("video_id", state.VideoID))
	}
	return attemptResult{state: domain.StateComplete, size: size}
}

// rangeRejected handles a 416 by asking the server for the authoritative size
func (e *TransferEngine) rangeRejected(ctx context.Context, state *domain.TransferState, link string) attemptResult {
	state.Transition(domain.StateRangeRejected)

	total, err := e.headSize(ctx, link)
	if err != nil {
		e.logger.LogTransferEvent("range_rejected_head_failed",
			zap.String("video_id", state.VideoID),
			zap.Int64("offset", state.Offset),
			zap.Error(err))
		return attemptResult{state: domain.StateComplete, size: state.Offset}
	}

	if total <= 0 || state.Offset >= total {
		e.logger.LogTransferEvent("range_rejected_complete",
			zap.String("video_id", state.VideoID),
			zap.Int64("offset", state.Offset),
			zap.Int64("total", total))
		return attemptResult{state: domain.StateComplete, size: state.Offset}
	}

	e.logger.LogTransferEvent("range_rejected_restart",
		zap.String("video_id", state.VideoID),
		zap.Int64("offset", state.Offset),
		zap.Int64("total", total))
	if err := os.Remove(state.Path); err != nil && !os.IsNotExist(err) {
		return attemptResult{state: domain.StateFatal, err: fmt.Errorf("failed to remove stale partial file: %w", err)}
	}
	state.Offset = 0
	state.Downloaded = 0
	return attemptResult{state: domain.StateInit, err: domain.ErrRangeRejected}
}

// rangeMismatch discards the partial file when a 206 does not start at the local size
func (e *TransferEngine) rangeMismatch(state *domain.TransferState, contentRange string) attemptResult {
	e.logger.LogTransferEvent("range_mismatch_restart",
		zap.String("video_id", state.VideoID),
		zap.Int64("offset", state.Offset),
		zap.String("content_range", contentRange))
	if err := os.Remove(state.Path); err != nil && !os.IsNotExist(err) {
		return attemptResult{state: domain.StateFatal, err: fmt.Errorf("failed to remove misaligned partial file: %w", err)}
	}
	requested := state.Offset
	state.Offset = 0
	state.Downloaded = 0
	return attemptResult{
		state: domain.StateInit,
		err:   fmt.Errorf("%w: requested offset %d, got %q", domain.ErrRangeMismatch, requested, contentRange),
	}
}

// headSize returns the Content-Length reported by a HEAD request, 0 when absent
func (e *TransferEngine) headSize(ctx context.Context, link string) (int64, error) {
	if e.headTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.headTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, &domain.TransportError{Op: http.MethodHead, URL: link, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, newHTTPError(resp)
	}
	if resp.ContentLength < 0 {
		return 0, nil
	}
	return resp.ContentLength, nil
}

// networkFailure classifies a request or stream error into a retryable result.
// Interrupted bodies back off linearly with the attempt number; other failures use a fixed delay.
func (e *TransferEngine) networkFailure(reqCtx context.Context, state *domain.TransferState, err error, link string) attemptResult {
	if cause := context.Cause(reqCtx); errors.Is(cause, errStalled) {
		err = errStalled
	}

	if size, sizeErr := localSize(state.Path); sizeErr == nil {
		state.Offset = size
		state.Downloaded = size
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return attemptResult{
			state: domain.StateRetryable,
			delay: e.config.InterruptBackoff * time.Duration(state.Attempt),
			err:   fmt.Errorf("%w: %v", domain.ErrIncompleteRead, err),
		}
	}
	return attemptResult{
		state: domain.StateRetryable,
		delay: e.config.NetworkBackoff,
		err:   &domain.TransportError{Op: http.MethodGet, URL: link, Err: err},
	}
}

// expectedTotal derives the full file size from response headers. Content-Length only
// describes the whole file on a 200; on a 206 it is just the remaining bytes.
func expectedTotal(resp *http.Response) (int64, bool) {
	if contentRange := resp.Header.Get("Content-Range"); contentRange != "" {
		slash := strings.LastIndex(contentRange, "/")
		if slash < 0 {
			return 0, false
		}
		total, err := strconv.ParseInt(strings.TrimSpace(contentRange[slash+1:]), 10, 64)
		if err != nil || total < 0 {
			return 0, false
		}
		return total, true
	}
	if resp.StatusCode == http.StatusOK && resp.ContentLength >= 0 {
		return resp.ContentLength, true
	}
	return 0, false
}

// contentRangeStart parses the first-byte-pos of a "bytes START-END/TOTAL" header
func contentRangeStart(resp *http.Response) (int64, bool) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(resp.Header.Get("Content-Range")), "bytes ")
	if !ok {
		return 0, false
	}
	dash := strings.Index(spec, "-")
	if dash < 0 {
		return 0, false
	}
	start, err := strconv.ParseInt(strings.TrimSpace(spec[:dash]), 10, 64)
	if err != nil || start < 0 {
		return 0, false
	}
	return start, true
}

// localSize returns the size of path, 0 when it does not exist
func localSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// SleepContext waits for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
