package domain

import "time"

// OutcomeKind tags the result of processing one video
type OutcomeKind string

const (
	OutcomeOK        OutcomeKind = "ok"
	OutcomeRetryable OutcomeKind = "retryable"
	OutcomeFatal     OutcomeKind = "fatal"
)

// Outcome is the result of one video task. The orchestrator switches on Kind;
// failures are returned as values, never raised.
type Outcome struct {
	Kind          OutcomeKind
	VideoID       string
	Path          string
	Size          int64
	ThumbnailPath string
	Reason        error
}

// OK builds a successful outcome
func OK(videoID, path string, size int64) Outcome {
	return Outcome{Kind: OutcomeOK, VideoID: videoID, Path: path, Size: size}
}

// Retryable builds an outcome that should be requeued after a delay
func Retryable(videoID string, reason error) Outcome {
	return Outcome{Kind: OutcomeRetryable, VideoID: videoID, Reason: reason}
}

// Fatal builds an outcome that is logged and abandoned
func Fatal(videoID string, reason error) Outcome {
	return Outcome{Kind: OutcomeFatal, VideoID: videoID, Reason: reason}
}

// Succeeded reports whether the outcome is a success
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeOK
}

// RetryTicket is a deferred re-attempt of a video. Tickets live in memory only.
// Video is the snapshot taken at listing time so the retried ledger record keeps it.
type RetryTicket struct {
	VideoID   string
	Video     VideoDescriptor
	NotBefore time.Time
	Cycle     int
}

// Ready reports whether the ticket may run at the given time
func (t RetryTicket) Ready(now time.Time) bool {
	return !now.Before(t.NotBefore)
}
