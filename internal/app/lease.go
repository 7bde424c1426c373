package app

import (
	"context"
	"sync"
)

// VideoLeases gives at most one worker at a time the right to touch a video's files
type VideoLeases struct {
	mu      sync.Mutex
	entries map[string]*leaseEntry
}

type leaseEntry struct {
	slot chan struct{}
	refs int
}

// NewVideoLeases creates an empty lease table
func NewVideoLeases() *VideoLeases {
	return &VideoLeases{entries: make(map[string]*leaseEntry)}
}

// Acquire blocks until the lease for videoID is free or ctx is done.
// The returned release function must be called exactly once.
func (l *VideoLeases) Acquire(ctx context.Context, videoID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[videoID]
	if !ok {
		entry = &leaseEntry{slot: make(chan struct{}, 1)}
		l.entries[videoID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.slot
				l.unref(videoID, entry)
			})
		}, nil
	case <-ctx.Done():
		l.unref(videoID, entry)
		return nil, ctx.Err()
	}
}

func (l *VideoLeases) unref(videoID string, entry *leaseEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, videoID)
	}
}
