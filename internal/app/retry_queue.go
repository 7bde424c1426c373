package app

import (
	"sync"

	"github.com/yourusername/iwara-dl-go/internal/domain"
	"github.com/yourusername/iwara-dl-go/internal/infrastructure"
)

// RetryQueue is an in-memory FIFO of deferred re-attempts. Tickets are not ordered by
// NotBefore; whoever pops a ticket waits for that ticket's own time.
type RetryQueue struct {
	mu      sync.Mutex
	tickets []domain.RetryTicket
	metrics *infrastructure.Metrics
}

// NewRetryQueue creates an empty retry queue
func NewRetryQueue(metrics *infrastructure.Metrics) *RetryQueue {
	return &RetryQueue{metrics: metrics}
}

// Push appends a ticket
func (q *RetryQueue) Push(ticket domain.RetryTicket) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tickets = append(q.tickets, ticket)
	q.metrics.SetRetryQueueDepth(len(q.tickets))
}

// Pop removes the oldest ticket
func (q *RetryQueue) Pop() (domain.RetryTicket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tickets) == 0 {
		return domain.RetryTicket{}, false
	}
	ticket := q.tickets[0]
	q.tickets = q.tickets[1:]
	q.metrics.SetRetryQueueDepth(len(q.tickets))
	return ticket, true
}

// Len returns the number of waiting tickets
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tickets)
}
