// Package queue defines the contract for enqueuing and consuming audit
// jobs.
//
// Audits are advisory, so the queue is allowed to shed load: a full queue
// drops the job rather than blocking a trade submission.
package queue

import (
	"context"
	"sync"

	"github.com/sportswire/gmtrade/internal/domain/fingerprint"
	"github.com/sportswire/gmtrade/internal/domain/grading"
	"github.com/sportswire/gmtrade/internal/domain/trade"
	"github.com/sportswire/gmtrade/pkg/metrics"
)

// defaultCapacity bounds the in-memory audit queue.
const defaultCapacity = 10000

// Job is one pending plausibility audit.
type Job struct {
	Fingerprint   fingerprint.Fingerprint
	Proposal      *trade.Proposal
	Deterministic grading.Result
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel receiving jobs as they become available.
	// The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close shuts the queue; no new jobs are accepted afterwards.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds the queue.
func WithCapacity(n int) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	metrics.UpdateAuditQueueDepth(0)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordAuditDropped()
		return false
	}
	select {
	case q.jobs <- j:
		metrics.UpdateAuditQueueDepth(len(q.jobs))
		return true
	case <-ctx.Done():
		metrics.RecordAuditDropped()
		return false
	default:
		metrics.RecordAuditDropped()
		return false // queue is full
	}
}

// Dequeue returns a channel that receives jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.UpdateAuditQueueDepth(len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.jobs)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}
