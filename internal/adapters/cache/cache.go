// Package cache provides the content-addressed result store with
// at-most-one-compute semantics.
//
// Entries are write-once: a fingerprint's result is computed exactly once
// and never overwritten or evicted. This is an append-only audit trail,
// not an LRU cache; growth is bounded by distinct-trade volume.
package cache

import (
	"context"
	"sync"

	"github.com/sportswire/gmtrade/pkg/metrics"
)

// entry tracks one computation. done is closed once val/err are set.
type entry[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Store is a write-once, per-key deduplicated compute cache. If two
// requests for the same key arrive concurrently, only one runs the compute
// function; the rest wait for and receive the same result.
type Store[T any] struct {
	mu        sync.Mutex
	entries   map[string]*entry[T]
	namespace string
}

// Option applies a configuration option to the Store.
type Option[T any] func(*Store[T])

// WithNamespace labels the store's cache metrics.
func WithNamespace[T any](ns string) Option[T] {
	return func(s *Store[T]) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// New constructs an empty store.
func New[T any](opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		entries:   make(map[string]*entry[T]),
		namespace: "default",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCompute returns the cached result for key, computing it at most
// once. The second return reports a cache hit: true for every caller
// except the one whose call ran the compute. The compute runs detached
// from the caller's cancellation so a dropped request still populates the
// cache for other waiters; the caller itself still honors ctx while
// waiting.
func (s *Store[T]) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		s.mu.Unlock()
		metrics.RecordCacheHit(s.namespace)
		return s.wait(ctx, e, true)
	}

	e := &entry[T]{done: make(chan struct{})}
	s.entries[key] = e
	s.mu.Unlock()
	metrics.RecordCacheMiss(s.namespace)

	go func() {
		defer close(e.done)
		v, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			// Failed computes are not write-once: drop the entry so a
			// later submission can retry.
			e.err = err
			s.mu.Lock()
			if cur, ok := s.entries[key]; ok && cur == e {
				delete(s.entries, key)
			}
			s.mu.Unlock()
			return
		}
		e.val = v
	}()

	return s.wait(ctx, e, false)
}

// wait blocks until the entry resolves or ctx is cancelled. Cancellation
// abandons only this caller's wait, never the compute.
func (s *Store[T]) wait(ctx context.Context, e *entry[T], cached bool) (T, bool, error) {
	select {
	case <-e.done:
		return e.val, cached && e.err == nil, e.err
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// Get returns the completed result for key, if one exists. In-flight
// computations do not count: the second return is false until the result
// is durable.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return zero[T](), false
	}
	select {
	case <-e.done:
		if e.err != nil {
			return zero[T](), false
		}
		return e.val, true
	default:
		return zero[T](), false
	}
}

// Contains reports whether key has a completed or in-flight entry.
func (s *Store[T]) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Len returns the number of entries, including in-flight ones.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func zero[T any]() T {
	var z T
	return z
}
