// Package worker runs the asynchronous plausibility audit pipeline.
//
// Workers drain the audit queue, call the plausibility service, and write
// results into the audit cache so repeat requests are free. Audit failures
// are logged and counted, never propagated: the deterministic grade is
// already committed by the time a job reaches a worker.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/sportswire/gmtrade/internal/adapters/mq/queue"
	"github.com/sportswire/gmtrade/internal/domain/audit"
	"github.com/sportswire/gmtrade/pkg/logger"
	"github.com/sportswire/gmtrade/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	workerShutdownTimeout   = 5 * time.Second
)

// AuditSink stores a completed audit result exactly once per fingerprint.
type AuditSink interface {
	GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (audit.Result, error)) (audit.Result, bool, error)
}

// Runner is the audit function workers invoke per job.
type Runner interface {
	Audit(ctx context.Context, j queue.Job) (audit.Result, error)
}

// Worker processes audit jobs until shut down.
type Worker struct {
	queue  queue.Queue
	runner Runner
	sink   AuditSink
	name   string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName names the worker for logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// NewWorker creates a worker bound to a queue, runner and sink.
func NewWorker(q queue.Queue, runner Runner, sink AuditSink, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		runner:   runner,
		sink:     sink,
		name:     "auditor",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.processJob(ctx, job)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob audits one job through the sink so the at-most-one-compute
// discipline holds even if the same fingerprint was enqueued twice.
func (w *Worker) processJob(ctx context.Context, job queue.Job) {
	start := time.Now()
	_, cached, err := w.sink.GetOrCompute(ctx, job.Fingerprint.String(), func(ctx context.Context) (audit.Result, error) {
		return w.runner.Audit(ctx, job)
	})
	metrics.RecordAuditLatency(float64(time.Since(start).Milliseconds()))

	switch {
	case err != nil:
		metrics.RecordAuditResult("unavailable")
		w.logger.Warn(ctx, "audit failed; grade stands without second opinion",
			logger.String("fingerprint", job.Fingerprint.String()),
			logger.Error(err),
		)
	case cached:
		// Another worker already audited this fingerprint.
	default:
		metrics.RecordAuditResult("completed")
	}
}

// Pool manages a fixed set of audit workers.
type Pool struct {
	workers []*Worker
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers.
func NewPool(workerCount int, q queue.Queue, runner Runner, sink AuditSink) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*Worker, workerCount),
		logger:  logger.Named("audit-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewWorker(q, runner, sink, WithName("auditor-"+strconv.Itoa(i)))
	}
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
	defer cancel()
	for _, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker did not stop in time", logger.String("worker", w.name))
		}
	}
}
