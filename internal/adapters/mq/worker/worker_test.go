package worker_test

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/sportswire/gmtrade/internal/adapters/cache"
	"github.com/sportswire/gmtrade/internal/adapters/mq/queue"
	"github.com/sportswire/gmtrade/internal/adapters/mq/worker"
	"github.com/sportswire/gmtrade/internal/domain/audit"
	"github.com/sportswire/gmtrade/internal/domain/fingerprint"
	"github.com/sportswire/gmtrade/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type countingRunner struct {
	calls int32
	err   error
}

func (r *countingRunner) Audit(ctx context.Context, j queue.Job) (audit.Result, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.err != nil {
		return audit.Result{}, r.err
	}
	return audit.Result{Fingerprint: j.Fingerprint, Grade: 55}, nil
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWorker_ProcessesJobs(t *testing.T) {
	Convey("Given a worker over a queue and an audit cache", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		sink := cache.New[audit.Result](cache.WithNamespace[audit.Result]("audits"))
		runner := &countingRunner{}
		w := worker.NewWorker(q, runner, sink, worker.WithName("test-auditor"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		Convey("When a job is enqueued", func() {
			fp := fingerprint.Fingerprint("abc123")
			So(q.Enqueue(ctx, queue.Job{Fingerprint: fp}), ShouldBeTrue)

			Convey("Then the result lands in the sink", func() {
				So(waitFor(func() bool {
					_, ok := sink.Get(fp.String())
					return ok
				}), ShouldBeTrue)

				res, ok := sink.Get(fp.String())
				So(ok, ShouldBeTrue)
				So(res.Grade, ShouldEqual, 55)
				So(atomic.LoadInt32(&runner.calls), ShouldEqual, 1)
			})
		})

		Convey("When the same fingerprint is enqueued twice", func() {
			fp := fingerprint.Fingerprint("dupes")
			So(q.Enqueue(ctx, queue.Job{Fingerprint: fp}), ShouldBeTrue)
			So(q.Enqueue(ctx, queue.Job{Fingerprint: fp}), ShouldBeTrue)

			Convey("Then the audit still runs only once", func() {
				So(waitFor(func() bool {
					_, ok := sink.Get(fp.String())
					return ok
				}), ShouldBeTrue)
				So(waitFor(func() bool { return q.Len(ctx) == 0 }), ShouldBeTrue)
				So(atomic.LoadInt32(&runner.calls), ShouldEqual, 1)
			})
		})

		Convey("When shut down", func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
			defer stop()
			So(w.Shutdown(shutdownCtx), ShouldBeNil)
		})
	})
}

func TestWorker_AuditFailure(t *testing.T) {
	Convey("Given a worker whose runner fails", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		sink := cache.New[audit.Result]()
		runner := &countingRunner{err: errors.New("assessor down")}
		w := worker.NewWorker(q, runner, sink)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		Convey("When a job is processed", func() {
			fp := fingerprint.Fingerprint("failing")
			So(q.Enqueue(ctx, queue.Job{Fingerprint: fp}), ShouldBeTrue)

			Convey("Then the failure never reaches the sink", func() {
				So(waitFor(func() bool { return atomic.LoadInt32(&runner.calls) >= 1 }), ShouldBeTrue)
				_, ok := sink.Get(fp.String())
				So(ok, ShouldBeFalse)

				Convey("And a later retry can succeed", func() {
					runner.err = nil
					So(q.Enqueue(ctx, queue.Job{Fingerprint: fp}), ShouldBeTrue)
					So(waitFor(func() bool {
						_, ok := sink.Get(fp.String())
						return ok
					}), ShouldBeTrue)
				})
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		sink := cache.New[audit.Result]()
		runner := &countingRunner{}
		pool := worker.NewPool(4, q, runner, sink)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		Convey("When many distinct jobs are enqueued", func() {
			const jobs = 32
			for i := 0; i < jobs; i++ {
				fp := fingerprint.Fingerprint("job-" + strconv.Itoa(i))
				So(q.Enqueue(ctx, queue.Job{Fingerprint: fp}), ShouldBeTrue)
			}

			Convey("Then every job is audited exactly once", func() {
				So(waitFor(func() bool { return sink.Len() == jobs }), ShouldBeTrue)
				So(atomic.LoadInt32(&runner.calls), ShouldEqual, jobs)
			})
		})

		Convey("When the pool stops", func() {
			So(pool.Stop, ShouldNotPanic)
		})
	})
}
