// Package service wires the trade evaluation engine together and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/sportswire/gmtrade/internal/adapters/cache"
	"github.com/sportswire/gmtrade/internal/adapters/ledger"
	auditqueue "github.com/sportswire/gmtrade/internal/adapters/mq/queue"
	workerpool "github.com/sportswire/gmtrade/internal/adapters/mq/worker"
	"github.com/sportswire/gmtrade/internal/adapters/repository"
	"github.com/sportswire/gmtrade/internal/domain/audit"
	"github.com/sportswire/gmtrade/internal/domain/fingerprint"
	"github.com/sportswire/gmtrade/internal/domain/freshness"
	"github.com/sportswire/gmtrade/internal/domain/grading"
	"github.com/sportswire/gmtrade/internal/domain/trade"
	"github.com/sportswire/gmtrade/pkg/logger"
	"github.com/sportswire/gmtrade/pkg/metrics"
)

// Service implements the trade evaluation and ranking engine.
type Service struct {
	mu sync.RWMutex

	// Collaborators (injectable for tests).
	evaluator grading.Evaluator
	assessor  audit.Assessor
	rosters   freshness.RosterSource
	ledger    ledger.Ledger

	// Core components, built on Start.
	grades     *cache.Store[grading.Result]
	audits     *cache.Store[audit.Result]
	grader     *grading.Grader
	auditor    *audit.Auditor
	tracker    *freshness.Tracker
	board      repository.Store
	auditQueue auditqueue.Queue
	auditPool  *workerpool.Pool

	// Configuration.
	evaluatorTimeout     time.Duration
	auditTimeout         time.Duration
	auditQueueSize       int
	auditWorkerCount     int
	staleThreshold       time.Duration
	freshnessRefreshSpec string
	fallbackGrade        float64

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEvaluator injects the deterministic evaluator collaborator.
func WithEvaluator(e grading.Evaluator) Option {
	return func(s *Service) {
		if e != nil {
			s.evaluator = e
		}
	}
}

// WithAssessor injects the plausibility collaborator.
func WithAssessor(a audit.Assessor) Option {
	return func(s *Service) {
		if a != nil {
			s.assessor = a
		}
	}
}

// WithRosterSource injects the roster data collaborator.
func WithRosterSource(r freshness.RosterSource) Option {
	return func(s *Service) {
		if r != nil {
			s.rosters = r
		}
	}
}

// WithLedger injects the session/activity ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(s *Service) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithEvaluatorTimeout bounds a single evaluator call.
func WithEvaluatorTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.evaluatorTimeout = d
		}
	}
}

// WithAuditTimeout bounds a single plausibility assessment call.
func WithAuditTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.auditTimeout = d
		}
	}
}

// WithAuditQueueSize bounds the audit job queue.
func WithAuditQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.auditQueueSize = n
		}
	}
}

// WithAuditWorkerCount sets the number of audit workers.
func WithAuditWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.auditWorkerCount = n
		}
	}
}

// WithStaleThreshold sets the roster staleness threshold.
func WithStaleThreshold(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.staleThreshold = d
		}
	}
}

// WithFreshnessRefreshSpec enables cron-scheduled roster refresh.
func WithFreshnessRefreshSpec(spec string) Option {
	return func(s *Service) {
		s.freshnessRefreshSpec = spec
	}
}

// WithFallbackGrade sets the neutral grade for degraded read paths.
func WithFallbackGrade(g float64) Option {
	return func(s *Service) {
		s.fallbackGrade = g
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a Service with default configuration. Collaborators
// default to the in-memory simulators and the noop ledger.
func New(opts ...Option) *Service {
	s := &Service{
		evaluatorTimeout: 2 * time.Second,
		auditTimeout:     5 * time.Second,
		auditQueueSize:   10_000,
		auditWorkerCount: 0, // pool picks a CPU-based default
		staleThreshold:   24 * time.Hour,
		fallbackGrade:    50,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.evaluator == nil {
		s.evaluator = grading.NewInMemoryEvaluator()
	}
	if s.assessor == nil {
		s.assessor = audit.NewInMemoryAssessor()
	}
	if s.rosters == nil {
		s.rosters = staticRosters{}
	}
	if s.ledger == nil {
		s.ledger = ledger.NewNoopLedger()
	}

	s.grades = cache.New(cache.WithNamespace[grading.Result]("grades"))
	s.audits = cache.New(cache.WithNamespace[audit.Result]("audits"))
	s.grader = grading.NewGrader(s.evaluator,
		grading.WithTimeout(s.evaluatorTimeout),
		grading.WithFallbackGrade(s.fallbackGrade),
	)
	s.auditor = audit.NewAuditor(s.assessor, audit.WithTimeout(s.auditTimeout))
	s.tracker = freshness.NewTracker(s.rosters,
		freshness.WithStaleThreshold(s.staleThreshold),
		freshness.WithLogger(s.logger.Named("freshness")),
	)
	s.board = repository.NewTreapStore()

	s.auditQueue = auditqueue.NewInMemoryQueue(auditqueue.WithCapacity(s.auditQueueSize))
	s.auditPool = workerpool.NewPool(s.auditWorkerCount, s.auditQueue, auditRunner{s.auditor}, s.audits)
	s.auditPool.Start(ctx)

	if s.freshnessRefreshSpec != "" {
		if err := s.tracker.StartRefresher(ctx, s.freshnessRefreshSpec); err != nil {
			return err
		}
	}

	s.started = true
	s.logger.Info(ctx, "trade engine started",
		logger.Int("auditQueueSize", s.auditQueueSize),
		logger.Int("auditWorkers", s.auditWorkerCount),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping trade engine...")

	s.tracker.StopRefresher()
	if s.auditQueue != nil {
		_ = s.auditQueue.Close()
	}
	if s.auditPool != nil {
		s.auditPool.Stop()
	}
	if s.ledger != nil {
		_ = s.ledger.Close()
	}

	s.started = false
	s.logger.Info(ctx, "trade engine stopped")
}

// auditRunner adapts the Auditor to the worker pool's job contract.
type auditRunner struct {
	auditor *audit.Auditor
}

func (r auditRunner) Audit(ctx context.Context, j auditqueue.Job) (audit.Result, error) {
	return r.auditor.Audit(ctx, j.Proposal, j.Deterministic)
}

// staticRosters is the default roster source when none is injected: no
// snapshots, so freshness degrades to zero-age records.
type staticRosters struct{}

func (staticRosters) GetRosterSnapshot(_ context.Context, _ string) (freshness.Snapshot, error) {
	return freshness.Snapshot{}, nil
}

// SubmitTrade is the grade-committing path. On a cache miss it computes
// freshness + grade under the at-most-one-compute guard, credits the
// user's leaderboard score, records ledger activity, and enqueues the
// plausibility audit. On a hit it returns the stored result untouched:
// no double counting.
func (s *Service) SubmitTrade(ctx context.Context, userID string, p *trade.Proposal) (grading.Result, bool, error) {
	if err := p.Validate(); err != nil {
		metrics.RecordTradeRejected()
		return grading.Result{}, false, err
	}
	metrics.RecordTradeSubmitted()

	fp := fingerprint.Of(p)
	// Crediting happens inside the compute so it runs on the detached
	// context: a client disconnect mid-compute still attributes the
	// score to the submitting user, and the cache hit every later
	// submission sees never re-credits.
	res, cached, err := s.grades.GetOrCompute(ctx, fp.String(), func(ctx context.Context) (grading.Result, error) {
		fresh := s.tracker.Freshness(ctx, p.TeamKey, p.Sport)
		start := time.Now()
		metrics.RecordEvaluatorCall()
		gr, gerr := s.grader.Grade(ctx, fp, p, fresh)
		metrics.RecordEvaluatorLatency(float64(time.Since(start).Milliseconds()))
		if gerr != nil {
			metrics.RecordEvaluatorError()
			return grading.Result{}, gerr
		}
		s.creditSubmission(ctx, userID, fp, p, gr)
		return gr, nil
	})
	if err != nil {
		return grading.Result{}, false, err
	}
	return res, cached, nil
}

// creditSubmission applies the first-sight side effects of a graded
// trade: stale-data metric, leaderboard credit, ledger activity, audit
// fan-out. Runs exactly once per fingerprint.
func (s *Service) creditSubmission(ctx context.Context, userID string, fp fingerprint.Fingerprint, p *trade.Proposal, res grading.Result) {
	if res.Freshness.IsStale {
		metrics.RecordStaleDataFlag()
	}

	if userID != "" {
		if _, aerr := s.board.AddScore(ctx, userID, p.Sport, p.TeamKey, res.Grade, repository.ActivityTrade); aerr != nil {
			s.logger.Error(ctx, "leaderboard update failed",
				logger.String("userID", userID),
				logger.Error(aerr),
			)
		}
		s.recordActivity(ctx, ledger.Activity{
			UserID:      userID,
			Fingerprint: fp.String(),
			Kind:        ledger.KindTrade,
			Sport:       p.Sport,
			Score:       res.Grade,
		})
	}

	if !s.auditQueue.Enqueue(ctx, auditqueue.Job{Fingerprint: fp, Proposal: p, Deterministic: res}) {
		s.logger.Warn(ctx, "audit queue full; skipping plausibility audit",
			logger.String("fingerprint", fp.String()),
		)
	}
}

// PreviewTrade is the non-committing read path: same evaluation, but a
// neutral fallback instead of an error when the evaluator is down, and no
// side effects. Results are still served from cache when available.
func (s *Service) PreviewTrade(ctx context.Context, p *trade.Proposal) (grading.Result, bool, error) {
	if err := p.Validate(); err != nil {
		return grading.Result{}, false, err
	}
	fp := fingerprint.Of(p)
	if res, ok := s.grades.Get(fp.String()); ok {
		metrics.RecordCacheHit("grades")
		return res, true, nil
	}
	fresh := s.tracker.Freshness(ctx, p.TeamKey, p.Sport)
	return s.grader.GradeOrFallback(ctx, fp, p, fresh), false, nil
}

// GetAudit returns the plausibility audit for a fingerprint, if it has
// been computed.
func (s *Service) GetAudit(ctx context.Context, fp string) (audit.Result, bool) {
	return s.audits.Get(fp)
}

// Leaderboard returns the top k entries for a sport (and optional team
// affinity bucket).
func (s *Service) Leaderboard(ctx context.Context, sport, teamAffinity string, k int) ([]repository.Entry, error) {
	return s.board.TopK(ctx, sport, teamAffinity, k)
}

// UserRank reports rank and percentile for any user, including users
// outside the public top-K.
func (s *Service) UserRank(ctx context.Context, userID, sport, teamAffinity string) (repository.RankInfo, error) {
	return s.board.RankOf(ctx, userID, sport, teamAffinity)
}

// RecordActivity credits a non-trade activity (draft or simulation run)
// to the leaderboard and ledger.
func (s *Service) RecordActivity(ctx context.Context, userID, sport, teamAffinity string, delta float64, kind repository.ActivityKind) error {
	if _, err := s.board.AddScore(ctx, userID, sport, teamAffinity, delta, kind); err != nil {
		return err
	}
	s.recordActivity(ctx, ledger.Activity{
		UserID: userID,
		Kind:   string(kind),
		Sport:  sport,
		Score:  delta,
	})
	return nil
}

// StartSession opens a new session, deactivating any prior active session
// for the same (user, team context).
func (s *Service) StartSession(ctx context.Context, userID, teamContext string) (ledger.Session, error) {
	return s.ledger.StartSession(ctx, userID, teamContext)
}

// Activities returns a user's recent ledger rows.
func (s *Service) Activities(ctx context.Context, userID string, limit int) ([]ledger.Activity, error) {
	return s.ledger.Activities(ctx, userID, limit)
}

// ClearUser removes a user's leaderboard entries and ledger rows
// (explicit data-clear; cached grades are keyed by content, not user, and
// remain).
func (s *Service) ClearUser(ctx context.Context, userID string) error {
	if err := s.board.Reset(ctx, userID); err != nil {
		return err
	}
	return s.ledger.Clear(ctx, userID)
}

// recordActivity is a best-effort ledger write; failures are logged and
// swallowed so they never fail the primary operation.
func (s *Service) recordActivity(ctx context.Context, a ledger.Activity) {
	if err := s.ledger.RecordActivity(ctx, a); err != nil {
		metrics.RecordLedgerWriteError()
		s.logger.Warn(ctx, "ledger write failed",
			logger.String("userID", a.UserID),
			logger.Error(err),
		)
		return
	}
	metrics.RecordLedgerWrite()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started": s.started,
	}
	if s.started {
		queueLen := s.auditQueue.Len(ctx)
		stats["cachedGrades"] = s.grades.Len()
		stats["cachedAudits"] = s.audits.Len()
		stats["auditQueueLength"] = queueLen
		metrics.UpdateAuditQueueDepth(queueLen)
	}
	return stats
}
