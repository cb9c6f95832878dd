// Package grading defines the contract for obtaining deterministic trade
// grades from the external evaluator.
package grading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sportswire/gmtrade/internal/domain/fingerprint"
	"github.com/sportswire/gmtrade/internal/domain/freshness"
	"github.com/sportswire/gmtrade/internal/domain/trade"
)

// ErrEvaluatorUnavailable signals that the deterministic evaluator was
// unreachable, timed out, or returned a malformed payload. Grade-committing
// paths must propagate it; read paths may substitute a neutral fallback.
var ErrEvaluatorUnavailable = errors.New("evaluator unavailable")

// Evaluation is the raw payload returned by the evaluator.
type Evaluation struct {
	Grade     float64
	Breakdown map[string]float64
}

// Evaluator is the external deterministic scoring collaborator. It is
// assumed pure, but reached over a network boundary: slow and fallible.
type Evaluator interface {
	Evaluate(ctx context.Context, p *trade.Proposal) (Evaluation, error)
}

// Result pairs a grade with the fingerprint and data-age context it was
// computed under. Immutable once stored.
type Result struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Grade       float64                 `json:"grade"`
	Breakdown   map[string]float64      `json:"breakdown"`
	Freshness   freshness.Record        `json:"freshness"`
	Warnings    []string                `json:"warnings,omitempty"`
	ComputedAt  time.Time               `json:"computed_at"`
	Fallback    bool                    `json:"fallback,omitempty"`
}

// Grader orchestrates evaluator calls: applies the call timeout, validates
// the payload, and stamps provenance.
type Grader struct {
	evaluator     Evaluator
	timeout       time.Duration
	fallbackGrade float64
	now           func() time.Time
}

// Option applies a configuration option to the Grader.
type Option func(*Grader)

// WithTimeout bounds a single evaluator call.
func WithTimeout(d time.Duration) Option {
	return func(g *Grader) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithFallbackGrade sets the neutral grade used by GradeOrFallback.
func WithFallbackGrade(grade float64) Option {
	return func(g *Grader) {
		g.fallbackGrade = grade
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Grader) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGrader constructs a Grader over the given evaluator.
func NewGrader(evaluator Evaluator, opts ...Option) *Grader {
	g := &Grader{
		evaluator:     evaluator,
		timeout:       2 * time.Second,
		fallbackGrade: 50,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Grade computes the authoritative grade for a proposal. The freshness
// record is provenance only; it never feeds the score. Fails with
// ErrEvaluatorUnavailable on timeout, transport error, or a payload with a
// non-finite grade.
func (g *Grader) Grade(ctx context.Context, fp fingerprint.Fingerprint, p *trade.Proposal, fresh freshness.Record) (Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	eval, err := g.evaluator.Evaluate(callCtx, p)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrEvaluatorUnavailable, err)
	}
	if math.IsNaN(eval.Grade) || math.IsInf(eval.Grade, 0) {
		return Result{}, fmt.Errorf("%w: malformed grade payload", ErrEvaluatorUnavailable)
	}

	res := Result{
		Fingerprint: fp,
		Grade:       eval.Grade,
		Breakdown:   eval.Breakdown,
		Freshness:   fresh,
		ComputedAt:  g.now(),
	}
	if fresh.IsStale && fresh.Warning != "" {
		res.Warnings = append(res.Warnings, fresh.Warning)
	}
	if p.DegradedIdentity() {
		res.Warnings = append(res.Warnings, "degraded_identity: one or more assets identified by display name only")
	}
	return res, nil
}

// GradeOrFallback is the degraded read path: on evaluator failure it
// returns a neutral fallback grade flagged as such instead of an error.
// Never use it where the grade will be recorded as authoritative.
func (g *Grader) GradeOrFallback(ctx context.Context, fp fingerprint.Fingerprint, p *trade.Proposal, fresh freshness.Record) Result {
	res, err := g.Grade(ctx, fp, p, fresh)
	if err == nil {
		return res
	}
	return Result{
		Fingerprint: fp,
		Grade:       g.fallbackGrade,
		Breakdown:   map[string]float64{},
		Freshness:   fresh,
		Warnings:    []string{"evaluator unavailable; neutral fallback grade"},
		ComputedAt:  g.now(),
		Fallback:    true,
	}
}
