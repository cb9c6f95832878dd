// Package audit defines the advisory plausibility check that cross-reads a
// deterministic grade.
//
// Audits are informational only. The deterministic grade stays
// authoritative; discrepancies are reported, never reconciled back into
// the stored grade.
package audit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sportswire/gmtrade/internal/domain/fingerprint"
	"github.com/sportswire/gmtrade/internal/domain/grading"
	"github.com/sportswire/gmtrade/internal/domain/trade"
)

// ErrAuditUnavailable signals the plausibility service failed. Soft
// failure: callers omit the audit and keep the deterministic grade.
var ErrAuditUnavailable = errors.New("audit unavailable")

// Assessment is the raw payload from the plausibility service.
type Assessment struct {
	Grade      float64
	Text       string
	Confidence float64
}

// Assessor is the generative plausibility collaborator. Optional: its
// absence degrades gracefully.
type Assessor interface {
	Assess(ctx context.Context, p *trade.Proposal, deterministic grading.Result) (Assessment, error)
}

// Result is a confidence-scored second opinion on a stored grade.
// Computed at most once per fingerprint.
type Result struct {
	Fingerprint   fingerprint.Fingerprint `json:"fingerprint"`
	Grade         float64                 `json:"grade"`
	Assessment    string                  `json:"assessment"`
	Confidence    float64                 `json:"confidence"`
	Discrepancies []string                `json:"discrepancies,omitempty"`
	ComputedAt    time.Time               `json:"computed_at"`
}

// Auditor orchestrates assessor calls with a timeout and derives the
// discrepancy list against the deterministic breakdown.
type Auditor struct {
	assessor Assessor
	timeout  time.Duration
	now      func() time.Time

	// discrepancyDelta is the grade-point gap past which a component is
	// called out.
	discrepancyDelta float64
}

// Option applies a configuration option to the Auditor.
type Option func(*Auditor)

// WithTimeout bounds a single assessor call.
func WithTimeout(d time.Duration) Option {
	return func(a *Auditor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithDiscrepancyDelta sets the component gap that counts as a discrepancy.
func WithDiscrepancyDelta(delta float64) Option {
	return func(a *Auditor) {
		if delta > 0 {
			a.discrepancyDelta = delta
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Auditor) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuditor constructs an Auditor over the given assessor.
func NewAuditor(assessor Assessor, opts ...Option) *Auditor {
	a := &Auditor{
		assessor:         assessor,
		timeout:          5 * time.Second,
		now:              time.Now,
		discrepancyDelta: 15,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Audit produces the second opinion for a stored grade. Fails with
// ErrAuditUnavailable on timeout or transport error.
func (a *Auditor) Audit(ctx context.Context, p *trade.Proposal, deterministic grading.Result) (Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	assessment, err := a.assessor.Assess(callCtx, p, deterministic)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}

	res := Result{
		Fingerprint: deterministic.Fingerprint,
		Grade:       assessment.Grade,
		Assessment:  assessment.Text,
		Confidence:  assessment.Confidence,
		ComputedAt:  a.now(),
	}

	if gap := math.Abs(assessment.Grade - deterministic.Grade); gap > a.discrepancyDelta {
		res.Discrepancies = append(res.Discrepancies,
			fmt.Sprintf("overall grade differs by %.1f points (audit %.1f vs deterministic %.1f)", gap, assessment.Grade, deterministic.Grade))
	}
	for component, score := range deterministic.Breakdown {
		if gap := math.Abs(score - deterministic.Grade); gap > 2*a.discrepancyDelta {
			res.Discrepancies = append(res.Discrepancies,
				fmt.Sprintf("component %s (%.1f) is an outlier against the overall grade (%.1f)", component, score, deterministic.Grade))
		}
	}
	return res, nil
}
