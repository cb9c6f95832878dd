package audit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sportswire/gmtrade/internal/domain/grading"
	"github.com/sportswire/gmtrade/internal/domain/trade"
)

// Default simulation constants for the in-memory assessor.
const (
	defaultMinLatency = 200 * time.Millisecond
	defaultMaxLatency = 600 * time.Millisecond
	defaultRandomSeed = 7
)

// InMemoryAssessor simulates the generative plausibility service. The
// returned grade tracks the deterministic one with a content-derived
// offset, so the discrepancy path is exercised occasionally. Safe for
// concurrent use.
type InMemoryAssessor struct {
	minLatency time.Duration
	maxLatency time.Duration

	// mu guards rng; Assess is called from multiple audit workers.
	mu  sync.Mutex
	rng *rand.Rand
}

// AssessorOption applies a configuration option to the InMemoryAssessor.
type AssessorOption func(*InMemoryAssessor)

// WithAssessLatencyRange sets the simulated latency range.
func WithAssessLatencyRange(minLatency, maxLatency time.Duration) AssessorOption {
	return func(a *InMemoryAssessor) {
		if minLatency > 0 && maxLatency > minLatency {
			a.minLatency = minLatency
			a.maxLatency = maxLatency
		}
	}
}

// NewInMemoryAssessor creates a simulated assessor.
func NewInMemoryAssessor(opts ...AssessorOption) *InMemoryAssessor {
	a := &InMemoryAssessor{
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		rng:        rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // deterministic seed for reproducible latency
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *InMemoryAssessor) randLatency() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.minLatency + time.Duration(a.rng.Int63n(int64(a.maxLatency-a.minLatency)))
}

// Assess returns a plausibility opinion on the deterministic grade.
func (a *InMemoryAssessor) Assess(ctx context.Context, p *trade.Proposal, deterministic grading.Result) (Assessment, error) {
	select {
	case <-ctx.Done():
		return Assessment{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-time.After(a.randLatency()):
	}

	// Offset derived from the fingerprint so repeat assessments agree.
	var offset float64
	for _, c := range deterministic.Fingerprint {
		offset += float64(c)
	}
	offset = float64(int(offset)%21) - 10 // [-10, +10]

	grade := deterministic.Grade + offset
	if grade < 0 {
		grade = 0
	}
	if grade > 100 {
		grade = 100
	}

	verdict := "plausible"
	if offset > 5 {
		verdict = "likely undervalued by the deterministic model"
	} else if offset < -5 {
		verdict = "likely overvalued by the deterministic model"
	}

	return Assessment{
		Grade:      grade,
		Text:       fmt.Sprintf("trade for %s (%s) looks %s", p.TeamKey, p.Sport, verdict),
		Confidence: 0.6 + float64(int(offset*offset)%40)/100,
	}, nil
}
