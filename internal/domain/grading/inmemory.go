package grading

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sportswire/gmtrade/internal/domain/trade"
)

// Default simulation constants, modeled on the latency of the real
// evaluator service.
const (
	defaultMinLatency = 80 * time.Millisecond
	defaultMaxLatency = 150 * time.Millisecond
	defaultRandomSeed = 42
	maxGrade          = 100
)

// InMemoryEvaluator simulates the external deterministic evaluator. The
// grade is a pure function of the proposal content, so repeat evaluations
// of asset-equal proposals always agree. Safe for concurrent use.
type InMemoryEvaluator struct {
	minLatency time.Duration
	maxLatency time.Duration

	// mu guards rng; Evaluate is called from concurrent request goroutines.
	mu  sync.Mutex
	rng *rand.Rand
}

// EvaluatorOption applies a configuration option to the InMemoryEvaluator.
type EvaluatorOption func(*InMemoryEvaluator)

// WithLatencyRange sets the simulated latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) EvaluatorOption {
	return func(e *InMemoryEvaluator) {
		if minLatency > 0 && maxLatency > minLatency {
			e.minLatency = minLatency
			e.maxLatency = maxLatency
		}
	}
}

// NewInMemoryEvaluator creates a simulated evaluator.
func NewInMemoryEvaluator(opts ...EvaluatorOption) *InMemoryEvaluator {
	e := &InMemoryEvaluator{
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		rng:        rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // deterministic seed for reproducible latency
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *InMemoryEvaluator) randLatency() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.minLatency + time.Duration(e.rng.Int63n(int64(e.maxLatency-e.minLatency)))
}

// Evaluate computes a deterministic grade with component breakdown.
func (e *InMemoryEvaluator) Evaluate(ctx context.Context, p *trade.Proposal) (Evaluation, error) {
	select {
	case <-ctx.Done():
		return Evaluation{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-time.After(e.randLatency()):
	}

	breakdown := map[string]float64{
		"value_balance":  contentScore(p, "value"),
		"positional_fit": contentScore(p, "fit"),
		"cap_impact":     contentScore(p, "cap"),
		"pick_capital":   contentScore(p, "picks"),
	}
	var grade float64
	for _, v := range breakdown {
		grade += v
	}
	grade /= float64(len(breakdown))

	return Evaluation{Grade: grade, Breakdown: breakdown}, nil
}

// contentScore hashes the proposal content with a component salt into a
// stable 0-100 sub-score. Asset identities are sorted first so asset-equal
// proposals always grade identically regardless of submission order.
func contentScore(p *trade.Proposal, salt string) float64 {
	var ids []string
	for _, a := range p.Sent {
		ids = append(ids, "s"+a.Identity())
	}
	for _, a := range p.Received {
		ids = append(ids, "r"+a.Identity())
	}
	for _, m := range p.Movements {
		ids = append(ids, m.FromTeam+">"+m.ToTeam+":"+m.Asset.Identity())
	}
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte(p.TeamKey))
	h.Write([]byte(p.Sport))
	h.Write([]byte(p.PartnerKey))
	for _, id := range ids {
		h.Write([]byte(id))
	}
	sum := h.Sum(nil)
	return float64(binary.BigEndian.Uint16(sum[:2])) / 65535 * maxGrade
}
