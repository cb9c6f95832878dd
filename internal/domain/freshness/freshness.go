// Package freshness reports how old the roster data backing a team is.
//
// Freshness is a trust signal attached to grades, not a gate: the tracker
// never fails the grading pipeline. Missing roster data yields a zero-age
// record with no warning.
package freshness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sportswire/gmtrade/pkg/logger"
)

// defaultStaleThreshold marks roster data older than this as untrustworthy.
const defaultStaleThreshold = 24 * time.Hour

// Snapshot is what the roster source returns for a team.
type Snapshot struct {
	Rows          int
	LastUpdatedAt time.Time
}

// RosterSource is the external roster/contract data collaborator.
type RosterSource interface {
	GetRosterSnapshot(ctx context.Context, teamKey string) (Snapshot, error)
}

// Record describes the age of the data backing a team at query time.
// Recomputed on demand; never persisted as a source of truth.
type Record struct {
	TeamKey   string    `json:"team_key"`
	Sport     string    `json:"sport"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	AgeHours  float64   `json:"age_hours"`
	IsStale   bool      `json:"is_stale"`
	Warning   string    `json:"warning,omitempty"`
}

// Tracker derives freshness records from a roster source. It remembers
// which teams have been queried so a background refresher can keep their
// snapshots warm.
type Tracker struct {
	source    RosterSource
	threshold time.Duration
	now       func() time.Time
	log       logger.Logger

	mu   sync.Mutex
	seen map[string]struct{}
	cron *cron.Cron
}

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithStaleThreshold overrides the staleness threshold.
func WithStaleThreshold(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.threshold = d
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

// NewTracker constructs a Tracker over the given roster source.
func NewTracker(source RosterSource, opts ...Option) *Tracker {
	t := &Tracker{
		source:    source,
		threshold: defaultStaleThreshold,
		now:       time.Now,
		seen:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = logger.Named("freshness")
	}
	return t
}

// Freshness returns the freshness record for a team. It never errors: a
// failed or empty roster lookup yields a zero-age record with no warning.
func (t *Tracker) Freshness(ctx context.Context, teamKey, sport string) Record {
	t.mu.Lock()
	t.seen[teamKey] = struct{}{}
	t.mu.Unlock()

	rec := Record{TeamKey: teamKey, Sport: sport}

	snap, err := t.source.GetRosterSnapshot(ctx, teamKey)
	if err != nil || snap.LastUpdatedAt.IsZero() {
		if err != nil {
			t.log.Debug(ctx, "roster snapshot unavailable",
				logger.String("teamKey", teamKey),
				logger.Error(err),
			)
		}
		return rec
	}

	age := t.now().Sub(snap.LastUpdatedAt)
	if age < 0 {
		age = 0
	}
	rec.UpdatedAt = snap.LastUpdatedAt
	rec.AgeHours = age.Hours()
	if age > t.threshold {
		rec.IsStale = true
		rec.Warning = fmt.Sprintf("roster data for %s is %.0f hours old; grade may not reflect current rosters", teamKey, rec.AgeHours)
	}
	return rec
}

// StartRefresher schedules a background re-read of every tracked team's
// snapshot on the given cron spec. Useful when the roster source caches on
// read. Returns an error for an invalid spec.
func (t *Tracker) StartRefresher(ctx context.Context, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		t.refreshAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid refresh spec %q: %w", spec, err)
	}
	t.mu.Lock()
	t.cron = c
	t.mu.Unlock()
	c.Start()
	return nil
}

// StopRefresher stops the background refresher if one is running.
func (t *Tracker) StopRefresher() {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (t *Tracker) refreshAll(ctx context.Context) {
	t.mu.Lock()
	keys := make([]string, 0, len(t.seen))
	for k := range t.seen {
		keys = append(keys, k)
	}
	t.mu.Unlock()

	for _, key := range keys {
		if _, err := t.source.GetRosterSnapshot(ctx, key); err != nil {
			t.log.Debug(ctx, "background roster refresh failed",
				logger.String("teamKey", key),
				logger.Error(err),
			)
		}
	}
}
