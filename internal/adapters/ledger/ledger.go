// Package ledger records sessions and simulation activity per user.
//
// The ledger is a best-effort audit sink feeding history views; callers
// must never fail a submission because a ledger write failed.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable signals the backing store could not be reached.
var ErrStoreUnavailable = errors.New("ledger store unavailable")

// ActivityKind mirrors the leaderboard's activity taxonomy.
const (
	KindTrade      = "trade"
	KindDraft      = "draft"
	KindSimulation = "simulation"
)

// Session groups activity for history views. Sessions hold no scores. At
// most one session per (user, team context) is active at a time.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	TeamContext string    `json:"team_context"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Activity is one recorded trade/draft/simulation action.
type Activity struct {
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Kind        string    `json:"kind"`
	Sport       string    `json:"sport"`
	Score       float64   `json:"score"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Ledger persists sessions and activity rows.
type Ledger interface {
	// StartSession deactivates any prior active session for the same
	// (user, team context) and opens a new one.
	StartSession(ctx context.Context, userID, teamContext string) (Session, error)

	// ActiveSession returns the active session for (user, team context),
	// if any.
	ActiveSession(ctx context.Context, userID, teamContext string) (Session, bool, error)

	// RecordActivity appends one activity row.
	RecordActivity(ctx context.Context, a Activity) error

	// Activities returns a user's activity rows, most recent first.
	Activities(ctx context.Context, userID string, limit int) ([]Activity, error)

	// Clear removes all rows for a user (explicit user data-clear).
	Clear(ctx context.Context, userID string) error

	Close() error
}
