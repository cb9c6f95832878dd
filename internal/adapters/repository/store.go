// Package repository defines the leaderboard store interface and errors.
package repository

import "context"

// ActivityKind selects which activity counter a score update increments.
type ActivityKind string

const (
	ActivityTrade      ActivityKind = "trade"
	ActivityDraft      ActivityKind = "draft"
	ActivitySimulation ActivityKind = "simulation"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank         int     `json:"rank"`
	UserID       string  `json:"user_id"`
	Sport        string  `json:"sport"`
	TeamAffinity string  `json:"team_affinity,omitempty"`
	Score        float64 `json:"score"`
	Trades       int     `json:"trades"`
	Drafts       int     `json:"drafts"`
	Simulations  int     `json:"simulations"`
}

// RankInfo answers a rank lookup for an arbitrary user, including users
// far outside the public top-K.
type RankInfo struct {
	UserID            string  `json:"user_id"`
	Rank              int     `json:"rank,omitempty"`
	Score             float64 `json:"score"`
	Percentile        int     `json:"percentile"`
	TotalParticipants int     `json:"total_participants"`
	PointsToTop20     float64 `json:"points_to_top20"`
	Competing         bool    `json:"competing"`
}

// Store provides read/write access to the ranking state.
//
// AddScore must be commutative and associative (a plain sum) so concurrent
// updates for one user converge regardless of interleaving. Affinity ""
// addresses the sport-wide board; a non-empty affinity addresses that
// bucket, and writes land in both.
type Store interface {
	// AddScore applies an additive score update and increments exactly one
	// activity counter. Returns the user's new cumulative sport-wide score.
	AddScore(ctx context.Context, userID, sport, teamAffinity string, delta float64, kind ActivityKind) (float64, error)

	// TopK returns the top k entries of a bucket ordered by score desc.
	TopK(ctx context.Context, sport, teamAffinity string, k int) ([]Entry, error)

	// RankOf reports rank, percentile and distance to the public top-20
	// for a user. Users with no recorded activity get Competing == false,
	// not an error.
	RankOf(ctx context.Context, userID, sport, teamAffinity string) (RankInfo, error)

	// Count returns the number of participants in a bucket.
	Count(ctx context.Context, sport, teamAffinity string) int

	// Reset removes a user from every bucket (explicit user data-clear).
	Reset(ctx context.Context, userID string) error
}
