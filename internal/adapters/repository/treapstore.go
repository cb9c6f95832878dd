package repository

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sportswire/gmtrade/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// One treap per (sport, teamAffinity) bucket; the sport-wide board is the
// bucket with affinity "". Ordering: score DESC, then reachedAt ASC
// (earliest to reach the score ranks first), then userID ASC. In-order
// traversal therefore yields the leaderboard from best to worst, and
// subtree sizes give O(log n) strictly-higher counts for rank lookups.

// scoreScale controls fixed-point scaling from float64. Additive updates
// on integers stay exact regardless of arrival order.
const scoreScale = 1_000_000 // 6 decimal places

// topTierSize is the public top-N used for points-to-top computations.
const topTierSize = 20

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := x * scoreScale
	if scaled > float64(math.MaxInt64) {
		return scoreFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return scoreFP(math.MinInt64)
	}
	return scoreFP(math.Round(scaled))
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

// record stores one user's cumulative state in a bucket.
type record struct {
	score       scoreFP
	reachedAt   int64 // monotonic sequence when the current score was reached
	trades      int
	drafts      int
	simulations int
}

// treap node
type node struct {
	id        string
	score     scoreFP
	reachedAt int64
	prio      uint64
	left      *node
	right     *node
	size      int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if a ranks earlier than b on the leaderboard.
func less(aScore scoreFP, aReached int64, aID string, bScore scoreFP, bReached int64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore // higher score ranks earlier
	}
	if aReached != bReached {
		return aReached < bReached // earliest to reach the score wins ties
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// splitmix64 turns the insertion sequence into treap priorities.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func insert(n *node, id string, score scoreFP, reachedAt int64) *node {
	if n == nil {
		return &node{id: id, score: score, reachedAt: reachedAt, prio: splitmix64(uint64(reachedAt) ^ uint64(len(id))<<32 ^ hash(id)), size: 1}
	}
	if less(score, reachedAt, id, n.score, n.reachedAt, n.id) {
		n.left = insert(n.left, id, score, reachedAt)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, reachedAt)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func hash(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func deleteNode(n *node, id string, score scoreFP, reachedAt int64) *node {
	if n == nil {
		return nil
	}
	if score == n.score && reachedAt == n.reachedAt && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score, reachedAt)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score, reachedAt)
		}
	} else if less(score, reachedAt, id, n.score, n.reachedAt, n.id) {
		n.left = deleteNode(n.left, id, score, reachedAt)
	} else {
		n.right = deleteNode(n.right, id, score, reachedAt)
	}
	fix(n)
	return n
}

// countHigher counts nodes with score strictly greater than s in O(log n)
// expected, using subtree sizes.
func countHigher(n *node, s scoreFP) int {
	if n == nil {
		return 0
	}
	if n.score > s {
		return nsize(n.left) + 1 + countHigher(n.right, s)
	}
	return countHigher(n.left, s)
}

// collectTopN appends up to limit user IDs in rank order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// bucket is one leaderboard: a treap plus the per-user record map.
type bucket struct {
	root *node
	byID map[string]*record
}

func newBucket() *bucket {
	return &bucket{byID: make(map[string]*record)}
}

// add applies a delta for a user, rethreading the treap. Must be called
// with the store lock held.
func (b *bucket) add(userID string, delta scoreFP, kind ActivityKind, seq int64) *record {
	rec, ok := b.byID[userID]
	if ok {
		b.root = deleteNode(b.root, userID, rec.score, rec.reachedAt)
		rec.score += delta
		rec.reachedAt = seq
	} else {
		rec = &record{score: delta, reachedAt: seq}
		b.byID[userID] = rec
	}
	switch kind {
	case ActivityDraft:
		rec.drafts++
	case ActivitySimulation:
		rec.simulations++
	default:
		rec.trades++
	}
	b.root = insert(b.root, userID, rec.score, rec.reachedAt)
	return rec
}

func (b *bucket) remove(userID string) {
	rec, ok := b.byID[userID]
	if !ok {
		return
	}
	b.root = deleteNode(b.root, userID, rec.score, rec.reachedAt)
	delete(b.byID, userID)
}

// entryOf materializes a leaderboard row without a rank.
func (b *bucket) entryOf(userID, sport, affinity string) (Entry, bool) {
	rec, ok := b.byID[userID]
	if !ok {
		return Entry{}, false
	}
	return Entry{
		UserID:       userID,
		Sport:        sport,
		TeamAffinity: affinity,
		Score:        toFloat(rec.score),
		Trades:       rec.trades,
		Drafts:       rec.drafts,
		Simulations:  rec.simulations,
	}, true
}

// topTierScore returns the score held by the last slot of the public
// top tier, or 0 for boards smaller than the tier.
func (b *bucket) topTierScore(tier int) float64 {
	if len(b.byID) < tier {
		return 0
	}
	ids := make([]string, 0, tier)
	collectTopN(b.root, tier, &ids)
	last := b.byID[ids[len(ids)-1]]
	return toFloat(last.score)
}

// TreapStore implements Store with per-bucket treaps behind one RWMutex.
type TreapStore struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	seq     int64 // monotonic tiebreak sequence
	topTier int
}

// NewTreapStore constructs an empty treap store.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		buckets: make(map[string]*bucket),
		topTier: topTierSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func bucketKey(sport, affinity string) string {
	return sport + "\x00" + affinity
}

func (s *TreapStore) bucketLocked(sport, affinity string) *bucket {
	key := bucketKey(sport, affinity)
	b, ok := s.buckets[key]
	if !ok {
		b = newBucket()
		s.buckets[key] = b
	}
	return b
}

// AddScore implements Store.AddScore. The whole read-modify-write runs
// under the store lock, so concurrent deltas for one user always sum.
func (s *TreapStore) AddScore(ctx context.Context, userID, sport, teamAffinity string, delta float64, kind ActivityKind) (float64, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, ErrInvalidScore
	}
	switch kind {
	case ActivityTrade, ActivityDraft, ActivitySimulation:
	default:
		return 0, ErrInvalidActivity
	}

	fp := toFixedPoint(delta)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	rec := s.bucketLocked(sport, "").add(userID, fp, kind, seq)
	if teamAffinity != "" {
		s.bucketLocked(sport, teamAffinity).add(userID, fp, kind, seq)
	}
	total := toFloat(rec.score)
	s.mu.Unlock()

	metrics.RecordLeaderboardUpdate()
	return total, nil
}

// TopK implements Store.TopK. Equal scores share a rank and the next
// distinct score resumes at 1 + count(strictly higher).
func (s *TreapStore) TopK(ctx context.Context, sport, teamAffinity string, k int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if k < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[bucketKey(sport, teamAffinity)]
	if !ok {
		return []Entry{}, nil
	}

	ids := make([]string, 0, k)
	collectTopN(b.root, k, &ids)

	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		e, _ := b.entryOf(id, sport, teamAffinity)
		e.Rank = 1 + countHigher(b.root, b.byID[id].score)
		out = append(out, e)
	}
	return out, nil
}

// RankOf implements Store.RankOf. rank = 1 + count(strictly higher
// scores); percentile = round(100 * (1 - rank/total)). A user with no
// recorded activity gets Competing == false rather than an error.
func (s *TreapStore) RankOf(ctx context.Context, userID, sport, teamAffinity string) (RankInfo, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if userID == "" {
		return RankInfo{}, ErrEmptyUserID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info := RankInfo{UserID: userID}
	b, ok := s.buckets[bucketKey(sport, teamAffinity)]
	if !ok {
		return info, nil
	}
	info.TotalParticipants = len(b.byID)

	rec, ok := b.byID[userID]
	if !ok {
		info.PointsToTop20 = b.topTierScore(s.topTier)
		return info, nil
	}

	info.Competing = true
	info.Score = toFloat(rec.score)
	info.Rank = 1 + countHigher(b.root, rec.score)
	info.Percentile = int(math.Round(100 * (1 - float64(info.Rank)/float64(info.TotalParticipants))))
	info.PointsToTop20 = math.Max(0, b.topTierScore(s.topTier)-info.Score)
	return info, nil
}

// Count implements Store.Count.
func (s *TreapStore) Count(ctx context.Context, sport, teamAffinity string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[bucketKey(sport, teamAffinity)]
	if !ok {
		return 0
	}
	return len(b.byID)
}

// Reset implements Store.Reset: removes the user from every bucket.
func (s *TreapStore) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buckets {
		b.remove(userID)
	}
	return nil
}
