package repository

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithTopTierSize overrides the public top-N used for points-to-top
// computations.
func WithTopTierSize(n int) Option {
	return func(s *TreapStore) {
		if n > 0 {
			s.topTier = n
		}
	}
}
