package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithSeed fixes the seed of the treap priority generator so tree shapes are
// reproducible in tests. Ordering never depends on the seed.
func WithSeed(seed uint64) Option {
	return func(s *MemoryStore) {
		s.seed = seed
		s.seeded = true
	}
}
