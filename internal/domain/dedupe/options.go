// Package dedupe defines the interface for idempotency tracking.
package dedupe

// Option applies a configuration option to the in-memory cache.
type Option func(*lruCache)

// WithMaxSize sets the maximum number of idempotency keys remembered.
// If maxSize <= 0 the cache is disabled and every key is treated as new.
func WithMaxSize(maxSize int) Option {
	return func(c *lruCache) {
		c.maxSize = maxSize
	}
}
