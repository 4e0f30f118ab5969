// Package dedupe defines the interface for idempotency tracking.
package dedupe

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/bananas/internal/domain/types"
)

const defaultMaxSize = 50_000

// State describes what a cache knows about an idempotency key.
type State int

const (
	// StateNew means the caller claimed the key and must apply the increment.
	StateNew State = iota
	// StateInFlight means another request holds the key and has not finished.
	StateInFlight
	// StateDone means the key completed; the cached result must be replayed.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInFlight:
		return "in_flight"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Cache remembers increment results by idempotency key so a retried request
// is answered without applying the amount twice.
type Cache interface {
	// Begin atomically claims key. It returns the cached result when the key
	// already completed.
	Begin(ctx context.Context, key string) (types.IncrementResult, State)

	// Complete stores the result of a claimed key.
	Complete(ctx context.Context, key string, result types.IncrementResult)

	// Abort releases a claimed key after a failed increment so the caller
	// may retry it.
	Abort(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	done   bool
	result types.IncrementResult
}

// lruCache implements Cache on a bounded LRU; the least recently used keys
// are evicted first.
type lruCache struct {
	maxSize int
	entries *lru.Cache[string, entry]
}

// NewInMemoryCache creates an in-memory idempotency cache.
func NewInMemoryCache(opts ...Option) Cache {
	c := &lruCache{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxSize > 0 {
		// lru.New only fails for non-positive sizes.
		c.entries, _ = lru.New[string, entry](c.maxSize)
	}
	return c
}

func (c *lruCache) Begin(_ context.Context, key string) (types.IncrementResult, State) {
	if c.entries == nil {
		return types.IncrementResult{}, StateNew
	}
	prev, found, _ := c.entries.PeekOrAdd(key, entry{})
	switch {
	case !found:
		return types.IncrementResult{}, StateNew
	case prev.done:
		// Touch the key so frequently retried requests stay cached.
		c.entries.Get(key)
		return prev.result, StateDone
	default:
		return types.IncrementResult{}, StateInFlight
	}
}

func (c *lruCache) Complete(_ context.Context, key string, result types.IncrementResult) {
	if c.entries == nil {
		return
	}
	c.entries.Add(key, entry{done: true, result: result})
}

func (c *lruCache) Abort(_ context.Context, key string) {
	if c.entries == nil {
		return
	}
	c.entries.Remove(key)
}

func (c *lruCache) Size() int64 {
	if c.entries == nil {
		return 0
	}
	return int64(c.entries.Len())
}
