// Package repository defines the score store contract and its backends.
package repository

import (
	"context"

	"github.com/okian/bananas/internal/domain/types"
)

// Member is one ranked-set row.
type Member struct {
	ID    string
	Score int64
}

// ScoreStore is the key-value plus ranked-set backend the counting service
// is built on. Every single-key operation is atomic and linearizable with
// respect to other operations on the same key; nothing is atomic across keys.
type ScoreStore interface {
	// IncrBy atomically adds delta to a counter and returns the new value.
	// An absent counter starts at zero.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// ZIncrBy atomically adds delta to member's score in the ranked set and
	// returns the new score. Absent sets and members start at zero.
	ZIncrBy(ctx context.Context, set, member string, delta int64) (int64, error)

	// Get reads a counter. Absent counters return (0, false, nil).
	Get(ctx context.Context, key string) (int64, bool, error)

	// ZRevRangeWithScores returns the members ranked start..stop (inclusive,
	// zero based) ordered by score descending.
	ZRevRangeWithScores(ctx context.Context, set string, start, stop int64) ([]Member, error)

	// ZCard returns the number of members in the ranked set.
	ZCard(ctx context.Context, set string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Triple names the three keys touched by one increment action.
type Triple struct {
	GlobalKey      string
	UserKey        string
	LeaderboardKey string
	Member         string
	Delta          int64
}

// AtomicIncrementer is implemented by stores that can apply a whole Triple
// as one indivisible operation, so no reader observes a partial increment.
type AtomicIncrementer interface {
	IncrementAll(ctx context.Context, t Triple) (types.IncrementResult, error)
}
