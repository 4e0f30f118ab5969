package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/bananas/internal/domain/types"
)

const backendMemory = "memory"

// MemoryStore is an in-process ScoreStore. A single RWMutex serializes
// writers, which makes every operation linearizable; it is meant for
// development, tests and single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	counters map[string]int64
	sets     map[string]*rankedSet
	rng      *rand.Rand
	closed   bool

	seed   uint64
	seeded bool
}

var (
	_ ScoreStore        = (*MemoryStore)(nil)
	_ AtomicIncrementer = (*MemoryStore)(nil)
)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		counters: make(map[string]int64),
		sets:     make(map[string]*rankedSet),
	}
	for _, opt := range opts {
		opt(s)
	}
	seed := s.seed
	if !s.seeded {
		seed = rand.Uint64()
	}
	s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return s
}

// IncrBy implements ScoreStore.
func (s *MemoryStore) IncrBy(ctx context.Context, key string, delta int64) (v int64, err error) {
	defer observe(backendMemory, "incrby", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return 0, err
	}
	return s.incrLocked(key, delta)
}

// ZIncrBy implements ScoreStore.
func (s *MemoryStore) ZIncrBy(ctx context.Context, set, member string, delta int64) (v int64, err error) {
	defer observe(backendMemory, "zincrby", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return 0, err
	}
	return s.zincrLocked(set, member, delta)
}

// IncrementAll implements AtomicIncrementer: all three adds happen under
// one lock acquisition. Inputs are checked first so a failure leaves every
// key untouched.
func (s *MemoryStore) IncrementAll(ctx context.Context, t Triple) (res types.IncrementResult, err error) {
	defer observe(backendMemory, "increment_all", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return res, err
	}
	if err := s.checkLocked(t); err != nil {
		return res, err
	}

	if res.Total, err = s.incrLocked(t.GlobalKey, t.Delta); err != nil {
		return types.IncrementResult{}, err
	}
	if res.UserTotal, err = s.incrLocked(t.UserKey, t.Delta); err != nil {
		return types.IncrementResult{}, err
	}
	if res.NewScore, err = s.zincrLocked(t.LeaderboardKey, t.Member, t.Delta); err != nil {
		return types.IncrementResult{}, err
	}
	return res, nil
}

// Get implements ScoreStore.
func (s *MemoryStore) Get(ctx context.Context, key string) (v int64, found bool, err error) {
	defer observe(backendMemory, "get", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return 0, false, err
	}
	if _, isSet := s.sets[key]; isSet {
		return 0, false, ErrWrongType
	}
	v, found = s.counters[key]
	return v, found, nil
}

// ZRevRangeWithScores implements ScoreStore.
func (s *MemoryStore) ZRevRangeWithScores(ctx context.Context, set string, start, stop int64) (out []Member, err error) {
	defer observe(backendMemory, "zrevrange", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return nil, err
	}
	if _, isCounter := s.counters[set]; isCounter {
		return nil, ErrWrongType
	}
	z, ok := s.sets[set]
	if !ok {
		return []Member{}, nil
	}
	return z.revRange(start, stop), nil
}

// ZCard implements ScoreStore.
func (s *MemoryStore) ZCard(ctx context.Context, set string) (n int64, err error) {
	defer observe(backendMemory, "zcard", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return 0, err
	}
	if _, isCounter := s.counters[set]; isCounter {
		return 0, ErrWrongType
	}
	if z, ok := s.sets[set]; ok {
		return z.card(), nil
	}
	return 0, nil
}

// Ping implements ScoreStore.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usable(ctx)
}

// Close implements ScoreStore. Later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) usable(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (s *MemoryStore) incrLocked(key string, delta int64) (int64, error) {
	if _, isSet := s.sets[key]; isSet {
		return 0, ErrWrongType
	}
	next, err := addChecked(s.counters[key], delta)
	if err != nil {
		return 0, err
	}
	s.counters[key] = next
	return next, nil
}

func (s *MemoryStore) zincrLocked(set, member string, delta int64) (int64, error) {
	if _, isCounter := s.counters[set]; isCounter {
		return 0, ErrWrongType
	}
	z, ok := s.sets[set]
	if !ok {
		z = newRankedSet(s.rng)
		s.sets[set] = z
	}
	return z.incr(member, delta)
}

func (s *MemoryStore) checkLocked(t Triple) error {
	for _, key := range []string{t.GlobalKey, t.UserKey} {
		if _, isSet := s.sets[key]; isSet {
			return ErrWrongType
		}
		if _, err := addChecked(s.counters[key], t.Delta); err != nil {
			return err
		}
	}
	if _, isCounter := s.counters[t.LeaderboardKey]; isCounter {
		return ErrWrongType
	}
	if z, ok := s.sets[t.LeaderboardKey]; ok {
		if _, err := addChecked(z.scores[t.Member], t.Delta); err != nil {
			return err
		}
	}
	return nil
}
