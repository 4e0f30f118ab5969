package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/bananas/internal/domain/types"
)

const (
	backendRedis    = "redis"
	redisPingTimeout = 2 * time.Second
)

// incrementAllScript applies the three adds of one increment in a single
// server-side step. KEYS: global, user, leaderboard. ARGV: delta, member.
var incrementAllScript = redis.NewScript(`
local delta = tonumber(ARGV[1])
local total = redis.call('INCRBY', KEYS[1], delta)
local user = redis.call('INCRBY', KEYS[2], delta)
local score = redis.call('ZINCRBY', KEYS[3], delta, ARGV[2])
return {total, user, math.floor(tonumber(score))}
`)

// RedisConfig carries connection settings. Zero timeouts keep the go-redis
// defaults (5s dial, 3s read and write).
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStore implements ScoreStore with Redis INCRBY / ZINCRBY / GET /
// ZREVRANGE primitives.
type RedisStore struct {
	rdb   redis.UniversalClient
	owned bool
}

var (
	_ ScoreStore        = (*RedisStore)(nil)
	_ AtomicIncrementer = (*RedisStore)(nil)
)

// NewRedisStore wraps an existing client. The caller keeps ownership of rdb.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// DialRedis creates a client from cfg, verifies it with PING and returns a
// store that closes the client on Close.
func DialRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr must not be empty")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisStore{rdb: rdb, owned: true}, nil
}

// IncrBy implements ScoreStore.
func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (v int64, err error) {
	defer observe(backendRedis, "incrby", time.Now(), &err)
	return s.rdb.IncrBy(ctx, key, delta).Result()
}

// ZIncrBy implements ScoreStore.
func (s *RedisStore) ZIncrBy(ctx context.Context, set, member string, delta int64) (v int64, err error) {
	defer observe(backendRedis, "zincrby", time.Now(), &err)
	score, err := s.rdb.ZIncrBy(ctx, set, float64(delta), member).Result()
	if err != nil {
		return 0, err
	}
	return toInt(score), nil
}

// IncrementAll implements AtomicIncrementer with a Lua script.
func (s *RedisStore) IncrementAll(ctx context.Context, t Triple) (res types.IncrementResult, err error) {
	defer observe(backendRedis, "increment_all", time.Now(), &err)
	vals, err := incrementAllScript.Run(ctx, s.rdb,
		[]string{t.GlobalKey, t.UserKey, t.LeaderboardKey},
		t.Delta, t.Member,
	).Int64Slice()
	if err != nil {
		return res, err
	}
	if len(vals) != 3 {
		return res, fmt.Errorf("increment script returned %d values", len(vals))
	}
	return types.IncrementResult{Total: vals[0], UserTotal: vals[1], NewScore: vals[2]}, nil
}

// Get implements ScoreStore.
func (s *RedisStore) Get(ctx context.Context, key string) (v int64, found bool, err error) {
	defer observe(backendRedis, "get", time.Now(), &err)
	v, err = s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// ZRevRangeWithScores implements ScoreStore.
func (s *RedisStore) ZRevRangeWithScores(ctx context.Context, set string, start, stop int64) (out []Member, err error) {
	defer observe(backendRedis, "zrevrange", time.Now(), &err)
	zs, err := s.rdb.ZRevRangeWithScores(ctx, set, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out = make([]Member, 0, len(zs))
	for _, z := range zs {
		out = append(out, Member{ID: fmt.Sprint(z.Member), Score: toInt(z.Score)})
	}
	return out, nil
}

// ZCard implements ScoreStore.
func (s *RedisStore) ZCard(ctx context.Context, set string) (n int64, err error) {
	defer observe(backendRedis, "zcard", time.Now(), &err)
	return s.rdb.ZCard(ctx, set).Result()
}

// Ping implements ScoreStore.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close implements ScoreStore. Clients passed to NewRedisStore are left open.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.rdb.Close()
}

// toInt converts a ranked-set score back to the integer domain. Scores are
// only ever built from integer deltas, so rounding just removes float noise.
func toInt(score float64) int64 {
	return int64(math.Round(score))
}
