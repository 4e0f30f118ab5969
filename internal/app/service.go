// Package service provides the counting engine behind the HTTP API: the
// increment action, the stats query and the leaderboard query.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	repository "github.com/okian/bananas/internal/adapters/repository"
	"github.com/okian/bananas/internal/domain/dedupe"
	"github.com/okian/bananas/internal/domain/tally"
	"github.com/okian/bananas/internal/domain/types"
	"github.com/okian/bananas/pkg/logger"
	"github.com/okian/bananas/pkg/metrics"
)

// Defaults mirror the keys used by the original deployment.
const (
	DefaultGlobalKey      = "counter:bananas"
	DefaultUserKeyFormat  = "user:%s:bananas"
	DefaultLeaderboardKey = "zset:bananas"
	DefaultLimit          = 20

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Increment outcomes used as metric labels.
const (
	outcomeOK         = "ok"
	outcomeInvalid    = "invalid"
	outcomeStoreError = "store_error"
	outcomeReplay     = "replay"
	outcomeInFlight   = "in_flight"
)

var errNotStarted = errors.New("service not started")

// Service implements the API dependencies for the counter system. It keeps
// no counter state of its own; every request talks to the score store.
type Service struct {
	mu sync.RWMutex

	store     repository.ScoreStore
	ownsStore bool
	replays   dedupe.Cache

	// Configuration
	backend         string
	redisCfg        repository.RedisConfig
	globalKey       string
	userKeyFormat   string
	leaderboardKey  string
	defaultLimit    int
	atomic          bool
	idempotencySize int

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		backend:         BackendMemory,
		globalKey:       DefaultGlobalKey,
		userKeyFormat:   DefaultUserKeyFormat,
		leaderboardKey:  DefaultLeaderboardKey,
		defaultLimit:    DefaultLimit,
		idempotencySize: 50_000,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the score store and the idempotency cache.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting counter service...", logger.String("backend", s.backend))

	if s.store == nil {
		store, err := s.openStore(ctx)
		if err != nil {
			return err
		}
		s.store = store
		s.ownsStore = true
	}
	s.replays = dedupe.NewInMemoryCache(dedupe.WithMaxSize(s.idempotencySize))

	_, canAtomic := s.store.(repository.AtomicIncrementer)
	if s.atomic && !canAtomic {
		s.logger.Warn(ctx, "store cannot apply increments atomically; using independent adds",
			logger.String("backend", s.backend))
	}

	s.started = true
	s.logger.Info(ctx, "counter service started",
		logger.String("backend", s.backend),
		logger.Bool("atomicIncrement", s.atomic && canAtomic),
		logger.String("globalKey", s.globalKey),
		logger.String("leaderboardKey", s.leaderboardKey),
		logger.Int("idempotencyCacheSize", s.idempotencySize),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.ScoreStore, error) {
	switch s.backend {
	case BackendMemory:
		return repository.NewMemoryStore(), nil
	case BackendRedis:
		store, err := repository.DialRedis(ctx, s.redisCfg)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", s.backend)
	}
}

// Stop closes the store when the service opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping counter service...")

	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "closing score store failed", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(ctx, "counter service stopped")
}

// current returns the store and cache under the read lock.
func (s *Service) current() (repository.ScoreStore, dedupe.Cache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started || s.store == nil {
		return nil, nil, fmt.Errorf("%w: %w", tally.ErrStoreUnavailable, errNotStarted)
	}
	return s.store, s.replays, nil
}

// Increment applies amount to the global counter, the user's counter and the
// user's leaderboard entry, returning the values the store reports.
//
// The three adds are independent atomic operations: the global and user adds
// run concurrently and the leaderboard add is issued once both finished. A
// failure part way leaves earlier adds applied. With atomic increments
// enabled and supported by the store, one indivisible operation is used.
func (s *Service) Increment(ctx context.Context, userID string, amount int64) (types.IncrementResult, error) {
	id := tally.NormalizeUserID(userID)
	if id == "" {
		metrics.RecordIncrement(outcomeInvalid)
		metrics.RecordInvalidRequest()
		return types.IncrementResult{}, tally.ErrInvalidArgument
	}

	store, _, err := s.current()
	if err != nil {
		metrics.RecordIncrement(outcomeStoreError)
		return types.IncrementResult{}, err
	}

	t := repository.Triple{
		GlobalKey:      s.globalKey,
		UserKey:        tally.UserKey(s.userKeyFormat, id),
		LeaderboardKey: s.leaderboardKey,
		Member:         id,
		Delta:          amount,
	}

	var res types.IncrementResult
	if ai, ok := store.(repository.AtomicIncrementer); ok && s.atomic {
		res, err = ai.IncrementAll(ctx, t)
	} else {
		res, err = applyIndependently(ctx, store, t)
	}
	if err != nil {
		metrics.RecordIncrement(outcomeStoreError)
		s.log().Error(ctx, "increment failed",
			logger.String("userId", id),
			logger.Int64("amount", amount),
			logger.Error(err),
		)
		return types.IncrementResult{}, fmt.Errorf("%w: %w", tally.ErrStoreUnavailable, err)
	}

	metrics.RecordIncrement(outcomeOK)
	metrics.RecordIncrementAmount(amount)
	s.log().Debug(ctx, "increment applied",
		logger.String("userId", id),
		logger.Int64("amount", amount),
		logger.Int64("total", res.Total),
		logger.Int64("userTotal", res.UserTotal),
		logger.Int64("newScore", res.NewScore),
	)
	return res, nil
}

// IncrementOnce is Increment guarded by an idempotency key: a key that
// already completed replays its first result without touching the store,
// and a key whose first call is still running fails with ErrInFlight. An
// empty key behaves like Increment.
func (s *Service) IncrementOnce(ctx context.Context, key, userID string, amount int64) (types.IncrementResult, bool, error) {
	if key == "" {
		res, err := s.Increment(ctx, userID, amount)
		return res, false, err
	}
	if tally.NormalizeUserID(userID) == "" {
		metrics.RecordIncrement(outcomeInvalid)
		metrics.RecordInvalidRequest()
		return types.IncrementResult{}, false, tally.ErrInvalidArgument
	}

	_, replays, err := s.current()
	if err != nil {
		return types.IncrementResult{}, false, err
	}

	cached, state := replays.Begin(ctx, key)
	switch state {
	case dedupe.StateDone:
		metrics.RecordIncrement(outcomeReplay)
		metrics.RecordIdempotentReplay()
		return cached, true, nil
	case dedupe.StateInFlight:
		metrics.RecordIncrement(outcomeInFlight)
		return types.IncrementResult{}, false, tally.ErrInFlight
	}

	res, err := s.Increment(ctx, userID, amount)
	if err != nil {
		// A failed call may have applied part of its adds; releasing the key
		// lets the client decide whether to retry.
		replays.Abort(ctx, key)
		return types.IncrementResult{}, false, err
	}
	replays.Complete(ctx, key, res)
	return res, false, nil
}

func applyIndependently(ctx context.Context, store repository.ScoreStore, t repository.Triple) (types.IncrementResult, error) {
	var res types.IncrementResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := store.IncrBy(gctx, t.GlobalKey, t.Delta)
		if err != nil {
			return fmt.Errorf("incr global: %w", err)
		}
		res.Total = v
		return nil
	})
	g.Go(func() error {
		v, err := store.IncrBy(gctx, t.UserKey, t.Delta)
		if err != nil {
			return fmt.Errorf("incr user: %w", err)
		}
		res.UserTotal = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.IncrementResult{}, err
	}

	score, err := store.ZIncrBy(ctx, t.LeaderboardKey, t.Member, t.Delta)
	if err != nil {
		return types.IncrementResult{}, fmt.Errorf("incr leaderboard: %w", err)
	}
	res.NewScore = score
	return res, nil
}

// Stats returns the global total and the user's total. An empty userId
// short-circuits to zeros without reading the store. The two reads are
// independent and may observe different instants.
func (s *Service) Stats(ctx context.Context, userID string) (types.Stats, error) {
	id := tally.NormalizeUserID(userID)
	if id == "" {
		return types.Stats{}, nil
	}

	store, _, err := s.current()
	if err != nil {
		return types.Stats{}, err
	}

	var out types.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, _, err := store.Get(gctx, s.globalKey)
		out.Total = v
		return err
	})
	g.Go(func() error {
		v, _, err := store.Get(gctx, tally.UserKey(s.userKeyFormat, id))
		out.UserTotal = v
		return err
	})
	if err := g.Wait(); err != nil {
		s.log().Error(ctx, "stats read failed", logger.String("userId", id), logger.Error(err))
		return types.Stats{}, fmt.Errorf("%w: %w", tally.ErrStoreUnavailable, err)
	}
	return out, nil
}

// Leaderboard returns up to limit users ordered by score descending. A
// non-positive limit selects the configured default. Tie order is whatever
// the store provides.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	if limit < 1 {
		limit = s.defaultLimit
	}

	store, _, err := s.current()
	if err != nil {
		return nil, err
	}

	members, err := store.ZRevRangeWithScores(ctx, s.leaderboardKey, 0, int64(limit-1))
	if err != nil {
		s.log().Error(ctx, "leaderboard read failed", logger.Int("limit", limit), logger.Error(err))
		return nil, fmt.Errorf("%w: %w", tally.ErrStoreUnavailable, err)
	}

	rows := make([]types.Entry, 0, len(members))
	for _, m := range members {
		rows = append(rows, types.Entry{UserID: m.ID, Score: m.Score})
	}
	return rows, nil
}

// DefaultLimit reports the leaderboard size used when callers pass none.
func (s *Service) DefaultLimit() int {
	return s.defaultLimit
}

// Health pings the score store.
func (s *Service) Health(ctx context.Context) error {
	store, _, err := s.current()
	if err != nil {
		return err
	}
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", tally.ErrStoreUnavailable, err)
	}
	return nil
}

// Info returns service statistics for monitoring and refreshes the
// leaderboard size gauge.
func (s *Service) Info(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	started := s.started
	store := s.store
	replays := s.replays
	_, canAtomic := store.(repository.AtomicIncrementer)
	s.mu.RUnlock()

	info := map[string]interface{}{
		"started":         started,
		"backend":         s.backend,
		"atomicIncrement": s.atomic && canAtomic,
		"globalKey":       s.globalKey,
		"leaderboardKey":  s.leaderboardKey,
		"defaultLimit":    s.defaultLimit,
	}

	if started && store != nil {
		if n, err := store.ZCard(ctx, s.leaderboardKey); err == nil {
			info["leaderboardMembers"] = n
			metrics.UpdateLeaderboardSize(n)
		} else {
			info["storeError"] = err.Error()
		}
		info["idempotencyKeys"] = replays.Size()
	}

	return info
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return logger.Get().Named("service")
	}
	return s.logger
}
