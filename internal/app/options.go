package service

import (
	repository "github.com/okian/bananas/internal/adapters/repository"
	"github.com/okian/bananas/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects a ready score store. The service does not close
// injected stores on Stop.
func WithStore(store repository.ScoreStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.backend = "injected"
		}
	}
}

// WithBackend selects the store Start builds: "memory" or "redis".
func WithBackend(backend string) Option {
	return func(s *Service) {
		if backend != "" && s.store == nil {
			s.backend = backend
		}
	}
}

// WithRedisConfig sets the connection settings used by the redis backend.
func WithRedisConfig(cfg repository.RedisConfig) Option {
	return func(s *Service) {
		s.redisCfg = cfg
	}
}

// WithKeys overrides the global counter key, the user key format (one %s)
// and the leaderboard key. Empty values keep the defaults.
func WithKeys(global, userFormat, leaderboard string) Option {
	return func(s *Service) {
		if global != "" {
			s.globalKey = global
		}
		if userFormat != "" {
			s.userKeyFormat = userFormat
		}
		if leaderboard != "" {
			s.leaderboardKey = leaderboard
		}
	}
}

// WithDefaultLimit sets the leaderboard size returned when no limit is given.
func WithDefaultLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithAtomicIncrement applies the three adds of an increment as one atomic
// store operation when the store supports it.
func WithAtomicIncrement(enabled bool) Option {
	return func(s *Service) {
		s.atomic = enabled
	}
}

// WithIdempotencyCacheSize bounds the number of remembered idempotency keys.
// Zero disables replay.
func WithIdempotencyCacheSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.idempotencySize = n
		}
	}
}
