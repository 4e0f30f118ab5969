package api

import "github.com/okian/bananas/pkg/logger"

const defaultMaxLimit = 100

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the limit accepted by GET /leaderboard.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets the logger used by handlers and middleware.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
