// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/bananas/internal/domain/types"
	"github.com/okian/bananas/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	IncrementDependencies
	StatsDependencies
	LeaderboardDependencies
	HealthDependencies
	InfoProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	incrHandler        *IncrHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	healthHandler      *HealthHandler
	infoHandler        *InfoHandler
	metricsHandler     http.Handler

	maxLimit int
	logger   logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}

	s.incrHandler = NewIncrHandler(deps, s.logger)
	s.statsHandler = NewStatsHandler(deps, s.logger)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit, s.logger)
	s.healthHandler = NewHealthHandler(deps)
	s.infoHandler = NewInfoHandler(deps)
	s.metricsHandler = NewMetricsHandler()
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/incr", s.wrap(s.incrHandler.HandleIncrement, "incr"))
	mux.HandleFunc("/stats", s.wrap(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/leaderboard", s.wrap(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/healthz", s.wrap(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/info", s.wrap(s.infoHandler.HandleInfo, "info"))
	mux.Handle("/metrics", s.metricsHandler)
}

func (s *Server) wrap(h http.HandlerFunc, endpoint string) http.HandlerFunc {
	return RequestIDMiddleware(MetricsMiddleware(h, endpoint), s.logger)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg}. Clients only see the cause carried by an
// OpError; the op prefix stays in the logs.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := ""
	var opErr *OpError
	if errors.As(err, &opErr) {
		msg = opErr.Message()
	} else if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "fail"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter, op, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, NewKind(op, ErrMethodNotAllowed))
}

// logFailure records a server side failure with the request id.
func logFailure(ctx context.Context, log logger.Logger, err error) {
	log.Error(ctx, "request failed",
		logger.String("requestId", RequestIDFromContext(ctx)),
		logger.Error(err),
	)
}
