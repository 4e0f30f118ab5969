package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/bananas/pkg/logger"
)

// LeaderboardDependencies defines the interface for leaderboard operations
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, limit int) ([]Entry, error)
}

// LeaderboardHandler handles leaderboard requests
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
	logger   logger.Logger
}

type leaderboardResponse struct {
	Rows []Entry `json:"rows"`
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int, log logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
		logger:   log,
	}
}

// HandleGetLeaderboard handles GET /leaderboard[?limit=N] requests. Without
// a limit the service default applies.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}

	n := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest,
				WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be a positive integer, got %q", limitStr)))
			return
		}
		if v > h.maxLimit {
			writeError(w, http.StatusBadRequest,
				WrapKind(op, ErrLimitExceeded, fmt.Errorf("limit must not exceed %d", h.maxLimit)))
			return
		}
		n = v
	}

	rows, err := h.deps.Leaderboard(r.Context(), n)
	if err != nil {
		err = WrapKind(op, ErrInternal, err)
		logFailure(r.Context(), h.logger, err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []Entry{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Rows: rows})
}
