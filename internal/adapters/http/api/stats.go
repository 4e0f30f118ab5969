package api

import (
	"context"
	"net/http"

	"github.com/okian/bananas/internal/domain/types"
	"github.com/okian/bananas/pkg/logger"
)

// StatsDependencies defines the interface for the stats query.
type StatsDependencies interface {
	Stats(ctx context.Context, userID string) (types.Stats, error)
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	deps   StatsDependencies
	logger logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps StatsDependencies, log logger.Logger) *StatsHandler {
	return &StatsHandler{deps: deps, logger: log}
}

// HandleStats handles GET /stats?userId=<id> requests. A missing userId
// answers zeros.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stats"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}

	stats, err := h.deps.Stats(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		err = WrapKind(op, ErrInternal, err)
		logFailure(r.Context(), h.logger, err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
