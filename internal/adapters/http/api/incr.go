package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/bananas/internal/domain/tally"
	"github.com/okian/bananas/internal/domain/types"
	"github.com/okian/bananas/pkg/logger"
)

const (
	maxBodyBytes = 1 << 20

	// IdempotencyKeyHeader lets clients retry POST /incr safely.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader is set to "true" on responses answered from the
	// idempotency cache.
	ReplayedHeader = "Idempotent-Replayed"
)

// IncrementDependencies defines the interface for the increment action.
type IncrementDependencies interface {
	IncrementOnce(ctx context.Context, key, userID string, amount int64) (types.IncrementResult, bool, error)
}

// incrRequest mirrors the OpenAPI schema for POST /incr. Both fields are
// decoded loosely and validated by the tally package.
type incrRequest struct {
	UserID any `json:"userId"`
	Amount any `json:"amount"`
}

// IncrHandler handles increment requests.
type IncrHandler struct {
	deps   IncrementDependencies
	logger logger.Logger
}

// NewIncrHandler creates a new increment handler.
func NewIncrHandler(deps IncrementDependencies, log logger.Logger) *IncrHandler {
	return &IncrHandler{deps: deps, logger: log}
}

// HandleIncrement handles POST /incr requests.
func (h *IncrHandler) HandleIncrement(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_incr"
	if r.Method != http.MethodPost {
		methodNotAllowed(w, op, http.MethodPost)
		return
	}

	var req incrRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid JSON body: %w", err)))
		return
	}

	userID, err := tally.ParseUserID(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	amount := tally.CoerceAmount(req.Amount)

	res, replayed, err := h.deps.IncrementOnce(r.Context(), r.Header.Get(IdempotencyKeyHeader), userID, amount)
	switch {
	case errors.Is(err, tally.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	case errors.Is(err, tally.ErrInFlight):
		writeError(w, http.StatusConflict, WrapKind(op, ErrConflict, err))
		return
	case err != nil:
		err = WrapKind(op, ErrInternal, err)
		logFailure(r.Context(), h.logger, err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if replayed {
		w.Header().Set(ReplayedHeader, strconv.FormatBool(true))
	}
	writeJSON(w, http.StatusOK, res)
}
