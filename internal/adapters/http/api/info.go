package api

import (
	"context"
	"net/http"
)

// InfoProvider defines the interface for getting service information.
type InfoProvider interface {
	Info(ctx context.Context) map[string]interface{}
}

// InfoHandler handles service info requests.
type InfoHandler struct {
	provider InfoProvider
}

// NewInfoHandler creates a new info handler.
func NewInfoHandler(provider InfoProvider) *InfoHandler {
	return &InfoHandler{provider: provider}
}

// HandleInfo handles GET /info requests.
func (h *InfoHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_info"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.Info(r.Context()))
}
