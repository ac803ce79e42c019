// Package handlers contains the HTTP handler implementations for the
// zonewatch API.
//
// This file implements the position handler:
//   - Current position retrieval (GET /v1/position)
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zonewatch/internal/core"
	"zonewatch/internal/types"
)

// PositionSource defines the positioning contract for the position handler.
// Mirrors the concrete positioning.Provider method used by this handler.
type PositionSource interface {
	CurrentFix(ctx context.Context) (types.PositionFix, error)
}

// PositionHandler exposes the most recent position fix.
type PositionHandler struct {
	source PositionSource
	logger *slog.Logger
}

// NewPositionHandler creates a new PositionHandler with the provided dependencies.
func NewPositionHandler(source PositionSource, logger *slog.Logger) *PositionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PositionHandler{
		source: source,
		logger: logger,
	}
}

// RegisterRoutes mounts the position endpoint onto the router.
func (h *PositionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/position", h.HandleGet)
}

// HandleGet handles GET /v1/position.
//
// A missing or stale fix surfaces as positioning_unavailable rather than a
// fabricated coordinate.
func (h *PositionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	fix, err := h.source.CurrentFix(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: fix})
}
