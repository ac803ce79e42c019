// Package handlers contains the HTTP handler implementations for the
// zonewatch API.
//
// This file implements the monitoring session handler:
//   - Status retrieval (GET /v1/session)
//   - Lifecycle control (POST /v1/session/start, POST /v1/session/stop)
//   - Manual reconciliation (POST /v1/session/refresh)
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zonewatch/internal/core"
	"zonewatch/internal/reconcile"
	"zonewatch/internal/types"
)

// SessionControl defines the lifecycle contract for the session handler.
// Mirrors the concrete session.Controller methods used by this handler.
type SessionControl interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Refresh(ctx context.Context) (reconcile.Result, error)
	Status(ctx context.Context) types.SessionStatus
}

// RefreshResponse is the response body for POST /v1/session/refresh.
// The slices are never null on the wire; an empty pass yields empty arrays.
type RefreshResponse struct {
	Inside  []string `json:"inside"`
	Entered []string `json:"entered"`
	Exited  []string `json:"exited"`
}

// SessionHandler maps HTTP requests to session lifecycle operations.
type SessionHandler struct {
	control SessionControl
	logger  *slog.Logger
}

// NewSessionHandler creates a new SessionHandler with the provided dependencies.
func NewSessionHandler(control SessionControl, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		control: control,
		logger:  logger,
	}
}

// RegisterRoutes mounts the session endpoints onto the router.
// The mutating routes rely on the operator gate applied by the chassis.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.HandleStatus)
		r.Post("/start", h.HandleStart)
		r.Post("/stop", h.HandleStop)
		r.Post("/refresh", h.HandleRefresh)
	})
}

// HandleStatus handles GET /v1/session.
//
// Active reflects a live query against the positioning collaborator, so the
// answer stays truthful across daemon restarts.
func (h *SessionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := h.control.Status(r.Context())
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: status})
}

// HandleStart handles POST /v1/session/start.
//
// A denied permission or an unreachable positioning collaborator fails the
// start with the corresponding error code; a session that is not STOPPED
// yields a conflict. On success the refreshed status is returned.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Start(r.Context()); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.control.Status(r.Context())})
}

// HandleStop handles POST /v1/session/stop.
//
// Stopping an already stopped session is a no-op, so this endpoint is safe
// to retry.
func (h *SessionHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Stop(r.Context()); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.control.Status(r.Context())})
}

// HandleRefresh handles POST /v1/session/refresh.
//
// Runs one manual point-based reconciliation pass regardless of session
// phase; a refresh without an active session still alerts and persists.
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.control.Refresh(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: RefreshResponse{
		Inside:  orEmpty(result.Inside),
		Entered: orEmpty(result.Entered),
		Exited:  orEmpty(result.Exited),
	}})
}

// orEmpty normalizes a nil slice to an empty one for stable JSON output.
func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
