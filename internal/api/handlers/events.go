// Package handlers contains the HTTP handler implementations for the
// zonewatch API.
//
// This file implements the transition log handler:
//   - Log retrieval, most recent first (GET /v1/events)
//   - Log clearing (DELETE /v1/events)
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"zonewatch/internal/core"
	"zonewatch/internal/types"
)

// EventLogAccess defines the transition log contract for the event handler.
// Mirrors the concrete state.EventLog methods used by this handler.
type EventLogAccess interface {
	Recent(ctx context.Context, limit int) []types.TransitionEvent
	Clear(ctx context.Context)
}

// eventListQuery carries the optional query parameters for the log listing.
type eventListQuery struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=50"`
}

// EventListResponse is the response body for GET /v1/events.
type EventListResponse struct {
	Events []types.TransitionEvent `json:"events"`
	Count  int                     `json:"count"`
}

// EventHandler serves the bounded transition log.
type EventHandler struct {
	events    EventLogAccess
	validator *core.Validator
	logger    *slog.Logger
}

// NewEventHandler creates a new EventHandler with the provided dependencies.
func NewEventHandler(events EventLogAccess, v *core.Validator, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		events:    events,
		validator: v,
		logger:    logger,
	}
}

// RegisterRoutes mounts the event log endpoints onto the router.
// The delete route relies on the operator gate applied by the chassis.
func (h *EventHandler) RegisterRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Delete("/", h.HandleClear)
	})
}

// HandleList handles GET /v1/events.
//
// Entries come back most recent first. The optional limit parameter truncates
// the listing; without it every retained entry is returned.
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var q eventListQuery
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidValue,
				"limit must be a whole number",
				nil,
			))
			return
		}
		q.Limit = limit
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		core.Error(w, r, err)
		return
	}

	events := h.events.Recent(r.Context(), q.Limit)
	if events == nil {
		events = []types.TransitionEvent{}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: EventListResponse{
		Events: events,
		Count:  len(events),
	}})
}

// HandleClear handles DELETE /v1/events.
//
// Clearing affects only the log; the occupancy state is untouched, so a clear
// never causes duplicate alerts.
func (h *EventHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.events.Clear(r.Context())

	h.logger.Info("transition log cleared",
		slog.String("remote_addr", r.RemoteAddr),
	)

	w.WriteHeader(http.StatusNoContent)
}
