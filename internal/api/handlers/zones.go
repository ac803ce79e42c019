// Package handlers contains the HTTP handler implementations for the
// zonewatch API.
//
// This file implements the zone catalog handler:
//   - Catalog listing with optional category and severity filters (GET /v1/zones)
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zonewatch/internal/core"
	"zonewatch/internal/types"
)

// ZoneCatalog defines the catalog access contract for the zone handler.
// Mirrors the concrete catalog.Catalog methods used by this handler but is
// defined locally to avoid coupling to the concrete implementation.
type ZoneCatalog interface {
	All() []types.DisasterZone
}

// zoneListQuery carries the optional query filters for the catalog listing.
type zoneListQuery struct {
	Category string `json:"category" validate:"omitempty,zone_category"`
	Severity string `json:"severity" validate:"omitempty,zone_severity"`
}

// ZoneListResponse is the response body for GET /v1/zones.
type ZoneListResponse struct {
	Zones []types.DisasterZone `json:"zones"`
	Count int                  `json:"count"`
}

// ZoneHandler serves the fixed zone catalog.
type ZoneHandler struct {
	catalog   ZoneCatalog
	validator *core.Validator
	logger    *slog.Logger
}

// NewZoneHandler creates a new ZoneHandler with the provided dependencies.
func NewZoneHandler(cat ZoneCatalog, v *core.Validator, logger *slog.Logger) *ZoneHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ZoneHandler{
		catalog:   cat,
		validator: v,
		logger:    logger,
	}
}

// RegisterRoutes mounts the zone endpoints onto the router.
func (h *ZoneHandler) RegisterRoutes(r chi.Router) {
	r.Get("/zones", h.HandleList)
}

// HandleList handles GET /v1/zones.
//
// The catalog is fixed at process start, so the listing never pages. The
// optional category and severity query parameters narrow the result; both
// must name defined enum values.
func (h *ZoneHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := zoneListQuery{
		Category: r.URL.Query().Get("category"),
		Severity: r.URL.Query().Get("severity"),
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		core.Error(w, r, err)
		return
	}

	zones := h.catalog.All()
	filtered := make([]types.DisasterZone, 0, len(zones))
	for _, z := range zones {
		if q.Category != "" && string(z.Category) != q.Category {
			continue
		}
		if q.Severity != "" && string(z.Severity) != q.Severity {
			continue
		}
		filtered = append(filtered, z)
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: ZoneListResponse{
		Zones: filtered,
		Count: len(filtered),
	}})
}
