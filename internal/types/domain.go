package types

import (
	"time"
)

// GeoPoint is a WGS-84 coordinate pair in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PositionFix is a point-in-time position observation from the positioning
// collaborator.
type PositionFix struct {
	Point     GeoPoint  `json:"point"`
	AccuracyM float64   `json:"accuracy_m,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Region is a circular area registered with the positioning collaborator for
// background enter/exit callbacks. Regions are derived from catalog zones;
// the identifier is the zone identifier.
type Region struct {
	ID      string   `json:"id"`
	Center  GeoPoint `json:"center"`
	RadiusM float64  `json:"radius_m"`
}

// RegionSignal is a platform-verified single-zone transition delivered by the
// background region watch. Unlike a raw position fix it carries a known
// direction and never requires recomputing containment.
type RegionSignal struct {
	ZoneID    string              `json:"zone_id"`
	Direction TransitionDirection `json:"direction"`
	Timestamp time.Time           `json:"timestamp"`
}

// DisasterZone is a catalog-defined zone. The catalog is fixed at process
// start; identifiers are immutable and unique within it.
type DisasterZone struct {
	ID            string       `json:"id" validate:"required,max=64"`
	Category      ZoneCategory `json:"category" validate:"required,oneof=FLOOD FIRE EVACUATION STORM EARTHQUAKE"`
	Severity      ZoneSeverity `json:"severity" validate:"required,oneof=INFO WARNING HIGH CRITICAL"`
	Center        GeoPoint     `json:"center"`
	RadiusM       float64      `json:"radius_m" validate:"required,gt=0"`
	NotifyOnEnter bool         `json:"notify_on_enter"`
	NotifyOnExit  bool         `json:"notify_on_exit"`
	Description   string       `json:"description" validate:"required,max=500"`
}

// Region returns the circular region to register with the positioning
// collaborator for this zone.
func (z DisasterZone) Region() Region {
	return Region{ID: z.ID, Center: z.Center, RadiusM: z.RadiusM}
}

// ZoneOccupancyState is the durable record of which zones the observer
// currently believes the user occupies. It is the single source of truth for
// transition detection: a transition is always computed as a diff against it,
// never inferred from one ambiguous signal.
//
// ZoneIDs is kept sorted so persisted documents are byte-stable for equal sets.
type ZoneOccupancyState struct {
	ZoneIDs   []string  `json:"zone_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewZoneOccupancyState returns an empty state stamped with the given time.
func NewZoneOccupancyState(now time.Time) ZoneOccupancyState {
	return ZoneOccupancyState{ZoneIDs: []string{}, UpdatedAt: now}
}

// Contains reports whether the given zone identifier is in the occupancy set.
func (s ZoneOccupancyState) Contains(zoneID string) bool {
	for _, id := range s.ZoneIDs {
		if id == zoneID {
			return true
		}
	}
	return false
}

// SameSet reports whether the occupancy set equals the given identifiers,
// ignoring order and duplicates.
func (s ZoneOccupancyState) SameSet(ids []string) bool {
	seen := make(map[string]struct{}, len(s.ZoneIDs))
	for _, id := range s.ZoneIDs {
		seen[id] = struct{}{}
	}
	other := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		other[id] = struct{}{}
	}
	if len(seen) != len(other) {
		return false
	}
	for id := range other {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}

// TransitionEvent is one entry in the bounded transition log. Entries are
// appended by the reconciler and immutable once written. Zone fields are
// absent only on diagnostic entries produced by the degraded error-logging
// path (positioning failure); those entries carry a Note and no Direction.
type TransitionEvent struct {
	ID          string              `json:"id"`
	Direction   TransitionDirection `json:"direction,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
	ZoneID      string              `json:"zone_id,omitempty"`
	Category    ZoneCategory        `json:"category,omitempty"`
	Severity    ZoneSeverity        `json:"severity,omitempty"`
	Description string              `json:"description,omitempty"`
	Point       *GeoPoint           `json:"point,omitempty"`
	Note        string              `json:"note,omitempty"`
}

// Diagnostic reports whether this is a degraded-path entry rather than a
// zone transition.
func (e TransitionEvent) Diagnostic() bool {
	return e.Direction == ""
}

// AlertContent is the composed, human-readable content for one alert.
// Derived from (category, severity, direction); never stored.
type AlertContent struct {
	Title    string        `json:"title"`
	Body     string        `json:"body"`
	Action   string        `json:"action"`
	Sound    bool          `json:"sound"`
	Priority AlertPriority `json:"priority"`
}

// Alert is the envelope handed to the notification collaborator: composed
// content plus an arbitrary key-value payload for the receiving platform.
type Alert struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Sound    bool              `json:"sound"`
	Priority AlertPriority     `json:"priority"`
	Data     map[string]string `json:"data,omitempty"`
}

// WatchCadence configures the continuous foreground position subscription:
// a new fix is delivered after Interval has elapsed OR the observer has moved
// DistanceM meters, whichever comes first.
type WatchCadence struct {
	Interval  time.Duration `json:"interval"`
	DistanceM float64       `json:"distance_m"`
}

// SessionStatus is the presentation-layer view of the monitoring session.
// Active is a live query against the positioning collaborator, not a cached
// in-memory flag.
type SessionStatus struct {
	Phase     SessionPhase `json:"phase"`
	Active    bool         `json:"active"`
	ZoneCount int          `json:"zone_count"`
	CheckedAt time.Time    `json:"checked_at"`
}
