package types

import "time"

// TransitionMessage is the queue payload published for every detected zone
// transition, consumed by downstream systems (analytics, municipal
// dashboards). JSON tags use snake_case to match the consumer contract.
type TransitionMessage struct {
	// Core Identity
	EventID string `json:"event_id"`
	ZoneID  string `json:"zone_id"`

	// Transition
	Direction  TransitionDirection `json:"direction"`
	Category   ZoneCategory        `json:"category"`
	Severity   ZoneSeverity        `json:"severity"`
	OccurredAt time.Time           `json:"occurred_at"`

	// Trigger identifies which position source produced the transition.
	Trigger ReconcileTrigger `json:"trigger"`

	// Observed point at detection time. Absent for signal-based transitions,
	// which carry only the platform-verified region identifier.
	Point *GeoPoint `json:"point,omitempty"`
}
