package types

// ZoneCategory identifies the kind of disaster a zone represents.
type ZoneCategory string

const (
	CategoryFlood      ZoneCategory = "FLOOD"
	CategoryFire       ZoneCategory = "FIRE"
	CategoryEvacuation ZoneCategory = "EVACUATION"
	CategoryStorm      ZoneCategory = "STORM"
	CategoryEarthquake ZoneCategory = "EARTHQUAKE"
)

// AllCategories lists every valid zone category.
// Used by the composer totality check and catalog validation.
var AllCategories = []ZoneCategory{
	CategoryFlood,
	CategoryFire,
	CategoryEvacuation,
	CategoryStorm,
	CategoryEarthquake,
}

// ZoneSeverity is the ordered severity tier of a zone.
// Ordering: INFO < WARNING < HIGH < CRITICAL.
type ZoneSeverity string

const (
	SeverityInfo     ZoneSeverity = "INFO"
	SeverityWarning  ZoneSeverity = "WARNING"
	SeverityHigh     ZoneSeverity = "HIGH"
	SeverityCritical ZoneSeverity = "CRITICAL"
)

// AllSeverities lists every valid severity in ascending order.
var AllSeverities = []ZoneSeverity{
	SeverityInfo,
	SeverityWarning,
	SeverityHigh,
	SeverityCritical,
}

// Rank returns the ordinal position of the severity (INFO=0 .. CRITICAL=3).
// Returns -1 for unknown values so comparisons against valid tiers fail closed.
func (s ZoneSeverity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether s is the same tier as other or higher.
func (s ZoneSeverity) AtLeast(other ZoneSeverity) bool {
	return s.Rank() >= other.Rank()
}

// TransitionDirection identifies which way a zone boundary was crossed.
type TransitionDirection string

const (
	DirectionEnter TransitionDirection = "ENTER"
	DirectionExit  TransitionDirection = "EXIT"
)

// AlertPriority is the delivery priority handed to the notification channel.
type AlertPriority string

const (
	PriorityDefault AlertPriority = "default"
	PriorityHigh    AlertPriority = "high"
	PriorityMax     AlertPriority = "max"
)

// SessionPhase represents the lifecycle state of the monitoring session.
// STARTING and STOPPING are transient and never persisted.
type SessionPhase string

const (
	PhaseStopped  SessionPhase = "stopped"
	PhaseStarting SessionPhase = "starting"
	PhaseActive   SessionPhase = "active"
	PhaseStopping SessionPhase = "stopping"
)

// PermissionScope identifies a platform permission the session depends on.
// Each scope produces a distinct, user-displayable denial error.
type PermissionScope string

const (
	PermissionForeground    PermissionScope = "foreground_location"
	PermissionBackground    PermissionScope = "background_location"
	PermissionNotifications PermissionScope = "notifications"
)

// ReconcileTrigger identifies which position source invoked a reconciliation
// pass. The foreground watch is the only trigger that skips the state write
// when the occupancy set is unchanged.
type ReconcileTrigger string

const (
	TriggerInitialCheck    ReconcileTrigger = "initial_check"
	TriggerForegroundWatch ReconcileTrigger = "foreground_watch"
	TriggerManualRefresh   ReconcileTrigger = "manual_refresh"
	TriggerRegionSignal    ReconcileTrigger = "region_signal"
)
