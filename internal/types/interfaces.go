package types

import (
	"context"
	"time"
)

// Validator is implemented by entities to self-validate.
type Validator interface {
	Validate() error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the service.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// BlobStore is the persistence collaborator: string-keyed blob storage with
// last-write-wins semantics per key and no cross-key atomicity. Get returns
// ok=false when the key has never been set or was removed.
type BlobStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
}

// RegionSignalHandler receives platform-verified region transitions from the
// background watch. Implementations must never panic; a handler failure would
// silently disable all future transition detection.
type RegionSignalHandler func(ctx context.Context, sig RegionSignal)

// PositionHandler receives fixes from the continuous foreground subscription.
type PositionHandler func(ctx context.Context, fix PositionFix)

// WatchSubscription is the handle for an active foreground position
// subscription. Stop unsubscribes; an in-flight delivery may still complete.
type WatchSubscription interface {
	Stop()
}

// Positioning is the positioning collaborator. It supplies point-in-time
// fixes, a background-registerable region set with enter/exit signals, and a
// continuous foreground subscription. Registration state is an external fact:
// RegionWatchRegistered queries the collaborator, surviving process restarts.
type Positioning interface {
	// CheckPermission verifies the given location permission scope is
	// granted, returning the scope-specific permission error when denied.
	CheckPermission(ctx context.Context, scope PermissionScope) error

	// CurrentFix returns the most recent position observation. Returns a
	// positioning-unavailable error when no fix can be obtained.
	CurrentFix(ctx context.Context) (PositionFix, error)

	// RegisterRegionWatch registers the region set for background enter/exit
	// signals, replacing any prior registration, and routes signals to the
	// handler for the life of the registration.
	RegisterRegionWatch(ctx context.Context, regions []Region, handler RegionSignalHandler) error

	// UnregisterRegionWatch tears down the background region watch.
	UnregisterRegionWatch(ctx context.Context) error

	// RegionWatchRegistered reports whether a background region watch is
	// currently registered with the platform.
	RegionWatchRegistered(ctx context.Context) (bool, error)

	// WatchPosition starts the continuous foreground subscription at the
	// given cadence (time interval OR movement distance, whichever first).
	WatchPosition(ctx context.Context, cadence WatchCadence, handler PositionHandler) (WatchSubscription, error)
}

// Notifier is the notification collaborator. EnsureChannel performs the
// one-time platform channel setup (importance, vibration) and must be safe to
// call repeatedly; dispatchers call it before the first Send.
type Notifier interface {
	CheckPermission(ctx context.Context) error
	EnsureChannel(ctx context.Context) error
	Send(ctx context.Context, alert Alert) error
}
