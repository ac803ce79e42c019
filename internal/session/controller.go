// Package session owns the monitoring lifecycle: permission acquisition,
// background region watch registration, the mandatory initial check, and the
// continuous foreground watch.
//
// Whether monitoring is active is an external fact. The background
// registration survives process restarts, so Active always queries the
// positioning collaborator instead of trusting an in-memory flag.
package session

import (
	"context"
	"sync"
	"time"

	"zonewatch/internal/catalog"
	"zonewatch/internal/reconcile"
	"zonewatch/internal/state"
	"zonewatch/internal/types"
)

// Foreground cadence floors. A fix is delivered when either threshold is
// crossed, so tighter values would only increase battery and write volume.
const (
	MinWatchInterval  = 10 * time.Second
	MinWatchDistanceM = 50.0
)

// Controller drives the session through
// STOPPED -> STARTING -> ACTIVE -> STOPPING -> STOPPED. The transient phases
// are never persisted; after a process restart the phase begins at STOPPED
// while Active still reflects any surviving background registration.
type Controller struct {
	catalog     *catalog.Catalog
	positioning types.Positioning
	notifier    types.Notifier
	reconciler  *reconcile.Reconciler
	occupancy   *state.OccupancyStore
	clock       types.Clock
	logger      types.Logger
	cadence     types.WatchCadence

	mu    sync.Mutex
	phase types.SessionPhase
	watch types.WatchSubscription
}

// NewController creates a Controller. The cadence is clamped to the package
// floors; a zero cadence selects them outright.
func NewController(
	cat *catalog.Catalog,
	positioning types.Positioning,
	notifier types.Notifier,
	reconciler *reconcile.Reconciler,
	occupancy *state.OccupancyStore,
	clock types.Clock,
	logger types.Logger,
	cadence types.WatchCadence,
) *Controller {
	if cadence.Interval < MinWatchInterval {
		cadence.Interval = MinWatchInterval
	}
	if cadence.DistanceM < MinWatchDistanceM {
		cadence.DistanceM = MinWatchDistanceM
	}
	return &Controller{
		catalog:     cat,
		positioning: positioning,
		notifier:    notifier,
		reconciler:  reconciler,
		occupancy:   occupancy,
		clock:       clock,
		logger:      logger,
		cadence:     cadence,
		phase:       types.PhaseStopped,
	}
}

// Start brings monitoring up. The ordering is fixed: permissions fail fast
// with a distinct error per denied kind, a stale background registration from
// a prior session is torn down, the region watch is registered for every
// catalog zone, one point-based initial check runs, and finally the
// foreground watch starts.
//
// The initial check is mandatory because region signals only fire on boundary
// crossings; without it a user who starts monitoring while already inside a
// zone would never be alerted. Its positioning failures are not fatal: the
// failure is recorded as a diagnostic and the watches still start, so the
// next fix self-corrects.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != types.PhaseStopped {
		return types.NewAppError(types.ErrCodeConflictSessionActive,
			"monitoring session is already "+string(c.phase), nil)
	}
	c.phase = types.PhaseStarting

	if err := c.checkPermissions(ctx); err != nil {
		c.phase = types.PhaseStopped
		return err
	}

	c.teardownStaleRegistration(ctx)

	handler := func(ctx context.Context, sig types.RegionSignal) {
		c.reconciler.ApplySignal(ctx, sig)
	}
	if err := c.positioning.RegisterRegionWatch(ctx, c.catalog.Regions(), handler); err != nil {
		c.phase = types.PhaseStopped
		return types.NewAppError(types.ErrCodePositioningUnavailable,
			"failed to register background region watch", err)
	}

	if _, err := c.reconciler.CheckNow(ctx, types.TriggerInitialCheck); err != nil {
		c.logger.Warn("initial check failed, monitoring continues",
			"error", err.Error(),
		)
	}

	watch, err := c.positioning.WatchPosition(ctx, c.cadence, func(ctx context.Context, fix types.PositionFix) {
		c.reconciler.ReconcilePoint(ctx, fix.Point, types.TriggerForegroundWatch)
	})
	if err != nil {
		// Roll the background registration back so a failed start leaves
		// nothing behind.
		if unregErr := c.positioning.UnregisterRegionWatch(ctx); unregErr != nil {
			c.logger.Warn("failed to roll back region watch after start failure",
				"error", unregErr.Error(),
			)
		}
		c.phase = types.PhaseStopped
		return types.NewAppError(types.ErrCodePositioningUnavailable,
			"failed to start foreground position watch", err)
	}

	c.watch = watch
	c.phase = types.PhaseActive
	c.logger.Info("monitoring session started",
		"zones", c.catalog.Len(),
		"watch_interval", c.cadence.Interval.String(),
		"watch_distance_m", c.cadence.DistanceM,
	)
	return nil
}

// Stop tears monitoring down in the reverse order of Start: foreground watch
// first, then the background registration, then the occupancy state. Clearing
// the state makes the next Start a cold start that re-alerts for every zone
// the user still occupies. Stop on a stopped session is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == types.PhaseStopped {
		return nil
	}
	c.phase = types.PhaseStopping

	if c.watch != nil {
		c.watch.Stop()
		c.watch = nil
	}

	if err := c.positioning.UnregisterRegionWatch(ctx); err != nil {
		c.logger.Warn("failed to unregister background region watch",
			"error", err.Error(),
		)
	}

	c.occupancy.Clear(ctx)

	c.phase = types.PhaseStopped
	c.logger.Info("monitoring session stopped")
	return nil
}

// Refresh runs one manual point-based pass. Available in every phase; a
// refresh without an active session still alerts and persists, which is what
// the manual action is for.
func (c *Controller) Refresh(ctx context.Context) (reconcile.Result, error) {
	return c.reconciler.CheckNow(ctx, types.TriggerManualRefresh)
}

// Active reports whether the background region watch is registered with the
// platform. This is queried live on every call, never cached, so it stays
// truthful across process restarts.
func (c *Controller) Active(ctx context.Context) (bool, error) {
	registered, err := c.positioning.RegionWatchRegistered(ctx)
	if err != nil {
		return false, types.NewAppError(types.ErrCodePositioningUnavailable,
			"failed to query background watch registration", err)
	}
	return registered, nil
}

// Phase returns the in-memory lifecycle phase.
func (c *Controller) Phase() types.SessionPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Status assembles the presentation view of the session. A registration query
// failure degrades to Active=false rather than failing the whole status read.
func (c *Controller) Status(ctx context.Context) types.SessionStatus {
	active, err := c.Active(ctx)
	if err != nil {
		c.logger.Warn("registration query failed, reporting inactive",
			"error", err.Error(),
		)
		active = false
	}
	return types.SessionStatus{
		Phase:     c.Phase(),
		Active:    active,
		ZoneCount: c.catalog.Len(),
		CheckedAt: c.clock.Now(),
	}
}

// checkPermissions verifies every permission Start depends on, in a fixed
// order, failing on the first denial with that kind's distinct error.
func (c *Controller) checkPermissions(ctx context.Context) error {
	if err := c.positioning.CheckPermission(ctx, types.PermissionForeground); err != nil {
		return permissionErr(types.PermissionForeground, err)
	}
	if err := c.positioning.CheckPermission(ctx, types.PermissionBackground); err != nil {
		return permissionErr(types.PermissionBackground, err)
	}
	if err := c.notifier.CheckPermission(ctx); err != nil {
		return permissionErr(types.PermissionNotifications, err)
	}
	return nil
}

// teardownStaleRegistration removes a background registration left over from
// a prior session so registrations never accumulate across restarts. Query
// and teardown failures are absorbed; RegisterRegionWatch replaces any prior
// registration regardless.
func (c *Controller) teardownStaleRegistration(ctx context.Context) {
	registered, err := c.positioning.RegionWatchRegistered(ctx)
	if err != nil {
		c.logger.Warn("failed to query stale registration, proceeding",
			"error", err.Error(),
		)
		return
	}
	if !registered {
		return
	}
	c.logger.Info("tearing down stale background registration")
	if err := c.positioning.UnregisterRegionWatch(ctx); err != nil {
		c.logger.Warn("failed to tear down stale registration, proceeding",
			"error", err.Error(),
		)
	}
}

// permissionErr passes a collaborator's own permission error through and
// wraps anything else with the scope's distinct denial.
func permissionErr(scope types.PermissionScope, err error) error {
	if types.IsPermissionDenied(err) {
		return err
	}
	return types.NewPermissionDenied(scope, err)
}
