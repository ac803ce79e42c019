// Package reconcile implements transition detection. A reconciliation pass
// diffs observed zone containment against the persisted occupancy state and,
// for every delta, dispatches an alert and appends a log entry before writing
// the new state back.
//
// Three triggers invoke the reconciler: the mandatory initial check when
// monitoring starts, the continuous foreground watch, and platform-verified
// background region signals. All passes are serialized through one mutex so
// concurrent triggers cannot interleave read-modify-write cycles. Nothing on
// these paths is allowed to return a panic or uncaught failure to the caller;
// a crash here would silently disable detection until the host restarts the
// process.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"zonewatch/internal/catalog"
	"zonewatch/internal/geo"
	"zonewatch/internal/metrics"
	"zonewatch/internal/notify"
	"zonewatch/internal/state"
	"zonewatch/internal/types"
)

// Result summarizes one point-based reconciliation pass.
type Result struct {
	// Inside is the full set of zone IDs containing the observed point,
	// in catalog order.
	Inside []string
	// Entered and Exited are the deltas against the previous occupancy state.
	Entered []string
	Exited  []string
}

// TransitionSink receives every detected transition for downstream fanout.
// Implementations absorb their own failures; a pass never blocks on the sink.
// A nil sink disables fanout.
type TransitionSink interface {
	PublishTransition(ctx context.Context, event types.TransitionEvent, trigger types.ReconcileTrigger)
}

// Reconciler owns every mutation of the occupancy state and the event log.
type Reconciler struct {
	catalog     *catalog.Catalog
	positioning types.Positioning
	occupancy   *state.OccupancyStore
	events      *state.EventLog
	dispatcher  *notify.Dispatcher
	sink        TransitionSink
	clock       types.Clock
	logger      types.Logger
	metrics     *metrics.Recorder

	// mu serializes all passes. The persisted read-modify-write would
	// otherwise lose updates when a background signal lands mid-pass.
	mu sync.Mutex
}

// New creates a Reconciler over the given catalog and collaborators.
func New(
	cat *catalog.Catalog,
	positioning types.Positioning,
	occupancy *state.OccupancyStore,
	events *state.EventLog,
	dispatcher *notify.Dispatcher,
	sink TransitionSink,
	clock types.Clock,
	logger types.Logger,
	rec *metrics.Recorder,
) *Reconciler {
	return &Reconciler{
		catalog:     cat,
		positioning: positioning,
		occupancy:   occupancy,
		events:      events,
		dispatcher:  dispatcher,
		sink:        sink,
		clock:       clock,
		logger:      logger,
		metrics:     rec,
	}
}

// CheckNow queries the positioning collaborator for the current fix and runs
// a point-based pass against it. Used by the initial check at session start
// and by manual refresh.
//
// When positioning fails, a diagnostic entry is appended to the event log,
// the occupancy state is left untouched, no alert is sent, and the error is
// returned for the caller's benefit. A transient sensor failure must never
// fabricate a transition.
func (r *Reconciler) CheckNow(ctx context.Context, trigger types.ReconcileTrigger) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fix, err := r.positioning.CurrentFix(ctx)
	if err != nil {
		r.recordPositioningFailure(ctx, trigger, err)
		return Result{}, types.NewAppError(types.ErrCodePositioningUnavailable,
			"current position is unavailable", err)
	}

	return r.reconcilePoint(ctx, fix.Point, trigger), nil
}

// ReconcilePoint runs a point-based pass against an already-observed point.
// Used by the foreground watch, which receives fixes via subscription.
func (r *Reconciler) ReconcilePoint(ctx context.Context, point types.GeoPoint, trigger types.ReconcileTrigger) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reconcilePoint(ctx, point, trigger)
}

// reconcilePoint is the point-based pass. Callers must hold mu.
//
// The pass evaluates containment for every catalog zone, diffs the resulting
// inside-set against the persisted state, alerts and logs each delta, and
// persists the new set. The foreground watch skips the write when the set is
// unchanged to reduce write volume on the high-frequency path; every other
// trigger writes unconditionally.
func (r *Reconciler) reconcilePoint(ctx context.Context, point types.GeoPoint, trigger types.ReconcileTrigger) Result {
	started := r.clock.Now()
	prev := r.occupancy.Load(ctx)

	inside := make([]string, 0, r.catalog.Len())
	for _, zone := range r.catalog.All() {
		if geo.Contains(zone, point) {
			inside = append(inside, zone.ID)
		}
	}

	insideSet := make(map[string]struct{}, len(inside))
	for _, id := range inside {
		insideSet[id] = struct{}{}
	}

	var entered, exited []string
	for _, id := range inside {
		if !prev.Contains(id) {
			entered = append(entered, id)
		}
	}
	for _, id := range prev.ZoneIDs {
		if _, still := insideSet[id]; !still {
			exited = append(exited, id)
		}
	}

	now := r.clock.Now()
	pending := make([]types.TransitionEvent, 0, len(entered)+len(exited))

	for _, id := range entered {
		zone, ok := r.catalog.Get(id)
		if !ok {
			continue
		}
		event := r.transitionEvent(zone, types.DirectionEnter, now, &point)
		r.dispatcher.Dispatch(ctx, zone, types.DirectionEnter)
		pending = append(pending, event)
		r.publishTransition(ctx, event, trigger)
		r.metrics.TransitionDetected(ctx, types.DirectionEnter, zone)
	}

	for _, id := range exited {
		zone, ok := r.catalog.Get(id)
		if !ok {
			// A stale identifier from an older catalog. It leaves the set
			// below but cannot be composed into an alert.
			r.logger.Warn("stale zone identifier dropped from occupancy state",
				"zone_id", id,
			)
			continue
		}
		event := r.transitionEvent(zone, types.DirectionExit, now, &point)
		r.dispatcher.Dispatch(ctx, zone, types.DirectionExit)
		pending = append(pending, event)
		r.publishTransition(ctx, event, trigger)
		r.metrics.TransitionDetected(ctx, types.DirectionExit, zone)
	}

	if len(pending) > 0 {
		r.events.Append(ctx, pending...)
	}

	if trigger == types.TriggerForegroundWatch && prev.SameSet(inside) {
		r.logger.Info("occupancy unchanged, skipping state write",
			"trigger", string(trigger),
			"zones", len(inside),
		)
	} else {
		r.occupancy.Save(ctx, inside)
	}

	r.logger.Info("reconciliation pass complete",
		"trigger", string(trigger),
		"inside", len(inside),
		"entered", len(entered),
		"exited", len(exited),
	)
	r.metrics.ReconcilePass(ctx, trigger, r.clock.Now().Sub(started))

	return Result{Inside: inside, Entered: entered, Exited: exited}
}

// ApplySignal runs the signal-based pass for one platform-verified region
// transition. The platform already decided the direction, so containment is
// never recomputed; the pass alerts, logs, and adds or removes exactly the
// one identifier it was told about. Recomputing here could disagree with the
// platform's own boundary state machine.
//
// A signal referencing an identifier absent from the catalog is dropped with
// a diagnostic log line and no event entry.
func (r *Reconciler) ApplySignal(ctx context.Context, signal types.RegionSignal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := r.clock.Now()

	zone, ok := r.catalog.Get(signal.ZoneID)
	if !ok {
		r.logger.Warn("transition signal for unknown zone dropped",
			"zone_id", signal.ZoneID,
			"direction", string(signal.Direction),
		)
		r.metrics.SignalDropped(ctx, "unknown_zone")
		return
	}
	if signal.Direction != types.DirectionEnter && signal.Direction != types.DirectionExit {
		r.logger.Warn("transition signal with unknown direction dropped",
			"zone_id", signal.ZoneID,
			"direction", string(signal.Direction),
		)
		r.metrics.SignalDropped(ctx, "unknown_direction")
		return
	}

	prev := r.occupancy.Load(ctx)

	event := r.transitionEvent(zone, signal.Direction, r.clock.Now(), nil)
	r.dispatcher.Dispatch(ctx, zone, signal.Direction)
	r.events.Append(ctx, event)
	r.publishTransition(ctx, event, types.TriggerRegionSignal)
	r.metrics.TransitionDetected(ctx, signal.Direction, zone)

	next := make([]string, 0, len(prev.ZoneIDs)+1)
	for _, id := range prev.ZoneIDs {
		if id != signal.ZoneID {
			next = append(next, id)
		}
	}
	if signal.Direction == types.DirectionEnter {
		next = append(next, signal.ZoneID)
	}
	r.occupancy.Save(ctx, next)

	r.logger.Info("region signal applied",
		"zone_id", signal.ZoneID,
		"direction", string(signal.Direction),
		"occupied", len(next),
	)
	r.metrics.ReconcilePass(ctx, types.TriggerRegionSignal, r.clock.Now().Sub(started))
}

// publishTransition hands one event to the downstream sink when configured.
// Callers must hold mu.
func (r *Reconciler) publishTransition(ctx context.Context, event types.TransitionEvent, trigger types.ReconcileTrigger) {
	if r.sink == nil {
		return
	}
	r.sink.PublishTransition(ctx, event, trigger)
}

// recordPositioningFailure appends a diagnostic entry describing the failed
// fix. Diagnostic entries carry a note and no zone fields so readers can tell
// a degraded pass from a real transition. Callers must hold mu.
func (r *Reconciler) recordPositioningFailure(ctx context.Context, trigger types.ReconcileTrigger, err error) {
	r.logger.Error("positioning unavailable, pass aborted",
		"error", err.Error(),
		"trigger", string(trigger),
	)
	r.events.Append(ctx, types.TransitionEvent{
		ID:        newEventID(),
		Timestamp: r.clock.Now(),
		Note:      fmt.Sprintf("positioning unavailable during %s: %v", trigger, err),
	})
	r.metrics.PositioningFailure(ctx, trigger)
}

// transitionEvent builds the immutable log entry for one transition.
func (r *Reconciler) transitionEvent(zone types.DisasterZone, direction types.TransitionDirection, at time.Time, point *types.GeoPoint) types.TransitionEvent {
	return types.TransitionEvent{
		ID:          newEventID(),
		Direction:   direction,
		Timestamp:   at,
		ZoneID:      zone.ID,
		Category:    zone.Category,
		Severity:    zone.Severity,
		Description: zone.Description,
		Point:       point,
	}
}

func newEventID() string {
	return "evt_" + uuid.New().String()
}
