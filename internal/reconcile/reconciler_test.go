package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"zonewatch/internal/catalog"
	"zonewatch/internal/notify"
	"zonewatch/internal/state"
	"zonewatch/internal/types"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// Three zones on a meridian, centers ~1000m apart, radius 600m. The midpoint
// between two neighbors is ~500m from both, so it sits inside exactly those
// two zones.
var (
	pointA   = types.GeoPoint{Lat: 10.000, Lon: 10.0}  // inside zone-a only
	pointAB  = types.GeoPoint{Lat: 10.0045, Lon: 10.0} // inside zone-a and zone-b
	pointBC  = types.GeoPoint{Lat: 10.0135, Lon: 10.0} // inside zone-b and zone-c
	pointFar = types.GeoPoint{Lat: 40.0, Lon: 40.0}    // inside nothing
)

func lineZones() []types.DisasterZone {
	return []types.DisasterZone{
		{
			ID: "zone-a", Category: types.CategoryFlood, Severity: types.SeverityHigh,
			Center: types.GeoPoint{Lat: 10.000, Lon: 10.0}, RadiusM: 600,
			NotifyOnEnter: true, NotifyOnExit: true, Description: "Flood basin A",
		},
		{
			ID: "zone-b", Category: types.CategoryFire, Severity: types.SeverityWarning,
			Center: types.GeoPoint{Lat: 10.009, Lon: 10.0}, RadiusM: 600,
			NotifyOnEnter: true, NotifyOnExit: true, Description: "Fire watch B",
		},
		{
			ID: "zone-c", Category: types.CategoryStorm, Severity: types.SeverityCritical,
			Center: types.GeoPoint{Lat: 10.018, Lon: 10.0}, RadiusM: 600,
			NotifyOnEnter: true, NotifyOnExit: true, Description: "Storm cell C",
		},
	}
}

type fakeBlobStore struct {
	data      map[string]string
	setsByKey map[string]int
	getErr    error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{data: make(map[string]string), setsByKey: make(map[string]int)}
}

func (f *fakeBlobStore) Get(_ context.Context, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeBlobStore) Set(_ context.Context, key, value string) error {
	f.setsByKey[key]++
	f.data[key] = value
	return nil
}

func (f *fakeBlobStore) Remove(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

type mockLogger struct {
	warns  []string
	errors []string
}

func (l *mockLogger) Info(msg string, args ...any)  {}
func (l *mockLogger) Error(msg string, args ...any) { l.errors = append(l.errors, msg) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.warns = append(l.warns, msg) }
func (l *mockLogger) With(args ...any) types.Logger { return l }

type fakeNotifier struct {
	sent []types.Alert
}

func (n *fakeNotifier) CheckPermission(_ context.Context) error { return nil }
func (n *fakeNotifier) EnsureChannel(_ context.Context) error   { return nil }

func (n *fakeNotifier) Send(_ context.Context, a types.Alert) error {
	n.sent = append(n.sent, a)
	return nil
}

type fakePositioning struct {
	fix    types.PositionFix
	fixErr error
}

func (p *fakePositioning) CheckPermission(_ context.Context, _ types.PermissionScope) error {
	return nil
}

func (p *fakePositioning) CurrentFix(_ context.Context) (types.PositionFix, error) {
	if p.fixErr != nil {
		return types.PositionFix{}, p.fixErr
	}
	return p.fix, nil
}

func (p *fakePositioning) RegisterRegionWatch(_ context.Context, _ []types.Region, _ types.RegionSignalHandler) error {
	return nil
}

func (p *fakePositioning) UnregisterRegionWatch(_ context.Context) error { return nil }

func (p *fakePositioning) RegionWatchRegistered(_ context.Context) (bool, error) {
	return false, nil
}

func (p *fakePositioning) WatchPosition(_ context.Context, _ types.WatchCadence, _ types.PositionHandler) (types.WatchSubscription, error) {
	return nil, nil
}

type publishedTransition struct {
	event   types.TransitionEvent
	trigger types.ReconcileTrigger
}

type fakeSink struct {
	published []publishedTransition
}

func (s *fakeSink) PublishTransition(_ context.Context, event types.TransitionEvent, trigger types.ReconcileTrigger) {
	s.published = append(s.published, publishedTransition{event: event, trigger: trigger})
}

type fixture struct {
	reconciler  *Reconciler
	blob        *fakeBlobStore
	notifier    *fakeNotifier
	positioning *fakePositioning
	occupancy   *state.OccupancyStore
	events      *state.EventLog
	sink        *fakeSink
	logger      *mockLogger
}

func newFixture(t *testing.T, zones []types.DisasterZone) *fixture {
	t.Helper()
	cat, err := catalog.New(zones)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	blob := newFakeBlobStore()
	clock := &mockClock{now: testNow}
	logger := &mockLogger{}
	occupancy := state.NewOccupancyStore(blob, clock, logger, nil)
	events := state.NewEventLog(blob, 0, logger, nil)
	notifier := &fakeNotifier{}
	dispatcher := notify.NewDispatcher(notifier, logger, nil)
	positioning := &fakePositioning{}
	sink := &fakeSink{}

	return &fixture{
		reconciler:  New(cat, positioning, occupancy, events, dispatcher, sink, clock, logger, nil),
		blob:        blob,
		notifier:    notifier,
		positioning: positioning,
		occupancy:   occupancy,
		events:      events,
		sink:        sink,
		logger:      logger,
	}
}

func assertSameSet(t *testing.T, st types.ZoneOccupancyState, want []string) {
	t.Helper()
	if !st.SameSet(want) {
		t.Errorf("expected occupancy %v, got %v", want, st.ZoneIDs)
	}
}

func TestReconcilePoint_EnterFromEmptyState(t *testing.T) {
	// A point 500m inside a 1000m-radius zone with no prior state must
	// produce exactly one ENTER.
	zone := types.DisasterZone{
		ID: "solo-zone", Category: types.CategoryFlood, Severity: types.SeverityHigh,
		Center: types.GeoPoint{Lat: 10.0, Lon: 10.0}, RadiusM: 1000,
		NotifyOnEnter: true, NotifyOnExit: true, Description: "Flood basin",
	}
	f := newFixture(t, []types.DisasterZone{zone})
	ctx := context.Background()

	// ~500m north of center.
	res := f.reconciler.ReconcilePoint(ctx, types.GeoPoint{Lat: 10.0045, Lon: 10.0}, types.TriggerInitialCheck)

	if len(res.Entered) != 1 || res.Entered[0] != "solo-zone" {
		t.Errorf("expected entered [solo-zone], got %v", res.Entered)
	}
	if len(res.Exited) != 0 {
		t.Errorf("expected no exits, got %v", res.Exited)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(f.notifier.sent))
	}
	if f.notifier.sent[0].Data["direction"] != string(types.DirectionEnter) {
		t.Errorf("expected ENTER alert, got %v", f.notifier.sent[0].Data)
	}

	assertSameSet(t, f.occupancy.Load(ctx), []string{"solo-zone"})

	entries := f.events.Recent(ctx, 0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Direction != types.DirectionEnter || e.ZoneID != "solo-zone" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.Category != types.CategoryFlood || e.Severity != types.SeverityHigh || e.Description == "" {
		t.Errorf("entry missing zone fields: %+v", e)
	}
	if e.Point == nil || e.Point.Lat != 10.0045 {
		t.Errorf("entry missing observed point: %+v", e.Point)
	}
}

func TestReconcilePoint_SecondPassIsIdempotent(t *testing.T) {
	f := newFixture(t, lineZones())
	ctx := context.Background()

	f.reconciler.ReconcilePoint(ctx, pointAB, types.TriggerInitialCheck)
	alertsAfterFirst := len(f.notifier.sent)
	eventsAfterFirst := len(f.events.Recent(ctx, 0))

	res := f.reconciler.ReconcilePoint(ctx, pointAB, types.TriggerInitialCheck)

	if len(res.Entered) != 0 || len(res.Exited) != 0 {
		t.Errorf("expected no deltas on second pass, got entered=%v exited=%v", res.Entered, res.Exited)
	}
	if len(f.notifier.sent) != alertsAfterFirst {
		t.Errorf("expected no new alerts, got %d more", len(f.notifier.sent)-alertsAfterFirst)
	}
	if got := len(f.events.Recent(ctx, 0)); got != eventsAfterFirst {
		t.Errorf("expected no new log entries, got %d more", got-eventsAfterFirst)
	}
}

func TestReconcilePoint_DiffEmitsExactDeltas(t *testing.T) {
	// Previous {A,B}, new {B,C}: exactly one EXIT(A) and one ENTER(C).
	f := newFixture(t, lineZones())
	ctx := context.Background()

	f.reconciler.ReconcilePoint(ctx, pointAB, types.TriggerInitialCheck)
	f.notifier.sent = nil

	res := f.reconciler.ReconcilePoint(ctx, pointBC, types.TriggerInitialCheck)

	if len(res.Entered) != 1 || res.Entered[0] != "zone-c" {
		t.Errorf("expected entered [zone-c], got %v", res.Entered)
	}
	if len(res.Exited) != 1 || res.Exited[0] != "zone-a" {
		t.Errorf("expected exited [zone-a], got %v", res.Exited)
	}
	if len(f.notifier.sent) != 2 {
		t.Fatalf("expected 2 alerts (one enter, one exit), got %d", len(f.notifier.sent))
	}

	assertSameSet(t, f.occupancy.Load(ctx), []string{"zone-b", "zone-c"})

	entries := f.events.Recent(ctx, 2)
	if entries[0].Direction != types.DirectionEnter || entries[0].ZoneID != "zone-c" {
		t.Errorf("expected head entry ENTER zone-c, got %+v", entries[0])
	}
	if entries[1].Direction != types.DirectionExit || entries[1].ZoneID != "zone-a" {
		t.Errorf("expected EXIT zone-a, got %+v", entries[1])
	}
}

func TestReconcilePoint_ExitEverything(t *testing.T) {
	f := newFixture(t, lineZones())
	ctx := context.Background()

	f.reconciler.ReconcilePoint(ctx, pointAB, types.TriggerInitialCheck)
	f.notifier.sent = nil

	res := f.reconciler.ReconcilePoint(ctx, pointFar, types.TriggerInitialCheck)

	if len(res.Exited) != 2 {
		t.Errorf("expected 2 exits, got %v", res.Exited)
	}
	if len(f.notifier.sent) != 2 {
		t.Errorf("expected 2 exit alerts, got %d", len(f.notifier.sent))
	}
	assertSameSet(t, f.occupancy.Load(ctx), []string{})
}

func TestReconcilePoint_ForegroundSkipsUnchangedWrite(t *testing.T) {
	f := newFixture(t, lineZones())
	ctx := context.Background()

	// First foreground pass changes the set, so it writes.
	f.reconciler.ReconcilePoint(ctx, pointA, types.TriggerForegroundWatch)
	if got := f.blob.setsByKey[state.OccupancyKey]; got != 1 {
		t.Fatalf("expected 1 occupancy write after first pass, got %d", got)
	}

	// Unchanged set on the foreground path skips the write.
	f.reconciler.ReconcilePoint(ctx, pointA, types.TriggerForegroundWatch)
	if got := f.blob.setsByKey[state.OccupancyKey]; got != 1 {
		t.Errorf("expected foreground pass to skip unchanged write, got %d writes", got)
	}

	// The one-shot check writes even when nothing changed.
	f.reconciler.ReconcilePoint(ctx, pointA, types.TriggerInitialCheck)
	if got := f.blob.setsByKey[state.OccupancyKey]; got != 2 {
		t.Errorf("expected initial check to always write, got %d writes", got)
	}

	f.reconciler.ReconcilePoint(ctx, pointA, types.TriggerManualRefresh)
	if got := f.blob.setsByKey[state.OccupancyKey]; got != 3 {
		t.Errorf("expected manual refresh to always write, got %d writes", got)
	}
}

func TestReconcilePoint_SuppressedAlertStillLogged(t *testing.T) {
	// Notify flags gate the alert only; the log entry and state update happen
	// regardless.
	zone := types.DisasterZone{
		ID: "quiet-zone", Category: types.CategoryEarthquake, Severity: types.SeverityInfo,
		Center: types.GeoPoint{Lat: 10.0, Lon: 10.0}, RadiusM: 1000,
		NotifyOnEnter: false, NotifyOnExit: false, Description: "Quiet aftershock zone",
	}
	f := newFixture(t, []types.DisasterZone{zone})
	ctx := context.Background()

	f.reconciler.ReconcilePoint(ctx, types.GeoPoint{Lat: 10.0, Lon: 10.0}, types.TriggerInitialCheck)

	if len(f.notifier.sent) != 0 {
		t.Errorf("expected no alert for suppressed zone, got %d", len(f.notifier.sent))
	}
	if entries := f.events.Recent(ctx, 0); len(entries) != 1 {
		t.Errorf("expected log entry despite suppressed alert, got %d", len(entries))
	}
	assertSameSet(t, f.occupancy.Load(ctx), []string{"quiet-zone"})
}

func TestReconcilePoint_StaleIdentifierDropped(t *testing.T) {
	// Occupancy persisted by an older catalog may reference a zone that no
	// longer exists. It must leave the set silently, without an alert or a
	// log entry, and without aborting the pass.
	f := newFixture(t, lineZones())
	ctx := context.Background()

	f.blob.data[state.OccupancyKey] = `{"zone_ids":["ghost-zone","zone-a"],"updated_at":"2026-03-14T09:00:00Z"}`

	res := f.reconciler.ReconcilePoint(ctx, pointA, types.TriggerInitialCheck)

	if len(res.Exited) != 1 || res.Exited[0] != "ghost-zone" {
		t.Errorf("expected stale ghost-zone in exited, got %v", res.Exited)
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("expected no alert for stale identifier, got %d", len(f.notifier.sent))
	}
	if entries := f.events.Recent(ctx, 0); len(entries) != 0 {
		t.Errorf("expected no log entry for stale identifier, got %d", len(entries))
	}
	if len(f.logger.warns) == 0 {
		t.Error("expected warning for stale identifier")
	}
	assertSameSet(t, f.occupancy.Load(ctx), []string{"zone-a"})
}

func TestCheckNow_RunsPassAgainstCurrentFix(t *testing.T) {
	f := newFixture(t, lineZones())
	f.positioning.fix = types.PositionFix{Point: pointA, Timestamp: testNow}

	res, err := f.reconciler.CheckNow(context.Background(), types.TriggerInitialCheck)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entered) != 1 || res.Entered[0] != "zone-a" {
		t.Errorf("expected entered [zone-a], got %v", res.Entered)
	}
	if len(f.notifier.sent) != 1 {
		t.Errorf("expected 1 alert, got %d", len(f.notifier.sent))
	}
}

func TestCheckNow_PositioningFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, lineZones())
	ctx := context.Background()

	// Seed real occupancy, then break positioning.
	f.reconciler.ReconcilePoint(ctx, pointAB, types.TriggerInitialCheck)
	f.notifier.sent = nil
	eventsBefore := len(f.events.Recent(ctx, 0))
	f.positioning.fixErr = fmt.Errorf("no fix available")

	_, err := f.reconciler.CheckNow(ctx, types.TriggerManualRefresh)

	if err == nil {
		t.Fatal("expected error when positioning fails")
	}
	appErr, ok := types.AsAppError(err)
	if !ok || appErr.Code != types.ErrCodePositioningUnavailable {
		t.Errorf("expected positioning_unavailable, got %v", err)
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("expected no alert on positioning failure, got %d", len(f.notifier.sent))
	}
	assertSameSet(t, f.occupancy.Load(ctx), []string{"zone-a", "zone-b"})

	entries := f.events.Recent(ctx, 0)
	if len(entries) != eventsBefore+1 {
		t.Fatalf("expected 1 diagnostic entry, got %d new", len(entries)-eventsBefore)
	}
	diag := entries[0]
	if !diag.Diagnostic() {
		t.Errorf("expected diagnostic entry, got %+v", diag)
	}
	if diag.Note == "" || diag.ZoneID != "" {
		t.Errorf("diagnostic entry malformed: %+v", diag)
	}
}

func TestApplySignal_EnterAddsOnlyThatZone(t *testing.T) {
	f := newFixture(t, lineZones())
	ctx := context.Background()

	f.occupancy.Save(ctx, []string{"zone-a"})

	f.reconciler.ApplySignal(ctx, types.RegionSignal{
		ZoneID:    "zone-c",
		Direction: types.DirectionEnter,
		Timestamp: testNow,
	})

	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(f.notifier.sent))
	}
	if f.notifier.sent[0].Data["zone_id"] != "zone-c" {
		t.Errorf("expected alert for zone-c, got %v", f.notifier.sent[0].Data)
	}
	// zone-a is untouched even though the observer may no longer be there;
	// the signal path never recomputes containment for other zones.
	assertSameSet(t, f.occupancy.Load(ctx), []string{"zone-a", "zone-c"})

	entries := f.events.Recent(ctx, 0)
	if len(entries) != 1 || entries[0].ZoneID != "zone-c" {
		t.Errorf("expected 1 entry for zone-c, got %v", entries)
	}
	if entries[0].Point != nil {
		t.Errorf("signal entry should carry no point, got %+v", entries[0].Point)
	}
}

func TestApplySignal_ExitRemovesOnlyThatZone(t *testing.T) {
	f := newFixture(t, lineZones())
	ctx := context.Background()

	f.occupancy.Save(ctx, []string{"zone-a", "zone-b"})

	f.reconciler.ApplySignal(ctx, types.RegionSignal{
		ZoneID:    "zone-a",
		Direction: types.DirectionExit,
		Timestamp: testNow,
	})

	if len(f.notifier.sent) != 1 {
		t.Fatalf("expected 1 exit alert, got %d", len(f.notifier.sent))
	}
	if f.notifier.sent[0].Priority != types.PriorityDefault {
		t.Errorf("expected default priority exit alert, got %q", f.notifier.sent[0].Priority)
	}
	assertSameSet(t, f.occupancy.Load(ctx), []string{"zone-b"})
}

func TestApplySignal_UnknownZoneDropped(t *testing.T) {
	f := newFixture(t, lineZones())
	ctx := context.Background()

	f.occupancy.Save(ctx, []string{"zone-a"})
	writesBefore := f.blob.setsByKey[state.OccupancyKey]

	f.reconciler.ApplySignal(ctx, types.RegionSignal{
		ZoneID:    "ghost-zone",
		Direction: types.DirectionEnter,
		Timestamp: testNow,
	})

	if len(f.notifier.sent) != 0 {
		t.Errorf("expected no alert for unknown zone, got %d", len(f.notifier.sent))
	}
	if entries := f.events.Recent(ctx, 0); len(entries) != 0 {
		t.Errorf("expected no log entry for unknown zone, got %d", len(entries))
	}
	if got := f.blob.setsByKey[state.OccupancyKey]; got != writesBefore {
		t.Errorf("expected no state write for unknown zone, got %d new", got-writesBefore)
	}
	if len(f.logger.warns) == 0 {
		t.Error("expected warning for unknown zone signal")
	}
}

func TestApplySignal_UnknownDirectionDropped(t *testing.T) {
	f := newFixture(t, lineZones())
	ctx := context.Background()

	f.reconciler.ApplySignal(ctx, types.RegionSignal{
		ZoneID:    "zone-a",
		Direction: types.TransitionDirection("SIDEWAYS"),
		Timestamp: testNow,
	})

	if len(f.notifier.sent) != 0 {
		t.Errorf("expected no alert for unknown direction, got %d", len(f.notifier.sent))
	}
	if entries := f.events.Recent(ctx, 0); len(entries) != 0 {
		t.Errorf("expected no log entry for unknown direction, got %d", len(entries))
	}
}

func TestApplySignal_TrustsPlatformOverState(t *testing.T) {
	// A duplicate ENTER for a zone already in the set still alerts: the
	// platform verified a boundary crossing and is trusted over local state.
	f := newFixture(t, lineZones())
	ctx := context.Background()

	f.occupancy.Save(ctx, []string{"zone-a"})

	f.reconciler.ApplySignal(ctx, types.RegionSignal{
		ZoneID:    "zone-a",
		Direction: types.DirectionEnter,
		Timestamp: testNow,
	})

	if len(f.notifier.sent) != 1 {
		t.Errorf("expected duplicate signal to still alert, got %d", len(f.notifier.sent))
	}
	// The set gains no duplicate entry.
	st := f.occupancy.Load(ctx)
	if len(st.ZoneIDs) != 1 {
		t.Errorf("expected single zone-a entry, got %v", st.ZoneIDs)
	}
}

func TestCheckNow_FailureErrorIsDisplayable(t *testing.T) {
	f := newFixture(t, lineZones())
	f.positioning.fixErr = errors.New("gps cold start")

	_, err := f.reconciler.CheckNow(context.Background(), types.TriggerInitialCheck)

	appErr, ok := types.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Message == "" {
		t.Error("expected user-displayable message")
	}
	if !errors.Is(err, appErr.Err) {
		t.Error("expected cause preserved for unwrapping")
	}
}

func TestReconcilePoint_PublishesTransitionsToSink(t *testing.T) {
	f := newFixture(t, lineZones())
	ctx := context.Background()

	f.reconciler.ReconcilePoint(ctx, pointAB, types.TriggerManualRefresh)

	if len(f.sink.published) != 2 {
		t.Fatalf("expected 2 published transitions, got %d", len(f.sink.published))
	}
	for _, p := range f.sink.published {
		if p.trigger != types.TriggerManualRefresh {
			t.Errorf("published trigger = %q, want %q", p.trigger, types.TriggerManualRefresh)
		}
		if p.event.ID == "" || p.event.Point == nil {
			t.Errorf("published event missing ID or point: %+v", p.event)
		}
	}

	// The same point again produces no deltas and therefore no publishes.
	f.reconciler.ReconcilePoint(ctx, pointAB, types.TriggerManualRefresh)
	if len(f.sink.published) != 2 {
		t.Errorf("idempotent pass published %d extra transitions", len(f.sink.published)-2)
	}
}

func TestApplySignal_PublishesWithSignalTrigger(t *testing.T) {
	f := newFixture(t, lineZones())

	f.reconciler.ApplySignal(context.Background(), types.RegionSignal{
		ZoneID:    "zone-b",
		Direction: types.DirectionEnter,
		Timestamp: testNow,
	})

	if len(f.sink.published) != 1 {
		t.Fatalf("expected 1 published transition, got %d", len(f.sink.published))
	}
	p := f.sink.published[0]
	if p.trigger != types.TriggerRegionSignal {
		t.Errorf("published trigger = %q, want %q", p.trigger, types.TriggerRegionSignal)
	}
	if p.event.ZoneID != "zone-b" || p.event.Direction != types.DirectionEnter {
		t.Errorf("published event = %+v, want zone-b ENTER", p.event)
	}
	if p.event.Point != nil {
		t.Error("signal-based transitions carry no observed point")
	}
}

func TestReconcilePoint_NilSinkTolerated(t *testing.T) {
	f := newFixture(t, lineZones())
	f.reconciler.sink = nil

	res := f.reconciler.ReconcilePoint(context.Background(), pointA, types.TriggerInitialCheck)
	if len(res.Entered) != 1 {
		t.Errorf("expected pass to run without a sink, entered %v", res.Entered)
	}
}
