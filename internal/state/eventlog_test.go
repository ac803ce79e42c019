package state

import (
	"context"
	"fmt"
	"testing"
	"time"

	"zonewatch/internal/types"
)

func newTestEventLog(blob *fakeBlobStore, capacity int) (*EventLog, *mockLogger) {
	logger := &mockLogger{}
	return NewEventLog(blob, capacity, logger, nil), logger
}

func enterEvent(id, zoneID string, ts time.Time) types.TransitionEvent {
	return types.TransitionEvent{
		ID:        id,
		Direction: types.DirectionEnter,
		Timestamp: ts,
		ZoneID:    zoneID,
		Category:  types.CategoryFlood,
		Severity:  types.SeverityHigh,
	}
}

func TestEventLog_RecentIsMostRecentFirst(t *testing.T) {
	log, _ := newTestEventLog(newFakeBlobStore(), 0)
	ctx := context.Background()

	log.Append(ctx, enterEvent("evt-1", "zone-a", testNow))
	log.Append(ctx, enterEvent("evt-2", "zone-b", testNow.Add(time.Minute)))
	log.Append(ctx, enterEvent("evt-3", "zone-c", testNow.Add(2*time.Minute)))

	entries := log.Recent(ctx, 0)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ID != "evt-3" || entries[1].ID != "evt-2" || entries[2].ID != "evt-1" {
		t.Errorf("expected newest first, got %s, %s, %s", entries[0].ID, entries[1].ID, entries[2].ID)
	}
}

func TestEventLog_CapacityDropsOldest(t *testing.T) {
	log, _ := newTestEventLog(newFakeBlobStore(), 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		log.Append(ctx, enterEvent(fmt.Sprintf("evt-%d", i), "zone-a", testNow.Add(time.Duration(i)*time.Minute)))
	}

	entries := log.Recent(ctx, 0)
	if len(entries) != 3 {
		t.Fatalf("expected capacity-bounded 3 entries, got %d", len(entries))
	}
	if entries[0].ID != "evt-5" || entries[2].ID != "evt-3" {
		t.Errorf("expected evt-5..evt-3 retained, got %s..%s", entries[0].ID, entries[2].ID)
	}
}

func TestEventLog_BatchAppendKeepsGivenOrder(t *testing.T) {
	// Entries appended in one pass stay in pass order, ahead of older entries.
	log, _ := newTestEventLog(newFakeBlobStore(), 0)
	ctx := context.Background()

	log.Append(ctx, enterEvent("evt-old", "zone-a", testNow))
	log.Append(ctx,
		enterEvent("evt-new-1", "zone-b", testNow.Add(time.Minute)),
		enterEvent("evt-new-2", "zone-c", testNow.Add(time.Minute)),
	)

	entries := log.Recent(ctx, 0)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ID != "evt-new-1" || entries[1].ID != "evt-new-2" || entries[2].ID != "evt-old" {
		t.Errorf("unexpected order: %s, %s, %s", entries[0].ID, entries[1].ID, entries[2].ID)
	}
}

func TestEventLog_RecentLimit(t *testing.T) {
	log, _ := newTestEventLog(newFakeBlobStore(), 0)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		log.Append(ctx, enterEvent(fmt.Sprintf("evt-%d", i), "zone-a", testNow))
	}

	if got := log.Recent(ctx, 2); len(got) != 2 || got[0].ID != "evt-4" {
		t.Errorf("limit 2: expected [evt-4 evt-3], got %v", got)
	}
	if got := log.Recent(ctx, 10); len(got) != 4 {
		t.Errorf("limit beyond size: expected 4 entries, got %d", len(got))
	}
	if got := log.Recent(ctx, 0); len(got) != 4 {
		t.Errorf("limit 0: expected all 4 entries, got %d", len(got))
	}
}

func TestEventLog_AppendNothingIsNoOp(t *testing.T) {
	blob := newFakeBlobStore()
	log, _ := newTestEventLog(blob, 0)

	log.Append(context.Background())

	if blob.setCalls != 0 {
		t.Errorf("expected no write for empty append, got %d", blob.setCalls)
	}
}

func TestEventLog_DiagnosticEntrySurvivesRoundTrip(t *testing.T) {
	log, _ := newTestEventLog(newFakeBlobStore(), 0)
	ctx := context.Background()

	log.Append(ctx, types.TransitionEvent{
		ID:        "evt-diag",
		Timestamp: testNow,
		Note:      "positioning unavailable during manual refresh",
	})

	entries := log.Recent(ctx, 0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if !entries[0].Diagnostic() {
		t.Error("expected diagnostic entry after round trip")
	}
	if entries[0].Note == "" {
		t.Error("expected note preserved")
	}
	if entries[0].ZoneID != "" {
		t.Errorf("diagnostic entry should carry no zone, got %q", entries[0].ZoneID)
	}
}

func TestEventLog_ReadFailureYieldsEmpty(t *testing.T) {
	blob := newFakeBlobStore()
	blob.getErr = fmt.Errorf("store unavailable")
	log, logger := newTestEventLog(blob, 0)

	entries := log.Recent(context.Background(), 0)

	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty slice on read failure, got %v", entries)
	}
	if len(logger.warns) != 1 {
		t.Errorf("expected 1 warning, got %d", len(logger.warns))
	}
}

func TestEventLog_CorruptPayloadStartsFresh(t *testing.T) {
	blob := newFakeBlobStore()
	blob.data[EventLogKey] = `[{"id": truncated`
	log, _ := newTestEventLog(blob, 0)
	ctx := context.Background()

	log.Append(ctx, enterEvent("evt-1", "zone-a", testNow))

	entries := log.Recent(ctx, 0)
	if len(entries) != 1 || entries[0].ID != "evt-1" {
		t.Errorf("expected fresh log with 1 entry, got %v", entries)
	}
}

func TestEventLog_WriteFailureAbsorbed(t *testing.T) {
	blob := newFakeBlobStore()
	blob.setErr = fmt.Errorf("store unavailable")
	log, logger := newTestEventLog(blob, 0)

	log.Append(context.Background(), enterEvent("evt-1", "zone-a", testNow))

	if len(logger.errors) != 1 {
		t.Errorf("expected 1 error log entry, got %d", len(logger.errors))
	}
}

func TestEventLog_ClearEmptiesLog(t *testing.T) {
	log, _ := newTestEventLog(newFakeBlobStore(), 0)
	ctx := context.Background()

	log.Append(ctx, enterEvent("evt-1", "zone-a", testNow))
	log.Clear(ctx)

	if entries := log.Recent(ctx, 0); len(entries) != 0 {
		t.Errorf("expected empty log after Clear, got %v", entries)
	}
}

func TestEventLog_DefaultCapacity(t *testing.T) {
	log, _ := newTestEventLog(newFakeBlobStore(), 0)
	ctx := context.Background()

	for i := 0; i < DefaultEventLogCapacity+5; i++ {
		log.Append(ctx, enterEvent(fmt.Sprintf("evt-%d", i), "zone-a", testNow))
	}

	if entries := log.Recent(ctx, 0); len(entries) != DefaultEventLogCapacity {
		t.Errorf("expected %d retained entries, got %d", DefaultEventLogCapacity, len(entries))
	}
}
