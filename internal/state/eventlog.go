package state

import (
	"context"
	"encoding/json"

	"zonewatch/internal/metrics"
	"zonewatch/internal/types"
)

// EventLogKey is the blob store key holding the persisted event entries.
const EventLogKey = "zonewatch.events.v1"

// DefaultEventLogCapacity bounds the number of retained entries. When the log
// is full the oldest entries are dropped.
const DefaultEventLogCapacity = 50

// EventLog is a bounded, most-recent-first log of transition and diagnostic
// entries persisted through the blob store. Appends are read-modify-write;
// concurrent writers may lose entries, which the single-writer reconciliation
// queue prevents in practice.
type EventLog struct {
	blob     types.BlobStore
	logger   types.Logger
	metrics  *metrics.Recorder
	capacity int
}

// NewEventLog creates an EventLog with the given capacity. A capacity of zero
// or less selects DefaultEventLogCapacity.
func NewEventLog(blob types.BlobStore, capacity int, logger types.Logger, rec *metrics.Recorder) *EventLog {
	if capacity <= 0 {
		capacity = DefaultEventLogCapacity
	}
	return &EventLog{
		blob:     blob,
		logger:   logger,
		metrics:  rec,
		capacity: capacity,
	}
}

// Append inserts the given entries at the head of the log, preserving their
// argument order, and trims the tail to capacity. Entries appended together
// therefore read back in the order given, ahead of everything older. Failures
// are logged and absorbed.
func (l *EventLog) Append(ctx context.Context, events ...types.TransitionEvent) {
	if len(events) == 0 {
		return
	}

	current := l.load(ctx)

	merged := make([]types.TransitionEvent, 0, len(events)+len(current))
	merged = append(merged, events...)
	merged = append(merged, current...)
	if len(merged) > l.capacity {
		merged = merged[:l.capacity]
	}

	payload, err := json.Marshal(merged)
	if err != nil {
		l.logger.Error("failed to encode event log",
			"error", err.Error(),
			"entries", len(merged),
		)
		l.metrics.PersistenceFailure(ctx, "append")
		return
	}

	if err := l.blob.Set(ctx, EventLogKey, string(payload)); err != nil {
		l.logger.Error("failed to append to event log",
			"error", err.Error(),
			"key", EventLogKey,
			"entries", len(events),
		)
		l.metrics.PersistenceFailure(ctx, "append")
	}
}

// Recent returns up to limit entries, most recent first. A limit of zero or
// less returns everything retained. A failed or corrupt read yields an empty
// slice.
func (l *EventLog) Recent(ctx context.Context, limit int) []types.TransitionEvent {
	entries := l.load(ctx)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Clear removes all persisted entries. Failures are logged and absorbed.
func (l *EventLog) Clear(ctx context.Context) {
	if err := l.blob.Remove(ctx, EventLogKey); err != nil {
		l.logger.Error("failed to clear event log",
			"error", err.Error(),
			"key", EventLogKey,
		)
		l.metrics.PersistenceFailure(ctx, "clear")
	}
}

// load reads the persisted entries, treating a missing, failed, or corrupt
// read as an empty log.
func (l *EventLog) load(ctx context.Context) []types.TransitionEvent {
	raw, ok, err := l.blob.Get(ctx, EventLogKey)
	if err != nil {
		l.logger.Warn("failed to load event log, assuming empty",
			"error", err.Error(),
			"key", EventLogKey,
		)
		l.metrics.PersistenceFailure(ctx, "load")
		return []types.TransitionEvent{}
	}
	if !ok {
		return []types.TransitionEvent{}
	}

	var entries []types.TransitionEvent
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		l.logger.Warn("corrupt event log, assuming empty",
			"error", err.Error(),
			"key", EventLogKey,
		)
		l.metrics.PersistenceFailure(ctx, "load")
		return []types.TransitionEvent{}
	}
	if entries == nil {
		entries = []types.TransitionEvent{}
	}
	return entries
}
