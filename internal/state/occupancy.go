// Package state persists zone occupancy and the transition event log through
// the blob store.
//
// Every operation here is best effort. A failed or corrupt read yields an
// empty value and a failed write is logged and absorbed, so a broken store
// degrades detection quality (a duplicate or missed alert after restart) but
// never aborts a reconciliation pass.
package state

import (
	"context"
	"encoding/json"
	"sort"

	"zonewatch/internal/metrics"
	"zonewatch/internal/types"
)

// OccupancyKey is the blob store key holding the persisted occupancy record.
const OccupancyKey = "zonewatch.occupancy.v1"

// OccupancyStore reads and writes the set of zone IDs the subject currently
// occupies. Zone IDs are stored sorted so identical sets encode to identical
// payloads regardless of evaluation order.
type OccupancyStore struct {
	blob    types.BlobStore
	clock   types.Clock
	logger  types.Logger
	metrics *metrics.Recorder
}

// NewOccupancyStore creates an OccupancyStore backed by the given blob store.
func NewOccupancyStore(blob types.BlobStore, clock types.Clock, logger types.Logger, rec *metrics.Recorder) *OccupancyStore {
	return &OccupancyStore{
		blob:    blob,
		clock:   clock,
		logger:  logger,
		metrics: rec,
	}
}

// Load returns the last persisted occupancy state. A missing value, a failed
// read, or a corrupt payload all yield an empty state stamped with the current
// time; the failure is logged, never returned.
func (s *OccupancyStore) Load(ctx context.Context) types.ZoneOccupancyState {
	raw, ok, err := s.blob.Get(ctx, OccupancyKey)
	if err != nil {
		s.logger.Warn("failed to load occupancy state, assuming empty",
			"error", err.Error(),
			"key", OccupancyKey,
		)
		s.metrics.PersistenceFailure(ctx, "load")
		return types.NewZoneOccupancyState(s.clock.Now())
	}
	if !ok {
		return types.NewZoneOccupancyState(s.clock.Now())
	}

	var st types.ZoneOccupancyState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.logger.Warn("corrupt occupancy state, assuming empty",
			"error", err.Error(),
			"key", OccupancyKey,
		)
		s.metrics.PersistenceFailure(ctx, "load")
		return types.NewZoneOccupancyState(s.clock.Now())
	}
	if st.ZoneIDs == nil {
		st.ZoneIDs = []string{}
	}
	return st
}

// Save persists the given zone ID set stamped with the current time and
// returns the record it wrote. The input slice is not modified. A write
// failure is logged and absorbed; the returned record is still valid for
// in-memory use so detection continues against the freshest set.
func (s *OccupancyStore) Save(ctx context.Context, zoneIDs []string) types.ZoneOccupancyState {
	ids := make([]string, len(zoneIDs))
	copy(ids, zoneIDs)
	sort.Strings(ids)

	st := types.ZoneOccupancyState{
		ZoneIDs:   ids,
		UpdatedAt: s.clock.Now(),
	}

	payload, err := json.Marshal(st)
	if err != nil {
		s.logger.Error("failed to encode occupancy state",
			"error", err.Error(),
			"zones", len(ids),
		)
		s.metrics.PersistenceFailure(ctx, "save")
		return st
	}

	if err := s.blob.Set(ctx, OccupancyKey, string(payload)); err != nil {
		s.logger.Error("failed to save occupancy state",
			"error", err.Error(),
			"key", OccupancyKey,
			"zones", len(ids),
		)
		s.metrics.PersistenceFailure(ctx, "save")
	}
	return st
}

// Clear removes the persisted occupancy record. Used when monitoring stops so
// a later cold start begins from a clean slate. Failures are logged and
// absorbed.
func (s *OccupancyStore) Clear(ctx context.Context) {
	if err := s.blob.Remove(ctx, OccupancyKey); err != nil {
		s.logger.Error("failed to clear occupancy state",
			"error", err.Error(),
			"key", OccupancyKey,
		)
		s.metrics.PersistenceFailure(ctx, "clear")
	}
}
