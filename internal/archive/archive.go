// Package archive snapshots the live transition log into compressed batches.
//
// The live log is capped at 50 entries for the presentation layer, so history
// rolls off quickly. Each archival pass captures the current log as a JSON
// array, zstd-compresses it, and inserts it into transition_archives keyed by
// the content hash of the uncompressed snapshot. An unchanged log hashes to
// the same value and is skipped, so running the job more often than the log
// changes costs nothing.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"zonewatch/internal/db"
	"zonewatch/internal/metrics"
	"zonewatch/internal/state"
	"zonewatch/internal/types"
)

// DefaultRetention is how long archived batches are kept. PruneBefore runs at
// the end of every pass with now minus this window.
const DefaultRetention = 90 * 24 * time.Hour

// EventSource is the slice of the event log the archiver reads.
// Satisfied by *state.EventLog.
type EventSource interface {
	Recent(ctx context.Context, limit int) []types.TransitionEvent
}

var _ EventSource = (*state.EventLog)(nil)

// BatchStore is the slice of the archive repository the archiver writes.
// Satisfied by *db.ArchiveRepo.
type BatchStore interface {
	Insert(ctx context.Context, batch db.ArchiveBatch) (bool, error)
	LatestHash(ctx context.Context) (string, bool, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ BatchStore = (*db.ArchiveRepo)(nil)

// Result summarizes one archival pass.
type Result struct {
	Skipped    bool
	BatchID    string
	EventCount int
	Pruned     int64
}

// Archiver captures event log snapshots into the archive table.
type Archiver struct {
	events    EventSource
	repo      BatchStore
	clock     types.Clock
	logger    types.Logger
	metrics   *metrics.Recorder
	retention time.Duration
	encoder   *zstd.Encoder
}

// NewArchiver creates an Archiver. A retention of zero or less selects
// DefaultRetention.
func NewArchiver(events EventSource, repo BatchStore, retention time.Duration, clock types.Clock, logger types.Logger, rec *metrics.Recorder) (*Archiver, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to initialize zstd encoder", err)
	}
	return &Archiver{
		events:    events,
		repo:      repo,
		clock:     clock,
		logger:    logger,
		metrics:   rec,
		retention: retention,
		encoder:   encoder,
	}, nil
}

// Run executes one archival pass: snapshot, hash, compress, insert, prune.
// An empty or unchanged log skips the insert. Prune failures are logged but
// do not fail the pass once the batch is stored.
func (a *Archiver) Run(ctx context.Context) (Result, error) {
	now := a.clock.Now()

	entries := a.events.Recent(ctx, 0)
	if len(entries) == 0 {
		a.logger.Info("event log empty, nothing to archive")
		return Result{Skipped: true}, nil
	}

	snapshot, err := json.Marshal(entries)
	if err != nil {
		return Result{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode event log snapshot", err)
	}
	sum := sha256.Sum256(snapshot)
	hash := hex.EncodeToString(sum[:])

	latest, ok, err := a.repo.LatestHash(ctx)
	if err != nil {
		return Result{}, err
	}
	if ok && latest == hash {
		a.logger.Info("event log unchanged since last archive",
			"content_hash", hash,
			"entries", len(entries),
		)
		return Result{Skipped: true, EventCount: len(entries)}, nil
	}

	// Entries are most recent first; the span runs from the tail to the head.
	batch := db.ArchiveBatch{
		BatchID:     "arc_" + uuid.New().String(),
		ContentHash: hash,
		EventCount:  len(entries),
		Payload:     a.encoder.EncodeAll(snapshot, nil),
		OldestAt:    entries[len(entries)-1].Timestamp,
		NewestAt:    entries[0].Timestamp,
		ArchivedAt:  now,
	}

	inserted, err := a.repo.Insert(ctx, batch)
	if err != nil {
		return Result{}, err
	}
	if !inserted {
		a.logger.Info("archive batch already stored",
			"content_hash", hash,
		)
		return Result{Skipped: true, EventCount: len(entries)}, nil
	}

	a.metrics.ArchiveBatch(ctx, len(entries))
	a.logger.Info("archived event log snapshot",
		"batch_id", batch.BatchID,
		"entries", len(entries),
		"compressed_bytes", len(batch.Payload),
	)

	result := Result{BatchID: batch.BatchID, EventCount: len(entries)}

	pruned, err := a.repo.PruneBefore(ctx, now.Add(-a.retention))
	if err != nil {
		a.logger.Warn("failed to prune archive batches",
			"error", err.Error(),
		)
		return result, nil
	}
	if pruned > 0 {
		a.logger.Info("pruned archive batches",
			"pruned", pruned,
			"retention", a.retention.String(),
		)
	}
	result.Pruned = pruned
	return result, nil
}
