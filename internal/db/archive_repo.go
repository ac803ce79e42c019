package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"zonewatch/internal/types"
)

// ArchiveBatch is one compressed snapshot of the transition event log as
// stored in the transition_archives table. Payload holds the zstd-compressed
// JSON event array; ContentHash is the hex SHA-256 of the uncompressed
// snapshot and carries the idempotency guarantee.
type ArchiveBatch struct {
	BatchID     string
	ContentHash string
	EventCount  int
	Payload     []byte
	OldestAt    time.Time
	NewestAt    time.Time
	ArchivedAt  time.Time
}

// ArchiveRepo stores transition log snapshots for the archival job.
type ArchiveRepo struct {
	db DBTX
}

// NewArchiveRepo creates an ArchiveRepo backed by the given connection.
func NewArchiveRepo(db DBTX) *ArchiveRepo {
	return &ArchiveRepo{db: db}
}

const insertArchiveSQL = `
INSERT INTO transition_archives (batch_id, content_hash, event_count, payload, oldest_at, newest_at, archived_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (content_hash) DO NOTHING`

// Insert stores a batch. Returns false without error when a batch with the
// same content hash already exists, so re-archiving an unchanged log does
// not duplicate rows.
func (r *ArchiveRepo) Insert(ctx context.Context, batch ArchiveBatch) (bool, error) {
	tag, err := r.db.Exec(ctx, insertArchiveSQL,
		batch.BatchID,
		batch.ContentHash,
		batch.EventCount,
		batch.Payload,
		batch.OldestAt,
		batch.NewestAt,
		batch.ArchivedAt,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to insert archive batch", err)
	}
	return tag.RowsAffected() == 1, nil
}

const latestHashSQL = `
SELECT content_hash FROM transition_archives ORDER BY archived_at DESC LIMIT 1`

// LatestHash returns the content hash of the most recently archived batch.
// The boolean is false when nothing has been archived yet. The archival job
// compares this against the current snapshot before compressing anything.
func (r *ArchiveRepo) LatestHash(ctx context.Context) (string, bool, error) {
	var hash string
	err := r.db.QueryRow(ctx, latestHashSQL).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, types.NewAppError(types.ErrCodeInternalDB, "failed to read latest archive hash", err)
	}
	return hash, true, nil
}

const pruneArchivesSQL = `DELETE FROM transition_archives WHERE archived_at < $1`

// PruneBefore deletes batches archived before the cutoff and returns how many
// were removed.
func (r *ArchiveRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, pruneArchivesSQL, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune archive batches", err)
	}
	return tag.RowsAffected(), nil
}
