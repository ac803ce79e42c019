package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"zonewatch/internal/types"
)

// KVRepo is the Postgres implementation of types.BlobStore: one key-value
// table with last-write-wins upsert semantics and no transactions. The state
// layer treats every error from here as recoverable, so failures carry the
// persistence failure code and are logged upstream rather than propagated.
type KVRepo struct {
	db DBTX
}

// NewKVRepo creates a KVRepo backed by the given connection.
func NewKVRepo(db DBTX) *KVRepo {
	return &KVRepo{db: db}
}

var _ types.BlobStore = (*KVRepo)(nil)

const kvGetSQL = `SELECT value FROM kv_store WHERE key = $1`

// Get returns the value stored under key. The boolean is false when the key
// has never been written or was removed; absence is not an error.
func (r *KVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(ctx, kvGetSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, types.NewAppError(types.ErrCodePersistenceFailure, "failed to read key", err)
	}
	return value, true, nil
}

const kvSetSQL = `
INSERT INTO kv_store (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

// Set stores value under key, replacing any previous value.
func (r *KVRepo) Set(ctx context.Context, key string, value string) error {
	_, err := r.db.Exec(ctx, kvSetSQL, key, value)
	if err != nil {
		return types.NewAppError(types.ErrCodePersistenceFailure, "failed to write key", err)
	}
	return nil
}

const kvRemoveSQL = `DELETE FROM kv_store WHERE key = $1`

// Remove deletes the value stored under key. Removing an absent key is a
// no-op, not an error.
func (r *KVRepo) Remove(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, kvRemoveSQL, key)
	if err != nil {
		return types.NewAppError(types.ErrCodePersistenceFailure, "failed to remove key", err)
	}
	return nil
}
