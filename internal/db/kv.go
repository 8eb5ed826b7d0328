package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"weatherscape/internal/types"
)

// KV is the key-value contract the typed repositories build on:
// get(key) -> value|absent, put(key, value, ttl?). After expiry, Get behaves
// as absent. A ttl of zero means the entry never expires.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Store implements KV on the kv_entries Postgres table.
type Store struct {
	db  DBTX
	now func() time.Time
}

// NewStore creates a Store backed by the given database connection
// (pool or transaction).
func NewStore(db DBTX) *Store {
	return &Store{db: db, now: time.Now}
}

// Compile-time assertion that Store implements KV.
var _ KV = (*Store)(nil)

// Get returns the value for key, or ok=false if the key is absent or its
// TTL has elapsed. Expired rows are treated as absent without being deleted;
// the next Put overwrites them in place.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const q = `SELECT value FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`

	var value []byte
	err := s.db.QueryRow(ctx, q, key, s.now().UTC()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, types.NewAppError(types.ErrCodeInternalKV, "kv get failed", err)
	}
	return value, true, nil
}

// Put stores value under key, overwriting any previous value wholesale.
// A positive ttl sets an absolute expiry; zero stores the entry permanently.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const q = `INSERT INTO kv_entries (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = EXCLUDED.updated_at`

	now := s.now().UTC()
	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	if _, err := s.db.Exec(ctx, q, key, value, expiresAt, now); err != nil {
		return types.NewAppError(types.ErrCodeInternalKV, "kv put failed", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM kv_entries WHERE key = $1`
	if _, err := s.db.Exec(ctx, q, key); err != nil {
		return types.NewAppError(types.ErrCodeInternalKV, "kv delete failed", err)
	}
	return nil
}
