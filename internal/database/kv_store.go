package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// KVStore keeps JSON blobs under named keys
type KVStore struct {
	db *sqlx.DB
}

// NewKVStore creates a new key-value store on top of the database
func NewKVStore(db *sqlx.DB) *KVStore {
	return &KVStore{db: db}
}

// Get decodes the value stored under key into dest. It reports false when
// the key is absent, leaving dest untouched.
func (s *KVStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, s.db.Rebind("SELECT value FROM kv_store WHERE key = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("failed to decode key %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key as JSON
func (s *KVStore) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode key %s: %w", key, err)
	}
	query := s.db.Rebind(`
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, key, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM kv_store WHERE key = ?"), key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}
