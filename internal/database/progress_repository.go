package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/linguaflow/pkg/models"
	"github.com/jmoiron/sqlx"
)

// ProgressRepository persists snapshots of a learner's progress
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new repository instance
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Load returns the stored snapshot. It reports false when nothing was stored yet.
func (r *ProgressRepository) Load(ctx context.Context, userID string) (models.UserProgress, bool, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw, r.db.Rebind("SELECT data FROM progress_snapshots WHERE user_id = ?"), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProgress{}, false, nil
	}
	if err != nil {
		return models.UserProgress{}, false, fmt.Errorf("failed to load progress: %w", err)
	}

	var p models.UserProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return models.UserProgress{}, false, fmt.Errorf("failed to decode progress: %w", err)
	}
	return p, true, nil
}

// Save stores a snapshot, replacing the previous one
func (r *ProgressRepository) Save(ctx context.Context, userID string, p models.UserProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	query := r.db.Rebind(`
		INSERT INTO progress_snapshots (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
	if _, err := r.db.ExecContext(ctx, query, userID, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}
