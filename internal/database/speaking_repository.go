package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/pkg/models"
	"github.com/jmoiron/sqlx"
)

// SpeakingRepository handles database operations for speaking exercises
type SpeakingRepository struct {
	db      *sqlx.DB
	latency Latency
}

// NewSpeakingRepository creates a new repository instance
func NewSpeakingRepository(db *sqlx.DB, latency Latency) *SpeakingRepository {
	return &SpeakingRepository{db: db, latency: latency}
}

// GetAll returns exercises, optionally filtered by difficulty and language
func (r *SpeakingRepository) GetAll(ctx context.Context, difficulty, language string) ([]models.SpeakingExercise, error) {
	if err := r.latency.wait(ctx); err != nil {
		return nil, err
	}

	query := "SELECT * FROM speaking_exercises WHERE 1 = 1"
	var args []interface{}
	if difficulty != "" {
		query += " AND difficulty = ?"
		args = append(args, difficulty)
	}
	if language != "" {
		query += " AND language = ?"
		args = append(args, language)
	}
	query += " ORDER BY id"

	exercises := []models.SpeakingExercise{}
	if err := r.db.SelectContext(ctx, &exercises, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get speaking exercises: %w", err)
	}
	return exercises, nil
}

// GetByID returns an exercise by ID
func (r *SpeakingRepository) GetByID(ctx context.Context, id string) (models.SpeakingExercise, error) {
	if err := r.latency.wait(ctx); err != nil {
		return models.SpeakingExercise{}, err
	}
	var ex models.SpeakingExercise
	err := r.db.GetContext(ctx, &ex, r.db.Rebind("SELECT * FROM speaking_exercises WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SpeakingExercise{}, apperrors.NotFound("speaking exercise", id)
	}
	if err != nil {
		return models.SpeakingExercise{}, fmt.Errorf("failed to get speaking exercise by ID: %w", err)
	}
	return ex, nil
}

// Save inserts or replaces an exercise
func (r *SpeakingRepository) Save(ctx context.Context, ex models.SpeakingExercise) error {
	query := r.db.Rebind(`
		INSERT INTO speaking_exercises (id, title, description, text, difficulty, duration, type, language, native_audio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			text = excluded.text,
			difficulty = excluded.difficulty,
			duration = excluded.duration,
			type = excluded.type,
			language = excluded.language,
			native_audio = excluded.native_audio`)
	_, err := r.db.ExecContext(ctx, query,
		ex.ID, ex.Title, ex.Description, ex.Text, ex.Difficulty, ex.Duration, ex.Type, ex.Language, ex.NativeAudio)
	if err != nil {
		return fmt.Errorf("failed to save speaking exercise %s: %w", ex.ID, err)
	}
	return nil
}
