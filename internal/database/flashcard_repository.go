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

// FlashcardRepository handles database operations for flashcards
type FlashcardRepository struct {
	db      *sqlx.DB
	latency Latency
}

// NewFlashcardRepository creates a new repository instance
func NewFlashcardRepository(db *sqlx.DB, latency Latency) *FlashcardRepository {
	return &FlashcardRepository{db: db, latency: latency}
}

// GetAll returns all flashcards
func (r *FlashcardRepository) GetAll(ctx context.Context) ([]models.Flashcard, error) {
	if err := r.latency.wait(ctx); err != nil {
		return nil, err
	}
	cards := []models.Flashcard{}
	if err := r.db.SelectContext(ctx, &cards, "SELECT * FROM flashcards ORDER BY course_id, id"); err != nil {
		return nil, fmt.Errorf("failed to get flashcards: %w", err)
	}
	return cards, nil
}

// GetByID returns a flashcard by ID
func (r *FlashcardRepository) GetByID(ctx context.Context, id string) (models.Flashcard, error) {
	if err := r.latency.wait(ctx); err != nil {
		return models.Flashcard{}, err
	}
	var card models.Flashcard
	err := r.db.GetContext(ctx, &card, r.db.Rebind("SELECT * FROM flashcards WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Flashcard{}, apperrors.NotFound("flashcard", id)
	}
	if err != nil {
		return models.Flashcard{}, fmt.Errorf("failed to get flashcard by ID: %w", err)
	}
	return card, nil
}

// GetByCourseID returns the flashcards of a course
func (r *FlashcardRepository) GetByCourseID(ctx context.Context, courseID string) ([]models.Flashcard, error) {
	if err := r.latency.wait(ctx); err != nil {
		return nil, err
	}
	cards := []models.Flashcard{}
	query := r.db.Rebind("SELECT * FROM flashcards WHERE course_id = ? ORDER BY id")
	if err := r.db.SelectContext(ctx, &cards, query, courseID); err != nil {
		return nil, fmt.Errorf("failed to get flashcards by course: %w", err)
	}
	return cards, nil
}

// Save inserts or replaces a flashcard and reports whether it already existed
func (r *FlashcardRepository) Save(ctx context.Context, c models.Flashcard) (bool, error) {
	var existing int
	if err := r.db.GetContext(ctx, &existing, r.db.Rebind("SELECT COUNT(*) FROM flashcards WHERE id = ?"), c.ID); err != nil {
		return false, fmt.Errorf("failed to check flashcard %s: %w", c.ID, err)
	}

	query := r.db.Rebind(`
		INSERT INTO flashcards (id, course_id, front, back, pronunciation, example, difficulty, last_reviewed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			course_id = excluded.course_id,
			front = excluded.front,
			back = excluded.back,
			pronunciation = excluded.pronunciation,
			example = excluded.example`)
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.CourseID, c.Front, c.Back, c.Pronunciation, c.Example, c.Difficulty, c.LastReviewed)
	if err != nil {
		return false, fmt.Errorf("failed to save flashcard %s: %w", c.ID, err)
	}
	return existing > 0, nil
}

// UpdateReview stores the outcome of a review
func (r *FlashcardRepository) UpdateReview(ctx context.Context, c models.Flashcard) error {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind("UPDATE flashcards SET difficulty = ?, last_reviewed = ? WHERE id = ?"),
		c.Difficulty, c.LastReviewed, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update flashcard %s: %w", c.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NotFound("flashcard", c.ID)
	}
	return nil
}
