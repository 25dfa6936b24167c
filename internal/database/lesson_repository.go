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

// LessonRepository handles database operations for lessons
type LessonRepository struct {
	db      *sqlx.DB
	latency Latency
}

// NewLessonRepository creates a new repository instance
func NewLessonRepository(db *sqlx.DB, latency Latency) *LessonRepository {
	return &LessonRepository{db: db, latency: latency}
}

// GetAll returns all lessons
func (r *LessonRepository) GetAll(ctx context.Context) ([]models.Lesson, error) {
	if err := r.latency.wait(ctx); err != nil {
		return nil, err
	}
	lessons := []models.Lesson{}
	if err := r.db.SelectContext(ctx, &lessons, "SELECT * FROM lessons ORDER BY course_id, position"); err != nil {
		return nil, fmt.Errorf("failed to get lessons: %w", err)
	}
	return lessons, nil
}

// GetByID returns a lesson by ID
func (r *LessonRepository) GetByID(ctx context.Context, id string) (models.Lesson, error) {
	if err := r.latency.wait(ctx); err != nil {
		return models.Lesson{}, err
	}
	var lesson models.Lesson
	err := r.db.GetContext(ctx, &lesson, r.db.Rebind("SELECT * FROM lessons WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lesson{}, apperrors.NotFound("lesson", id)
	}
	if err != nil {
		return models.Lesson{}, fmt.Errorf("failed to get lesson by ID: %w", err)
	}
	return lesson, nil
}

// GetByCourseID returns the lessons of a course in order
func (r *LessonRepository) GetByCourseID(ctx context.Context, courseID string) ([]models.Lesson, error) {
	if err := r.latency.wait(ctx); err != nil {
		return nil, err
	}
	lessons := []models.Lesson{}
	query := r.db.Rebind("SELECT * FROM lessons WHERE course_id = ? ORDER BY position")
	if err := r.db.SelectContext(ctx, &lessons, query, courseID); err != nil {
		return nil, fmt.Errorf("failed to get lessons by course: %w", err)
	}
	return lessons, nil
}

// Save inserts or replaces a lesson
func (r *LessonRepository) Save(ctx context.Context, l models.Lesson) error {
	query := r.db.Rebind(`
		INSERT INTO lessons (id, course_id, title, description, video_url, duration, position, size_bytes, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			course_id = excluded.course_id,
			title = excluded.title,
			description = excluded.description,
			video_url = excluded.video_url,
			duration = excluded.duration,
			position = excluded.position,
			size_bytes = excluded.size_bytes,
			completed = excluded.completed`)
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.CourseID, l.Title, l.Description, l.VideoURL, l.Duration, l.Position, l.SizeBytes, l.Completed)
	if err != nil {
		return fmt.Errorf("failed to save lesson %s: %w", l.ID, err)
	}
	return nil
}

// MarkComplete flags a lesson completed. It reports false when the lesson
// was already completed.
func (r *LessonRepository) MarkComplete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind("UPDATE lessons SET completed = ? WHERE id = ? AND completed = ?"), true, id, false)
	if err != nil {
		return false, fmt.Errorf("failed to complete lesson %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to complete lesson %s: %w", id, err)
	}
	if n > 0 {
		return true, nil
	}

	// Nothing changed: either already completed or unknown
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// CountCompleted returns how many lessons of a course are completed
func (r *LessonRepository) CountCompleted(ctx context.Context, courseID string) (int, error) {
	var n int
	query := r.db.Rebind("SELECT COUNT(*) FROM lessons WHERE course_id = ? AND completed = ?")
	if err := r.db.GetContext(ctx, &n, query, courseID, true); err != nil {
		return 0, fmt.Errorf("failed to count completed lessons: %w", err)
	}
	return n, nil
}
