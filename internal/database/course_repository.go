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

// CourseRepository handles database operations for courses
type CourseRepository struct {
	db      *sqlx.DB
	latency Latency
}

// NewCourseRepository creates a new repository instance
func NewCourseRepository(db *sqlx.DB, latency Latency) *CourseRepository {
	return &CourseRepository{db: db, latency: latency}
}

// GetAll returns all courses
func (r *CourseRepository) GetAll(ctx context.Context) ([]models.Course, error) {
	if err := r.latency.wait(ctx); err != nil {
		return nil, err
	}
	courses := []models.Course{}
	if err := r.db.SelectContext(ctx, &courses, "SELECT * FROM courses ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to get courses: %w", err)
	}
	return courses, nil
}

// GetByID returns a course by ID
func (r *CourseRepository) GetByID(ctx context.Context, id string) (models.Course, error) {
	if err := r.latency.wait(ctx); err != nil {
		return models.Course{}, err
	}
	var course models.Course
	err := r.db.GetContext(ctx, &course, r.db.Rebind("SELECT * FROM courses WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Course{}, apperrors.NotFound("course", id)
	}
	if err != nil {
		return models.Course{}, fmt.Errorf("failed to get course by ID: %w", err)
	}
	return course, nil
}

// Save inserts or replaces a course
func (r *CourseRepository) Save(ctx context.Context, c models.Course) error {
	query := r.db.Rebind(`
		INSERT INTO courses (id, title, language, level, description, instructor, thumbnail, total_lessons)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			language = excluded.language,
			level = excluded.level,
			description = excluded.description,
			instructor = excluded.instructor,
			thumbnail = excluded.thumbnail,
			total_lessons = excluded.total_lessons`)
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Title, c.Language, c.Level, c.Description, c.Instructor, c.Thumbnail, c.TotalLessons)
	if err != nil {
		return fmt.Errorf("failed to save course %s: %w", c.ID, err)
	}
	return nil
}

// Count returns the number of courses
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM courses"); err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return n, nil
}
