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

// QuizRepository handles database operations for quizzes
type QuizRepository struct {
	db      *sqlx.DB
	latency Latency
}

// NewQuizRepository creates a new repository instance
func NewQuizRepository(db *sqlx.DB, latency Latency) *QuizRepository {
	return &QuizRepository{db: db, latency: latency}
}

// GetAll returns all quizzes
func (r *QuizRepository) GetAll(ctx context.Context) ([]models.Quiz, error) {
	if err := r.latency.wait(ctx); err != nil {
		return nil, err
	}
	quizzes := []models.Quiz{}
	if err := r.db.SelectContext(ctx, &quizzes, "SELECT * FROM quizzes ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to get quizzes: %w", err)
	}
	return quizzes, nil
}

// GetByID returns a quiz by ID
func (r *QuizRepository) GetByID(ctx context.Context, id string) (models.Quiz, error) {
	return r.getOne(ctx, "id", id)
}

// GetByLessonID returns the quiz attached to a lesson
func (r *QuizRepository) GetByLessonID(ctx context.Context, lessonID string) (models.Quiz, error) {
	return r.getOne(ctx, "lesson_id", lessonID)
}

// GetByCourseID returns the quizzes of a course
func (r *QuizRepository) GetByCourseID(ctx context.Context, courseID string) ([]models.Quiz, error) {
	if err := r.latency.wait(ctx); err != nil {
		return nil, err
	}
	quizzes := []models.Quiz{}
	query := r.db.Rebind("SELECT * FROM quizzes WHERE course_id = ? ORDER BY id")
	if err := r.db.SelectContext(ctx, &quizzes, query, courseID); err != nil {
		return nil, fmt.Errorf("failed to get quizzes by course: %w", err)
	}
	return quizzes, nil
}

func (r *QuizRepository) getOne(ctx context.Context, column, value string) (models.Quiz, error) {
	if err := r.latency.wait(ctx); err != nil {
		return models.Quiz{}, err
	}
	var quiz models.Quiz
	query := r.db.Rebind("SELECT * FROM quizzes WHERE " + column + " = ? ORDER BY id LIMIT 1")
	err := r.db.GetContext(ctx, &quiz, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Quiz{}, apperrors.NotFound("quiz", value)
	}
	if err != nil {
		return models.Quiz{}, fmt.Errorf("failed to get quiz by %s: %w", column, err)
	}
	return quiz, nil
}

// Save inserts or replaces a quiz
func (r *QuizRepository) Save(ctx context.Context, q models.Quiz) error {
	query := r.db.Rebind(`
		INSERT INTO quizzes (id, lesson_id, course_id, title, passing_score, xp_reward, questions)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			lesson_id = excluded.lesson_id,
			course_id = excluded.course_id,
			title = excluded.title,
			passing_score = excluded.passing_score,
			xp_reward = excluded.xp_reward,
			questions = excluded.questions`)
	_, err := r.db.ExecContext(ctx, query,
		q.ID, q.LessonID, q.CourseID, q.Title, q.PassingScore, q.XPReward, q.Questions)
	if err != nil {
		return fmt.Errorf("failed to save quiz %s: %w", q.ID, err)
	}
	return nil
}
