package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Question is a multiple choice question of a quiz
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	Question      string   `json:"question" yaml:"question"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer int      `json:"correctAnswer" yaml:"correctAnswer"` // index into Options
	Explanation   string   `json:"explanation" yaml:"explanation"`
}

// QuestionList is stored as a JSON column
type QuestionList []Question

// Value implements driver.Valuer
func (q QuestionList) Value() (driver.Value, error) {
	if q == nil {
		return "[]", nil
	}
	data, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (q *QuestionList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*q = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type for questions: %T", src)
	}
	return json.Unmarshal(data, q)
}

// Quiz belongs to a lesson and awards XP on submission
type Quiz struct {
	ID           string       `json:"id" db:"id" yaml:"id"`
	LessonID     string       `json:"lessonId" db:"lesson_id" yaml:"lessonId"`
	CourseID     string       `json:"courseId" db:"course_id" yaml:"courseId"`
	Title        string       `json:"title" db:"title" yaml:"title"`
	PassingScore int          `json:"passingScore" db:"passing_score" yaml:"passingScore"`
	XPReward     int          `json:"xpReward" db:"xp_reward" yaml:"xpReward"`
	Questions    QuestionList `json:"questions" db:"questions" yaml:"questions"`
}

// QuestionResult is the outcome of a single answered question
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	UserAnswer    *int   `json:"userAnswer"`
	CorrectAnswer int    `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Explanation   string `json:"explanation"`
}

// QuizResult is produced for every quiz submission
type QuizResult struct {
	QuizID         string           `json:"quizId"`
	Score          int              `json:"score"`
	Passed         bool             `json:"passed"`
	CorrectAnswers int              `json:"correctAnswers"`
	TotalQuestions int              `json:"totalQuestions"`
	XPEarned       int              `json:"xpEarned"`
	Results        []QuestionResult `json:"results"`
	CompletedAt    time.Time        `json:"completedAt"`
}
