// Package scoring grades quiz submissions and flashcard reviews.
// Everything here is pure: callers apply the resulting XP to the progress store.
package scoring

import (
	"math/rand"
	"time"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/pkg/models"
)

// XP granted for a flashcard review
const (
	ReviewXPGood = 5
	ReviewXPHard = 2
)

// Engine grades quizzes and flashcard reviews
type Engine struct {
	now func() time.Time
}

// NewEngine creates an engine that stamps results with the given clock
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// SubmitQuiz scores answers against the quiz. answers[i] is the selected
// option of question i; a nil or missing entry counts as incorrect.
func (e *Engine) SubmitQuiz(quiz models.Quiz, answers []*int) (models.QuizResult, error) {
	total := len(quiz.Questions)
	if total == 0 {
		return models.QuizResult{}, apperrors.Invalid("quiz %s has no questions", quiz.ID)
	}

	result := models.QuizResult{
		QuizID:         quiz.ID,
		TotalQuestions: total,
		Results:        make([]models.QuestionResult, 0, total),
		CompletedAt:    e.now(),
	}

	for i, q := range quiz.Questions {
		var answer *int
		if i < len(answers) && answers[i] != nil {
			v := *answers[i]
			answer = &v
		}

		correct := answer != nil && *answer == q.CorrectAnswer
		if correct {
			result.CorrectAnswers++
		}
		result.Results = append(result.Results, models.QuestionResult{
			QuestionID:    q.ID,
			UserAnswer:    answer,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     correct,
			Explanation:   q.Explanation,
		})
	}

	result.Score = Percent(result.CorrectAnswers, total)
	result.Passed = result.Score >= quiz.PassingScore
	if result.Passed {
		result.XPEarned = quiz.XPReward
	} else {
		result.XPEarned = quiz.XPReward / 2
	}
	return result, nil
}

// Percent returns round(correct / total * 100) with halves rounded up,
// computed in integers so no float error can flip a boundary.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

// ReviewOutcome is the result of rating a flashcard
type ReviewOutcome struct {
	XPGain int              `json:"xpGain"`
	Card   models.Flashcard `json:"card"`
}

// ValidRating reports whether rating is one of hard, good or easy
func ValidRating(rating int) bool {
	return rating == models.RatingHard || rating == models.RatingGood || rating == models.RatingEasy
}

// RateFlashcard applies a review rating. The input card is never modified;
// the updated copy is returned in the outcome.
func (e *Engine) RateFlashcard(card models.Flashcard, rating int) (ReviewOutcome, error) {
	if !ValidRating(rating) {
		return ReviewOutcome{}, apperrors.Invalid("rating must be 1, 3 or 5, got %d", rating)
	}

	now := e.now()
	updated := card
	updated.Difficulty = rating
	updated.LastReviewed = &now

	xp := ReviewXPHard
	if rating >= models.RatingGood {
		xp = ReviewXPGood
	}
	return ReviewOutcome{XPGain: xp, Card: updated}, nil
}

// ShuffleOptions returns a copy of q with its options in random order and
// the permutation used: shuffled option i is original option order[i].
func ShuffleOptions(q models.Question, rnd *rand.Rand) (models.Question, []int) {
	order := rnd.Perm(len(q.Options))

	shuffled := q
	shuffled.Options = make([]string, len(q.Options))
	for i, orig := range order {
		shuffled.Options[i] = q.Options[orig]
		if orig == q.CorrectAnswer {
			shuffled.CorrectAnswer = i
		}
	}
	return shuffled, order
}
