package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

func ans(i int) *int { return &i }

func fiveQuestionQuiz() models.Quiz {
	q := models.Quiz{ID: "quiz-1", PassingScore: 70, XPReward: 50}
	for i := 0; i < 5; i++ {
		q.Questions = append(q.Questions, models.Question{
			ID:            string(rune('a' + i)),
			Options:       []string{"w", "x", "y", "z"},
			CorrectAnswer: i % 4,
			Explanation:   "because",
		})
	}
	return q
}

func TestSubmitQuizPassing(t *testing.T) {
	e := NewEngine(func() time.Time { return fixedNow })
	quiz := fiveQuestionQuiz()

	res, err := e.SubmitQuiz(quiz, []*int{ans(0), ans(1), ans(2), ans(3), ans(1)})
	require.NoError(t, err)

	assert.Equal(t, 4, res.CorrectAnswers)
	assert.Equal(t, 5, res.TotalQuestions)
	assert.Equal(t, 80, res.Score)
	assert.True(t, res.Passed)
	assert.Equal(t, 50, res.XPEarned)
	assert.Equal(t, fixedNow, res.CompletedAt)
	require.Len(t, res.Results, 5)
	assert.False(t, res.Results[4].IsCorrect)
	assert.Equal(t, 0, res.Results[4].CorrectAnswer)
	assert.Equal(t, "because", res.Results[4].Explanation)
}

func TestSubmitQuizFailingHalvesXP(t *testing.T) {
	e := NewEngine(nil)
	quiz := fiveQuestionQuiz()

	res, err := e.SubmitQuiz(quiz, []*int{ans(0), ans(1), ans(2), nil, nil})
	require.NoError(t, err)

	assert.Equal(t, 60, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, 25, res.XPEarned)
	assert.Nil(t, res.Results[3].UserAnswer)
}

func TestSubmitQuizOddRewardFloors(t *testing.T) {
	quiz := fiveQuestionQuiz()
	quiz.XPReward = 45

	res, err := NewEngine(nil).SubmitQuiz(quiz, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 22, res.XPEarned)
}

func TestSubmitQuizMissingAndExtraAnswers(t *testing.T) {
	quiz := fiveQuestionQuiz()

	res, err := NewEngine(nil).SubmitQuiz(quiz, []*int{ans(0)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CorrectAnswers)
	assert.Equal(t, 20, res.Score)

	extra := []*int{ans(0), ans(1), ans(2), ans(3), ans(0), ans(0), ans(0)}
	res, err = NewEngine(nil).SubmitQuiz(quiz, extra)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
}

func TestSubmitQuizDoesNotAliasAnswers(t *testing.T) {
	quiz := fiveQuestionQuiz()
	a := ans(0)

	res, err := NewEngine(nil).SubmitQuiz(quiz, []*int{a})
	require.NoError(t, err)
	*a = 3
	assert.Equal(t, 0, *res.Results[0].UserAnswer)
}

func TestSubmitQuizWithoutQuestions(t *testing.T) {
	_, err := NewEngine(nil).SubmitQuiz(models.Quiz{ID: "empty"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestSubmitQuizScoreProperty(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	e := NewEngine(nil)

	for n := 1; n <= 12; n++ {
		quiz := models.Quiz{ID: "p", PassingScore: 50, XPReward: 31}
		for i := 0; i < n; i++ {
			quiz.Questions = append(quiz.Questions, models.Question{Options: []string{"a", "b", "c"}, CorrectAnswer: rnd.Intn(3)})
		}
		for trial := 0; trial < 20; trial++ {
			answers := make([]*int, n)
			for i := range answers {
				if rnd.Intn(4) > 0 {
					answers[i] = ans(rnd.Intn(3))
				}
			}
			res, err := e.SubmitQuiz(quiz, answers)
			require.NoError(t, err)

			assert.GreaterOrEqual(t, res.Score, 0)
			assert.LessOrEqual(t, res.Score, 100)
			assert.Equal(t, Percent(res.CorrectAnswers, n), res.Score)
			assert.Equal(t, res.Score >= quiz.PassingScore, res.Passed)
			if res.Passed {
				assert.Equal(t, 31, res.XPEarned)
			} else {
				assert.Equal(t, 15, res.XPEarned)
			}
		}
	}
}

func TestPercentRounding(t *testing.T) {
	assert.Equal(t, 13, Percent(1, 8))  // 12.5
	assert.Equal(t, 33, Percent(1, 3))  // 33.3
	assert.Equal(t, 67, Percent(2, 3))  // 66.7
	assert.Equal(t, 100, Percent(7, 7)) // exact
	assert.Equal(t, 0, Percent(0, 0))
}

func TestRateFlashcard(t *testing.T) {
	e := NewEngine(func() time.Time { return fixedNow })
	card := models.Flashcard{ID: "fc-1", Difficulty: 3}

	easy, err := e.RateFlashcard(card, models.RatingEasy)
	require.NoError(t, err)
	assert.Equal(t, 5, easy.XPGain)
	assert.Equal(t, 5, easy.Card.Difficulty)
	require.NotNil(t, easy.Card.LastReviewed)
	assert.Equal(t, fixedNow, *easy.Card.LastReviewed)

	good, err := e.RateFlashcard(card, models.RatingGood)
	require.NoError(t, err)
	assert.Equal(t, 5, good.XPGain)

	hard, err := e.RateFlashcard(card, models.RatingHard)
	require.NoError(t, err)
	assert.Equal(t, 2, hard.XPGain)
	assert.Equal(t, 1, hard.Card.Difficulty)

	assert.Equal(t, 3, card.Difficulty, "input card is untouched")
	assert.Nil(t, card.LastReviewed)
}

func TestRateFlashcardRejectsUnknownRatings(t *testing.T) {
	e := NewEngine(nil)
	card := models.Flashcard{ID: "fc-1", Difficulty: 3}

	for _, r := range []int{-1, 0, 2, 4, 6, 100} {
		out, err := e.RateFlashcard(card, r)
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument, "rating %d", r)
		assert.Equal(t, ReviewOutcome{}, out)
	}
	assert.Equal(t, 3, card.Difficulty)
	assert.Nil(t, card.LastReviewed)
}

func TestShuffleOptionsTracksCorrectAnswer(t *testing.T) {
	q := models.Question{Options: []string{"agua", "leche", "vino", "zumo"}, CorrectAnswer: 2}
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 10; i++ {
		shuffled, order := ShuffleOptions(q, rnd)
		assert.ElementsMatch(t, q.Options, shuffled.Options)
		assert.Equal(t, "vino", shuffled.Options[shuffled.CorrectAnswer])
		assert.Equal(t, 2, order[shuffled.CorrectAnswer])
	}
	assert.Equal(t, []string{"agua", "leche", "vino", "zumo"}, q.Options)
}
