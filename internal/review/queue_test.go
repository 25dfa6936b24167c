package review

import (
	"testing"
	"time"

	"github.com/example/linguaflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t time.Time) *time.Time { return &t }

func TestNextOrdersByPriority(t *testing.T) {
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	cards := []models.Flashcard{
		{ID: "easy", Difficulty: models.RatingEasy, LastReviewed: at(now.AddDate(0, 0, -2))},
		{ID: "good-old", Difficulty: models.RatingGood, LastReviewed: at(now.AddDate(0, 0, -10))},
		{ID: "hard", Difficulty: models.RatingHard, LastReviewed: at(now.AddDate(0, 0, -1))},
		{ID: "new"},
		{ID: "good-recent", Difficulty: models.RatingGood, LastReviewed: at(now.AddDate(0, 0, -1))},
	}

	q := NewQueue(0)
	next := q.Next(cards)
	require.Len(t, next, 5)
	ids := make([]string, len(next))
	for i, c := range next {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"new", "hard", "good-old", "good-recent", "easy"}, ids)
	assert.Equal(t, "easy", cards[0].ID, "input untouched")

	q.MaxCards = 2
	assert.Len(t, q.Next(cards), 2)
	assert.NotNil(t, q.Next(nil))
}

func TestMastered(t *testing.T) {
	assert.True(t, Mastered(models.Flashcard{Difficulty: models.RatingEasy}))
	assert.False(t, Mastered(models.Flashcard{Difficulty: models.RatingGood}))
	assert.False(t, Mastered(models.Flashcard{}))
}
