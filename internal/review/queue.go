// Package review orders flashcards for a review session. Cards carry no
// due date; the order only uses the last rating and review time.
package review

import (
	"sort"

	"github.com/example/linguaflow/pkg/models"
)

// Queue picks the cards of a review session
type Queue struct {
	// MaxCards limits a session, 0 means no limit
	MaxCards int
}

// NewQueue creates a queue
func NewQueue(maxCards int) *Queue {
	return &Queue{MaxCards: maxCards}
}

// Next returns the cards by priority: never reviewed first, then harder
// ratings, then the least recently reviewed. The input is not modified.
func (q *Queue) Next(cards []models.Flashcard) []models.Flashcard {
	out := append([]models.Flashcard(nil), cards...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		newA, newB := a.LastReviewed == nil, b.LastReviewed == nil
		if newA != newB {
			return newA
		}
		if a.Difficulty != b.Difficulty {
			return a.Difficulty < b.Difficulty
		}
		if newA {
			return false
		}
		return a.LastReviewed.Before(*b.LastReviewed)
	})

	if q.MaxCards > 0 && len(out) > q.MaxCards {
		return out[:q.MaxCards]
	}
	if out == nil {
		out = []models.Flashcard{}
	}
	return out
}

// Mastered reports whether the card was last rated easy
func Mastered(card models.Flashcard) bool {
	return card.Difficulty == models.RatingEasy
}
