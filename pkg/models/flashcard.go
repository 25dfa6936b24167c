package models

import "time"

// Flashcard ratings accepted by a review
const (
	RatingHard = 1
	RatingGood = 3
	RatingEasy = 5
)

// Flashcard is a vocabulary card. Difficulty holds the last review rating.
type Flashcard struct {
	ID            string     `json:"id" db:"id" yaml:"id"`
	CourseID      string     `json:"courseId" db:"course_id" yaml:"courseId"`
	Front         string     `json:"front" db:"front" yaml:"front"`
	Back          string     `json:"back" db:"back" yaml:"back"`
	Pronunciation string     `json:"pronunciation" db:"pronunciation" yaml:"pronunciation"`
	Example       string     `json:"example" db:"example" yaml:"example"`
	Difficulty    int        `json:"difficulty" db:"difficulty" yaml:"difficulty"`
	LastReviewed  *time.Time `json:"lastReviewed" db:"last_reviewed" yaml:"-"`
}
