package models

import "time"

// Activity tags a kind of practice
type Activity string

const (
	ActivityPractice   Activity = "practice"
	ActivityLessons    Activity = "lessons"
	ActivityFlashcards Activity = "flashcards"
	ActivitySpeaking   Activity = "speaking"
	ActivityQuizzes    Activity = "quizzes"
)

// ReminderSettings controls the daily reminder cycle
type ReminderSettings struct {
	Enabled         bool       `json:"enabled"`
	Time            string     `json:"time" validate:"required,datetime=15:04"`
	Activities      []Activity `json:"activities" validate:"dive,oneof=practice lessons flashcards speaking quizzes"`
	WeekdaysOnly    bool       `json:"weekdaysOnly"`
	StreakReminders bool       `json:"streakReminders"`
}

// DefaultReminderSettings returns the settings used before the learner changes anything
func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{
		Enabled:         true,
		Time:            "19:00",
		Activities:      []Activity{ActivityLessons, ActivityFlashcards, ActivitySpeaking},
		WeekdaysOnly:    false,
		StreakReminders: true,
	}
}

// Reminder history entry types
const (
	ReminderTypeDaily  = "daily-practice"
	ReminderTypeStreak = "streak-reminder"
	ReminderTypeTest   = "test"
)

// ReminderHistoryEntry records one reminder decision
type ReminderHistoryEntry struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	Type       string    `json:"type"`
	Activity   Activity  `json:"activity"`
	Sent       bool      `json:"sent"`
	Method     string    `json:"method,omitempty"`
	Suppressed bool      `json:"suppressed"`
	Reason     string    `json:"reason,omitempty"`
}
