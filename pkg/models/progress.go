package models

import "time"

// DateLayout is the layout of calendar dates stored in progress records
const DateLayout = "2006-01-02"

// CourseProgress tracks a learner's advance through one course
type CourseProgress struct {
	CompletedLessons int `json:"completedLessons"`
	TotalLessons     int `json:"totalLessons"`
	XP               int `json:"xp"`
}

// Achievement is a milestone that is unlocked at most once
type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
}

// SpeakingProgress aggregates pronunciation practice
type SpeakingProgress struct {
	TotalPractices     int            `json:"totalPractices"`
	AverageScore       float64        `json:"averageScore"`
	CompletedExercises int            `json:"completedExercises"`
	StreakDays         int            `json:"streakDays"`
	BestScores         map[string]int `json:"bestScores"`
	LastPracticeDate   string         `json:"lastPracticeDate,omitempty"`
}

// DailyPractice is the record consulted by the reminder cycle
type DailyPractice struct {
	LastPracticeDate      string     `json:"lastPracticeDate,omitempty"`
	TodayCompleted        bool       `json:"todayCompleted"`
	LastActivity          Activity   `json:"lastActivity,omitempty"`
	PreferredReminderTime string     `json:"preferredReminderTime"`
	EnabledActivities     []Activity `json:"enabledActivities"`
	PendingReminders      int        `json:"pendingReminders"`
}

// UserProgress is the learner's whole progress aggregate
type UserProgress struct {
	TotalXP          int                       `json:"totalXP"`
	CurrentStreak    int                       `json:"currentStreak"`
	CoursesProgress  map[string]CourseProgress `json:"coursesProgress"`
	Achievements     []Achievement             `json:"achievements"`
	SpeakingProgress SpeakingProgress          `json:"speakingProgress"`
	DailyPractice    DailyPractice             `json:"dailyPractice"`
	UpdatedAt        time.Time                 `json:"updatedAt"`
}

// Clone returns a deep copy that shares no maps or slices with p
func (p UserProgress) Clone() UserProgress {
	c := p

	c.CoursesProgress = make(map[string]CourseProgress, len(p.CoursesProgress))
	for id, cp := range p.CoursesProgress {
		c.CoursesProgress[id] = cp
	}

	c.Achievements = make([]Achievement, len(p.Achievements))
	for i, a := range p.Achievements {
		if a.UnlockedAt != nil {
			at := *a.UnlockedAt
			a.UnlockedAt = &at
		}
		c.Achievements[i] = a
	}

	c.SpeakingProgress.BestScores = make(map[string]int, len(p.SpeakingProgress.BestScores))
	for id, s := range p.SpeakingProgress.BestScores {
		c.SpeakingProgress.BestScores[id] = s
	}

	c.DailyPractice.EnabledActivities = append([]Activity(nil), p.DailyPractice.EnabledActivities...)
	return c
}

// Achievement returns the achievement with the given id
func (p UserProgress) Achievement(id string) (Achievement, bool) {
	for _, a := range p.Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// XPEvent is one XP award, kept for weekly rankings
type XPEvent struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Amount    int       `json:"amount" db:"amount"`
	Source    string    `json:"source" db:"source"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// LeaderboardEntry is one row of the weekly XP ranking
type LeaderboardEntry struct {
	Rank          int    `json:"rank" db:"-"`
	UserID        string `json:"id" db:"user_id" yaml:"id"`
	Name          string `json:"name" db:"name" yaml:"name"`
	Avatar        string `json:"avatar" db:"avatar" yaml:"avatar"`
	Country       string `json:"country" db:"country" yaml:"country"`
	WeeklyXP      int    `json:"weeklyXP" db:"weekly_xp" yaml:"weeklyXP"`
	TotalXP       int    `json:"totalXP" db:"total_xp" yaml:"totalXP"`
	IsCurrentUser bool   `json:"isCurrentUser" db:"-"`
}
