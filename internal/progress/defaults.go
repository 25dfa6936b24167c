package progress

import (
	"time"

	"github.com/example/linguaflow/pkg/models"
)

// Catalog returns every achievement a learner can earn, all locked
func Catalog() []models.Achievement {
	return []models.Achievement{
		{ID: "first-lesson", Name: "First Steps", Description: "Complete your first lesson"},
		{ID: "streak-7", Name: "Week Warrior", Description: "7-day learning streak"},
		{ID: "xp-1000", Name: "XP Master", Description: "Earn 1000 XP"},
		{ID: "pronunciation-80", Name: "Clear Speaker", Description: "Score 80 or more in a speaking exercise"},
		{ID: "perfect-quiz", Name: "Perfectionist", Description: "Score 100% on a quiz"},
		{ID: "speaking-10", Name: "Chatterbox", Description: "Complete 10 speaking practices"},
		{ID: "xp-5000", Name: "XP Legend", Description: "Earn 5000 XP"},
	}
}

// Initial returns the progress a new learner profile starts with. now
// anchors the seeded streak so that practising today continues it.
func Initial(now time.Time, settings models.ReminderSettings) models.UserProgress {
	achievements := Catalog()
	for i := range achievements {
		switch achievements[i].ID {
		case "first-lesson", "streak-7", "xp-1000":
			achievements[i].Unlocked = true
		}
	}

	return models.UserProgress{
		TotalXP:       1250,
		CurrentStreak: 7,
		CoursesProgress: map[string]models.CourseProgress{
			"spanish-basics":      {CompletedLessons: 5, TotalLessons: 12, XP: 450},
			"french-intermediate": {CompletedLessons: 3, TotalLessons: 10, XP: 300},
			"german-beginner":     {CompletedLessons: 8, TotalLessons: 15, XP: 500},
		},
		Achievements: achievements,
		SpeakingProgress: models.SpeakingProgress{
			BestScores: map[string]int{},
		},
		DailyPractice: models.DailyPractice{
			LastPracticeDate:      now.AddDate(0, 0, -1).Format(models.DateLayout),
			PreferredReminderTime: settings.Time,
			EnabledActivities:     append([]models.Activity(nil), settings.Activities...),
		},
		UpdatedAt: now,
	}
}

// MergeCatalog adds catalog achievements missing from p, keeping the
// unlocked state of the ones already present
func MergeCatalog(p models.UserProgress) models.UserProgress {
	have := make(map[string]bool, len(p.Achievements))
	for _, a := range p.Achievements {
		have[a.ID] = true
	}
	for _, a := range Catalog() {
		if !have[a.ID] {
			p.Achievements = append(p.Achievements, a)
		}
	}
	return p
}
