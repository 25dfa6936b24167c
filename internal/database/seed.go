package database

import (
	"context"
	"fmt"
	"os"

	"github.com/example/linguaflow/pkg/models"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Seed is the starter catalog loaded on first run
type Seed struct {
	Courses           []models.Course           `yaml:"courses"`
	Lessons           []models.Lesson           `yaml:"lessons"`
	Quizzes           []models.Quiz             `yaml:"quizzes"`
	Flashcards        []models.Flashcard        `yaml:"flashcards"`
	SpeakingExercises []models.SpeakingExercise `yaml:"speakingExercises"`
	Learners          []models.LeaderboardEntry `yaml:"learners"`
	SpeakingLeaders   []models.SpeakingLeader   `yaml:"speakingLeaders"`
}

// LoadSeed reads a seed catalog from a YAML file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// ApplySeed writes the catalog into an empty database. A database that
// already has courses is left alone.
func ApplySeed(ctx context.Context, db *sqlx.DB, seed *Seed) error {
	courses := NewCourseRepository(db, Latency{})
	n, err := courses.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.WithField("courses", n).Debug("catalog already present, skipping seed")
		return nil
	}

	lessons := NewLessonRepository(db, Latency{})
	quizzes := NewQuizRepository(db, Latency{})
	cards := NewFlashcardRepository(db, Latency{})
	speaking := NewSpeakingRepository(db, Latency{})
	learners := NewLeaderboardRepository(db)

	for _, c := range seed.Courses {
		if err := courses.Save(ctx, c); err != nil {
			return err
		}
	}
	for _, l := range seed.Lessons {
		if err := lessons.Save(ctx, l); err != nil {
			return err
		}
	}
	for _, q := range seed.Quizzes {
		if err := quizzes.Save(ctx, q); err != nil {
			return err
		}
	}
	for _, c := range seed.Flashcards {
		if _, err := cards.Save(ctx, c); err != nil {
			return err
		}
	}
	for _, ex := range seed.SpeakingExercises {
		if err := speaking.Save(ctx, ex); err != nil {
			return err
		}
	}
	for _, l := range seed.Learners {
		if err := learners.SaveLearner(ctx, l); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"courses":    len(seed.Courses),
		"lessons":    len(seed.Lessons),
		"quizzes":    len(seed.Quizzes),
		"flashcards": len(seed.Flashcards),
		"exercises":  len(seed.SpeakingExercises),
	}).Info("catalog seeded")
	return nil
}
