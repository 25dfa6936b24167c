// Package practice runs the learner's practice flows. Each flow looks up the
// content, scores it, applies the progress mutations, evaluates achievements
// and notifies.
package practice

import (
	"context"
	"fmt"
	"strconv"

	"github.com/example/linguaflow/internal/achievements"
	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/internal/metrics"
	"github.com/example/linguaflow/internal/notify"
	"github.com/example/linguaflow/internal/progress"
	"github.com/example/linguaflow/internal/scoring"
	"github.com/example/linguaflow/internal/speaking"
	"github.com/example/linguaflow/pkg/models"
	log "github.com/sirupsen/logrus"
)

const (
	// DailyPracticeXP is granted on the first practice of a day
	DailyPracticeXP = 25
	// LessonXP is granted for completing a lesson
	LessonXP = 25

	perfectQuizID = "perfect-quiz"
)

// QuizSource looks up quizzes
type QuizSource interface {
	GetByID(ctx context.Context, id string) (models.Quiz, error)
}

// FlashcardSource looks up flashcards and stores reviews
type FlashcardSource interface {
	GetByID(ctx context.Context, id string) (models.Flashcard, error)
	UpdateReview(ctx context.Context, c models.Flashcard) error
}

// LessonSource looks up and completes lessons
type LessonSource interface {
	GetByID(ctx context.Context, id string) (models.Lesson, error)
	MarkComplete(ctx context.Context, id string) (bool, error)
}

// CourseSource looks up courses
type CourseSource interface {
	GetByID(ctx context.Context, id string) (models.Course, error)
}

// ExerciseSource looks up speaking exercises
type ExerciseSource interface {
	GetByID(ctx context.Context, id string) (models.SpeakingExercise, error)
}

// Notifier shows the learner what happened
type Notifier interface {
	SendStreakReminder(ctx context.Context, days int) notify.Result
	Notify(kind notify.ToastKind, message string)
}

// Reminders exposes the current reminder settings
type Reminders interface {
	Settings() models.ReminderSettings
}

// Deps are the collaborators of the service
type Deps struct {
	Quizzes    QuizSource
	Flashcards FlashcardSource
	Lessons    LessonSource
	Courses    CourseSource
	Exercises  ExerciseSource
	Store      *progress.Store
	Engine     *scoring.Engine
	Evaluator  *achievements.Evaluator
	Analyzer   *speaking.Analyzer
	Notifier   Notifier
	Reminders  Reminders
}

// Service orchestrates practice flows
type Service struct {
	Deps
}

// NewService creates a service
func NewService(d Deps) *Service {
	if d.Evaluator == nil {
		d.Evaluator = achievements.NewEvaluator(nil)
	}
	return &Service{Deps: d}
}

// PracticeResult reports the effect of logging a practice
type PracticeResult struct {
	Completed      bool                 `json:"completed"`
	FirstToday     bool                 `json:"firstToday"`
	Streak         int                  `json:"streak"`
	XPEarned       int                  `json:"xpEarned"`
	StreakReminder *notify.Result       `json:"streakReminder,omitempty"`
	Achievements   []models.Achievement `json:"achievements,omitempty"`
}

// QuizOutcome is the result of a quiz submission
type QuizOutcome struct {
	Result       models.QuizResult    `json:"result"`
	Practice     PracticeResult       `json:"practice"`
	Achievements []models.Achievement `json:"achievements"`
}

// ReviewOutcome is the result of a flashcard review
type ReviewOutcome struct {
	XPGain       int                  `json:"xpGain"`
	Card         models.Flashcard     `json:"card"`
	Practice     PracticeResult       `json:"practice"`
	Achievements []models.Achievement `json:"achievements"`
}

// LessonOutcome is the result of completing a lesson
type LessonOutcome struct {
	Lesson           models.Lesson         `json:"lesson"`
	AlreadyCompleted bool                  `json:"alreadyCompleted"`
	XPEarned         int                   `json:"xpEarned"`
	Course           models.CourseProgress `json:"course"`
	Practice         PracticeResult        `json:"practice"`
	Achievements     []models.Achievement  `json:"achievements"`
}

// SpeakingOutcome is the result of a speaking attempt
type SpeakingOutcome struct {
	Analysis     models.SpeakingAnalysis `json:"analysis"`
	Practice     PracticeResult          `json:"practice"`
	Achievements []models.Achievement    `json:"achievements"`
}

// TodayStatus describes today's practice
type TodayStatus struct {
	Completed        bool            `json:"completed"`
	Streak           int             `json:"streak"`
	LastPracticeDate string          `json:"lastPracticeDate"`
	LastActivity     models.Activity `json:"lastActivity,omitempty"`
	PendingReminders int             `json:"pendingReminders"`
}

// SubmitQuiz scores a quiz. answers[i] is the option picked for question i.
func (s *Service) SubmitQuiz(ctx context.Context, quizID string, answers []*int) (QuizOutcome, error) {
	quiz, err := s.Quizzes.GetByID(ctx, quizID)
	if err != nil {
		return QuizOutcome{}, err
	}
	result, err := s.Engine.SubmitQuiz(quiz, answers)
	if err != nil {
		return QuizOutcome{}, err
	}

	label := "failed"
	if result.Passed {
		label = "passed"
	}
	metrics.QuizSubmissions.WithLabelValues(label).Inc()

	if err := s.award(result.XPEarned, quiz.CourseID, "quiz"); err != nil {
		return QuizOutcome{}, err
	}

	var unlocked []models.Achievement
	if result.Score == 100 {
		if a, ok := s.unlock(perfectQuizID); ok {
			unlocked = append(unlocked, a)
		}
	}

	out := QuizOutcome{Result: result}
	out.Practice, err = s.markPractice(ctx, models.ActivityQuizzes)
	if err != nil {
		return QuizOutcome{}, err
	}
	out.Achievements = append(unlocked, s.evaluate()...)

	log.WithFields(log.Fields{"quiz": quizID, "score": result.Score, "passed": result.Passed}).Info("quiz submitted")
	return out, nil
}

// RateFlashcard records a hard, good or easy review of a card
func (s *Service) RateFlashcard(ctx context.Context, cardID string, rating int) (ReviewOutcome, error) {
	if !scoring.ValidRating(rating) {
		return ReviewOutcome{}, apperrors.Invalid("rating must be 1, 3 or 5, got %d", rating)
	}
	card, err := s.Flashcards.GetByID(ctx, cardID)
	if err != nil {
		return ReviewOutcome{}, err
	}
	review, err := s.Engine.RateFlashcard(card, rating)
	if err != nil {
		return ReviewOutcome{}, err
	}
	if err := s.Flashcards.UpdateReview(ctx, review.Card); err != nil {
		return ReviewOutcome{}, err
	}
	metrics.FlashcardReviews.WithLabelValues(strconv.Itoa(rating)).Inc()

	if err := s.award(review.XPGain, card.CourseID, "flashcards"); err != nil {
		return ReviewOutcome{}, err
	}

	out := ReviewOutcome{XPGain: review.XPGain, Card: review.Card}
	out.Practice, err = s.markPractice(ctx, models.ActivityFlashcards)
	if err != nil {
		return ReviewOutcome{}, err
	}
	out.Achievements = s.evaluate()
	return out, nil
}

// CompleteLesson marks a lesson completed. Completing it again changes
// nothing.
func (s *Service) CompleteLesson(ctx context.Context, lessonID string) (LessonOutcome, error) {
	lesson, err := s.Lessons.GetByID(ctx, lessonID)
	if err != nil {
		return LessonOutcome{}, err
	}
	changed, err := s.Lessons.MarkComplete(ctx, lessonID)
	if err != nil {
		return LessonOutcome{}, err
	}
	lesson.Completed = true

	snap := s.Store.Snapshot()
	if !changed {
		return LessonOutcome{
			Lesson:           lesson,
			AlreadyCompleted: true,
			Course:           snap.CoursesProgress[lesson.CourseID],
		}, nil
	}

	total := 0
	if _, tracked := snap.CoursesProgress[lesson.CourseID]; !tracked {
		course, err := s.Courses.GetByID(ctx, lesson.CourseID)
		if err != nil {
			return LessonOutcome{}, err
		}
		total = course.TotalLessons
	}
	p, err := s.Store.CompleteLesson(lesson.CourseID, total)
	if err != nil {
		return LessonOutcome{}, err
	}
	if err := s.award(LessonXP, lesson.CourseID, "lessons"); err != nil {
		return LessonOutcome{}, err
	}

	out := LessonOutcome{Lesson: lesson, XPEarned: LessonXP}
	out.Practice, err = s.markPractice(ctx, models.ActivityLessons)
	if err != nil {
		return LessonOutcome{}, err
	}
	out.Course = s.Store.Snapshot().CoursesProgress[lesson.CourseID]
	out.Achievements = s.evaluate()

	s.Notifier.Notify(notify.ToastSuccess, fmt.Sprintf("Lesson completed! +%d XP", LessonXP))
	log.WithFields(log.Fields{
		"lesson":    lessonID,
		"course":    lesson.CourseID,
		"completed": p.CoursesProgress[lesson.CourseID].CompletedLessons,
	}).Info("lesson completed")
	return out, nil
}

// AnalyzeSpeaking scores a speaking attempt and records it
func (s *Service) AnalyzeSpeaking(ctx context.Context, exerciseID string, rec speaking.Recording) (SpeakingOutcome, error) {
	if rec.SizeBytes < 0 {
		return SpeakingOutcome{}, apperrors.Invalid("recording size must not be negative")
	}
	ex, err := s.Exercises.GetByID(ctx, exerciseID)
	if err != nil {
		return SpeakingOutcome{}, err
	}

	analysis := s.Analyzer.Analyze(ctx, ex, rec)
	xp, err := s.Store.UpdateSpeakingProgress(analysis.OverallScore, ex.ID)
	if err != nil {
		return SpeakingOutcome{}, err
	}
	analysis.XPEarned = xp
	metrics.XPAwarded.WithLabelValues("speaking").Add(float64(xp))

	out := SpeakingOutcome{Analysis: analysis}
	out.Practice, err = s.markPractice(ctx, models.ActivitySpeaking)
	if err != nil {
		return SpeakingOutcome{}, err
	}
	out.Achievements = s.evaluate()

	log.WithFields(log.Fields{"exercise": exerciseID, "score": analysis.OverallScore, "source": analysis.Source}).Info("speaking analyzed")
	return out, nil
}

// MarkPracticeComplete logs a practice. The first practice of a day grants
// DailyPracticeXP, and every seventh streak day sends a streak notification
// when streak reminders are on.
func (s *Service) MarkPracticeComplete(ctx context.Context, activity models.Activity) (PracticeResult, error) {
	res, err := s.markPractice(ctx, activity)
	if err != nil {
		return PracticeResult{}, err
	}
	res.Achievements = s.evaluate()
	return res, nil
}

func (s *Service) markPractice(ctx context.Context, activity models.Activity) (PracticeResult, error) {
	if activity == "" {
		activity = models.ActivityPractice
	}
	if !validActivity(activity) {
		return PracticeResult{}, apperrors.Invalid("unknown activity %q", activity)
	}

	outcome, _ := s.Store.MarkDailyPracticeComplete(activity)
	res := PracticeResult{Completed: true, FirstToday: outcome.FirstToday, Streak: outcome.Streak}
	if !outcome.FirstToday {
		return res, nil
	}

	if err := s.award(DailyPracticeXP, "daily-practice", "daily"); err != nil {
		return PracticeResult{}, err
	}
	res.XPEarned = DailyPracticeXP

	if res.Streak > 0 && res.Streak%7 == 0 && s.Reminders.Settings().StreakReminders {
		sent := s.Notifier.SendStreakReminder(ctx, res.Streak)
		res.StreakReminder = &sent
	}
	return res, nil
}

// TodayStatus reports whether practice is logged today
func (s *Service) TodayStatus() TodayStatus {
	p := s.Store.Snapshot()
	return TodayStatus{
		Completed:        p.DailyPractice.TodayCompleted,
		Streak:           p.CurrentStreak,
		LastPracticeDate: p.DailyPractice.LastPracticeDate,
		LastActivity:     p.DailyPractice.LastActivity,
		PendingReminders: p.DailyPractice.PendingReminders,
	}
}

func (s *Service) award(xp int, courseID, label string) error {
	if xp <= 0 {
		return nil
	}
	if _, err := s.Store.AddXP(xp, courseID); err != nil {
		return err
	}
	metrics.XPAwarded.WithLabelValues(label).Add(float64(xp))
	return nil
}

func (s *Service) unlock(id string) (models.Achievement, bool) {
	changed, err := s.Store.UnlockAchievement(id)
	if err != nil {
		log.WithError(err).WithField("achievement", id).Warn("failed to unlock achievement")
		return models.Achievement{}, false
	}
	if !changed {
		return models.Achievement{}, false
	}
	a, _ := s.Store.Snapshot().Achievement(id)
	metrics.AchievementsUnlocked.WithLabelValues(id).Inc()
	s.Notifier.Notify(notify.ToastSuccess, fmt.Sprintf("Achievement unlocked: %s 🏆", a.Name))
	return a, true
}

func (s *Service) evaluate() []models.Achievement {
	unlocked := s.Evaluator.Apply(s.Store)
	for _, a := range unlocked {
		s.Notifier.Notify(notify.ToastSuccess, fmt.Sprintf("Achievement unlocked: %s 🏆", a.Name))
	}
	return unlocked
}

func validActivity(a models.Activity) bool {
	switch a {
	case models.ActivityPractice, models.ActivityLessons, models.ActivityFlashcards, models.ActivitySpeaking, models.ActivityQuizzes:
		return true
	}
	return false
}
