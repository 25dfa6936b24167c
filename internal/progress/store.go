// Package progress owns the learner's progress aggregate: XP, streaks,
// course progress, speaking statistics, achievements and the daily
// practice record used by the reminder cycle.
package progress

import (
	"math"
	"sync"
	"time"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/pkg/models"
)

// EventKind names a mutation of the store
type EventKind string

const (
	EventXPAdded            EventKind = "xp_added"
	EventCourseProgress     EventKind = "course_progress"
	EventSpeakingRecorded   EventKind = "speaking_recorded"
	EventPracticeCompleted  EventKind = "practice_completed"
	EventAchievementUnlock  EventKind = "achievement_unlocked"
	EventReminderSent       EventKind = "reminder_sent"
	EventPreferencesChanged EventKind = "preferences_changed"
	EventRolledOver         EventKind = "rolled_over"
)

// Event is delivered to subscribers after a mutation
type Event struct {
	Kind          EventKind           `json:"kind"`
	Amount        int                 `json:"amount,omitempty"`
	Source        string              `json:"source,omitempty"`
	AchievementID string              `json:"achievementId,omitempty"`
	At            time.Time           `json:"at"`
	Progress      models.UserProgress `json:"progress"`
}

// PracticeOutcome describes the effect of logging a practice
type PracticeOutcome struct {
	FirstToday bool `json:"firstToday"`
	Streak     int  `json:"streak"`
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the timezone calendar days are computed in
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// Store guards the progress aggregate. Subscribers are called synchronously
// after the aggregate lock is released, in mutation order. A subscriber must
// not call mutating methods of the store.
type Store struct {
	mu    sync.Mutex
	state models.UserProgress

	dispatchMu sync.Mutex
	subsMu     sync.Mutex
	subs       map[int]func(Event)
	nextSub    int

	now func() time.Time
	loc *time.Location
}

// NewStore creates a store holding a copy of initial
func NewStore(initial models.UserProgress, opts ...Option) *Store {
	s := &Store{
		state: initial.Clone(),
		subs:  make(map[int]func(Event)),
		now:   time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every future event and returns a function that
// removes it
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

// Snapshot returns a deep copy of the current progress
func (s *Store) Snapshot() models.UserProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() models.UserProgress {
	p := s.state.Clone()
	p.DailyPractice.TodayCompleted = p.DailyPractice.LastPracticeDate == s.day(s.now())
	return p
}

// AddXP adds amount to the total and, when sourceCourseID names a tracked
// course, to that course
func (s *Store) AddXP(amount int, sourceCourseID string) (models.UserProgress, error) {
	if amount <= 0 {
		return models.UserProgress{}, apperrors.Invalid("xp amount must be positive, got %d", amount)
	}

	s.mu.Lock()
	return s.commit(s.addXPLocked(amount, sourceCourseID)), nil
}

func (s *Store) addXPLocked(amount int, source string) []Event {
	s.state.TotalXP += amount
	if cp, ok := s.state.CoursesProgress[source]; ok {
		cp.XP += amount
		s.state.CoursesProgress[source] = cp
	}
	return []Event{{Kind: EventXPAdded, Amount: amount, Source: source}}
}

// TrackCourse starts tracking a course, or updates its lesson total
func (s *Store) TrackCourse(courseID string, totalLessons int) (models.UserProgress, error) {
	if courseID == "" || totalLessons < 0 {
		return models.UserProgress{}, apperrors.Invalid("invalid course %q with %d lessons", courseID, totalLessons)
	}

	s.mu.Lock()
	if s.state.CoursesProgress == nil {
		s.state.CoursesProgress = make(map[string]models.CourseProgress)
	}
	cp := s.state.CoursesProgress[courseID]
	cp.TotalLessons = totalLessons
	s.state.CoursesProgress[courseID] = cp
	return s.commit([]Event{{Kind: EventCourseProgress, Source: courseID, Amount: cp.CompletedLessons}}), nil
}

// UpdateCourseProgress sets the completed lesson count of a tracked course.
// The value is stored as given: it is not clamped to the lesson total and
// may move backwards.
func (s *Store) UpdateCourseProgress(courseID string, completedLessons int) (models.UserProgress, error) {
	if completedLessons < 0 {
		return models.UserProgress{}, apperrors.Invalid("completed lessons must not be negative, got %d", completedLessons)
	}

	s.mu.Lock()
	cp, ok := s.state.CoursesProgress[courseID]
	if !ok {
		s.mu.Unlock()
		return models.UserProgress{}, apperrors.NotFound("course progress", courseID)
	}
	cp.CompletedLessons = completedLessons
	s.state.CoursesProgress[courseID] = cp
	return s.commit([]Event{{Kind: EventCourseProgress, Source: courseID, Amount: completedLessons}}), nil
}

// CompleteLesson adds one completed lesson to a course. An untracked course
// is tracked first with totalLessons; a tracked one keeps its total.
func (s *Store) CompleteLesson(courseID string, totalLessons int) (models.UserProgress, error) {
	if courseID == "" || totalLessons < 0 {
		return models.UserProgress{}, apperrors.Invalid("invalid course %q with %d lessons", courseID, totalLessons)
	}

	s.mu.Lock()
	if s.state.CoursesProgress == nil {
		s.state.CoursesProgress = make(map[string]models.CourseProgress)
	}
	cp, ok := s.state.CoursesProgress[courseID]
	if !ok {
		cp.TotalLessons = totalLessons
	}
	cp.CompletedLessons++
	s.state.CoursesProgress[courseID] = cp
	return s.commit([]Event{{Kind: EventCourseProgress, Source: courseID, Amount: cp.CompletedLessons}}), nil
}

// SpeakingXP is the XP awarded for a speaking score
func SpeakingXP(score int) int {
	xp := int(math.Round(float64(score) / 5))
	if xp < 10 {
		return 10
	}
	return xp
}

// UpdateSpeakingProgress records a speaking score for an exercise and awards
// its XP. It returns the XP earned.
func (s *Store) UpdateSpeakingProgress(score int, exerciseID string) (int, error) {
	if score < 0 || score > 100 {
		return 0, apperrors.Invalid("speaking score must be within 0..100, got %d", score)
	}

	s.mu.Lock()
	sp := &s.state.SpeakingProgress
	sp.TotalPractices++
	n := float64(sp.TotalPractices)
	sp.AverageScore = (sp.AverageScore*(n-1) + float64(score)) / n

	if sp.BestScores == nil {
		sp.BestScores = make(map[string]int)
	}
	if best, seen := sp.BestScores[exerciseID]; !seen {
		sp.CompletedExercises++
		sp.BestScores[exerciseID] = score
	} else if score > best {
		sp.BestScores[exerciseID] = score
	}

	now := s.now()
	today := s.day(now)
	switch sp.LastPracticeDate {
	case today:
	case s.day(now.AddDate(0, 0, -1)):
		sp.StreakDays++
	default:
		sp.StreakDays = 1
	}
	sp.LastPracticeDate = today

	xp := SpeakingXP(score)
	events := []Event{{Kind: EventSpeakingRecorded, Amount: score, Source: exerciseID}}
	events = append(events, s.addXPLocked(xp, "speaking")...)
	s.commit(events)
	return xp, nil
}

// MarkDailyPracticeComplete logs a practice for today. The streak grows when
// the previous practice was yesterday, is kept when it was today and restarts
// at 1 otherwise. Pending reminders are cleared.
func (s *Store) MarkDailyPracticeComplete(activity models.Activity) (PracticeOutcome, models.UserProgress) {
	s.mu.Lock()
	now := s.now()
	today := s.day(now)
	dp := &s.state.DailyPractice

	out := PracticeOutcome{FirstToday: dp.LastPracticeDate != today}
	if out.FirstToday {
		if dp.LastPracticeDate == s.day(now.AddDate(0, 0, -1)) {
			s.state.CurrentStreak++
		} else {
			s.state.CurrentStreak = 1
		}
	}
	dp.LastPracticeDate = today
	dp.TodayCompleted = true
	dp.LastActivity = activity
	dp.PendingReminders = 0
	out.Streak = s.state.CurrentStreak

	return out, s.commit([]Event{{Kind: EventPracticeCompleted, Source: string(activity), Amount: out.Streak}})
}

// UnlockAchievement flips an achievement to unlocked. It reports whether a
// transition happened; unlocking twice is a no-op.
func (s *Store) UnlockAchievement(id string) (bool, error) {
	s.mu.Lock()
	for i := range s.state.Achievements {
		a := &s.state.Achievements[i]
		if a.ID != id {
			continue
		}
		if a.Unlocked {
			s.mu.Unlock()
			return false, nil
		}
		at := s.now()
		a.Unlocked = true
		a.UnlockedAt = &at
		s.commit([]Event{{Kind: EventAchievementUnlock, AchievementID: id}})
		return true, nil
	}
	s.mu.Unlock()
	return false, apperrors.NotFound("achievement", id)
}

// NoteReminderSent counts a reminder sent since the last practice
func (s *Store) NoteReminderSent() {
	s.mu.Lock()
	s.state.DailyPractice.PendingReminders++
	s.commit([]Event{{Kind: EventReminderSent, Amount: s.state.DailyPractice.PendingReminders}})
}

// PracticedOn reports whether a practice is logged for the calendar day of t
func (s *Store) PracticedOn(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DailyPractice.LastPracticeDate == s.day(t)
}

// UpdateReminderPreferences mirrors the reminder settings into the daily
// practice record
func (s *Store) UpdateReminderPreferences(reminderTime string, activities []models.Activity) {
	s.mu.Lock()
	s.state.DailyPractice.PreferredReminderTime = reminderTime
	s.state.DailyPractice.EnabledActivities = append([]models.Activity(nil), activities...)
	s.commit([]Event{{Kind: EventPreferencesChanged}})
}

// RollOver runs the start-of-day maintenance: today's flag is cleared and a
// streak whose last practice is older than yesterday is broken.
func (s *Store) RollOver() models.UserProgress {
	s.mu.Lock()
	now := s.now()
	dp := &s.state.DailyPractice
	dp.TodayCompleted = dp.LastPracticeDate == s.day(now)

	last := dp.LastPracticeDate
	if last != s.day(now) && last != s.day(now.AddDate(0, 0, -1)) {
		s.state.CurrentStreak = 0
	}
	return s.commit([]Event{{Kind: EventRolledOver, Amount: s.state.CurrentStreak}})
}

func (s *Store) day(t time.Time) string {
	return t.In(s.loc).Format(models.DateLayout)
}

// commit must be called with mu held. It releases mu and then delivers the
// events in order.
func (s *Store) commit(events []Event) models.UserProgress {
	now := s.now()
	s.state.UpdatedAt = now
	snap := s.snapshotLocked()

	s.dispatchMu.Lock()
	s.mu.Unlock()
	defer s.dispatchMu.Unlock()

	s.subsMu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()

	for _, ev := range events {
		ev.At = now
		ev.Progress = snap
		for _, fn := range subs {
			fn(ev)
		}
	}
	return snap
}
