package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	initial := Initial(clock.Now(), models.DefaultReminderSettings())
	return NewStore(initial, WithClock(clock.Now), WithLocation(time.UTC)), clock
}

func TestInitialProgress(t *testing.T) {
	s, _ := newTestStore(t)
	p := s.Snapshot()

	assert.Equal(t, 1250, p.TotalXP)
	assert.Equal(t, 7, p.CurrentStreak)
	assert.Equal(t, models.CourseProgress{CompletedLessons: 5, TotalLessons: 12, XP: 450}, p.CoursesProgress["spanish-basics"])
	assert.Equal(t, "2024-05-05", p.DailyPractice.LastPracticeDate)
	assert.False(t, p.DailyPractice.TodayCompleted)
	assert.Equal(t, "19:00", p.DailyPractice.PreferredReminderTime)

	a, ok := p.Achievement("xp-1000")
	require.True(t, ok)
	assert.True(t, a.Unlocked)
	a, ok = p.Achievement("pronunciation-80")
	require.True(t, ok)
	assert.False(t, a.Unlocked)
}

func TestAddXP(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.AddXP(60, "spanish-basics")
	require.NoError(t, err)
	assert.Equal(t, 1310, p.TotalXP)
	assert.Equal(t, 510, p.CoursesProgress["spanish-basics"].XP)

	p, err = s.AddXP(10, "quiz")
	require.NoError(t, err)
	assert.Equal(t, 1320, p.TotalXP)
	assert.NotContains(t, p.CoursesProgress, "quiz")
}

func TestAddXPRejectsNonPositive(t *testing.T) {
	s, _ := newTestStore(t)
	for _, amount := range []int{0, -5} {
		_, err := s.AddXP(amount, "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	}
	assert.Equal(t, 1250, s.Snapshot().TotalXP)
}

func TestSnapshotIsIsolated(t *testing.T) {
	s, _ := newTestStore(t)
	p := s.Snapshot()
	p.CoursesProgress["spanish-basics"] = models.CourseProgress{}
	p.Achievements[0].Unlocked = false

	fresh := s.Snapshot()
	assert.Equal(t, 5, fresh.CoursesProgress["spanish-basics"].CompletedLessons)
	assert.True(t, fresh.Achievements[0].Unlocked)
}

func TestUpdateCourseProgress(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.UpdateCourseProgress("french-intermediate", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, p.CoursesProgress["french-intermediate"].CompletedLessons)

	_, err = s.UpdateCourseProgress("klingon", 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = s.UpdateCourseProgress("french-intermediate", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

// The lesson total is not enforced by the store; callers own that check.
func TestUpdateCourseProgressDoesNotClampToTotal(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.UpdateCourseProgress("french-intermediate", 11)
	require.NoError(t, err)
	cp := p.CoursesProgress["french-intermediate"]
	assert.Equal(t, 11, cp.CompletedLessons)
	assert.Greater(t, cp.CompletedLessons, cp.TotalLessons)

	p, err = s.UpdateCourseProgress("french-intermediate", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.CoursesProgress["french-intermediate"].CompletedLessons, "values may move backwards")
}

func TestCompleteLesson(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.CompleteLesson("spanish-basics", 99)
	require.NoError(t, err)
	assert.Equal(t, models.CourseProgress{CompletedLessons: 6, TotalLessons: 12, XP: 450}, p.CoursesProgress["spanish-basics"])

	p, err = s.CompleteLesson("italian", 8)
	require.NoError(t, err)
	assert.Equal(t, models.CourseProgress{CompletedLessons: 1, TotalLessons: 8}, p.CoursesProgress["italian"])

	_, err = s.CompleteLesson("", 3)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestConcurrentCompleteLesson(t *testing.T) {
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CompleteLesson("german", 60)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Snapshot().CoursesProgress["german"].CompletedLessons)
}

func TestTrackCourse(t *testing.T) {
	s, _ := newTestStore(t)

	p, err := s.TrackCourse("italian", 8)
	require.NoError(t, err)
	assert.Equal(t, models.CourseProgress{TotalLessons: 8}, p.CoursesProgress["italian"])

	p, err = s.TrackCourse("spanish-basics", 14)
	require.NoError(t, err)
	assert.Equal(t, models.CourseProgress{CompletedLessons: 5, TotalLessons: 14, XP: 450}, p.CoursesProgress["spanish-basics"])
}

func TestUpdateSpeakingProgress(t *testing.T) {
	s, _ := newTestStore(t)

	xp, err := s.UpdateSpeakingProgress(80, "sp-001")
	require.NoError(t, err)
	assert.Equal(t, 16, xp)

	xp, err = s.UpdateSpeakingProgress(30, "sp-001")
	require.NoError(t, err)
	assert.Equal(t, 10, xp, "minimum award")

	xp, err = s.UpdateSpeakingProgress(91, "sp-002")
	require.NoError(t, err)
	assert.Equal(t, 18, xp)

	p := s.Snapshot()
	sp := p.SpeakingProgress
	assert.Equal(t, 3, sp.TotalPractices)
	assert.InDelta(t, (80.0+30+91)/3, sp.AverageScore, 1e-9)
	assert.Equal(t, 2, sp.CompletedExercises)
	assert.Equal(t, 80, sp.BestScores["sp-001"])
	assert.Equal(t, 91, sp.BestScores["sp-002"])
	assert.Equal(t, 1, sp.StreakDays)
	assert.Equal(t, 1250+16+10+18, p.TotalXP)
}

func TestUpdateSpeakingProgressRejectsOutOfRange(t *testing.T) {
	s, _ := newTestStore(t)
	for _, score := range []int{-1, 101} {
		_, err := s.UpdateSpeakingProgress(score, "sp-001")
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	}
	assert.Equal(t, 0, s.Snapshot().SpeakingProgress.TotalPractices)
}

func TestSpeakingStreakDays(t *testing.T) {
	s, clock := newTestStore(t)

	_, err := s.UpdateSpeakingProgress(70, "sp-001")
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	_, err = s.UpdateSpeakingProgress(70, "sp-001")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Snapshot().SpeakingProgress.StreakDays)

	clock.Advance(72 * time.Hour)
	_, err = s.UpdateSpeakingProgress(70, "sp-001")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Snapshot().SpeakingProgress.StreakDays)
}

func TestSpeakingXP(t *testing.T) {
	assert.Equal(t, 10, SpeakingXP(0))
	assert.Equal(t, 10, SpeakingXP(50))
	assert.Equal(t, 11, SpeakingXP(53))
	assert.Equal(t, 20, SpeakingXP(100))
}

func TestMarkDailyPracticeComplete(t *testing.T) {
	s, clock := newTestStore(t)
	s.NoteReminderSent()
	s.NoteReminderSent()
	assert.Equal(t, 2, s.Snapshot().DailyPractice.PendingReminders)

	out, p := s.MarkDailyPracticeComplete(models.ActivityLessons)
	assert.True(t, out.FirstToday)
	assert.Equal(t, 8, out.Streak, "yesterday's practice continues the streak")
	assert.Equal(t, "2024-05-06", p.DailyPractice.LastPracticeDate)
	assert.True(t, p.DailyPractice.TodayCompleted)
	assert.Equal(t, 0, p.DailyPractice.PendingReminders)
	assert.Equal(t, models.ActivityLessons, p.DailyPractice.LastActivity)

	out, _ = s.MarkDailyPracticeComplete(models.ActivitySpeaking)
	assert.False(t, out.FirstToday)
	assert.Equal(t, 8, out.Streak, "same day keeps the streak")

	clock.Advance(48 * time.Hour)
	assert.False(t, s.Snapshot().DailyPractice.TodayCompleted)
	out, _ = s.MarkDailyPracticeComplete(models.ActivityFlashcards)
	assert.True(t, out.FirstToday)
	assert.Equal(t, 1, out.Streak, "a missed day restarts the streak")
}

func TestPracticedOnUsesCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	clock := &fakeClock{now: time.Date(2024, 5, 6, 23, 30, 0, 0, loc)}
	s := NewStore(Initial(clock.Now(), models.DefaultReminderSettings()), WithClock(clock.Now), WithLocation(loc))

	s.MarkDailyPracticeComplete(models.ActivityPractice)
	assert.True(t, s.PracticedOn(time.Date(2024, 5, 6, 1, 0, 0, 0, loc)))
	assert.False(t, s.PracticedOn(time.Date(2024, 5, 7, 0, 5, 0, 0, loc)))
	assert.True(t, s.PracticedOn(time.Date(2024, 5, 6, 13, 0, 0, 0, time.UTC)), "instants are compared by local day")
}

func TestUnlockAchievementIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	var unlocks int
	s.Subscribe(func(ev Event) {
		if ev.Kind == EventAchievementUnlock {
			unlocks++
		}
	})

	changed, err := s.UnlockAchievement("pronunciation-80")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.UnlockAchievement("pronunciation-80")
	require.NoError(t, err)
	assert.False(t, changed)

	a, _ := s.Snapshot().Achievement("pronunciation-80")
	assert.True(t, a.Unlocked)
	assert.NotNil(t, a.UnlockedAt)
	assert.Equal(t, 1, unlocks)

	_, err = s.UnlockAchievement("nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRollOver(t *testing.T) {
	s, clock := newTestStore(t)

	p := s.RollOver()
	assert.Equal(t, 7, p.CurrentStreak, "practised yesterday, streak survives")

	clock.Advance(24 * time.Hour)
	p = s.RollOver()
	assert.Equal(t, 0, p.CurrentStreak, "a whole day missed breaks the streak")
	assert.False(t, p.DailyPractice.TodayCompleted)
}

func TestSubscribersReceiveEventsInOrder(t *testing.T) {
	s, _ := newTestStore(t)
	var kinds []EventKind
	cancel := s.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		assert.False(t, ev.At.IsZero())
	})

	_, err := s.UpdateSpeakingProgress(85, "sp-001")
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventSpeakingRecorded, EventXPAdded}, kinds)

	cancel()
	_, err = s.AddXP(5, "")
	require.NoError(t, err)
	assert.Len(t, kinds, 2)
}

func TestSubscriberSeesCommittedState(t *testing.T) {
	s, _ := newTestStore(t)
	var seen int
	s.Subscribe(func(ev Event) {
		seen = ev.Progress.TotalXP
		assert.Equal(t, seen, s.Snapshot().TotalXP, "store is readable from a callback")
	})

	_, err := s.AddXP(50, "")
	require.NoError(t, err)
	assert.Equal(t, 1300, seen)
}

func TestConcurrentAddXP(t *testing.T) {
	s, _ := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddXP(2, "german-beginner")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p := s.Snapshot()
	assert.Equal(t, 1350, p.TotalXP)
	assert.Equal(t, 600, p.CoursesProgress["german-beginner"].XP)
}

func TestUpdateReminderPreferences(t *testing.T) {
	s, _ := newTestStore(t)
	acts := []models.Activity{models.ActivitySpeaking}
	s.UpdateReminderPreferences("08:15", acts)
	acts[0] = models.ActivityLessons

	dp := s.Snapshot().DailyPractice
	assert.Equal(t, "08:15", dp.PreferredReminderTime)
	assert.Equal(t, []models.Activity{models.ActivitySpeaking}, dp.EnabledActivities)
}

func TestMergeCatalog(t *testing.T) {
	p := models.UserProgress{Achievements: []models.Achievement{{ID: "xp-1000", Unlocked: true}}}
	merged := MergeCatalog(p)
	assert.Len(t, merged.Achievements, len(Catalog()))
	a, _ := merged.Achievement("xp-1000")
	assert.True(t, a.Unlocked)
}
