package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/internal/notify"
	"github.com/example/linguaflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memKV) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

type fakeProgress struct {
	mu         sync.Mutex
	practiced  bool
	reminders  int
	rollovers  int
	time       string
	activities []models.Activity
}

func (f *fakeProgress) PracticedOn(t time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.practiced
}

func (f *fakeProgress) NoteReminderSent() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders++
}

func (f *fakeProgress) UpdateReminderPreferences(reminderTime string, activities []models.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.time = reminderTime
	f.activities = activities
}

func (f *fakeProgress) RollOver() models.UserProgress {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollovers++
	return models.UserProgress{}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Activity
}

func (f *fakeNotifier) SendDailyReminder(ctx context.Context, activity models.Activity) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, activity)
	return notify.Result{Sent: true, Method: notify.MethodToast}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Wednesday
var base = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

type fixture struct {
	sched    *Scheduler
	kv       *memKV
	progress *fakeProgress
	notifier *fakeNotifier
	clock    *clock
}

func newFixture(t *testing.T, defaults models.ReminderSettings) *fixture {
	t.Helper()
	f := &fixture{
		kv:       newMemKV(),
		progress: &fakeProgress{},
		notifier: &fakeNotifier{},
		clock:    &clock{now: base},
	}
	f.sched = New(f.kv, defaults, f.progress, f.notifier,
		WithClock(f.clock.Now),
		WithRand(rand.New(rand.NewSource(1))),
		WithLocation(time.UTC),
	)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.sched.Start(context.Background()))
	t.Cleanup(f.sched.Stop)
}

func TestNextFireTime(t *testing.T) {
	tests := []struct {
		name         string
		now          time.Time
		hhmm         string
		weekdaysOnly bool
		want         time.Time
	}{
		{"time already passed today", base, "09:00", false, time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)},
		{"later today", base.Add(-2 * time.Hour), "09:00", false, time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)},
		{"exactly now moves to tomorrow", time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC), "09:00", false, time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)},
		{"friday evening skips weekend", time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC), "19:00", true, time.Date(2024, 3, 18, 19, 0, 0, 0, time.UTC)},
		{"saturday morning skips to monday", time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC), "19:00", true, time.Date(2024, 3, 18, 19, 0, 0, 0, time.UTC)},
		{"saturday without weekday filter", time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC), "19:00", false, time.Date(2024, 3, 16, 19, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextFireTime(tt.now, tt.hhmm, tt.weekdaysOnly)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NextFireTime(base, "7pm", false)
	assert.Error(t, err)
}

func TestStartSchedulesFromStoredSettings(t *testing.T) {
	f := newFixture(t, models.DefaultReminderSettings())
	require.NoError(t, f.kv.Set(context.Background(), settingsKey, map[string]string{"time": "08:30"}))

	f.start(t)

	st := f.sched.Status()
	assert.Equal(t, StateScheduled, st.State)
	require.NotNil(t, st.FireAt)
	assert.Equal(t, time.Date(2024, 3, 14, 8, 30, 0, 0, time.UTC), *st.FireAt)
	assert.Equal(t, "08:30", st.Settings.Time)
	assert.True(t, st.Settings.Enabled)
	assert.Equal(t, models.DefaultReminderSettings().Activities, st.Settings.Activities)
	assert.Equal(t, "08:30", f.progress.time)
}

func TestFireSendsReminder(t *testing.T) {
	f := newFixture(t, models.DefaultReminderSettings())
	f.start(t)

	fireAt := *f.sched.Status().FireAt
	f.clock.Set(fireAt)
	f.sched.fire()

	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, models.DefaultReminderSettings().Activities, f.notifier.sent[0])
	assert.Equal(t, 1, f.progress.reminders)

	history := f.sched.History()
	require.Len(t, history, 1)
	assert.Equal(t, models.ReminderTypeDaily, history[0].Type)
	assert.True(t, history[0].Sent)
	assert.Equal(t, notify.MethodToast, history[0].Method)

	st := f.sched.Status()
	assert.Equal(t, StateScheduled, st.State)
	assert.Equal(t, fireAt.AddDate(0, 0, 1), *st.FireAt)
}

func TestFireSuppressedWhenPracticedToday(t *testing.T) {
	f := newFixture(t, models.DefaultReminderSettings())
	f.progress.practiced = true
	f.start(t)

	f.clock.Set(*f.sched.Status().FireAt)
	f.sched.fire()

	assert.Empty(t, f.notifier.sent)
	assert.Zero(t, f.progress.reminders)
	history := f.sched.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].Suppressed)
	assert.False(t, history[0].Sent)
	assert.Equal(t, StateScheduled, f.sched.Status().State)
}

func TestFireIgnoresEarlyRun(t *testing.T) {
	settings := models.DefaultReminderSettings()
	settings.WeekdaysOnly = true
	f := newFixture(t, settings)
	f.clock.Set(time.Date(2024, 3, 16, 20, 0, 0, 0, time.UTC))
	f.start(t)

	// the daily job also runs on Sunday
	f.clock.Set(time.Date(2024, 3, 17, 19, 0, 0, 0, time.UTC))
	f.sched.fire()

	assert.Empty(t, f.notifier.sent)
	assert.Empty(t, f.sched.History())
	assert.Equal(t, time.Date(2024, 3, 18, 19, 0, 0, 0, time.UTC), *f.sched.Status().FireAt)
}

func TestFireFallsBackToPractice(t *testing.T) {
	settings := models.DefaultReminderSettings()
	settings.Activities = nil
	f := newFixture(t, settings)
	f.start(t)

	f.clock.Set(*f.sched.Status().FireAt)
	f.sched.fire()

	assert.Equal(t, []models.Activity{models.ActivityPractice}, f.notifier.sent)
}

func TestUpdateSettingsReschedules(t *testing.T) {
	f := newFixture(t, models.DefaultReminderSettings())
	f.start(t)

	next := models.DefaultReminderSettings()
	next.Time = "21:15"
	next.Activities = []models.Activity{models.ActivityQuizzes}
	got, err := f.sched.UpdateSettings(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, next, got)

	st := f.sched.Status()
	assert.Equal(t, StateScheduled, st.State)
	assert.Equal(t, time.Date(2024, 3, 13, 21, 15, 0, 0, time.UTC), *st.FireAt)
	assert.Equal(t, "21:15", f.progress.time)
	assert.Equal(t, []models.Activity{models.ActivityQuizzes}, f.progress.activities)

	jobs, err := f.sched.cron.FindJobsByTag(reminderTag)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	var stored models.ReminderSettings
	ok, err := f.kv.Get(context.Background(), settingsKey, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, next, stored)
}

func TestDisablingCancelsReminder(t *testing.T) {
	f := newFixture(t, models.DefaultReminderSettings())
	f.start(t)

	off := models.DefaultReminderSettings()
	off.Enabled = false
	_, err := f.sched.UpdateSettings(context.Background(), off)
	require.NoError(t, err)

	st := f.sched.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Nil(t, st.FireAt)
	_, err = f.sched.cron.FindJobsByTag(reminderTag)
	assert.Error(t, err)

	f.sched.fire()
	assert.Empty(t, f.notifier.sent)

	res := f.sched.SendTestReminder(context.Background())
	assert.Equal(t, notify.Result{Sent: false, Reason: "disabled"}, res)
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	f := newFixture(t, models.DefaultReminderSettings())

	bad := models.DefaultReminderSettings()
	bad.Time = "7pm"
	_, err := f.sched.UpdateSettings(context.Background(), bad)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))

	bad = models.DefaultReminderSettings()
	bad.Activities = []models.Activity{"juggling"}
	_, err = f.sched.UpdateSettings(context.Background(), bad)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestSendTestReminderUsesFirstActivity(t *testing.T) {
	f := newFixture(t, models.DefaultReminderSettings())

	res := f.sched.SendTestReminder(context.Background())

	assert.True(t, res.Sent)
	assert.Equal(t, []models.Activity{models.ActivityLessons}, f.notifier.sent)
	assert.Equal(t, models.ReminderTypeTest, f.sched.History()[0].Type)
}

func TestHistoryIsCappedAndPersisted(t *testing.T) {
	f := newFixture(t, models.DefaultReminderSettings())
	for i := 0; i < historyLimit+5; i++ {
		f.clock.Set(base.Add(time.Duration(i) * time.Minute))
		f.sched.SendTestReminder(context.Background())
	}

	history := f.sched.History()
	require.Len(t, history, historyLimit)
	assert.Equal(t, base.Add(time.Duration(historyLimit+4)*time.Minute), history[0].Date)

	var stored []models.ReminderHistoryEntry
	ok, err := f.kv.Get(context.Background(), historyKey, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, stored, historyLimit)
}

func TestRollOverJob(t *testing.T) {
	f := newFixture(t, models.DefaultReminderSettings())
	f.sched.rollOver()
	assert.Equal(t, 1, f.progress.rollovers)
}
