// Package scheduler runs the daily reminder cycle and the midnight
// maintenance of the progress store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/example/linguaflow/internal/metrics"
	"github.com/example/linguaflow/internal/notify"
	"github.com/example/linguaflow/pkg/models"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	reminderTag  = "daily-reminder"
	rolloverTag  = "rollover"
	historyLimit = 50
)

// State of the reminder cycle
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StateFired     State = "fired"
)

// Status describes the pending reminder
type Status struct {
	State    State                   `json:"state"`
	FireAt   *time.Time              `json:"fireAt,omitempty"`
	Settings models.ReminderSettings `json:"settings"`
}

// Notifier sends the reminder
type Notifier interface {
	SendDailyReminder(ctx context.Context, activity models.Activity) notify.Result
}

// Progress is the part of the progress store the cycle reads and updates
type Progress interface {
	PracticedOn(t time.Time) bool
	NoteReminderSent()
	UpdateReminderPreferences(reminderTime string, activities []models.Activity)
	RollOver() models.UserProgress
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithRand sets the source used to pick the reminded activity
func WithRand(rnd *rand.Rand) Option {
	return func(s *Scheduler) { s.rnd = rnd }
}

// WithLocation sets the timezone reminder times are read in
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// Scheduler manages the reminder job
type Scheduler struct {
	cron     *gocron.Scheduler
	settings *SettingsStore
	kv       KV
	progress Progress
	notifier Notifier

	now func() time.Time
	rnd *rand.Rand
	loc *time.Location

	mu      sync.Mutex
	ctx     context.Context
	current models.ReminderSettings
	state   State
	fireAt  time.Time
	history []models.ReminderHistoryEntry
}

// New creates a scheduler. Nothing runs until Start.
func New(kv KV, defaults models.ReminderSettings, progress Progress, notifier Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		settings: NewSettingsStore(kv, defaults),
		kv:       kv,
		progress: progress,
		notifier: notifier,
		now:      time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		loc:      time.Local,
		ctx:      context.Background(),
		current:  defaults,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = gocron.NewScheduler(s.loc)
	return s
}

// NextFireTime returns the first instant strictly after now at hhmm in now's
// location. With weekdaysOnly, Saturdays and Sundays are skipped.
func NextFireTime(now time.Time, hhmm string, weekdaysOnly bool) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reminder time %q: %w", hhmm, err)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	for weekdaysOnly && (next.Weekday() == time.Saturday || next.Weekday() == time.Sunday) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// Start loads persisted settings and history, registers the jobs and starts
// the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return err
	}
	var history []models.ReminderHistoryEntry
	if _, err := s.kv.Get(ctx, historyKey, &history); err != nil {
		log.WithError(err).Warn("could not load reminder history")
	}

	s.mu.Lock()
	s.ctx = ctx
	s.current = settings
	s.history = history
	s.mu.Unlock()

	if _, err := s.cron.Every(1).Day().At("00:00").Tag(rolloverTag).Do(s.rollOver); err != nil {
		return fmt.Errorf("failed to schedule rollover: %w", err)
	}
	if err := s.reschedule(); err != nil {
		return err
	}
	s.progress.UpdateReminderPreferences(settings.Time, settings.Activities)

	s.cron.StartAsync()
	log.WithFields(log.Fields{"enabled": settings.Enabled, "time": settings.Time}).Info("reminder scheduler started")
	return nil
}

// Stop terminates all jobs
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Settings returns the current reminder settings
func (s *Scheduler) Settings() models.ReminderSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.current
	out.Activities = append([]models.Activity(nil), s.current.Activities...)
	return out
}

// UpdateSettings validates, persists and applies new settings. The pending
// reminder is cancelled and, when enabled, rescheduled for the new time.
func (s *Scheduler) UpdateSettings(ctx context.Context, settings models.ReminderSettings) (models.ReminderSettings, error) {
	if err := ValidateSettings(settings); err != nil {
		return models.ReminderSettings{}, err
	}
	if err := s.settings.Save(ctx, settings); err != nil {
		return models.ReminderSettings{}, err
	}
	s.progress.UpdateReminderPreferences(settings.Time, settings.Activities)

	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()

	if err := s.reschedule(); err != nil {
		return models.ReminderSettings{}, err
	}
	log.WithFields(log.Fields{"enabled": settings.Enabled, "time": settings.Time}).Info("reminder settings updated")
	return s.Settings(), nil
}

// Status reports the state of the cycle
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.state, Settings: s.current}
	if s.state == StateScheduled {
		at := s.fireAt
		st.FireAt = &at
	}
	return st
}

// SendTestReminder sends a reminder for the first enabled activity now
func (s *Scheduler) SendTestReminder(ctx context.Context) notify.Result {
	settings := s.Settings()
	if !settings.Enabled {
		return notify.Result{Sent: false, Reason: "disabled"}
	}
	activity := models.ActivityPractice
	if len(settings.Activities) > 0 {
		activity = settings.Activities[0]
	}
	res := s.notifier.SendDailyReminder(ctx, activity)
	s.record(ctx, models.ReminderHistoryEntry{
		Type:     models.ReminderTypeTest,
		Activity: activity,
		Sent:     res.Sent,
		Method:   res.Method,
	})
	return res
}

// History returns the recorded reminders, newest first
func (s *Scheduler) History() []models.ReminderHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReminderHistoryEntry, len(s.history))
	for i, e := range s.history {
		out[len(s.history)-1-i] = e
	}
	return out
}

func (s *Scheduler) reschedule() error {
	if err := s.cron.RemoveByTag(reminderTag); err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		return fmt.Errorf("failed to cancel reminder: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current.Enabled {
		s.state = StateIdle
		s.fireAt = time.Time{}
		return nil
	}

	fireAt, err := NextFireTime(s.now().In(s.loc), s.current.Time, s.current.WeekdaysOnly)
	if err != nil {
		return err
	}
	if _, err := s.cron.Every(1).Day().At(s.current.Time).Tag(reminderTag).Do(s.fire); err != nil {
		return fmt.Errorf("failed to schedule reminder: %w", err)
	}
	s.state = StateScheduled
	s.fireAt = fireAt
	return nil
}

// fire runs the reminder decision. Runs before the computed fire time, such
// as weekend runs with weekdaysOnly, are ignored.
func (s *Scheduler) fire() {
	s.mu.Lock()
	now := s.now().In(s.loc)
	if s.state != StateScheduled || now.Before(s.fireAt) {
		s.mu.Unlock()
		return
	}
	s.state = StateFired
	ctx := s.ctx
	settings := s.current
	activity := s.pickActivityLocked()
	s.mu.Unlock()

	entry := models.ReminderHistoryEntry{Type: models.ReminderTypeDaily, Activity: activity}
	if s.progress.PracticedOn(now) {
		entry.Suppressed = true
		entry.Reason = "already practiced today"
		metrics.Reminders.WithLabelValues("suppressed").Inc()
		log.WithField("activity", activity).Info("reminder suppressed, practice already logged today")
	} else {
		res := s.notifier.SendDailyReminder(ctx, activity)
		entry.Sent = res.Sent
		entry.Method = res.Method
		if res.Sent {
			s.progress.NoteReminderSent()
			metrics.Reminders.WithLabelValues("sent").Inc()
		} else {
			metrics.Reminders.WithLabelValues("failed").Inc()
		}
		log.WithFields(log.Fields{"activity": activity, "method": res.Method}).Info("daily reminder fired")
	}
	s.record(ctx, entry)

	next, err := NextFireTime(now, settings.Time, settings.WeekdaysOnly)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFired {
		// settings changed while firing
		return
	}
	if err != nil {
		log.WithError(err).Error("could not compute next reminder")
		s.state = StateIdle
		return
	}
	s.state = StateScheduled
	s.fireAt = next
}

func (s *Scheduler) pickActivityLocked() models.Activity {
	if len(s.current.Activities) == 0 {
		return models.ActivityPractice
	}
	return s.current.Activities[s.rnd.Intn(len(s.current.Activities))]
}

func (s *Scheduler) record(ctx context.Context, entry models.ReminderHistoryEntry) {
	entry.ID = uuid.NewString()
	entry.Date = s.now()

	s.mu.Lock()
	s.history = append(s.history, entry)
	if over := len(s.history) - historyLimit; over > 0 {
		s.history = append([]models.ReminderHistoryEntry(nil), s.history[over:]...)
	}
	history := append([]models.ReminderHistoryEntry(nil), s.history...)
	s.mu.Unlock()

	if err := s.kv.Set(ctx, historyKey, history); err != nil {
		log.WithError(err).Warn("could not persist reminder history")
	}
}

func (s *Scheduler) rollOver() {
	p := s.progress.RollOver()
	log.WithFields(log.Fields{"streak": p.CurrentStreak, "today": p.DailyPractice.TodayCompleted}).Info("daily rollover")
}
