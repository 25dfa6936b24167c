// Package notify delivers reminders to the learner. A notification goes to
// the first platform channel with granted permission; when none accepts it,
// it lands in the in-app toast feed.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/internal/metrics"
	"github.com/example/linguaflow/pkg/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Permission is the notification permission state of a platform
type Permission string

const (
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
	PermissionDefault     Permission = "default"
	PermissionUnsupported Permission = "unsupported"
)

// Delivery methods reported in a Result
const (
	MethodBrowser  = "browser"
	MethodTelegram = "telegram"
	MethodToast    = "toast"
)

// Notification is a platform notification
type Notification struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Tag       string                 `json:"tag"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Result reports how a notification was delivered
type Result struct {
	Sent   bool   `json:"sent"`
	Method string `json:"method"`
	Reason string `json:"reason,omitempty"`
}

// Channel is a notification platform
type Channel interface {
	Name() string
	Permission() Permission
	Deliver(ctx context.Context, n Notification) error
}

// PermissionRequester is implemented by channels that can prompt for permission
type PermissionRequester interface {
	RequestPermission(ctx context.Context) error
}

var dailyMessages = map[models.Activity]string{
	models.ActivityPractice:   "Time for your daily language practice! 📚",
	models.ActivityLessons:    "Don't forget to complete today's lesson! 🎓",
	models.ActivityFlashcards: "Review your flashcards to reinforce learning! 🧠",
	models.ActivitySpeaking:   "Practice speaking to improve pronunciation! 🎤",
	models.ActivityQuizzes:    "Test yourself with a quick quiz! ✅",
}

// DailyMessage returns the reminder text for an activity
func DailyMessage(activity models.Activity) string {
	if msg, ok := dailyMessages[activity]; ok {
		return msg
	}
	return dailyMessages[models.ActivityPractice]
}

// StreakMessage returns the streak alert text
func StreakMessage(days int) string {
	return fmt.Sprintf("Keep your %d-day streak alive! 🔥", days)
}

// Dispatcher sends notifications through its channels, falling back to toasts
type Dispatcher struct {
	channels []Channel
	toasts   *ToastFeed
	now      func() time.Time
}

// NewDispatcher creates a dispatcher trying channels in the given order
func NewDispatcher(toasts *ToastFeed, channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels, toasts: toasts, now: time.Now}
}

// SendDailyReminder sends the daily practice reminder for an activity
func (d *Dispatcher) SendDailyReminder(ctx context.Context, activity models.Activity) Result {
	if activity == "" {
		activity = models.ActivityPractice
	}
	msg := DailyMessage(activity)
	n := d.notification("LinguaFlow Reminder", msg, "reminder-"+string(activity), map[string]interface{}{
		"type":     "daily-reminder",
		"activity": string(activity),
	})
	return d.send(ctx, n, "🔔 "+msg)
}

// SendStreakReminder sends a streak alert
func (d *Dispatcher) SendStreakReminder(ctx context.Context, days int) Result {
	msg := StreakMessage(days)
	n := d.notification("Streak Alert", msg, "streak-reminder", map[string]interface{}{
		"type":   "streak-reminder",
		"streak": days,
	})
	return d.send(ctx, n, "🔔 "+msg)
}

// SendCustomReminder sends a free-form notification
func (d *Dispatcher) SendCustomReminder(ctx context.Context, title, body string) Result {
	n := d.notification(title, body, "linguaflow-reminder", nil)
	return d.send(ctx, n, fmt.Sprintf("%s: %s", title, body))
}

// Notify shows an informational toast without trying the platforms
func (d *Dispatcher) Notify(kind ToastKind, message string) {
	d.toasts.Push(kind, message)
}

// PermissionStatus is granted when any channel is granted, otherwise the
// state of the first channel
func (d *Dispatcher) PermissionStatus() Permission {
	if len(d.channels) == 0 {
		return PermissionUnsupported
	}
	for _, ch := range d.channels {
		if ch.Permission() == PermissionGranted {
			return PermissionGranted
		}
	}
	return d.channels[0].Permission()
}

// RequestPermission asks every capable channel for permission and returns
// the resulting state. A refused permission is reported as an error.
func (d *Dispatcher) RequestPermission(ctx context.Context) (Permission, error) {
	for _, ch := range d.channels {
		req, ok := ch.(PermissionRequester)
		if !ok {
			continue
		}
		if err := req.RequestPermission(ctx); err != nil {
			log.WithError(err).WithField("channel", ch.Name()).Warn("permission request failed")
		}
	}

	status := d.PermissionStatus()
	switch status {
	case PermissionGranted:
		d.toasts.Push(ToastSuccess, "Daily practice reminders enabled! 🔔")
	case PermissionDenied:
		d.toasts.Push(ToastWarning, "Notifications blocked. You can enable them in browser settings.")
		return status, apperrors.PermissionDenied(d.channels[0].Name())
	case PermissionUnsupported:
		d.toasts.Push(ToastInfo, "Notifications are not supported on this device")
	}
	return status, nil
}

func (d *Dispatcher) notification(title, body, tag string, data map[string]interface{}) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		Tag:       tag,
		Data:      data,
		CreatedAt: d.now(),
	}
}

func (d *Dispatcher) send(ctx context.Context, n Notification, toast string) Result {
	for _, ch := range d.channels {
		if ch.Permission() != PermissionGranted {
			continue
		}
		if err := ch.Deliver(ctx, n); err != nil {
			log.WithError(err).WithFields(log.Fields{"channel": ch.Name(), "tag": n.Tag}).Warn("notification delivery failed")
			continue
		}
		metrics.Notifications.WithLabelValues(ch.Name()).Inc()
		return Result{Sent: true, Method: ch.Name()}
	}

	d.toasts.Push(ToastReminder, toast)
	metrics.Notifications.WithLabelValues(MethodToast).Inc()
	return Result{Sent: true, Method: MethodToast}
}
