package notify

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/pkg/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	name       string
	permission Permission
	grantOnAsk Permission
	failWith   error
	delivered  []Notification
}

func (f *fakeChannel) Name() string           { return f.name }
func (f *fakeChannel) Permission() Permission { return f.permission }

func (f *fakeChannel) Deliver(ctx context.Context, n Notification) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.delivered = append(f.delivered, n)
	return nil
}

func (f *fakeChannel) RequestPermission(ctx context.Context) error {
	if f.grantOnAsk != "" {
		f.permission = f.grantOnAsk
	}
	return nil
}

func TestDailyReminderUsesGrantedChannel(t *testing.T) {
	browser := &fakeChannel{name: MethodBrowser, permission: PermissionGranted}
	d := NewDispatcher(NewToastFeed(10), browser)

	res := d.SendDailyReminder(context.Background(), models.ActivityFlashcards)

	assert.Equal(t, Result{Sent: true, Method: MethodBrowser}, res)
	require.Len(t, browser.delivered, 1)
	n := browser.delivered[0]
	assert.Equal(t, "LinguaFlow Reminder", n.Title)
	assert.Equal(t, "Review your flashcards to reinforce learning! 🧠", n.Body)
	assert.Equal(t, "reminder-flashcards", n.Tag)
	assert.Equal(t, "daily-reminder", n.Data["type"])
	assert.NotEmpty(t, n.ID)
}

func TestFallsBackToToastWhenDenied(t *testing.T) {
	feed := NewToastFeed(10)
	browser := &fakeChannel{name: MethodBrowser, permission: PermissionDenied}
	d := NewDispatcher(feed, browser)

	res := d.SendStreakReminder(context.Background(), 7)

	assert.Equal(t, Result{Sent: true, Method: MethodToast}, res)
	assert.Empty(t, browser.delivered)
	toasts := feed.Since(time.Time{})
	require.Len(t, toasts, 1)
	assert.Equal(t, ToastReminder, toasts[0].Kind)
	assert.Equal(t, "🔔 Keep your 7-day streak alive! 🔥", toasts[0].Message)
}

func TestSkipsFailingChannel(t *testing.T) {
	broken := &fakeChannel{name: MethodBrowser, permission: PermissionGranted, failWith: errors.New("closed")}
	telegram := &fakeChannel{name: MethodTelegram, permission: PermissionGranted}
	d := NewDispatcher(NewToastFeed(10), broken, telegram)

	res := d.SendCustomReminder(context.Background(), "Hi", "there")

	assert.Equal(t, MethodTelegram, res.Method)
	require.Len(t, telegram.delivered, 1)
	assert.Equal(t, "linguaflow-reminder", telegram.delivered[0].Tag)
}

func TestUnknownActivityUsesPracticeMessage(t *testing.T) {
	assert.Equal(t, DailyMessage(models.ActivityPractice), DailyMessage("juggling"))
}

func TestPermissionStatus(t *testing.T) {
	assert.Equal(t, PermissionUnsupported, NewDispatcher(NewToastFeed(1)).PermissionStatus())

	d := NewDispatcher(NewToastFeed(1),
		&fakeChannel{name: MethodBrowser, permission: PermissionDefault},
		&fakeChannel{name: MethodTelegram, permission: PermissionGranted},
	)
	assert.Equal(t, PermissionGranted, d.PermissionStatus())
}

func TestRequestPermission(t *testing.T) {
	t.Run("granted", func(t *testing.T) {
		feed := NewToastFeed(10)
		d := NewDispatcher(feed, &fakeChannel{name: MethodBrowser, permission: PermissionDefault, grantOnAsk: PermissionGranted})

		status, err := d.RequestPermission(context.Background())
		require.NoError(t, err)
		assert.Equal(t, PermissionGranted, status)
		assert.Equal(t, ToastSuccess, feed.Since(time.Time{})[0].Kind)
	})

	t.Run("denied", func(t *testing.T) {
		d := NewDispatcher(NewToastFeed(10), &fakeChannel{name: MethodBrowser, permission: PermissionDefault, grantOnAsk: PermissionDenied})

		status, err := d.RequestPermission(context.Background())
		assert.True(t, errors.Is(err, apperrors.ErrPermissionDenied))
		assert.Equal(t, PermissionDenied, status)
	})
}

func TestToastFeedKeepsMostRecent(t *testing.T) {
	feed := NewToastFeed(3)
	var seen []string
	feed.OnPush(func(t Toast) { seen = append(seen, t.Message) })

	for _, m := range []string{"a", "b", "c", "d"} {
		feed.Push(ToastInfo, m)
	}

	assert.Equal(t, 3, feed.Len())
	var kept []string
	for _, t := range feed.Since(time.Time{}) {
		kept = append(kept, t.Message)
	}
	assert.Equal(t, []string{"b", "c", "d"}, kept)
	assert.Equal(t, []string{"a", "b", "c", "d"}, seen)
}

func TestHubDeliversToGrantedClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	assert.Equal(t, PermissionUnsupported, hub.Permission())

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, PermissionDefault, hub.Permission())

	require.NoError(t, conn.WriteJSON(Frame{Type: FramePermission, Permission: PermissionGranted}))
	require.Eventually(t, func() bool { return hub.Permission() == PermissionGranted }, time.Second, 10*time.Millisecond)

	d := NewDispatcher(NewToastFeed(10), hub)
	res := d.SendDailyReminder(context.Background(), models.ActivitySpeaking)
	assert.Equal(t, MethodBrowser, res.Method)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, FrameNotification, f.Type)
	require.NotNil(t, f.Notification)
	assert.Equal(t, "reminder-speaking", f.Notification.Tag)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubWithoutReceiverFallsBackToToast(t *testing.T) {
	hub := NewHub()
	assert.Error(t, hub.Deliver(context.Background(), Notification{Title: "hi"}))

	// granted client whose send buffer never drains
	hub.clients["stuck"] = &client{id: "stuck", send: make(chan []byte), permission: PermissionGranted}
	require.Equal(t, PermissionGranted, hub.Permission())
	assert.Error(t, hub.Deliver(context.Background(), Notification{Title: "hi"}))

	toasts := NewToastFeed(10)
	d := NewDispatcher(toasts, hub)
	res := d.SendDailyReminder(context.Background(), models.ActivityLessons)
	assert.Equal(t, Result{Sent: true, Method: MethodToast}, res)
	assert.Equal(t, 1, toasts.Len())
}
