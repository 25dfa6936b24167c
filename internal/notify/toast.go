package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ToastKind styles an in-app message
type ToastKind string

const (
	ToastInfo     ToastKind = "info"
	ToastSuccess  ToastKind = "success"
	ToastWarning  ToastKind = "warning"
	ToastError    ToastKind = "error"
	ToastReminder ToastKind = "reminder"
)

// Toast is an in-app message shown by the client
type Toast struct {
	ID        string    `json:"id"`
	Kind      ToastKind `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToastFeed keeps the most recent toasts and forwards new ones to listeners
type ToastFeed struct {
	mu        sync.Mutex
	items     []Toast
	limit     int
	listeners []func(Toast)
}

// NewToastFeed creates a feed retaining up to limit toasts
func NewToastFeed(limit int) *ToastFeed {
	if limit <= 0 {
		limit = 100
	}
	return &ToastFeed{limit: limit}
}

// OnPush registers a listener for new toasts
func (f *ToastFeed) OnPush(fn func(Toast)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Push appends a toast, dropping the oldest beyond the limit
func (f *ToastFeed) Push(kind ToastKind, message string) Toast {
	t := Toast{ID: uuid.NewString(), Kind: kind, Message: message, CreatedAt: time.Now()}

	f.mu.Lock()
	f.items = append(f.items, t)
	if over := len(f.items) - f.limit; over > 0 {
		f.items = append([]Toast(nil), f.items[over:]...)
	}
	listeners := append([](func(Toast))(nil), f.listeners...)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
	return t
}

// Since returns toasts created after the given instant, oldest first
func (f *ToastFeed) Since(after time.Time) []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Toast{}
	for _, t := range f.items {
		if t.CreatedAt.After(after) {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of retained toasts
func (f *ToastFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
