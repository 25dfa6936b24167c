// Package events forwards progress changes to a message broker so other
// services can react to them.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/linguaflow/internal/progress"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const routingPrefix = "progress."

// Publisher sends a message under a routing key
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Message is the published form of a progress event
type Message struct {
	ID            string    `json:"id"`
	LearnerID     string    `json:"learnerId"`
	Kind          string    `json:"kind"`
	Amount        int       `json:"amount,omitempty"`
	Source        string    `json:"source,omitempty"`
	AchievementID string    `json:"achievementId,omitempty"`
	TotalXP       int       `json:"totalXp"`
	Streak        int       `json:"streak"`
	At            time.Time `json:"at"`
}

// Forwarder queues store events and publishes them in order. When the queue
// is full new events are dropped.
type Forwarder struct {
	pub       Publisher
	learnerID string
	queue     chan Message
}

// NewForwarder creates a forwarder with a queue of the given size
func NewForwarder(pub Publisher, learnerID string, size int) *Forwarder {
	if size <= 0 {
		size = 256
	}
	return &Forwarder{pub: pub, learnerID: learnerID, queue: make(chan Message, size)}
}

// Attach subscribes the forwarder to the store
func (f *Forwarder) Attach(store *progress.Store) func() {
	return store.Subscribe(f.enqueue)
}

func (f *Forwarder) enqueue(ev progress.Event) {
	msg := Message{
		ID:            uuid.NewString(),
		LearnerID:     f.learnerID,
		Kind:          string(ev.Kind),
		Amount:        ev.Amount,
		Source:        ev.Source,
		AchievementID: ev.AchievementID,
		TotalXP:       ev.Progress.TotalXP,
		Streak:        ev.Progress.CurrentStreak,
		At:            ev.At,
	}
	select {
	case f.queue <- msg:
	default:
		log.WithField("kind", msg.Kind).Warn("event queue full, dropping progress event")
	}
}

// Run publishes queued events until ctx is done
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.queue:
			f.publish(ctx, msg)
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, msg Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Error("could not encode progress event")
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := f.pub.Publish(pubCtx, routingPrefix+msg.Kind, body); err != nil {
		log.WithError(err).WithField("kind", msg.Kind).Warn("could not publish progress event")
		return
	}
	log.WithFields(log.Fields{"kind": msg.Kind, "id": msg.ID}).Debug("published progress event")
}
