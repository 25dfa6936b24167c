// Package leaderboard ranks learners by the XP they earned this week.
package leaderboard

import (
	"context"
	"sort"
	"time"

	"github.com/example/linguaflow/internal/progress"
	"github.com/example/linguaflow/pkg/models"
	log "github.com/sirupsen/logrus"
)

// Window is the period weekly XP is summed over
const Window = 7 * 24 * time.Hour

// Repository stores learners and XP events
type Repository interface {
	SaveLearner(ctx context.Context, e models.LeaderboardEntry) error
	RecordXP(ctx context.Context, ev models.XPEvent) error
	Standings(ctx context.Context, since time.Time) ([]models.LeaderboardEntry, error)
}

// Board is the weekly ranking of the learner against the peers
type Board struct {
	repo      Repository
	learnerID string
	name      string
	now       func() time.Time
}

// New creates a board for the local learner
func New(repo Repository, learnerID, name string, now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	return &Board{repo: repo, learnerID: learnerID, name: name, now: now}
}

// Register adds the local learner with the XP earned before any event was
// recorded. Registering again keeps the original baseline.
func (b *Board) Register(ctx context.Context, totalXP int) error {
	return b.repo.SaveLearner(ctx, models.LeaderboardEntry{
		UserID:  b.learnerID,
		Name:    b.name,
		Avatar:  "👤",
		TotalXP: totalXP,
	})
}

// Weekly returns the standings sorted by weekly XP with ranks from 1
func (b *Board) Weekly(ctx context.Context) ([]models.LeaderboardEntry, error) {
	entries, err := b.repo.Standings(ctx, b.now().Add(-Window))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].WeeklyXP != entries[j].WeeklyXP {
			return entries[i].WeeklyXP > entries[j].WeeklyXP
		}
		return entries[i].TotalXP > entries[j].TotalXP
	})
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].IsCurrentUser = entries[i].UserID == b.learnerID
	}
	return entries, nil
}

// Track records every XP award of the store as an event of the local
// learner. The returned func stops tracking.
func (b *Board) Track(store *progress.Store) func() {
	return store.Subscribe(func(ev progress.Event) {
		if ev.Kind != progress.EventXPAdded {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := b.repo.RecordXP(ctx, models.XPEvent{
			UserID:    b.learnerID,
			Amount:    ev.Amount,
			Source:    ev.Source,
			CreatedAt: ev.At,
		})
		if err != nil {
			log.WithError(err).WithField("amount", ev.Amount).Error("could not record xp event")
		}
	})
}
