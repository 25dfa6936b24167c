package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/linguaflow/pkg/models"
	"github.com/jmoiron/sqlx"
)

// LeaderboardRepository stores learners and their XP events
type LeaderboardRepository struct {
	db *sqlx.DB
}

// NewLeaderboardRepository creates a new repository instance
func NewLeaderboardRepository(db *sqlx.DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

// SaveLearner registers a learner. WeeklyXP and TotalXP of the entry are kept
// as a baseline that XP events add to.
func (r *LeaderboardRepository) SaveLearner(ctx context.Context, e models.LeaderboardEntry) error {
	query := r.db.Rebind(`
		INSERT INTO learners (user_id, name, avatar, country, base_weekly_xp, base_total_xp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			name = excluded.name,
			avatar = excluded.avatar,
			country = excluded.country`)
	_, err := r.db.ExecContext(ctx, query, e.UserID, e.Name, e.Avatar, e.Country, e.WeeklyXP, e.TotalXP)
	if err != nil {
		return fmt.Errorf("failed to save learner %s: %w", e.UserID, err)
	}
	return nil
}

// RecordXP appends an XP event
func (r *LeaderboardRepository) RecordXP(ctx context.Context, ev models.XPEvent) error {
	query := r.db.Rebind("INSERT INTO xp_events (user_id, amount, source, created_at) VALUES (?, ?, ?, ?)")
	if _, err := r.db.ExecContext(ctx, query, ev.UserID, ev.Amount, ev.Source, ev.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to record xp event: %w", err)
	}
	return nil
}

// Standings returns every learner with XP earned since the given instant
// added to the weekly baseline. Rows are not ranked.
func (r *LeaderboardRepository) Standings(ctx context.Context, since time.Time) ([]models.LeaderboardEntry, error) {
	query := r.db.Rebind(`
		SELECT l.user_id, l.name, l.avatar, l.country,
			l.base_weekly_xp + COALESCE((
				SELECT SUM(e.amount) FROM xp_events e
				WHERE e.user_id = l.user_id AND e.created_at >= ?
			), 0) AS weekly_xp,
			l.base_total_xp + COALESCE((
				SELECT SUM(e.amount) FROM xp_events e WHERE e.user_id = l.user_id
			), 0) AS total_xp
		FROM learners l`)

	entries := []models.LeaderboardEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get standings: %w", err)
	}
	return entries, nil
}
