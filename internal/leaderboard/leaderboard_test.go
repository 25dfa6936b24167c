package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/example/linguaflow/internal/database"
	"github.com/example/linguaflow/internal/progress"
	"github.com/example/linguaflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoard(t *testing.T, now time.Time) (*Board, *database.LeaderboardRepository) {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := database.NewLeaderboardRepository(db)
	ctx := context.Background()
	for _, e := range []models.LeaderboardEntry{
		{UserID: "emma", Name: "Emma Rodriguez", WeeklyXP: 850, TotalXP: 12450},
		{UserID: "chen", Name: "Chen Wei", WeeklyXP: 720, TotalXP: 11200},
		{UserID: "sofia", Name: "Sofia Rossi", WeeklyXP: 380, TotalXP: 7650},
	} {
		require.NoError(t, repo.SaveLearner(ctx, e))
	}
	return New(repo, "me", "You", func() time.Time { return now }), repo
}

func TestWeeklyRanksLearners(t *testing.T) {
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	board, repo := newBoard(t, now)
	ctx := context.Background()

	require.NoError(t, board.Register(ctx, 1250))
	require.NoError(t, repo.RecordXP(ctx, models.XPEvent{UserID: "me", Amount: 500, Source: "quiz", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.RecordXP(ctx, models.XPEvent{UserID: "me", Amount: 300, Source: "quiz", CreatedAt: now.Add(-2 * time.Hour)}))
	// outside the window, only counts towards the total
	require.NoError(t, repo.RecordXP(ctx, models.XPEvent{UserID: "me", Amount: 100, Source: "quiz", CreatedAt: now.Add(-8 * 24 * time.Hour)}))

	entries, err := board.Weekly(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, "emma", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.False(t, entries[0].IsCurrentUser)

	me := entries[1]
	assert.Equal(t, "me", me.UserID)
	assert.Equal(t, 2, me.Rank)
	assert.True(t, me.IsCurrentUser)
	assert.Equal(t, 800, me.WeeklyXP)
	assert.Equal(t, 2150, me.TotalXP)

	assert.Equal(t, 3, entries[2].Rank)
	assert.Equal(t, 4, entries[3].Rank)
}

func TestRegisterKeepsBaseline(t *testing.T) {
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	board, _ := newBoard(t, now)
	ctx := context.Background()

	require.NoError(t, board.Register(ctx, 1250))
	require.NoError(t, board.Register(ctx, 9999))

	entries, err := board.Weekly(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsCurrentUser {
			assert.Equal(t, 1250, e.TotalXP)
		}
	}
}

func TestTrackRecordsStoreXP(t *testing.T) {
	now := time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)
	board, _ := newBoard(t, now)
	ctx := context.Background()
	require.NoError(t, board.Register(ctx, 0))

	store := progress.NewStore(progress.Initial(now, models.DefaultReminderSettings()),
		progress.WithClock(func() time.Time { return now }), progress.WithLocation(time.UTC))
	stop := board.Track(store)

	_, err := store.AddXP(900, "spanish-basics")
	require.NoError(t, err)
	stop()
	_, err = store.AddXP(50, "spanish-basics")
	require.NoError(t, err)

	entries, err := board.Weekly(ctx)
	require.NoError(t, err)
	assert.Equal(t, "me", entries[0].UserID)
	assert.Equal(t, 900, entries[0].WeeklyXP)
}
