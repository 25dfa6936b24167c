package downloads

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/internal/database"
	"github.com/example/linguaflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	kv      *database.KVStore
	lessons *database.LessonRepository
}

func newEnv(t *testing.T, lessons int) env {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	courses := database.NewCourseRepository(db, database.Latency{})
	require.NoError(t, courses.Save(ctx, models.Course{ID: "spanish-basics", Title: "Spanish Basics", TotalLessons: lessons}))

	repo := database.NewLessonRepository(db, database.Latency{})
	for i := 1; i <= lessons; i++ {
		require.NoError(t, repo.Save(ctx, models.Lesson{
			ID:        fmt.Sprintf("es-%02d", i),
			CourseID:  "spanish-basics",
			Title:     fmt.Sprintf("Lesson %d", i),
			Position:  i,
			SizeBytes: 1 << 20,
		}))
	}
	return env{kv: database.NewKVStore(db), lessons: repo}
}

func TestDownloadCompletes(t *testing.T) {
	e := newEnv(t, 1)
	m := NewManager(e.kv, e.lessons, time.Millisecond, 50)
	defer m.Close()

	rec, err := m.Start(context.Background(), "es-01")
	require.NoError(t, err)
	assert.Equal(t, models.DownloadQueued, rec.Status)
	assert.Equal(t, int64(1<<20), rec.SizeBytes)

	require.Eventually(t, func() bool {
		r, err := m.Get("es-01")
		return err == nil && r.Status == models.DownloadCompleted
	}, 2*time.Second, 5*time.Millisecond)

	r, _ := m.Get("es-01")
	assert.Equal(t, 100, r.Progress)
	require.NotNil(t, r.CompletedAt)

	again, err := m.Start(context.Background(), "es-01")
	require.NoError(t, err)
	assert.Equal(t, models.DownloadCompleted, again.Status)
}

func TestStartUnknownLesson(t *testing.T) {
	e := newEnv(t, 1)
	m := NewManager(e.kv, e.lessons, time.Hour, 50)
	defer m.Close()

	_, err := m.Start(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCapIsEnforced(t *testing.T) {
	e := newEnv(t, 3)
	m := NewManager(e.kv, e.lessons, time.Hour, 2)
	defer m.Close()
	ctx := context.Background()

	_, err := m.Start(ctx, "es-01")
	require.NoError(t, err)
	_, err = m.Start(ctx, "es-02")
	require.NoError(t, err)

	_, err = m.Start(ctx, "es-03")
	assert.True(t, errors.Is(err, apperrors.ErrStorageExhausted))

	require.NoError(t, m.Remove(ctx, "es-01"))
	_, err = m.Start(ctx, "es-03")
	assert.NoError(t, err)
}

func TestCancelAndRestart(t *testing.T) {
	e := newEnv(t, 1)
	m := NewManager(e.kv, e.lessons, time.Hour, 50)
	defer m.Close()
	ctx := context.Background()

	_, err := m.Start(ctx, "es-01")
	require.NoError(t, err)

	rec, err := m.Cancel(ctx, "es-01")
	require.NoError(t, err)
	assert.Equal(t, models.DownloadCancelled, rec.Status)

	_, err = m.Cancel(ctx, "es-01")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))

	rec, err = m.Start(ctx, "es-01")
	require.NoError(t, err)
	assert.Equal(t, models.DownloadQueued, rec.Status)
	assert.Zero(t, rec.Progress)
}

func TestCancelledRunLeavesRestartedRecordAlone(t *testing.T) {
	e := newEnv(t, 1)
	m := NewManager(e.kv, e.lessons, time.Millisecond, 50)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.records["es-01"] = models.DownloadRecord{LessonID: "es-01", Status: models.DownloadQueued}
	m.wg.Add(1)
	go m.run(ctx, "es-01")
	// let a tick arrive while the run waits for the lock, then cancel it
	time.Sleep(20 * time.Millisecond)
	cancel()
	m.mu.Unlock()
	m.wg.Wait()

	rec, err := m.Get("es-01")
	require.NoError(t, err)
	assert.Equal(t, models.DownloadQueued, rec.Status)
	assert.Zero(t, rec.Progress)
}

func TestRemoveUnknown(t *testing.T) {
	e := newEnv(t, 1)
	m := NewManager(e.kv, e.lessons, time.Hour, 50)
	defer m.Close()

	assert.True(t, errors.Is(m.Remove(context.Background(), "es-01"), apperrors.ErrNotFound))
	_, err := m.Get("es-01")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestLoadMarksInterruptedDownloadsFailed(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()

	first := NewManager(e.kv, e.lessons, time.Hour, 50)
	_, err := first.Start(ctx, "es-01")
	require.NoError(t, err)
	_, err = first.Start(ctx, "es-02")
	require.NoError(t, err)
	_, err = first.Cancel(ctx, "es-02")
	require.NoError(t, err)
	first.Close()

	second := NewManager(e.kv, e.lessons, time.Hour, 50)
	defer second.Close()
	require.NoError(t, second.Load(ctx))

	list := second.List()
	require.Len(t, list, 2)
	byID := map[string]models.DownloadRecord{}
	for _, r := range list {
		byID[r.LessonID] = r
	}
	assert.Equal(t, models.DownloadFailed, byID["es-01"].Status)
	assert.Equal(t, "interrupted", byID["es-01"].Error)
	assert.Equal(t, models.DownloadCancelled, byID["es-02"].Status)
}
