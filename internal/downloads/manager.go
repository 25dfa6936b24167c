// Package downloads keeps lessons available offline. Transfers are
// simulated: each download advances in fixed steps until complete.
package downloads

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/internal/metrics"
	"github.com/example/linguaflow/pkg/models"
	log "github.com/sirupsen/logrus"
)

const (
	storageKey = "linguaflow-downloads"
	// progress gained per step
	stepPercent = 10
)

// KV persists the download records
type KV interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// Lessons resolves the lesson being downloaded
type Lessons interface {
	GetByID(ctx context.Context, id string) (models.Lesson, error)
}

// Manager runs and records downloads
type Manager struct {
	kv      KV
	lessons Lessons
	step    time.Duration
	limit   int
	now     func() time.Time

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	persistMu sync.Mutex
	mu        sync.Mutex
	records   map[string]models.DownloadRecord
	running   map[string]context.CancelFunc
}

// NewManager creates a manager. Downloads run until Close.
func NewManager(kv KV, lessons Lessons, step time.Duration, limit int) *Manager {
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		kv:      kv,
		lessons: lessons,
		step:    step,
		limit:   limit,
		now:     time.Now,
		base:    base,
		cancel:  cancel,
		records: make(map[string]models.DownloadRecord),
		running: make(map[string]context.CancelFunc),
	}
}

// Load restores the stored records. Downloads that were in flight when the
// process stopped are marked failed.
func (m *Manager) Load(ctx context.Context) error {
	var stored []models.DownloadRecord
	if _, err := m.kv.Get(ctx, storageKey, &stored); err != nil {
		return fmt.Errorf("failed to load downloads: %w", err)
	}

	m.mu.Lock()
	interrupted := 0
	for _, rec := range stored {
		if rec.Active() {
			rec.Status = models.DownloadFailed
			rec.Error = "interrupted"
			interrupted++
		}
		m.records[rec.LessonID] = rec
	}
	m.mu.Unlock()

	if interrupted > 0 {
		log.WithField("count", interrupted).Warn("marked interrupted downloads as failed")
		return m.persist(ctx)
	}
	return nil
}

// List returns every record, oldest first
func (m *Manager) List() []models.DownloadRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked()
}

// Get returns the record of a lesson
func (m *Manager) Get(lessonID string) (models.DownloadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[lessonID]
	if !ok {
		return models.DownloadRecord{}, apperrors.NotFound("download", lessonID)
	}
	return rec, nil
}

// Start queues a download of the lesson. A lesson that is already stored
// or in flight is returned as is; failed and cancelled ones restart.
func (m *Manager) Start(ctx context.Context, lessonID string) (models.DownloadRecord, error) {
	lesson, err := m.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return models.DownloadRecord{}, err
	}

	m.mu.Lock()
	existing, ok := m.records[lessonID]
	if ok && (existing.Active() || existing.Status == models.DownloadCompleted) {
		m.mu.Unlock()
		return existing, nil
	}
	if !ok && len(m.records) >= m.limit {
		m.mu.Unlock()
		return models.DownloadRecord{}, apperrors.StorageExhausted(m.limit)
	}

	rec := models.DownloadRecord{
		LessonID:  lesson.ID,
		CourseID:  lesson.CourseID,
		Title:     lesson.Title,
		Status:    models.DownloadQueued,
		SizeBytes: lesson.SizeBytes,
		StartedAt: m.now(),
	}
	m.records[lessonID] = rec
	runCtx, cancel := context.WithCancel(m.base)
	m.running[lessonID] = cancel
	m.mu.Unlock()

	metrics.ActiveDownloads.Inc()
	m.wg.Add(1)
	go m.run(runCtx, lessonID)

	log.WithFields(log.Fields{"lesson": lessonID, "bytes": lesson.SizeBytes}).Info("download started")
	return rec, m.persist(ctx)
}

// Cancel stops an in-flight download
func (m *Manager) Cancel(ctx context.Context, lessonID string) (models.DownloadRecord, error) {
	m.mu.Lock()
	rec, ok := m.records[lessonID]
	if !ok {
		m.mu.Unlock()
		return models.DownloadRecord{}, apperrors.NotFound("download", lessonID)
	}
	if !rec.Active() {
		m.mu.Unlock()
		return models.DownloadRecord{}, apperrors.Invalid("download of %s is %s", lessonID, rec.Status)
	}
	rec.Status = models.DownloadCancelled
	m.records[lessonID] = rec
	m.stopLocked(lessonID)
	m.mu.Unlock()

	log.WithField("lesson", lessonID).Info("download cancelled")
	return rec, m.persist(ctx)
}

// Remove deletes the record, cancelling the download if needed
func (m *Manager) Remove(ctx context.Context, lessonID string) error {
	m.mu.Lock()
	if _, ok := m.records[lessonID]; !ok {
		m.mu.Unlock()
		return apperrors.NotFound("download", lessonID)
	}
	delete(m.records, lessonID)
	m.stopLocked(lessonID)
	m.mu.Unlock()

	return m.persist(ctx)
}

// Close stops all downloads and waits for them
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, lessonID string) {
	defer m.wg.Done()
	defer metrics.ActiveDownloads.Dec()

	ticker := time.NewTicker(m.step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		// a cancelled run must not advance a record restarted after it
		if ctx.Err() != nil {
			m.mu.Unlock()
			return
		}
		rec, ok := m.records[lessonID]
		if !ok || !rec.Active() {
			m.mu.Unlock()
			return
		}
		rec.Status = models.DownloadDownloading
		rec.Progress += stepPercent
		done := rec.Progress >= 100
		if done {
			now := m.now()
			rec.Progress = 100
			rec.Status = models.DownloadCompleted
			rec.CompletedAt = &now
			delete(m.running, lessonID)
		}
		m.records[lessonID] = rec
		m.mu.Unlock()

		if err := m.persist(ctx); err != nil {
			log.WithError(err).WithField("lesson", lessonID).Warn("could not persist download progress")
		}
		if done {
			log.WithField("lesson", lessonID).Info("download completed")
			return
		}
	}
}

// stopLocked must be called with mu held
func (m *Manager) stopLocked(lessonID string) {
	if cancel, ok := m.running[lessonID]; ok {
		cancel()
		delete(m.running, lessonID)
	}
}

func (m *Manager) listLocked() []models.DownloadRecord {
	out := make([]models.DownloadRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].LessonID < out[j].LessonID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (m *Manager) persist(ctx context.Context) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	records := m.listLocked()
	m.mu.Unlock()

	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := m.kv.Set(ctx, storageKey, records); err != nil {
		return fmt.Errorf("failed to save downloads: %w", err)
	}
	return nil
}
