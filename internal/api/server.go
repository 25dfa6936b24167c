// Package api serves the LinguaFlow HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/internal/downloads"
	"github.com/example/linguaflow/internal/excel"
	"github.com/example/linguaflow/internal/leaderboard"
	"github.com/example/linguaflow/internal/metrics"
	"github.com/example/linguaflow/internal/notify"
	"github.com/example/linguaflow/internal/practice"
	"github.com/example/linguaflow/internal/progress"
	"github.com/example/linguaflow/internal/review"
	"github.com/example/linguaflow/internal/scheduler"
	"github.com/example/linguaflow/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// CourseReader reads the course catalog
type CourseReader interface {
	GetAll(ctx context.Context) ([]models.Course, error)
	GetByID(ctx context.Context, id string) (models.Course, error)
}

// LessonReader reads lessons
type LessonReader interface {
	GetByID(ctx context.Context, id string) (models.Lesson, error)
	GetByCourseID(ctx context.Context, courseID string) ([]models.Lesson, error)
}

// QuizReader reads quizzes
type QuizReader interface {
	GetByID(ctx context.Context, id string) (models.Quiz, error)
	GetByLessonID(ctx context.Context, lessonID string) (models.Quiz, error)
}

// FlashcardReader reads flashcards
type FlashcardReader interface {
	GetByCourseID(ctx context.Context, courseID string) ([]models.Flashcard, error)
}

// ExerciseReader reads speaking exercises
type ExerciseReader interface {
	GetAll(ctx context.Context, difficulty, language string) ([]models.SpeakingExercise, error)
	GetByID(ctx context.Context, id string) (models.SpeakingExercise, error)
}

// Deps are the services behind the API
type Deps struct {
	Courses    CourseReader
	Lessons    LessonReader
	Quizzes    QuizReader
	Flashcards FlashcardReader
	Exercises  ExerciseReader

	Practice    *practice.Service
	Store       *progress.Store
	Scheduler   *scheduler.Scheduler
	Dispatcher  *notify.Dispatcher
	Toasts      *notify.ToastFeed
	Downloads   *downloads.Manager
	Leaderboard *leaderboard.Board
	Importer    *excel.Importer
	Review      *review.Queue

	// Hub serves /ws
	Hub http.Handler

	LearnerID     string
	SpeakingPeers []models.SpeakingLeader
}

// Server is the HTTP front of the service
type Server struct {
	Deps
	validate *validator.Validate
	router   chi.Router
}

// NewServer builds the router
func NewServer(d Deps) *Server {
	if d.Review == nil {
		d.Review = review.NewQueue(0)
	}
	s := &Server{Deps: d, validate: validator.New()}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observe)

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())
	if s.Hub != nil {
		r.Handle("/ws", s.Hub)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/courses", s.listCourses)
		r.Get("/courses/{id}", s.getCourse)
		r.Get("/courses/{id}/lessons", s.listLessons)
		r.Get("/courses/{id}/flashcards", s.listFlashcards)

		r.Get("/lessons/{id}", s.getLesson)
		r.Post("/lessons/{id}/complete", s.completeLesson)
		r.Get("/lessons/{id}/quiz", s.getLessonQuiz)

		r.Get("/quizzes/{id}", s.getQuiz)
		r.Post("/quizzes/{id}/submit", s.submitQuiz)

		r.Post("/flashcards/import", s.importFlashcards)
		r.Post("/flashcards/{id}/rate", s.rateFlashcard)

		r.Get("/speaking/exercises", s.listExercises)
		r.Get("/speaking/exercises/{id}", s.getExercise)
		r.Post("/speaking/exercises/{id}/analyze", s.analyzeSpeaking)
		r.Get("/speaking/leaderboard", s.speakingLeaderboard)

		r.Get("/progress", s.getProgress)
		r.Post("/practice/complete", s.completePractice)
		r.Get("/practice/today", s.todayStatus)
		r.Get("/leaderboard", s.weeklyLeaderboard)

		r.Route("/reminders", func(r chi.Router) {
			r.Get("/settings", s.getReminderSettings)
			r.Put("/settings", s.updateReminderSettings)
			r.Post("/test", s.testReminder)
			r.Get("/history", s.reminderHistory)
			r.Get("/next", s.nextReminder)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/permission", s.getPermission)
			r.Post("/permission", s.requestPermission)
			r.Get("/toasts", s.listToasts)
		})

		r.Route("/downloads", func(r chi.Router) {
			r.Get("/", s.listDownloads)
			r.Post("/{lessonId}", s.startDownload)
			r.Delete("/{lessonId}", s.removeDownload)
			r.Post("/{lessonId}/cancel", s.cancelDownload)
		})
	})
	return r
}

// observe records request latency and logs each request. chi's wrapper
// keeps http.Hijacker so websocket upgrades pass through.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(duration.Seconds())

		entry := log.WithFields(log.Fields{
			"method":   r.Method,
			"route":    route,
			"status":   status,
			"duration": duration,
			"request":  middleware.GetReqID(r.Context()),
		})
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		log.WithError(err).Error("request error")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decode reads a JSON body into dst and validates its struct tags. An empty
// body leaves dst untouched when allowEmpty is set.
func (s *Server) decode(r *http.Request, dst interface{}, allowEmpty bool) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.Invalid("malformed request body: %v", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.Invalid("%s failed on %s", fe.Field(), fe.Tag())
		}
		return apperrors.Invalid("%v", err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}
	if s.Scheduler != nil {
		resp["reminders"] = s.Scheduler.Status().State
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseSince(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, apperrors.Invalid("since must be RFC 3339: %s", raw)
	}
	return t, nil
}
