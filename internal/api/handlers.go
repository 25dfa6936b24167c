package api

import (
	"net/http"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/internal/excel"
	"github.com/example/linguaflow/internal/speaking"
	"github.com/example/linguaflow/pkg/models"
	"github.com/go-chi/chi/v5"
)

// maxUploadBytes bounds multipart imports
const maxUploadBytes = 10 << 20

func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.Courses.GetAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (s *Server) getCourse(w http.ResponseWriter, r *http.Request) {
	course, err := s.Courses.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (s *Server) listLessons(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Courses.GetByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	lessons, err := s.Lessons.GetByCourseID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (s *Server) listFlashcards(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Courses.GetByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	cards, err := s.Flashcards.GetByCourseID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("order") == "review" {
		cards = s.Review.Next(cards)
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) getLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := s.Lessons.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (s *Server) completeLesson(w http.ResponseWriter, r *http.Request) {
	out, err := s.Practice.CompleteLesson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getLessonQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.Quizzes.GetByLessonID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (s *Server) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.Quizzes.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

type submitQuizRequest struct {
	// Answers[i] is the option picked for question i, null when unanswered
	Answers []*int `json:"answers" validate:"required"`
}

func (s *Server) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitQuizRequest
	if err := s.decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Practice.SubmitQuiz(r.Context(), chi.URLParam(r, "id"), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type rateRequest struct {
	Rating int `json:"rating" validate:"oneof=1 3 5"`
}

func (s *Server) rateFlashcard(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := s.decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Practice.RateFlashcard(r.Context(), chi.URLParam(r, "id"), req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) importFlashcards(w http.ResponseWriter, r *http.Request) {
	if s.Importer == nil {
		writeError(w, apperrors.Invalid("import is not configured"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, apperrors.Invalid("malformed upload: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperrors.Invalid("file is required"))
		return
	}
	defer file.Close()

	cfg := excel.DefaultImportConfig()
	cfg.CourseID = r.FormValue("courseId")
	cfg.SheetName = r.FormValue("sheet")
	result, err := s.Importer.Import(r.Context(), file, excel.FormatOf(header.Filename), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listExercises(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	exercises, err := s.Exercises.GetAll(r.Context(), q.Get("difficulty"), q.Get("language"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exercises)
}

func (s *Server) getExercise(w http.ResponseWriter, r *http.Request) {
	ex, err := s.Exercises.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) analyzeSpeaking(w http.ResponseWriter, r *http.Request) {
	var rec speaking.Recording
	if err := s.decode(r, &rec, true); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Practice.AnalyzeSpeaking(r.Context(), chi.URLParam(r, "id"), rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) speakingLeaderboard(w http.ResponseWriter, r *http.Request) {
	p := s.Store.Snapshot()
	writeJSON(w, http.StatusOK, speaking.Leaderboard(s.SpeakingPeers, s.LearnerID, p.SpeakingProgress))
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Snapshot())
}

type practiceRequest struct {
	Activity models.Activity `json:"activity" validate:"omitempty,oneof=practice lessons flashcards speaking quizzes"`
}

func (s *Server) completePractice(w http.ResponseWriter, r *http.Request) {
	var req practiceRequest
	if err := s.decode(r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Practice.MarkPracticeComplete(r.Context(), req.Activity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) todayStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Practice.TodayStatus())
}

func (s *Server) weeklyLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Leaderboard.Weekly(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getReminderSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Scheduler.Settings())
}

func (s *Server) updateReminderSettings(w http.ResponseWriter, r *http.Request) {
	// fields missing from the body keep their current values
	settings := s.Scheduler.Settings()
	if err := s.decode(r, &settings, false); err != nil {
		writeError(w, err)
		return
	}
	saved, err := s.Scheduler.UpdateSettings(r.Context(), settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) testReminder(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Scheduler.SendTestReminder(r.Context()))
}

func (s *Server) reminderHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Scheduler.History())
}

func (s *Server) nextReminder(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Scheduler.Status())
}

func (s *Server) getPermission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"permission": s.Dispatcher.PermissionStatus()})
}

func (s *Server) requestPermission(w http.ResponseWriter, r *http.Request) {
	perm, err := s.Dispatcher.RequestPermission(r.Context())
	if err != nil {
		writeJSON(w, apperrors.HTTPStatus(err), map[string]interface{}{
			"permission": perm,
			"error":      err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"permission": perm})
}

func (s *Server) listToasts(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Toasts.Since(since))
}

func (s *Server) listDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Downloads.List())
}

func (s *Server) startDownload(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Downloads.Start(r.Context(), chi.URLParam(r, "lessonId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

func (s *Server) cancelDownload(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Downloads.Cancel(r.Context(), chi.URLParam(r, "lessonId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) removeDownload(w http.ResponseWriter, r *http.Request) {
	if err := s.Downloads.Remove(r.Context(), chi.URLParam(r, "lessonId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
