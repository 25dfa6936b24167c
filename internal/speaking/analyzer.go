// Package speaking scores recorded speaking attempts.
package speaking

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/example/linguaflow/internal/ai"
	"github.com/example/linguaflow/pkg/models"
	log "github.com/sirupsen/logrus"
)

// Analysis sources
const (
	SourceSimulated = "simulated"
	SourceCoach     = "coach"
)

// bytes of audio per second of recording
const bytesPerSecond = 16000

// Recording is a submitted attempt
type Recording struct {
	SizeBytes  int    `json:"sizeBytes" validate:"gte=0"`
	Transcript string `json:"transcript,omitempty"`
}

// Coach grades a transcript against the target text
type Coach interface {
	GradePronunciation(ctx context.Context, target, transcript string) (ai.Grade, error)
}

// Analyzer produces pronunciation reports
type Analyzer struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	coach Coach
	now   func() time.Time
}

// NewAnalyzer creates an analyzer. coach may be nil.
func NewAnalyzer(rnd *rand.Rand, coach Coach, now func() time.Time) *Analyzer {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &Analyzer{rnd: rnd, coach: coach, now: now}
}

// Analyze scores a recording of the exercise text. When a coach is set and
// a transcript is supplied the coach grades pronunciation; if it fails the
// simulated score is kept.
func (a *Analyzer) Analyze(ctx context.Context, ex models.SpeakingExercise, rec Recording) models.SpeakingAnalysis {
	a.mu.Lock()
	base := 70 + a.rnd.Float64()*25
	pronunciation := int(math.Round(base + (a.rnd.Float64()-0.5)*10))
	fluency := int(math.Round(base + (a.rnd.Float64()-0.5)*8))
	clarity := int(math.Round(base + (a.rnd.Float64()-0.5)*12))
	a.mu.Unlock()

	source := SourceSimulated
	var comment string
	if a.coach != nil && rec.Transcript != "" {
		grade, err := a.coach.GradePronunciation(ctx, ex.Text, rec.Transcript)
		if err != nil {
			log.WithError(err).WithField("exercise", ex.ID).Warn("speaking coach unavailable, using simulated score")
		} else {
			pronunciation = grade.Score
			comment = grade.Comment
			source = SourceCoach
		}
	}

	overall := int(math.Round(float64(pronunciation+fluency+clarity) / 3))
	feedback := Feedback(overall)
	if comment != "" {
		feedback += " " + comment
	}

	return models.SpeakingAnalysis{
		ExerciseID:   ex.ID,
		OverallScore: clamp(overall),
		DetailedScores: []models.DetailedScore{
			{Category: "Pronunciation", Value: clamp(pronunciation), Description: "Accuracy of individual sound production"},
			{Category: "Fluency", Value: clamp(fluency), Description: "Smoothness and natural flow of speech"},
			{Category: "Clarity", Value: clamp(clarity), Description: "Overall intelligibility and articulation"},
		},
		Feedback:          feedback,
		Recommendations:   Recommendations(overall),
		ComparedToNative:  int(math.Round(float64(overall) * 0.9)),
		RecordingDuration: int(math.Round(float64(rec.SizeBytes) / bytesPerSecond)),
		Source:            source,
		Timestamp:         a.now(),
	}
}

// Feedback returns the feedback text for an overall score
func Feedback(overall int) string {
	switch {
	case overall >= 90:
		return "Excellent pronunciation! Your speech is very clear and natural. You sound almost native-like. Keep up the great work!"
	case overall >= 80:
		return "Great job! Your pronunciation is quite good. Focus on maintaining consistency across all sounds and continue practicing for even better results."
	case overall >= 70:
		return "Good effort! Your pronunciation is understandable with some areas for improvement. Practice specific sounds that need work and focus on rhythm and intonation."
	case overall >= 60:
		return "You're making progress! Work on clearer articulation and slower speech initially. Regular practice will help improve your pronunciation significantly."
	default:
		return "Keep practicing! Focus on individual sounds first, then work on connecting them smoothly. Consider listening to native speakers more and mimicking their pronunciation."
	}
}

// Recommendations returns practice advice for an overall score
func Recommendations(score int) []string {
	switch {
	case score < 70:
		return []string{
			"Practice individual sounds using phonetic exercises",
			"Listen to native speakers and try to mimic their pronunciation",
			"Record yourself regularly to track improvement",
		}
	case score < 85:
		return []string{
			"Focus on intonation and stress patterns",
			"Practice connected speech and linking words",
			"Work on rhythm and natural flow",
		}
	default:
		return []string{
			"Maintain your excellent pronunciation",
			"Challenge yourself with more complex texts",
			"Help others improve their pronunciation",
		}
	}
}

// Leaderboard merges the learner's speaking record into the peers and
// sorts by score
func Leaderboard(peers []models.SpeakingLeader, learnerID string, p models.SpeakingProgress) []models.SpeakingLeader {
	board := make([]models.SpeakingLeader, 0, len(peers)+1)
	board = append(board, peers...)
	board = append(board, models.SpeakingLeader{
		ID:            learnerID,
		Name:          "You",
		Avatar:        "👤",
		Score:         int(math.Round(p.AverageScore)),
		Exercises:     p.TotalPractices,
		IsCurrentUser: true,
	})
	sort.SliceStable(board, func(i, j int) bool { return board[i].Score > board[j].Score })
	return board
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
