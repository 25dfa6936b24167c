package models

import "time"

// SpeakingExercise is a text the learner reads aloud
type SpeakingExercise struct {
	ID          string `json:"id" db:"id" yaml:"id"`
	Title       string `json:"title" db:"title" yaml:"title"`
	Description string `json:"description" db:"description" yaml:"description"`
	Text        string `json:"text" db:"text" yaml:"text"`
	Difficulty  string `json:"difficulty" db:"difficulty" yaml:"difficulty"`
	Duration    string `json:"duration" db:"duration" yaml:"duration"`
	Type        string `json:"type" db:"type" yaml:"type"`
	Language    string `json:"language" db:"language" yaml:"language"`
	NativeAudio string `json:"nativeAudio" db:"native_audio" yaml:"nativeAudio"`
}

// DetailedScore is one scored category of a recording
type DetailedScore struct {
	Category    string `json:"category"`
	Value       int    `json:"value"`
	Description string `json:"description"`
}

// SpeakingAnalysis is the pronunciation report for one recording
type SpeakingAnalysis struct {
	ExerciseID        string          `json:"exerciseId"`
	OverallScore      int             `json:"overallScore"`
	DetailedScores    []DetailedScore `json:"detailedScores"`
	Feedback          string          `json:"feedback"`
	Recommendations   []string        `json:"recommendations"`
	ComparedToNative  int             `json:"comparedToNative"`
	RecordingDuration int             `json:"recordingDuration"` // seconds
	Source            string          `json:"source"`
	XPEarned          int             `json:"xpEarned"`
	Timestamp         time.Time       `json:"timestamp"`
}

// SpeakingLeader is a row of the speaking leaderboard
type SpeakingLeader struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Avatar        string `json:"avatar" yaml:"avatar"`
	Score         int    `json:"score" yaml:"score"`
	Exercises     int    `json:"exercises" yaml:"exercises"`
	IsCurrentUser bool   `json:"isCurrentUser" yaml:"-"`
}
