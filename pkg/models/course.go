package models

// Course is a language course in the catalog
type Course struct {
	ID           string `json:"id" db:"id" yaml:"id"`
	Title        string `json:"title" db:"title" yaml:"title"`
	Language     string `json:"language" db:"language" yaml:"language"`
	Level        string `json:"level" db:"level" yaml:"level"`
	Description  string `json:"description" db:"description" yaml:"description"`
	Instructor   string `json:"instructor" db:"instructor" yaml:"instructor"`
	Thumbnail    string `json:"thumbnail" db:"thumbnail" yaml:"thumbnail"`
	TotalLessons int    `json:"totalLessons" db:"total_lessons" yaml:"totalLessons"`
}

// Lesson is a single video lesson of a course
type Lesson struct {
	ID          string `json:"id" db:"id" yaml:"id"`
	CourseID    string `json:"courseId" db:"course_id" yaml:"courseId"`
	Title       string `json:"title" db:"title" yaml:"title"`
	Description string `json:"description" db:"description" yaml:"description"`
	VideoURL    string `json:"videoUrl" db:"video_url" yaml:"videoUrl"`
	Duration    int    `json:"duration" db:"duration" yaml:"duration"` // minutes
	Position    int    `json:"order" db:"position" yaml:"order"`
	SizeBytes   int64  `json:"sizeBytes" db:"size_bytes" yaml:"sizeBytes"`
	Completed   bool   `json:"completed" db:"completed" yaml:"completed"`
}
