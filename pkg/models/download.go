package models

import "time"

// DownloadStatus is the lifecycle state of an offline lesson download
type DownloadStatus string

const (
	DownloadQueued      DownloadStatus = "queued"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadFailed      DownloadStatus = "failed"
	DownloadCancelled   DownloadStatus = "cancelled"
)

// DownloadRecord tracks one lesson stored for offline use
type DownloadRecord struct {
	LessonID    string         `json:"lessonId"`
	CourseID    string         `json:"courseId"`
	Title       string         `json:"title"`
	Status      DownloadStatus `json:"status"`
	Progress    int            `json:"progress"`
	SizeBytes   int64          `json:"sizeBytes"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Active reports whether the download is still in flight
func (d DownloadRecord) Active() bool {
	return d.Status == DownloadQueued || d.Status == DownloadDownloading
}
