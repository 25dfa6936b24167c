// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linguaflow"

var (
	QuizSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quiz_submissions_total",
		Help:      "Quiz submissions by result.",
	}, []string{"result"})

	XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "xp_awarded_total",
		Help:      "XP awarded by source.",
	}, []string{"source"})

	FlashcardReviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flashcard_reviews_total",
		Help:      "Flashcard reviews by rating.",
	}, []string{"rating"})

	Reminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_total",
		Help:      "Reminder cycle firings by outcome.",
	}, []string{"outcome"})

	AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "achievements_unlocked_total",
		Help:      "Achievements unlocked.",
	}, []string{"achievement"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notifications delivered by method.",
	}, []string{"method"})

	ActiveDownloads = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_downloads",
		Help:      "Offline lesson downloads in progress.",
	})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
