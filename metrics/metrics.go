package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the booking core.
type Metrics struct {
	Transitions          *prometheus.CounterVec
	TransitionRejections *prometheus.CounterVec
	TransitionRetries    prometheus.Counter
	QueueAdmissions      *prometheus.CounterVec
	QueueWaitMinutes     prometheus.Histogram
	LocationReports      *prometheus.CounterVec
	LocationCacheEntries prometheus.Gauge
	NotificationsSent    prometheus.Counter
	NotificationFailures *prometheus.CounterVec
	NotificationsDropped prometheus.Counter
	RequestDuration      *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carwash_booking_transitions_total",
			Help: "Accepted booking status transitions",
		}, []string{"role", "status"}),

		TransitionRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carwash_booking_transition_rejections_total",
			Help: "Rejected booking status transitions by error kind",
		}, []string{"role", "kind"}),

		TransitionRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "carwash_booking_transition_retries_total",
			Help: "Optimistic write retries after a concurrent booking update",
		}),

		QueueAdmissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carwash_queue_admissions_total",
			Help: "Bookings added to a car-wash queue",
		}, []string{"carwash"}),

		QueueWaitMinutes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "carwash_queue_estimated_wait_minutes",
			Help:    "Estimated wait at queue admission",
			Buckets: []float64{0, 10, 20, 30, 45, 60, 90, 120, 180},
		}),

		LocationReports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carwash_location_reports_total",
			Help: "Driver location reports by outcome (persisted, cached, failed)",
		}, []string{"outcome"}),

		LocationCacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "carwash_location_cache_entries",
			Help: "Entries held by the process-local location cache",
		}),

		NotificationsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "carwash_notifications_sent_total",
			Help: "Notifications delivered to every sink",
		}),

		NotificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carwash_notification_failures_total",
			Help: "Notification sink failures",
		}, []string{"sink"}),

		NotificationsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "carwash_notifications_dropped_total",
			Help: "Notifications dropped because the delivery buffer was full",
		}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carwash_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// NewNop returns collectors registered on a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
