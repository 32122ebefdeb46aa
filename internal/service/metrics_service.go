package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// reminder dispatcher.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	bookingConflicts prometheus.Counter
	remindersSent    prometheus.Counter
	remindersSkipped prometheus.Counter
	remindersFailed  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	bookingConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_conflicts_total",
		Help: "Appointment create/update attempts rejected for overlap",
	})

	remindersSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_sent_total",
		Help: "Reminders successfully dispatched",
	})

	remindersSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_skipped_total",
		Help: "Reminder candidates skipped (outside window, no recipient, already sent)",
	})

	remindersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_failed_total",
		Help: "Reminder dispatch failures",
	})

	registry.MustRegister(requestDuration, requestTotal, bookingConflicts,
		remindersSent, remindersSkipped, remindersFailed)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		bookingConflicts: bookingConflicts,
		remindersSent:    remindersSent,
		remindersSkipped: remindersSkipped,
		remindersFailed:  remindersFailed,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// IncBookingConflict counts one overlap rejection.
func (s *MetricsService) IncBookingConflict() {
	s.bookingConflicts.Inc()
}

// ObserveReminderBatch records the outcome counts of one dispatch run.
func (s *MetricsService) ObserveReminderBatch(sent, skipped, failed int) {
	s.remindersSent.Add(float64(sent))
	s.remindersSkipped.Add(float64(skipped))
	s.remindersFailed.Add(float64(failed))
}
