package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	chatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinops_chat_messages_total",
			Help: "Total number of chat messages produced",
		},
		[]string{"response_mode", "answer_source"},
	)

	workflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinops_workflow_runs_total",
			Help: "Total number of workflow runs executed",
		},
		[]string{"workflow", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath bounds metric cardinality for pathological paths
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// RecordChatMessage records a produced chat message
func RecordChatMessage(responseMode, answerSource string) {
	chatMessagesTotal.WithLabelValues(responseMode, answerSource).Inc()
}

// RecordWorkflowRun records a finished workflow run
func RecordWorkflowRun(workflow, status string) {
	workflowRunsTotal.WithLabelValues(workflow, status).Inc()
}

// --- Lazily evaluated quality gauges ---

// LazyGauge is a gauge whose value is computed on scrape. The callback opens
// a short-lived query against the database; any error yields 0.0 so a scrape
// never fails before the schema exists.
type LazyGauge struct {
	Name        string
	Help        string
	ConstLabels prometheus.Labels
	Value       func(ctx context.Context) (float64, error)
}

var registerOnce sync.Once

// RegisterLazyGauges registers scrape-time gauges exactly once per process.
// Repeated calls are no-ops so tests and re-wiring cannot double-register.
func RegisterLazyGauges(gauges []LazyGauge) {
	registerOnce.Do(func() {
		for _, g := range gauges {
			gauge := g
			promauto.NewGaugeFunc(prometheus.GaugeOpts{
				Name:        gauge.Name,
				Help:        gauge.Help,
				ConstLabels: gauge.ConstLabels,
			}, func() float64 {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				v, err := gauge.Value(ctx)
				if err != nil {
					return 0.0
				}
				return v
			})
		}
	})
}
