// Package metrics exposes Prometheus collectors for the HTTP surface, the
// LLM gateway and result normalization.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chemgen_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chemgen_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chemgen_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// LLM metrics
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chemgen_llm_requests_total",
			Help: "Total number of LLM requests by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chemgen_llm_request_duration_seconds",
			Help:    "LLM request latency in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"purpose"},
	)

	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chemgen_llm_tokens_total",
			Help: "Tokens consumed by LLM requests",
		},
		[]string{"direction"},
	)

	// Question pipeline metrics
	normalizedResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chemgen_normalized_results_total",
			Help: "Analysis results kept or dropped during normalization",
		},
		[]string{"outcome"},
	)

	trueFalseIncomplete = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chemgen_truefalse_incomplete_total",
			Help: "True/false questions returned with fewer than four sub-items",
		},
	)

	exportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chemgen_exports_total",
			Help: "Word documents exported",
		},
	)

	// Database metrics
	storeQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chemgen_store_query_duration_seconds",
			Help:    "Event store query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count, latency and in-flight requests.
// Requests are labelled with the matched chi route pattern so that item
// IDs do not inflate label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// RecordLLMRequest records one provider call.
func RecordLLMRequest(purpose, outcome string, latency time.Duration, inputTokens, outputTokens int) {
	llmRequestsTotal.WithLabelValues(purpose, outcome).Inc()
	llmRequestDuration.WithLabelValues(purpose).Observe(latency.Seconds())
	if inputTokens > 0 {
		llmTokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		llmTokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	}
}

// RecordNormalized records how many analysis results survived normalization.
func RecordNormalized(kept, dropped int) {
	normalizedResults.WithLabelValues("kept").Add(float64(kept))
	normalizedResults.WithLabelValues("dropped").Add(float64(dropped))
}

// RecordTrueFalseIncomplete counts a true/false question with missing
// sub-items.
func RecordTrueFalseIncomplete() {
	trueFalseIncomplete.Inc()
}

// RecordExport counts a generated Word document.
func RecordExport() {
	exportsTotal.Inc()
}

// ObserveStoreQuery records the duration of an event store operation.
func ObserveStoreQuery(operation string, d time.Duration) {
	storeQueryDuration.WithLabelValues(operation).Observe(d.Seconds())
}
