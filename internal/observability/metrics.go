package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Worker metrics, registered once at startup via InitMetrics.
var (
	// ChunksProcessedTotal counts chunks successfully processed, by worker and brand.
	ChunksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_chunks_processed_total",
			Help: "Total number of chunks successfully processed",
		},
		[]string{"worker", "brand"},
	)
	// ChunksFailedTotal counts chunks that were dead-lettered, by worker, brand and reason.
	ChunksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_chunks_failed_total",
			Help: "Total number of chunks that failed processing",
		},
		[]string{"worker", "brand", "reason"},
	)
	// ProcessingTimeSeconds records total chunk processing wall-clock time.
	ProcessingTimeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_processing_time_seconds",
			Help: "Total chunk processing duration in seconds",
		},
		[]string{"worker", "brand"},
	)
	// PreprocessingTimeSeconds records the preprocessing stage duration.
	PreprocessingTimeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_preprocessing_time_seconds",
			Help: "Preprocessing stage duration in seconds",
		},
		[]string{"worker", "brand"},
	)
	// EmbeddingTimeSeconds records the embedding stage duration.
	EmbeddingTimeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_embedding_time_seconds",
			Help: "Embedding stage duration in seconds",
		},
		[]string{"worker", "brand"},
	)
	// LLMLatencySeconds records per-operation LLM call duration.
	LLMLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_llm_latency_seconds",
			Help: "LLM call duration in seconds by operation",
		},
		[]string{"worker", "brand", "operation"},
	)
	// IOTimeSeconds records store I/O duration by operation kind.
	IOTimeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_io_time_seconds",
			Help: "Store I/O duration in seconds by op",
		},
		[]string{"worker", "brand", "op"},
	)
	// WaitingSeconds is a gauge of the current idle duration per worker.
	WaitingSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_waiting_seconds",
			Help: "Current idle duration waiting for new work",
		},
		[]string{"worker"},
	)

	// CircuitBreakerStatus tracks LLM provider circuit breaker state
	// (0=closed, 1=open, 2=half-open).
	CircuitBreakerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_status",
			Help: "Circuit breaker status (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
// Safe to call exactly once at process startup.
func InitMetrics() {
	prometheus.MustRegister(
		ChunksProcessedTotal,
		ChunksFailedTotal,
		ProcessingTimeSeconds,
		PreprocessingTimeSeconds,
		EmbeddingTimeSeconds,
		LLMLatencySeconds,
		IOTimeSeconds,
		WaitingSeconds,
		CircuitBreakerStatus,
	)
}

// MetricsHandler exposes the default Prometheus registry as a plain
// net/http handler. The HTTP surface's /metrics route mounts
// promhttp.Handler() directly rather than calling this function.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
