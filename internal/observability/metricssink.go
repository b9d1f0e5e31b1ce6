package observability

// Metrics is the single concrete type threaded through the queue, embedding,
// LLM, and result-store adapters. Each adapter depends on a small
// structurally-matched interface rather than this type directly, so tests
// can supply lightweight fakes.
type Metrics struct{}

// ObserveFetch records a BLPOP fetch duration (seconds) for (worker, brand).
func (Metrics) ObserveFetch(workerID, brand string, seconds float64) {
	IOTimeSeconds.WithLabelValues(workerID, brand, "fetch").Observe(seconds)
}

// SetWaiting sets the current idle duration gauge for worker.
func (Metrics) SetWaiting(workerID string, seconds float64) {
	WaitingSeconds.WithLabelValues(workerID).Set(seconds)
}

// ObserveEmbedding records an embedding stage duration (seconds).
func (Metrics) ObserveEmbedding(workerID, brand string, seconds float64) {
	EmbeddingTimeSeconds.WithLabelValues(workerID, brand).Observe(seconds)
}

// ObserveLLMLatency records a per-operation LLM call duration (seconds).
func (Metrics) ObserveLLMLatency(workerID, brand, operation string, seconds float64) {
	LLMLatencySeconds.WithLabelValues(workerID, brand, operation).Observe(seconds)
}

// SetCircuitBreakerStatus records a named provider's current circuit state.
func (Metrics) SetCircuitBreakerStatus(provider string, state float64) {
	CircuitBreakerStatus.WithLabelValues(provider).Set(state)
}

// ObserveIO records store I/O duration (seconds) for (worker, brand, op).
func (Metrics) ObserveIO(workerID, brand, op string, seconds float64) {
	IOTimeSeconds.WithLabelValues(workerID, brand, op).Observe(seconds)
}

// ObserveProcessing records total chunk processing duration (seconds).
func (Metrics) ObserveProcessing(workerID, brand string, seconds float64) {
	ProcessingTimeSeconds.WithLabelValues(workerID, brand).Observe(seconds)
}

// ObservePreprocessing records the preprocessing stage duration (seconds).
func (Metrics) ObservePreprocessing(workerID, brand string, seconds float64) {
	PreprocessingTimeSeconds.WithLabelValues(workerID, brand).Observe(seconds)
}

// IncChunksProcessed increments the processed-chunks counter.
func (Metrics) IncChunksProcessed(workerID, brand string) {
	ChunksProcessedTotal.WithLabelValues(workerID, brand).Inc()
}

// IncChunksFailed increments the failed-chunks counter under reason.
func (Metrics) IncChunksFailed(workerID, brand, reason string) {
	ChunksFailedTotal.WithLabelValues(workerID, brand, reason).Inc()
}
