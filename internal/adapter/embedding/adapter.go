// Package embedding implements the chunk-text-to-vector stage, with a
// deterministic local fallback and a reserved remote provider hook.
package embedding

import (
	"context"
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/brandmentions/worker/internal/observability"
	"github.com/brandmentions/worker/internal/reliability"
)

// DefaultDim is the fallback embedding width used when no real model is
// configured.
const DefaultDim = 384

// Adapter embeds a batch of texts into an N×D matrix, one row per text, in
// order. Callers must not invoke it with an empty batch.
type Adapter interface {
	Embed(ctx context.Context, texts []string, brand, chunkID string) ([][]float64, error)
}

// Local is the default adapter: a deterministic SHA-256 hash-tile fallback,
// used since no real embedding model ships with this worker. Results are
// cached by text so repeated mentions across chunks skip recomputation.
type Local struct {
	dim   int
	cache *lru.Cache[string, []float64]
}

// NewLocal constructs a Local adapter with an LRU cache of the given size.
func NewLocal(cacheSize int) *Local {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, _ := lru.New[string, []float64](cacheSize)
	return &Local{dim: DefaultDim, cache: cache}
}

// Embed implements Adapter using the deterministic hash-based fallback.
func (l *Local) Embed(_ context.Context, texts []string, _ string, _ string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if v, ok := l.cache.Get(text); ok {
			out[i] = v
			continue
		}
		v := hashEmbed(text, l.dim)
		l.cache.Add(text, v)
		out[i] = v
	}
	return out, nil
}

// hashEmbed deterministically maps text to a unit-free vector in [0,1]^dim:
// SHA-256 the bytes, repeat-tile the digest to length dim, divide by 255.
func hashEmbed(text string, dim int) []float64 {
	digest := sha256.Sum256([]byte(text))
	out := make([]float64, dim)
	for i := 0; i < dim; i++ {
		out[i] = float64(digest[i%len(digest)]) / 255.0
	}
	return out
}

// Remote is reserved for a real provider integration. For this worker it
// produces an all-zeros matrix and logs a warning.
type Remote struct {
	Provider string
	dim      int
}

// NewRemote constructs a Remote placeholder adapter for the named provider.
func NewRemote(provider string) *Remote {
	return &Remote{Provider: provider, dim: DefaultDim}
}

// Embed implements Adapter by returning zero vectors and logging a warning.
func (r *Remote) Embed(ctx context.Context, texts []string, brand, chunkID string) ([][]float64, error) {
	observability.LoggerFromContext(ctx).Warn("remote embedding provider not implemented; returning zeros",
		"provider", r.Provider, "texts", len(texts), "brand", brand, "chunk_id", chunkID)
	out := make([][]float64, len(texts))
	for i := range out {
		out[i] = make([]float64, r.dim)
	}
	return out, nil
}

// metricsSink is the subset of observability metrics the instrumented
// wrapper touches.
type metricsSink interface {
	ObserveEmbedding(workerID, brand string, seconds float64)
}

// Instrumented wraps an Adapter to record duration metrics and structured
// logs around each call, without altering its output.
type Instrumented struct {
	delegate Adapter
	metrics  metricsSink
	workerID string
}

// NewInstrumented wraps delegate with metrics/logging instrumentation.
func NewInstrumented(delegate Adapter, metrics metricsSink, workerID string) *Instrumented {
	return &Instrumented{delegate: delegate, metrics: metrics, workerID: workerID}
}

// Embed implements Adapter, delegating to the wrapped adapter and recording
// timing around the call.
func (w *Instrumented) Embed(ctx context.Context, texts []string, brand, chunkID string) ([][]float64, error) {
	elapsed := reliability.Timer()
	vectors, err := w.delegate.Embed(ctx, texts, brand, chunkID)
	if err != nil {
		return nil, err
	}
	durationMs := elapsed()
	w.metrics.ObserveEmbedding(w.workerID, brand, durationMs/1000)
	observability.LoggerFromContext(ctx).Info("embeddings generated",
		"worker_id", w.workerID, "brand", brand, "chunk_id", chunkID,
		"texts", len(texts), "embedding_time_ms", durationMs)
	return vectors, nil
}
