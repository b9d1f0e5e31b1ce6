// Package processor implements the per-chunk pipeline: preprocess, embed,
// cluster, summarize/sentiment, and spike-detect.
package processor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brandmentions/worker/internal/adapter/cluster"
	"github.com/brandmentions/worker/internal/domain"
	"github.com/brandmentions/worker/internal/observability"
	"github.com/brandmentions/worker/internal/reliability"
	"github.com/brandmentions/worker/pkg/textx"
)

var tracer = otel.Tracer("processor")

// embedder is the subset of the embedding adapter the processor depends on.
type embedder interface {
	Embed(ctx context.Context, texts []string, brand, chunkID string) ([][]float64, error)
}

// clusterer is the subset of the clustering collaborator the processor
// depends on.
type clusterer interface {
	Cluster(ctx context.Context, vectors [][]float64, brand, chunkID string) cluster.Output
}

// summarizer is the subset of the LLM adapter the processor depends on.
type summarizer interface {
	Summarize(ctx context.Context, texts []string) (string, error)
	Sentiment(ctx context.Context, texts []string) (domain.Sentiment, error)
}

// spikeDetector is the subset of the spike package the processor depends on.
type spikeDetector interface {
	Detect(ctx context.Context, brand string, clusterID int, currentCount int) bool
}

// Processor runs the full analysis pipeline for one chunk at a time.
type Processor struct {
	embedder              embedder
	clusterer             clusterer
	llm                   summarizer
	spike                 spikeDetector
	workerID              string
	preprocessingExamples int
}

// New constructs a Processor from its stage collaborators.
func New(embedder embedder, clusterer clusterer, llm summarizer, spike spikeDetector, workerID string, preprocessingExamples int) *Processor {
	if preprocessingExamples < 1 {
		preprocessingExamples = 1
	}
	return &Processor{
		embedder:              embedder,
		clusterer:             clusterer,
		llm:                   llm,
		spike:                 spike,
		workerID:              workerID,
		preprocessingExamples: preprocessingExamples,
	}
}

// ProcessChunk runs the preprocess -> embed -> cluster -> analyze pipeline
// and returns the fully populated ChunkResult. fetchMs seeds ChunkMetrics.IOMs
// since the initial fetch is itself I/O time.
func (p *Processor) ProcessChunk(ctx context.Context, chunk domain.Chunk, fetchMs float64) (domain.ChunkResult, error) {
	ctx, span := tracer.Start(ctx, "processor.ProcessChunk", trace.WithAttributes(
		attribute.String("brand", chunk.Brand),
		attribute.String("chunk_id", chunk.ChunkID),
		attribute.Int("mentions", len(chunk.Mentions)),
	))
	defer span.End()

	metrics := domain.ChunkMetrics{IOMs: fetchMs}
	totalElapsed := reliability.Timer()

	ctx = observability.ContextWithLabels(ctx, observability.Labels{Brand: chunk.Brand, ChunkID: chunk.ChunkID})

	mentions := p.preprocess(ctx, chunk, &metrics)
	if len(mentions) == 0 {
		processingMs := totalElapsed()
		metrics.TotalTaskMs = processingMs + metrics.IOMs
		return domain.ChunkResult{
			ChunkID:   chunk.ChunkID,
			Brand:     chunk.Brand,
			Timestamp: chunk.CreatedAt.Unix(),
			Clusters:  nil,
			Metrics:   metrics,
		}, nil
	}

	texts := make([]string, len(mentions))
	for i, m := range mentions {
		texts[i] = m.Text
	}

	embedCtx, embedSpan := tracer.Start(ctx, "processor.embed")
	embedElapsed := reliability.Timer()
	vectors, err := p.embedder.Embed(embedCtx, texts, chunk.Brand, chunk.ChunkID)
	metrics.EmbeddingMs = embedElapsed()
	embedSpan.End()
	if err != nil {
		return domain.ChunkResult{}, err
	}

	clusterCtx, clusterSpan := tracer.Start(ctx, "processor.cluster")
	clusteringOutput := p.clusterer.Cluster(clusterCtx, vectors, chunk.Brand, chunk.ChunkID)
	clusterSpan.End()
	metrics.ClusteringMs = clusteringOutput.DurationMs

	analyzeCtx, analyzeSpan := tracer.Start(ctx, "processor.analyze", trace.WithAttributes(
		attribute.Int("clusters", len(clusteringOutput.Clusters)),
	))
	clusters, err := p.analyzeClusters(analyzeCtx, chunk, mentions, clusteringOutput, &metrics)
	analyzeSpan.End()
	if err != nil {
		return domain.ChunkResult{}, err
	}

	processingMs := totalElapsed()
	metrics.TotalTaskMs = processingMs + metrics.IOMs
	observability.LoggerFromContext(ctx).Info("chunk processed",
		"worker_id", p.workerID, "brand", chunk.Brand, "chunk_id", chunk.ChunkID,
		"mentions", len(mentions), "clusters", len(clusters))

	return domain.ChunkResult{
		ChunkID:   chunk.ChunkID,
		Brand:     chunk.Brand,
		Timestamp: chunk.CreatedAt.Unix(),
		Clusters:  clusters,
		Metrics:   metrics,
	}, nil
}

// preprocess cleans each mention's text, drops empties, and dedups by
// cleaned text (first occurrence wins), preserving first-seen order.
func (p *Processor) preprocess(ctx context.Context, chunk domain.Chunk, metrics *domain.ChunkMetrics) []domain.Mention {
	elapsed := reliability.Timer()

	seen := make(map[string]struct{}, len(chunk.Mentions))
	out := make([]domain.Mention, 0, len(chunk.Mentions))
	for _, m := range chunk.Mentions {
		cleaned := textx.CleanMentionText(m.Text)
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		clone := m
		clone.Text = cleaned
		out = append(out, clone)
	}

	metrics.PreprocessingMs = elapsed()
	observability.LoggerFromContext(ctx).Info("preprocessing completed",
		"worker_id", p.workerID, "brand", chunk.Brand, "chunk_id", chunk.ChunkID,
		"original_mentions", len(chunk.Mentions), "clean_mentions", len(out))
	return out
}

// analyzeClusters invokes summarize -> sentiment -> spike-detect for each
// grouping, in strict sequence within a grouping, and accumulates the LLM
// and spike-detection time totals into metrics.
func (p *Processor) analyzeClusters(ctx context.Context, chunk domain.Chunk, mentions []domain.Mention, clustering cluster.Output, metrics *domain.ChunkMetrics) ([]domain.ClusterResult, error) {
	var results []domain.ClusterResult
	var llmTotalMs, spikeTotalMs float64

	for _, grouping := range clustering.Clusters {
		clusterMentions := make([]domain.Mention, len(grouping.Indices))
		for i, idx := range grouping.Indices {
			clusterMentions[i] = mentions[idx]
		}
		texts := make([]string, len(clusterMentions))
		for i, m := range clusterMentions {
			texts[i] = m.Text
		}
		exampleCount := p.preprocessingExamples
		if exampleCount > len(texts) {
			exampleCount = len(texts)
		}
		examples := append([]string(nil), texts[:exampleCount]...)

		llmElapsed := reliability.Timer()
		summary, err := p.llm.Summarize(ctx, texts)
		if err != nil {
			return nil, err
		}
		sentiment, err := p.llm.Sentiment(ctx, texts)
		if err != nil {
			return nil, err
		}
		llmTotalMs += llmElapsed()

		spikeElapsed := reliability.Timer()
		isSpike := p.spike.Detect(ctx, chunk.Brand, grouping.ClusterID, len(clusterMentions))
		spikeTotalMs += spikeElapsed()

		results = append(results, domain.ClusterResult{
			ClusterID: grouping.ClusterID,
			Count:     len(clusterMentions),
			Examples:  examples,
			Summary:   summary,
			Spike:     isSpike,
			Sentiment: sentiment,
		})
	}

	metrics.LLMMs = llmTotalMs
	metrics.SpikeDetectionMs = spikeTotalMs
	return results, nil
}
