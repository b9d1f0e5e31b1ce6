// Package resultstore formats ChunkResults into the orchestrator's external
// JSON contract and pushes them (or failure records) back to Redis.
package resultstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brandmentions/worker/internal/domain"
	"github.com/brandmentions/worker/internal/observability"
	"github.com/brandmentions/worker/internal/reliability"
)

// store is the subset of the Redis client the result storage depends on.
type store interface {
	RPush(ctx context.Context, key, value string) error
	RecordFailure(ctx context.Context, key, value string) error
}

// metricsSink is the subset of observability metrics this package touches.
type metricsSink interface {
	ObserveIO(workerID, brand, op string, seconds float64)
	IncChunksFailed(workerID, brand, reason string)
}

// Store pushes chunk results and failure records to their Redis queues.
type Store struct {
	store        store
	metrics      metricsSink
	workerID     string
	resultPrefix string
	failedPrefix string
}

// New constructs a Store.
func New(s store, metrics metricsSink, workerID, resultPrefix, failedPrefix string) *Store {
	return &Store{store: s, metrics: metrics, workerID: workerID, resultPrefix: resultPrefix, failedPrefix: failedPrefix}
}

// PushResult serializes result into the orchestrator schema and appends it
// to the brand's result queue, returning the push duration in ms.
func (s *Store) PushResult(ctx context.Context, brand string, result domain.ChunkResult) (float64, error) {
	key := fmt.Sprintf("%s:%s:chunks", s.resultPrefix, brand)
	payload, err := json.Marshal(formatForOrchestrator(result))
	if err != nil {
		return 0, fmt.Errorf("op=resultstore.PushResult: marshal: %w", err)
	}

	elapsed := reliability.Timer()
	if err := s.store.RPush(ctx, key, string(payload)); err != nil {
		return 0, fmt.Errorf("op=resultstore.PushResult: %w", err)
	}
	elapsedMs := elapsed()

	s.metrics.ObserveIO(s.workerID, brand, "push", elapsedMs/1000)
	observability.LoggerFromContext(ctx).Info("result pushed to Redis",
		"worker_id", s.workerID, "brand", brand, "key", key, "chunk_id", result.ChunkID, "push_time_ms", elapsedMs)
	return elapsedMs, nil
}

// RecordFailure serializes failure and appends it to the brand's
// dead-letter queue, incrementing the failure counter under reasonLabel.
func (s *Store) RecordFailure(ctx context.Context, brand string, failure domain.FailureRecord, reasonLabel string) (float64, error) {
	key := fmt.Sprintf("%s:%s", s.failedPrefix, brand)
	payload, err := json.Marshal(failure)
	if err != nil {
		return 0, fmt.Errorf("op=resultstore.RecordFailure: marshal: %w", err)
	}

	elapsed := reliability.Timer()
	if err := s.store.RecordFailure(ctx, key, string(payload)); err != nil {
		return 0, fmt.Errorf("op=resultstore.RecordFailure: %w", err)
	}
	elapsedMs := elapsed()

	s.metrics.IncChunksFailed(s.workerID, brand, reasonLabel)
	s.metrics.ObserveIO(s.workerID, brand, "failure", elapsedMs/1000)
	observability.LoggerFromContext(ctx).Warn("failure recorded",
		"worker_id", s.workerID, "brand", brand, "chunk_id", failure.ChunkID, "reason", failure.Reason, "failure_record_time_ms", elapsedMs)
	return elapsedMs, nil
}

type orchestratorCluster struct {
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	Mentions       []string `json:"mentions"`
	SentimentScore float64  `json:"sentimentScore"`
	Spike          bool     `json:"spike"`
	MentionCount   int      `json:"mentionCount"`
}

type orchestratorSentiment struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
	Score    float64 `json:"score"`
}

type orchestratorMeta struct {
	Metrics      domain.ChunkMetrics `json:"metrics"`
	MentionCount int                 `json:"mentionCount"`
}

type orchestratorPayload struct {
	ChunkID       string                `json:"chunkId"`
	Brand         string                `json:"brand"`
	ProcessedAt   string                `json:"processedAt"`
	Sentiment     orchestratorSentiment `json:"sentiment"`
	Clusters      []orchestratorCluster `json:"clusters"`
	Topics        []string              `json:"topics"`
	Summary       string                `json:"summary"`
	SpikeDetected bool                  `json:"spikeDetected"`
	Meta          orchestratorMeta      `json:"meta"`
}

func formatForOrchestrator(result domain.ChunkResult) orchestratorPayload {
	clusters := buildClusters(result.Clusters)
	sentiment := aggregateSentiment(result.Clusters)
	topics := extractTopics(result.Clusters)

	spikeDetected := false
	mentionCount := 0
	for _, c := range clusters {
		if c.Spike {
			spikeDetected = true
		}
		mentionCount += c.MentionCount
	}

	return orchestratorPayload{
		ChunkID:       result.ChunkID,
		Brand:         result.Brand,
		ProcessedAt:   time.Now().UTC().Format(time.RFC3339),
		Sentiment:     sentiment,
		Clusters:      clusters,
		Topics:        topics,
		Summary:       combineSummaries(result.Clusters),
		SpikeDetected: spikeDetected,
		Meta: orchestratorMeta{
			Metrics:      result.Metrics,
			MentionCount: mentionCount,
		},
	}
}

func buildClusters(clusters []domain.ClusterResult) []orchestratorCluster {
	out := make([]orchestratorCluster, 0, len(clusters))
	for _, c := range clusters {
		sentimentScore := c.Sentiment.Positive - c.Sentiment.Negative
		label := normalizeSummaryText(c.Summary, c.Examples, fmt.Sprintf("Cluster %d", c.ClusterID))
		out = append(out, orchestratorCluster{
			ID:             fmt.Sprintf("%d", c.ClusterID),
			Label:          label,
			Mentions:       c.Examples,
			SentimentScore: sentimentScore,
			Spike:          c.Spike,
			MentionCount:   c.Count,
		})
	}
	return out
}

func aggregateSentiment(clusters []domain.ClusterResult) orchestratorSentiment {
	var totalPositive, totalNeutral, totalNegative float64
	counted := 0
	for _, c := range clusters {
		counted++
		totalPositive += c.Sentiment.Positive
		totalNeutral += c.Sentiment.Neutral
		totalNegative += c.Sentiment.Negative
	}
	if counted == 0 {
		return orchestratorSentiment{}
	}
	positive := totalPositive / float64(counted)
	neutral := totalNeutral / float64(counted)
	negative := totalNegative / float64(counted)
	return orchestratorSentiment{
		Positive: positive,
		Neutral:  neutral,
		Negative: negative,
		Score:    positive - negative,
	}
}

func extractTopics(clusters []domain.ClusterResult) []string {
	var topics []string
	for _, c := range clusters {
		normalized := normalizeSummaryText(c.Summary, c.Examples, "")
		if normalized != "" {
			topics = append(topics, normalized)
		} else if len(c.Examples) > 0 {
			topics = append(topics, c.Examples[0])
		}
	}

	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
		if len(out) == 10 {
			break
		}
	}
	return out
}

func combineSummaries(clusters []domain.ClusterResult) string {
	var lines []string
	for _, c := range clusters {
		normalized := normalizeSummaryText(c.Summary, c.Examples, "")
		if normalized != "" {
			lines = append(lines, normalized)
		}
	}
	return strings.Join(lines, " ")
}

// normalizeSummaryText picks the cluster's label text: the cleaned summary,
// unless it looks like a raw sentiment JSON blob, else the first example,
// else fallbackLabel (which may be empty, e.g. for topic extraction where
// no forced fallback applies).
func normalizeSummaryText(summary string, examples []string, fallbackLabel string) string {
	candidate := strings.TrimSpace(summary)
	if looksLikeSentimentBlob(candidate) {
		candidate = ""
	}
	if candidate == "" && len(examples) > 0 {
		candidate = strings.TrimSpace(examples[0])
	}
	if candidate == "" && fallbackLabel != "" {
		candidate = fallbackLabel
	}
	return candidate
}

func looksLikeSentimentBlob(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") &&
		strings.Contains(s, "positive") && strings.Contains(s, "negative")
}
