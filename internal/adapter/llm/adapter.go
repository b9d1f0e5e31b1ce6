package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/brandmentions/worker/internal/domain"
	"github.com/brandmentions/worker/internal/observability"
	"github.com/brandmentions/worker/internal/reliability"
)

// Provider is a single LLM capability: a prompt in, free-form text out.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// metricsSink is the subset of observability metrics the adapter touches.
type metricsSink interface {
	ObserveLLMLatency(workerID, brand, operation string, seconds float64)
	SetCircuitBreakerStatus(provider string, state float64)
}

const (
	opSummary   = "summary"
	opSentiment = "sentiment"
)

// Adapter exposes summarize/sentiment over a primary provider with an
// optional fallback, gated by a per-provider circuit breaker. Per-call
// (brand, chunk_id) scope is read from the context via
// observability.LabelsFromContext rather than mutable adapter state, so
// concurrent callers never clobber each other's scope.
type Adapter struct {
	primary  Provider
	fallback Provider
	breaker  *CircuitBreaker

	maxTokens int
	timeout   time.Duration
	workerID  string
	metrics   metricsSink

	encoding *tiktoken.Tiktoken
}

// NewAdapter constructs an Adapter. fallback may be nil, in which case a
// primary failure is propagated directly.
func NewAdapter(primary, fallback Provider, maxTokens int, timeout time.Duration, workerID string, metrics metricsSink) *Adapter {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Adapter{
		primary:   primary,
		fallback:  fallback,
		breaker:   NewCircuitBreaker(primary.Name()),
		maxTokens: maxTokens,
		timeout:   timeout,
		workerID:  workerID,
		metrics:   metrics,
		encoding:  enc,
	}
}

const summaryPromptTemplate = `You are an analyst summarizing brand mentions.
Summarize the following texts into a concise overview (max %d tokens).
Texts:
%s
`

const sentimentPromptTemplate = `You are a sentiment analysis assistant. Analyse the sentiment of the texts below and return a JSON object with keys positive, negative, neutral whose values are floats between 0 and 1 summing to 1.
Texts:
%s
`

// Summarize produces a concise overview of texts. The prompt asks for at
// most maxTokens tokens; the response itself is not truncated.
func (a *Adapter) Summarize(ctx context.Context, texts []string) (string, error) {
	joined := a.budgetJoin(texts)
	prompt := fmt.Sprintf(summaryPromptTemplate, a.maxTokens, joined)
	return a.invoke(ctx, prompt, opSummary)
}

// Sentiment analyzes texts and returns a sentiment distribution. Parsing
// failures degrade to domain.DefaultSentiment() rather than erroring.
func (a *Adapter) Sentiment(ctx context.Context, texts []string) (domain.Sentiment, error) {
	joined := a.budgetJoin(texts)
	prompt := fmt.Sprintf(sentimentPromptTemplate, joined)
	raw, err := a.invoke(ctx, prompt, opSentiment)
	if err != nil {
		return domain.Sentiment{}, err
	}
	return parseSentiment(raw), nil
}

// budgetJoin joins texts with newlines, truncating the tail once the
// cl100k_base token count would exceed a generous prompt budget. This keeps
// very large chunks from producing oversized LLM requests.
func (a *Adapter) budgetJoin(texts []string) string {
	joined := strings.Join(texts, "\n")
	if a.encoding == nil {
		return joined
	}
	const promptTokenBudget = 4000
	tokens := a.encoding.Encode(joined, nil, nil)
	if len(tokens) <= promptTokenBudget {
		return joined
	}
	return a.encoding.Decode(tokens[:promptTokenBudget])
}

func (a *Adapter) invoke(ctx context.Context, prompt, operation string) (string, error) {
	labels := observability.LabelsFromContext(ctx)
	logger := observability.LoggerFromContext(ctx)
	elapsed := reliability.Timer()

	response, err := a.invokeWithFallback(ctx, prompt, operation, labels, logger)

	durationMs := elapsed()
	a.metrics.ObserveLLMLatency(a.workerID, labels.Brand, operation, durationMs/1000)
	a.metrics.SetCircuitBreakerStatus(a.primary.Name(), a.breaker.State().Float64())
	if err != nil {
		return "", err
	}
	logger.Info("llm operation completed",
		"worker_id", a.workerID, "brand", labels.Brand, "chunk_id", labels.ChunkID,
		"operation", operation, fmt.Sprintf("llm_%s_ms", operation), durationMs)
	return response, nil
}

func (a *Adapter) invokeWithFallback(ctx context.Context, prompt, operation string, labels observability.Labels, logger interface {
	Warn(msg string, args ...any)
}) (string, error) {
	if a.breaker.ShouldAttempt() {
		response, err := a.primary.Invoke(ctx, prompt, a.timeout)
		if err == nil {
			a.breaker.RecordSuccess()
			return response, nil
		}
		a.breaker.RecordFailure()
		logger.Warn("primary LLM failed, attempting fallback",
			"worker_id", a.workerID, "brand", labels.Brand, "chunk_id", labels.ChunkID,
			"operation", operation, "error", err)
	}
	if a.fallback == nil {
		return "", fmt.Errorf("%w: primary LLM failed with no fallback configured", domain.ErrLLMPrimaryFailure)
	}
	response, err := a.fallback.Invoke(ctx, prompt, a.timeout)
	if err != nil {
		return "", fmt.Errorf("%w: fallback also failed: %w", domain.ErrLLMPrimaryFailure, err)
	}
	return response, nil
}

// parseSentiment degrades to defaults rather than erroring: a response that
// fails to parse as a JSON object yields domain.DefaultSentiment(); missing
// fields default positive/negative to 0.0 and neutral to 1.0; values are
// never renormalized.
func parseSentiment(raw string) domain.Sentiment {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed == nil {
		return domain.DefaultSentiment()
	}
	return domain.Sentiment{
		Positive: floatField(parsed, "positive", 0.0),
		Negative: floatField(parsed, "negative", 0.0),
		Neutral:  floatField(parsed, "neutral", 1.0),
	}
}

func floatField(m map[string]any, key string, def float64) float64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}
