package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brandmentions/worker/internal/domain"
)

type fakeProvider struct {
	name     string
	response string
	err      error
}

func (f fakeProvider) Name() string { return f.name }

func (f fakeProvider) Invoke(_ context.Context, _ string, _ time.Duration) (string, error) {
	return f.response, f.err
}

type fakeLLMMetrics struct {
	breakerStates map[string]float64
}

func newFakeLLMMetrics() *fakeLLMMetrics {
	return &fakeLLMMetrics{breakerStates: map[string]float64{}}
}

func (f *fakeLLMMetrics) ObserveLLMLatency(_, _, _ string, _ float64) {}

func (f *fakeLLMMetrics) SetCircuitBreakerStatus(provider string, state float64) {
	f.breakerStates[provider] = state
}

func TestAdapter_SummarizeUsesPrimaryOnSuccess(t *testing.T) {
	primary := fakeProvider{name: "p", response: "summary text"}
	a := NewAdapter(primary, nil, 100, time.Second, "worker-1", newFakeLLMMetrics())

	out, err := a.Summarize(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, "summary text", out)
}

func TestAdapter_FallsBackWhenPrimaryFails(t *testing.T) {
	primary := fakeProvider{name: "p", err: errors.New("boom")}
	fallback := fakeProvider{name: "f", response: "fallback summary"}
	a := NewAdapter(primary, fallback, 100, time.Second, "worker-1", newFakeLLMMetrics())

	out, err := a.Summarize(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Equal(t, "fallback summary", out)
}

func TestAdapter_ErrorsWhenPrimaryFailsWithNoFallback(t *testing.T) {
	primary := fakeProvider{name: "p", err: errors.New("boom")}
	a := NewAdapter(primary, nil, 100, time.Second, "worker-1", newFakeLLMMetrics())

	_, err := a.Summarize(context.Background(), []string{"a"})
	require.ErrorIs(t, err, domain.ErrLLMPrimaryFailure)
}

func TestAdapter_SentimentParsesWellFormedJSON(t *testing.T) {
	primary := fakeProvider{name: "p", response: `{"positive":0.6,"negative":0.1,"neutral":0.3}`}
	a := NewAdapter(primary, nil, 100, time.Second, "worker-1", newFakeLLMMetrics())

	sentiment, err := a.Sentiment(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Equal(t, domain.Sentiment{Positive: 0.6, Negative: 0.1, Neutral: 0.3}, sentiment)
}

func TestAdapter_SentimentDegradesToDefaultOnUnparsableResponse(t *testing.T) {
	primary := fakeProvider{name: "p", response: "not json at all"}
	a := NewAdapter(primary, nil, 100, time.Second, "worker-1", newFakeLLMMetrics())

	sentiment, err := a.Sentiment(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Equal(t, domain.DefaultSentiment(), sentiment)
}

func TestAdapter_CircuitOpensAfterRepeatedPrimaryFailures(t *testing.T) {
	primary := fakeProvider{name: "p", err: errors.New("boom")}
	fallback := fakeProvider{name: "f", response: "ok"}
	metrics := newFakeLLMMetrics()
	a := NewAdapter(primary, fallback, 100, time.Second, "worker-1", metrics)

	for i := 0; i < 3; i++ {
		_, err := a.Summarize(context.Background(), []string{"a"})
		require.NoError(t, err)
	}

	require.Equal(t, CircuitOpen.Float64(), metrics.breakerStates["p"])
}
