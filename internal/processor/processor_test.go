package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brandmentions/worker/internal/adapter/cluster"
	"github.com/brandmentions/worker/internal/domain"
)

type fakeEmbedder struct {
	dim int
}

func (f fakeEmbedder) Embed(_ context.Context, texts []string, _ string, _ string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = make([]float64, f.dim)
	}
	return out, nil
}

// fakeClusterer returns groupings predetermined by index, following a fixed
// assignment map keyed by mention index -> cluster id.
type fakeClusterer struct {
	assignments map[int]int
}

func (f fakeClusterer) Cluster(_ context.Context, vectors [][]float64, _ string, _ string) cluster.Output {
	byCluster := map[int][]int{}
	for i := range vectors {
		cid := f.assignments[i]
		byCluster[cid] = append(byCluster[cid], i)
	}
	var groupings []cluster.Grouping
	for cid, indices := range byCluster {
		groupings = append(groupings, cluster.Grouping{ClusterID: cid, Indices: indices})
	}
	return cluster.Output{Clusters: groupings, DurationMs: 1}
}

type fakeLLM struct{}

func (fakeLLM) Summarize(_ context.Context, texts []string) (string, error) {
	if len(texts) == 0 {
		return "", nil
	}
	return texts[0], nil
}

func (fakeLLM) Sentiment(_ context.Context, texts []string) (domain.Sentiment, error) {
	for _, t := range texts {
		if t == "terrible bug" {
			return domain.Sentiment{Positive: 0, Negative: 1, Neutral: 0}, nil
		}
	}
	return domain.Sentiment{Positive: 1, Negative: 0, Neutral: 0}, nil
}

type fakeSpike struct {
	result bool
}

func (f fakeSpike) Detect(_ context.Context, _ string, _ int, _ int) bool {
	return f.result
}

func testChunk(mentions ...domain.Mention) domain.Chunk {
	return domain.Chunk{
		Brand:     "acme",
		ChunkID:   "c1",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Mentions:  mentions,
	}
}

func TestProcessChunk_S1HappyPathDedupsAndClusters(t *testing.T) {
	chunk := testChunk(
		domain.Mention{ID: "m1", Source: "tw", Text: "Great product!"},
		domain.Mention{ID: "m2", Source: "tw", Text: "great product!"},
		domain.Mention{ID: "m3", Source: "tw", Text: "Terrible bug"},
	)

	p := New(fakeEmbedder{dim: 4}, fakeClusterer{assignments: map[int]int{0: 0, 1: 1}}, fakeLLM{}, fakeSpike{result: false}, "worker-1", 3)

	result, err := p.ProcessChunk(context.Background(), chunk, 5)
	require.NoError(t, err)

	require.Len(t, result.Clusters, 2)
	total := 0
	for _, c := range result.Clusters {
		total += c.Count
	}
	require.Equal(t, 2, total, "m2 must be deduped away")
	require.False(t, result.Clusters[0].Spike)
	require.GreaterOrEqual(t, result.Metrics.TotalTaskMs, result.Metrics.IOMs)
}

func TestProcessChunk_S4EmptyAfterPreprocess(t *testing.T) {
	chunk := testChunk(domain.Mention{ID: "m1", Source: "tw", Text: "https://x.com"})

	p := New(fakeEmbedder{dim: 4}, fakeClusterer{}, fakeLLM{}, fakeSpike{}, "worker-1", 3)

	result, err := p.ProcessChunk(context.Background(), chunk, 5)
	require.NoError(t, err)
	require.Empty(t, result.Clusters)
	require.Equal(t, result.Metrics.IOMs, 5.0)
}

func TestProcessChunk_S5SpikeFlagPropagates(t *testing.T) {
	mentions := make([]domain.Mention, 10)
	assignments := map[int]int{}
	for i := range mentions {
		mentions[i] = domain.Mention{ID: "m", Source: "tw", Text: "mention text unique " + string(rune('a'+i))}
		assignments[i] = 7
	}
	chunk := testChunk(mentions...)

	p := New(fakeEmbedder{dim: 4}, fakeClusterer{assignments: assignments}, fakeLLM{}, fakeSpike{result: true}, "worker-1", 3)

	result, err := p.ProcessChunk(context.Background(), chunk, 0)
	require.NoError(t, err)
	require.Len(t, result.Clusters, 1)
	require.True(t, result.Clusters[0].Spike)
	require.LessOrEqual(t, len(result.Clusters[0].Examples), 3)
}

func TestProcessChunk_EmptyMentionsShortCircuits(t *testing.T) {
	chunk := testChunk()
	p := New(fakeEmbedder{dim: 4}, fakeClusterer{}, fakeLLM{}, fakeSpike{}, "worker-1", 3)

	result, err := p.ProcessChunk(context.Background(), chunk, 1)
	require.NoError(t, err)
	require.Nil(t, result.Clusters)
}
