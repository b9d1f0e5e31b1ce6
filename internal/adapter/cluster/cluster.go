// Package cluster groups embedding vectors into integer-labelled clusters
// using a deterministic greedy nearest-centroid merge over cosine distance:
// a vector joins the closest existing cluster whose centroid it is within
// threshold of, else starts a new cluster. Cluster IDs are assigned in
// first-seen order, so repeated runs on the same input always produce the
// same grouping.
package cluster

import (
	"context"
	"math"

	"github.com/brandmentions/worker/internal/observability"
	"github.com/brandmentions/worker/internal/reliability"
)

// DefaultThreshold is the cosine-distance ceiling for joining a cluster,
// chosen to group near-duplicate phrasing of the same mention without
// merging unrelated ones.
const DefaultThreshold = 0.25

// Grouping is one cluster's integer ID and the indices (into the input
// vector slice) it contains.
type Grouping struct {
	ClusterID int
	Indices   []int
}

// Output is the result of a clustering pass.
type Output struct {
	Clusters   []Grouping
	DurationMs float64
}

// Clusterer partitions embedding vectors into groupings.
type Clusterer struct {
	threshold float64
	workerID  string
}

// New constructs a Clusterer using DefaultThreshold.
func New(workerID string) *Clusterer {
	return &Clusterer{threshold: DefaultThreshold, workerID: workerID}
}

type centroid struct {
	vector []float64
	count  int
}

// Cluster groups vectors by greedy nearest-centroid assignment under a
// cosine-distance threshold. Vectors must be non-empty; callers short-circuit
// before calling on an empty chunk.
func (c *Clusterer) Cluster(ctx context.Context, vectors [][]float64, brand, chunkID string) Output {
	elapsed := reliability.Timer()

	var centroids []*centroid
	var groupings []Grouping

	for idx, v := range vectors {
		best := -1
		bestDist := math.Inf(1)
		for ci, cen := range centroids {
			d := cosineDistance(v, cen.vector)
			if d < bestDist {
				bestDist = d
				best = ci
			}
		}
		if best != -1 && bestDist <= c.threshold {
			updateCentroid(centroids[best], v)
			groupings[best].Indices = append(groupings[best].Indices, idx)
			continue
		}
		centroids = append(centroids, &centroid{vector: append([]float64(nil), v...), count: 1})
		groupings = append(groupings, Grouping{ClusterID: len(groupings), Indices: []int{idx}})
	}

	durationMs := elapsed()
	observability.LoggerFromContext(ctx).Info("clustering completed",
		"worker_id", c.workerID, "brand", brand, "chunk_id", chunkID,
		"clusters", len(groupings), "clustering_time_ms", durationMs)
	return Output{Clusters: groupings, DurationMs: durationMs}
}

func updateCentroid(c *centroid, v []float64) {
	for i := range c.vector {
		c.vector[i] = (c.vector[i]*float64(c.count) + v[i]) / float64(c.count+1)
	}
	c.count++
}

// cosineDistance returns 1 - cosine_similarity(a, b), so identical vectors
// have distance 0 and orthogonal vectors have distance 1.
func cosineDistance(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - sim
}
