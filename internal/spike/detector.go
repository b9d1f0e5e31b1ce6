// Package spike implements mention-count spike detection over a rolling
// per-(brand, cluster) history.
package spike

import (
	"context"
	"math"
)

// minHistoryObservations is the minimum number of prior observations
// required before a spike can be declared.
const minHistoryObservations = 3

// store is the subset of the Redis client the detector depends on.
type store interface {
	SpikeHistory(ctx context.Context, brand string, clusterID int) []int
	AppendSpikeHistory(ctx context.Context, brand string, clusterID int, value int)
}

// Detector classifies whether a cluster's current mention count is a spike
// relative to its rolling history.
type Detector struct {
	store store
}

// New constructs a Detector.
func New(s store) *Detector {
	return &Detector{store: s}
}

// Detect fetches the rolling history for (brand, clusterID), appends
// currentCount atomically, and declares a spike iff currentCount exceeds
// mean+2*stddev of the prior history and currentCount > 1. Fewer than
// minHistoryObservations prior points always yields false.
func (d *Detector) Detect(ctx context.Context, brand string, clusterID int, currentCount int) bool {
	history := d.store.SpikeHistory(ctx, brand, clusterID)
	d.store.AppendSpikeHistory(ctx, brand, clusterID, currentCount)

	if len(history) < minHistoryObservations {
		return false
	}

	mean, stddev := meanStddev(history)
	return float64(currentCount) > mean+2*stddev && currentCount > 1
}

func meanStddev(values []int) (mean, stddev float64) {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	mean = sum / n

	var sumSq float64
	for _, v := range values {
		d := float64(v) - mean
		sumSq += d * d
	}
	stddev = math.Sqrt(sumSq / n)
	return mean, stddev
}
