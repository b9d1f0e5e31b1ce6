// Package queue implements the BLPOP-based brand queue consumer.
package queue

import (
	"context"
	"strings"
	"time"

	"github.com/brandmentions/worker/internal/observability"
	"github.com/brandmentions/worker/internal/reliability"
)

// store is the subset of the Redis client the consumer depends on.
type store interface {
	ScanBrandQueues(ctx context.Context) ([]string, error)
	BLPop(ctx context.Context, keys []string, timeout time.Duration) (queueKey, payload string, ok bool, err error)
}

// metricsSink is the subset of observability metrics the consumer touches.
type metricsSink interface {
	ObserveFetch(workerID, brand string, seconds float64)
	SetWaiting(workerID string, seconds float64)
}

// Consumer polls Redis for brand chunk queues and drains them with BLPOP.
type Consumer struct {
	store           store
	metrics         metricsSink
	workerID        string
	blpopTimeout    time.Duration
	waitLogInterval time.Duration

	waitingSince time.Time
	lastWaitLog  time.Time
}

// New constructs a Consumer.
func New(s store, m metricsSink, workerID string, blpopTimeout, waitLogInterval time.Duration) *Consumer {
	return &Consumer{
		store:           s,
		metrics:         m,
		workerID:        workerID,
		blpopTimeout:    blpopTimeout,
		waitLogInterval: waitLogInterval,
	}
}

// Fetched describes a single item popped off a brand queue.
type Fetched struct {
	QueueKey string
	Payload  string
	FetchMs  float64
}

// Fetch discovers the current set of brand queues and blocks (via BLPOP,
// bounded by the configured timeout) until an item arrives on one of them,
// or the timeout/context elapses. It returns (nil, nil) on timeout; the
// caller is expected to loop and call Fetch again.
func (c *Consumer) Fetch(ctx context.Context) (*Fetched, error) {
	queueKeys, err := c.store.ScanBrandQueues(ctx)
	if err != nil {
		return nil, err
	}
	if len(queueKeys) == 0 {
		select {
		case <-time.After(c.blpopTimeout):
		case <-ctx.Done():
		}
		c.updateWaiting(ctx, nil)
		return nil, nil
	}

	elapsed := reliability.Timer()
	queueKey, payload, ok, err := c.store.BLPop(ctx, queueKeys, c.blpopTimeout)
	if err != nil {
		return nil, err
	}
	fetchMs := elapsed()

	if !ok {
		c.updateWaiting(ctx, queueKeys)
		c.metrics.ObserveFetch(c.workerID, "unknown", fetchMs/1000)
		return nil, nil
	}

	c.clearWaiting()
	brand := extractBrandFromQueue(queueKey)
	c.metrics.ObserveFetch(c.workerID, brand, fetchMs/1000)
	observability.LoggerFromContext(ctx).Info("fetched chunk from Redis",
		"worker_id", c.workerID, "queue", queueKey, "fetch_time_ms", fetchMs)
	return &Fetched{QueueKey: queueKey, Payload: payload, FetchMs: fetchMs}, nil
}

func (c *Consumer) updateWaiting(ctx context.Context, queues []string) {
	now := time.Now()
	if c.waitingSince.IsZero() {
		c.waitingSince = now
	}
	elapsed := now.Sub(c.waitingSince).Seconds()
	c.metrics.SetWaiting(c.workerID, elapsed)

	if c.lastWaitLog.IsZero() || now.Sub(c.lastWaitLog) >= c.waitLogInterval {
		names := "<none>"
		if len(queues) > 0 {
			names = strings.Join(queues, ", ")
		}
		observability.LoggerFromContext(ctx).Info("waiting for new tasks",
			"worker_id", c.workerID, "queues", names, "waiting_seconds", elapsed)
		c.lastWaitLog = now
	}
}

func (c *Consumer) clearWaiting() {
	c.waitingSince = time.Time{}
	c.metrics.SetWaiting(c.workerID, 0)
}

// extractBrandFromQueue pulls the brand segment out of a
// "<prefix>:<brand>:chunks" key.
func extractBrandFromQueue(queueKey string) string {
	parts := strings.Split(queueKey, ":")
	if len(parts) >= 3 {
		return parts[1]
	}
	return "unknown"
}
