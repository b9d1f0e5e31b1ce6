// Package redisstore wraps go-redis with the retry and key-naming
// conventions the worker needs: queue draining, result/failure publishing,
// heartbeats, and per-cluster spike history.
package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brandmentions/worker/internal/config"
	"github.com/brandmentions/worker/internal/domain"
	"github.com/brandmentions/worker/internal/observability"
	"github.com/brandmentions/worker/internal/reliability"
)

// Client wraps a *redis.Client with the worker's retry policy and key
// conventions.
type Client struct {
	rdb     *redis.Client
	cfg     config.Config
	spikeMu sync.Mutex
}

// New constructs a Client from a Redis connection URL.
func New(cfg config.Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("op=redisstore.New: %w", err)
	}
	return &Client{rdb: redis.NewClient(opts), cfg: cfg}, nil
}

func (c *Client) retry(ctx context.Context, op func() error) error {
	return reliability.WithRetry(ctx, op, c.cfg.MaxRetries, retryBaseDelay(c.cfg.RetryBackoffBase))
}

func retryBaseDelay(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// EnsureConnection pings Redis with the configured retry policy.
func (c *Client) EnsureConnection(ctx context.Context) error {
	if err := c.retry(ctx, func() error { return c.rdb.Ping(ctx).Err() }); err != nil {
		return fmt.Errorf("op=redis_ping: %w: %w", domain.ErrTransientStore, err)
	}
	return nil
}

// BLPop drains the first available item across the given queue keys. When
// keys is empty, nothing arrives before timeout, or the pop errors, it
// sleeps out the timeout and reports ok=false rather than surfacing an
// error into the consumer loop.
func (c *Client) BLPop(ctx context.Context, keys []string, timeout time.Duration) (queueKey, payload string, ok bool, err error) {
	if len(keys) == 0 {
		select {
		case <-time.After(timeout):
		case <-ctx.Done():
		}
		return "", "", false, nil
	}

	res, err := c.rdb.BLPop(ctx, timeout, keys...).Result()
	if err == redis.Nil {
		return "", "", false, nil
	}
	if err != nil {
		observability.LoggerFromContext(ctx).Error("BLPOP failed", "error", err)
		select {
		case <-time.After(timeout):
		case <-ctx.Done():
		}
		return "", "", false, nil
	}
	if len(res) != 2 {
		return "", "", false, nil
	}
	return res[0], res[1], true, nil
}

// RPush appends value to key under the worker's retry policy.
func (c *Client) RPush(ctx context.Context, key, value string) error {
	if err := c.retry(ctx, func() error { return c.rdb.RPush(ctx, key, value).Err() }); err != nil {
		return fmt.Errorf("op=redis_rpush: %w: %w", domain.ErrTransientStore, err)
	}
	return nil
}

// SetHeartbeat writes the worker's liveness key with a TTL of
// max(2*interval, interval+5) seconds. Failures are logged, never retried or
// propagated: a missed heartbeat write is recoverable on the next tick.
func (c *Client) SetHeartbeat(ctx context.Context, workerID string) {
	ttl := time.Duration(c.cfg.HeartbeatTTLSec()) * time.Second
	key := fmt.Sprintf("workers:heartbeat:%s", workerID)
	if err := c.rdb.Set(ctx, key, "alive", ttl).Err(); err != nil {
		observability.LoggerFromContext(ctx).Warn("heartbeat failed", "error", err)
	}
}

// RecordFailure appends value to the given failure queue key under the
// worker's retry policy.
func (c *Client) RecordFailure(ctx context.Context, key, value string) error {
	if err := c.retry(ctx, func() error { return c.rdb.RPush(ctx, key, value).Err() }); err != nil {
		return fmt.Errorf("op=redis_record_failure: %w: %w", domain.ErrTransientStore, err)
	}
	return nil
}

// ScanBrandQueues returns every "<prefix>:*:chunks" key currently present,
// sorted and de-duplicated, using a non-blocking SCAN cursor walk.
func (c *Client) ScanBrandQueues(ctx context.Context) ([]string, error) {
	pattern := fmt.Sprintf("%s:*:chunks", c.cfg.RedisQueuePrefix)
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			observability.LoggerFromContext(ctx).Error("scanning brand queues failed", "error", err)
			break
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Client) spikeKey(brand string, clusterID int) string {
	return fmt.Sprintf("%s:%s:%d", c.cfg.RedisSpikePrefix, brand, clusterID)
}

// SpikeHistory returns the stored mention counts for the given brand/cluster,
// most recent first. Errors are logged and treated as empty history.
func (c *Client) SpikeHistory(ctx context.Context, brand string, clusterID int) []int {
	key := c.spikeKey(brand, clusterID)
	raw, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("fetching spike history failed", "error", err)
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, s := range raw {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// AppendSpikeHistory pushes value onto the brand/cluster's history list,
// trims it to the most recent 100 entries, and refreshes its TTL, all under
// a single mutex-guarded pipeline to keep the push+trim+expire atomic with
// respect to other goroutines on this process.
func (c *Client) AppendSpikeHistory(ctx context.Context, brand string, clusterID int, value int) {
	key := c.spikeKey(brand, clusterID)
	c.spikeMu.Lock()
	defer c.spikeMu.Unlock()

	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, 99)
	pipe.Expire(ctx, key, time.Duration(c.cfg.SpikeHistoryTTLSec)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		observability.LoggerFromContext(ctx).Warn("updating spike history failed", "error", err)
	}
}

// Close releases the underlying Redis connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
