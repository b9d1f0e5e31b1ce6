package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/brandmentions/worker/internal/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.Config{
		RedisURL:             "redis://" + mr.Addr() + "/0",
		MaxRetries:           1,
		RetryBackoffBase:     0.01,
		RedisQueuePrefix:     "q",
		RedisSpikePrefix:     "s",
		SpikeHistoryTTLSec:   3600,
		HeartbeatIntervalSec: 10,
	}
	client, err := New(cfg)
	require.NoError(t, err)
	return client, mr
}

func TestClient_EnsureConnectionSucceedsAgainstLiveServer(t *testing.T) {
	client, mr := newTestClient(t)
	defer mr.Close()

	require.NoError(t, client.EnsureConnection(context.Background()))
}

func TestClient_RPushAndBLPopRoundTrip(t *testing.T) {
	client, mr := newTestClient(t)
	defer mr.Close()

	require.NoError(t, client.RPush(context.Background(), "q:acme:chunks", `{"foo":"bar"}`))

	key, payload, ok, err := client.BLPop(context.Background(), []string{"q:acme:chunks"}, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "q:acme:chunks", key)
	require.Equal(t, `{"foo":"bar"}`, payload)
}

func TestClient_BLPopReturnsNotOkOnTimeout(t *testing.T) {
	client, mr := newTestClient(t)
	defer mr.Close()

	_, _, ok, err := client.BLPop(context.Background(), []string{"q:acme:chunks"}, 20*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClient_ScanBrandQueuesFindsAllMatchingKeys(t *testing.T) {
	client, mr := newTestClient(t)
	defer mr.Close()

	require.NoError(t, client.RPush(context.Background(), "q:acme:chunks", "a"))
	require.NoError(t, client.RPush(context.Background(), "q:initech:chunks", "b"))
	mr.Set("unrelated-key", "x")

	keys, err := client.ScanBrandQueues(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"q:acme:chunks", "q:initech:chunks"}, keys)
}

func TestClient_SetHeartbeatWritesKeyWithTTL(t *testing.T) {
	client, mr := newTestClient(t)
	defer mr.Close()

	client.SetHeartbeat(context.Background(), "worker-1")

	require.True(t, mr.Exists("workers:heartbeat:worker-1"))
	ttl := mr.TTL("workers:heartbeat:worker-1")
	require.Greater(t, ttl, time.Duration(0))
}

func TestClient_SpikeHistoryAppendAndRead(t *testing.T) {
	client, mr := newTestClient(t)
	defer mr.Close()

	client.AppendSpikeHistory(context.Background(), "acme", 7, 1)
	client.AppendSpikeHistory(context.Background(), "acme", 7, 5)

	history := client.SpikeHistory(context.Background(), "acme", 7)
	require.Equal(t, []int{5, 1}, history)
}

func TestClient_RecordFailureAppendsToQueue(t *testing.T) {
	client, mr := newTestClient(t)
	defer mr.Close()

	require.NoError(t, client.RecordFailure(context.Background(), "f:acme:failed", "oops"))

	vals, err := mr.List("f:acme:failed")
	require.NoError(t, err)
	require.Equal(t, []string{"oops"}, vals)
}
