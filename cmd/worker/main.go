// Package main provides the worker application entry point.
// The worker competes with its peers to drain per-brand mention queues,
// runs each chunk through the analysis pipeline, and publishes results.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brandmentions/worker/internal/adapter/cluster"
	"github.com/brandmentions/worker/internal/adapter/embedding"
	"github.com/brandmentions/worker/internal/adapter/httpserver"
	"github.com/brandmentions/worker/internal/adapter/llm"
	"github.com/brandmentions/worker/internal/adapter/queue"
	"github.com/brandmentions/worker/internal/adapter/resultstore"
	"github.com/brandmentions/worker/internal/adapter/store/redisstore"
	"github.com/brandmentions/worker/internal/config"
	"github.com/brandmentions/worker/internal/observability"
	"github.com/brandmentions/worker/internal/processor"
	"github.com/brandmentions/worker/internal/spike"
	"github.com/brandmentions/worker/internal/worker"
)

// embeddingCacheSize bounds the local embedder's LRU of per-text vectors.
const embeddingCacheSize = 4096

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	workerID := cfg.EffectiveWorkerID()

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	store, err := redisstore.New(cfg)
	if err != nil {
		slog.Error("redis client init failed", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.Metrics{}

	embedder := embedding.NewInstrumented(buildEmbedder(cfg), metrics, workerID)
	llmAdapter, err := llm.NewAdapterFromConfig(cfg, workerID, metrics)
	if err != nil {
		slog.Error("llm adapter init failed", slog.Any("error", err))
		os.Exit(1)
	}
	clusterer := cluster.New(workerID)
	detector := spike.New(store)
	proc := processor.New(embedder, clusterer, llmAdapter, detector, workerID, cfg.PreprocessingExamples)
	storage := resultstore.New(store, metrics, workerID, cfg.RedisResultPrefix, cfg.RedisFailedPrefix)
	consumer := queue.New(store, metrics, workerID,
		time.Duration(cfg.BLPopTimeoutSec)*time.Second,
		time.Duration(cfg.MetricsWaitLogIntervalSec)*time.Second)

	svc := worker.New(store, consumerShim{consumer}, proc, storage, metrics, logger,
		workerID, time.Duration(cfg.HeartbeatIntervalSec)*time.Second)

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		slog.Error("worker start failed", slog.Any("error", err))
		os.Exit(1)
	}

	srv := httpserver.New(store.EnsureConnection)
	router := httpserver.NewRouter(srv)
	port := httpserver.ChooseAvailablePort(cfg.HTTPPort)
	if port != cfg.HTTPPort {
		slog.Warn("preferred HTTP port unavailable, using fallback",
			slog.Int("preferred", cfg.HTTPPort), slog.Int("port", port))
	}
	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: router}
	go func() {
		slog.Info("HTTP surface listening", slog.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", slog.Any("error", err))
		}
	}()

	slog.Info("worker started, waiting for shutdown signal",
		slog.String("worker_id", workerID),
		slog.String("llm_provider", strings.ToLower(cfg.LLMProvider)))
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	svc.Stop()
	slog.Info("worker stopped", slog.String("worker_id", workerID))
}

// buildEmbedder selects the embedding adapter for the configured provider.
func buildEmbedder(cfg config.Config) embedding.Adapter {
	switch strings.ToLower(cfg.EmbeddingsProvider) {
	case "local":
		return embedding.NewLocal(embeddingCacheSize)
	default:
		return embedding.NewRemote(strings.ToLower(cfg.EmbeddingsProvider))
	}
}

// consumerShim adapts the queue consumer's fetch result to the worker
// service's Fetched type.
type consumerShim struct {
	c *queue.Consumer
}

func (s consumerShim) Fetch(ctx context.Context) (*worker.Fetched, error) {
	f, err := s.c.Fetch(ctx)
	if err != nil || f == nil {
		return nil, err
	}
	return &worker.Fetched{QueueKey: f.QueueKey, Payload: f.Payload, FetchMs: f.FetchMs}, nil
}
