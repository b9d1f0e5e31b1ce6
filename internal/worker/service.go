// Package worker owns the service lifecycle: heartbeat and processing loops,
// payload handling, and graceful shutdown.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/brandmentions/worker/internal/domain"
)

// storeCloser is the subset of the Redis client the service manages for its
// own lifecycle (connection check + shutdown).
type storeCloser interface {
	EnsureConnection(ctx context.Context) error
	SetHeartbeat(ctx context.Context, workerID string)
	Close() error
}

// fetcher is the subset of the queue consumer the service depends on.
type fetcher interface {
	Fetch(ctx context.Context) (*Fetched, error)
}

// Fetched mirrors queue.Fetched to avoid the worker package importing the
// queue package's internals beyond what it needs.
type Fetched struct {
	QueueKey string
	Payload  string
	FetchMs  float64
}

// chunkProcessor is the subset of the processor the service depends on.
type chunkProcessor interface {
	ProcessChunk(ctx context.Context, chunk domain.Chunk, fetchMs float64) (domain.ChunkResult, error)
}

// resultPusher is the subset of the result store the service depends on.
type resultPusher interface {
	PushResult(ctx context.Context, brand string, result domain.ChunkResult) (float64, error)
	RecordFailure(ctx context.Context, brand string, failure domain.FailureRecord, reasonLabel string) (float64, error)
}

// metricsSink is the subset of observability metrics the service touches.
type metricsSink interface {
	ObserveProcessing(workerID, brand string, seconds float64)
	ObservePreprocessing(workerID, brand string, seconds float64)
	IncChunksProcessed(workerID, brand string)
}

// Service coordinates Redis consumption, processing, and result persistence
// for a single worker process.
type Service struct {
	store     storeCloser
	consumer  fetcher
	processor chunkProcessor
	storage   resultPusher
	metrics   metricsSink
	validate  *validator.Validate
	logger    interface {
		Info(msg string, args ...any)
		Warn(msg string, args ...any)
		Error(msg string, args ...any)
	}

	workerID          string
	heartbeatInterval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New constructs a Service.
func New(store storeCloser, consumer fetcher, processor chunkProcessor, storage resultPusher, metrics metricsSink, logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}, workerID string, heartbeatInterval time.Duration) *Service {
	if heartbeatInterval < time.Second {
		heartbeatInterval = time.Second
	}
	return &Service{
		store:             store,
		consumer:          consumer,
		processor:         processor,
		storage:           storage,
		metrics:           metrics,
		validate:          validator.New(),
		logger:            logger,
		workerID:          workerID,
		heartbeatInterval: heartbeatInterval,
	}
}

// Start ensures the store connection, then spawns the heartbeat and
// processing loops as background goroutines.
func (s *Service) Start(ctx context.Context) error {
	if err := s.store.EnsureConnection(ctx); err != nil {
		return fmt.Errorf("op=worker.Service.Start: %w", err)
	}
	s.stopCh = make(chan struct{})

	s.wg.Add(2)
	go s.heartbeatLoop(ctx)
	go s.processingLoop(ctx)

	s.logger.Info("worker service started", "worker_id", s.workerID)
	return nil
}

// Stop signals both loops to exit, waits for them, and closes the store.
// Idempotent.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		if err := s.store.Close(); err != nil {
			s.logger.Warn("error closing store", "error", err)
		}
		s.logger.Info("worker service stopped", "worker_id", s.workerID)
	})
}

func (s *Service) heartbeatLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		s.store.SetHeartbeat(ctx, s.workerID)
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) processingLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		fetched, err := s.consumer.Fetch(ctx)
		if err != nil {
			s.logger.Error("fetch error", "error", err)
			continue
		}
		if fetched == nil {
			continue
		}
		s.handlePayload(ctx, fetched.QueueKey, fetched.Payload, fetched.FetchMs)
	}
}

func (s *Service) handlePayload(ctx context.Context, queueKey, payload string, fetchMs float64) {
	brandHint := extractBrandFromQueue(queueKey)

	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		s.recordFailure(ctx, brandHint, domain.ReasonJSONDecode, "Invalid JSON", payload, "unknown", err)
		return
	}

	var chunk domain.Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		chunkID := chunkIDFromRaw(raw)
		s.recordFailure(ctx, brandHint, domain.ReasonValidation, "Validation failed", payload, chunkID, err)
		return
	}
	if err := s.validate.Struct(chunk); err != nil {
		chunkID := chunkIDFromRaw(raw)
		s.recordFailure(ctx, brandHint, domain.ReasonValidation, "Validation failed", payload, chunkID, err)
		return
	}

	brand := chunk.Brand
	if brand == "" {
		brand = brandHint
	}

	result, err := s.processor.ProcessChunk(ctx, chunk, fetchMs)
	if err != nil {
		s.recordFailure(ctx, brand, domain.ReasonProcessing, "Processing failed", payload, chunk.ChunkID, err)
		return
	}

	pushMs, err := s.storage.PushResult(ctx, brand, result)
	if err != nil {
		s.recordFailure(ctx, brand, domain.ReasonProcessing, "Processing failed", payload, chunk.ChunkID, err)
		return
	}
	result.Metrics.IOMs += pushMs
	result.Metrics.TotalTaskMs += pushMs
	s.metrics.ObserveProcessing(s.workerID, brand, result.Metrics.TotalTaskMs/1000)
	s.metrics.ObservePreprocessing(s.workerID, brand, result.Metrics.PreprocessingMs/1000)
	s.metrics.IncChunksProcessed(s.workerID, brand)
}

func (s *Service) recordFailure(ctx context.Context, brand, reasonKey, message, payload, chunkID string, cause error) {
	reason := fmt.Sprintf("%s:%s", reasonKey, cause.Error())
	failure := domain.FailureRecord{
		WorkerID: s.workerID,
		Brand:    brand,
		ChunkID:  chunkID,
		Reason:   message,
		Payload:  payload,
	}
	if _, err := s.storage.RecordFailure(ctx, brand, failure, reasonKey); err != nil {
		s.logger.Error("failed to record failure", "error", err)
	}
	s.logger.Warn("chunk processing failure",
		"worker_id", s.workerID, "brand", brand, "chunk_id", chunkID, "reason", reason)
}

func chunkIDFromRaw(raw map[string]any) string {
	if v, ok := raw["chunkId"].(string); ok && v != "" {
		return v
	}
	return "unknown"
}

func extractBrandFromQueue(queueKey string) string {
	parts := strings.Split(queueKey, ":")
	if len(parts) >= 3 {
		return parts[1]
	}
	return "unknown"
}
