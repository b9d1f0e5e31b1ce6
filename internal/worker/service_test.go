package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brandmentions/worker/internal/domain"
)

type fakeStoreCloser struct {
	heartbeats int
	closed     bool
}

func (f *fakeStoreCloser) EnsureConnection(context.Context) error { return nil }
func (f *fakeStoreCloser) SetHeartbeat(context.Context, string)   { f.heartbeats++ }
func (f *fakeStoreCloser) Close() error                           { f.closed = true; return nil }

type fakeFetcher struct {
	mu      sync.Mutex
	queue   []*Fetched
	fetchFn func() (*Fetched, error)
}

func (f *fakeFetcher) Fetch(context.Context) (*Fetched, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchFn != nil {
		return f.fetchFn()
	}
	if len(f.queue) == 0 {
		return nil, nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, nil
}

type fakeProcessor struct {
	result domain.ChunkResult
	err    error
}

func (f fakeProcessor) ProcessChunk(context.Context, domain.Chunk, float64) (domain.ChunkResult, error) {
	return f.result, f.err
}

type fakeStorage struct {
	mu       sync.Mutex
	pushed   []domain.ChunkResult
	failures []domain.FailureRecord
	reasons  []string
	pushErr  error
}

func (f *fakeStorage) PushResult(_ context.Context, _ string, result domain.ChunkResult) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return 0, f.pushErr
	}
	f.pushed = append(f.pushed, result)
	return 1, nil
}

func (f *fakeStorage) RecordFailure(_ context.Context, _ string, failure domain.FailureRecord, reasonLabel string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure)
	f.reasons = append(f.reasons, reasonLabel)
	return 1, nil
}

type fakeServiceMetrics struct {
	mu        sync.Mutex
	processed int
}

func (f *fakeServiceMetrics) ObserveProcessing(string, string, float64) {}

func (f *fakeServiceMetrics) ObservePreprocessing(string, string, float64) {}
func (f *fakeServiceMetrics) IncChunksProcessed(string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed++
}

type testLogger struct{}

func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

func validChunkPayload() string {
	return `{"brand":"acme","chunkId":"c1","createdAt":"2024-01-01T00:00:00Z","mentions":[{"id":"m1","source":"tw","text":"great product"}]}`
}

func TestService_HandlesValidPayloadEndToEnd(t *testing.T) {
	storage := &fakeStorage{}
	metrics := &fakeServiceMetrics{}
	fetcher := &fakeFetcher{queue: []*Fetched{{QueueKey: "q:acme:chunks", Payload: validChunkPayload(), FetchMs: 2}}}
	processor := fakeProcessor{result: domain.ChunkResult{ChunkID: "c1", Brand: "acme"}}

	s := New(&fakeStoreCloser{}, fetcher, processor, storage, metrics, testLogger{}, "worker-1", time.Second)
	s.handlePayload(context.Background(), "q:acme:chunks", validChunkPayload(), 2)

	require.Len(t, storage.pushed, 1)
	require.Equal(t, 1, metrics.processed)
	require.Empty(t, storage.failures)
}

func TestService_InvalidJSONRecordsJSONDecodeFailure(t *testing.T) {
	storage := &fakeStorage{}
	metrics := &fakeServiceMetrics{}
	processor := fakeProcessor{}

	s := New(&fakeStoreCloser{}, &fakeFetcher{}, processor, storage, metrics, testLogger{}, "worker-1", time.Second)
	s.handlePayload(context.Background(), "q:acme:chunks", "{not json", 1)

	require.Len(t, storage.failures, 1)
	require.Equal(t, []string{domain.ReasonJSONDecode}, storage.reasons)
	require.Empty(t, storage.pushed)
}

func TestService_SchemaViolationRecordsValidationFailure(t *testing.T) {
	storage := &fakeStorage{}
	metrics := &fakeServiceMetrics{}
	processor := fakeProcessor{}

	s := New(&fakeStoreCloser{}, &fakeFetcher{}, processor, storage, metrics, testLogger{}, "worker-1", time.Second)
	// valid JSON, but missing required "brand" and "chunkId" fields.
	s.handlePayload(context.Background(), "q:acme:chunks", `{"mentions":[]}`, 1)

	require.Len(t, storage.failures, 1)
	require.Equal(t, []string{domain.ReasonValidation}, storage.reasons)
}

func TestService_ProcessingFailureRecordsProcessingReason(t *testing.T) {
	storage := &fakeStorage{}
	metrics := &fakeServiceMetrics{}
	processor := fakeProcessor{err: errors.New("llm exploded")}

	s := New(&fakeStoreCloser{}, &fakeFetcher{}, processor, storage, metrics, testLogger{}, "worker-1", time.Second)
	s.handlePayload(context.Background(), "q:acme:chunks", validChunkPayload(), 1)

	require.Len(t, storage.failures, 1)
	require.Equal(t, []string{domain.ReasonProcessing}, storage.reasons)
	require.Equal(t, 0, metrics.processed)
}

func TestService_PushFailureAlsoRecordsProcessingReason(t *testing.T) {
	storage := &fakeStorage{pushErr: errors.New("redis down")}
	metrics := &fakeServiceMetrics{}
	processor := fakeProcessor{result: domain.ChunkResult{ChunkID: "c1", Brand: "acme"}}

	s := New(&fakeStoreCloser{}, &fakeFetcher{}, processor, storage, metrics, testLogger{}, "worker-1", time.Second)
	s.handlePayload(context.Background(), "q:acme:chunks", validChunkPayload(), 1)

	require.Len(t, storage.failures, 1)
	require.Equal(t, []string{domain.ReasonProcessing}, storage.reasons)
}

func TestService_StartAndStopRunLoopsAndCloseStore(t *testing.T) {
	store := &fakeStoreCloser{}
	fetcher := &fakeFetcher{fetchFn: func() (*Fetched, error) { time.Sleep(time.Millisecond); return nil, nil }}
	processor := fakeProcessor{}
	storage := &fakeStorage{}
	metrics := &fakeServiceMetrics{}

	s := New(store, fetcher, processor, storage, metrics, testLogger{}, "worker-1", 10*time.Millisecond)
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	require.True(t, store.closed)
	require.GreaterOrEqual(t, store.heartbeats, 1)
}

func TestExtractBrandFromQueue_ParsesMiddleSegment(t *testing.T) {
	require.Equal(t, "acme", extractBrandFromQueue("q:acme:chunks"))
	require.Equal(t, "unknown", extractBrandFromQueue("malformed"))
}
