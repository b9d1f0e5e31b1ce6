package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	delay    time.Duration
	err      error
	inFlight int32
	maxSeen  int32
}

func (f *fakeChatClient) Invoke(ctx context.Context, prompt string) (string, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return "response:" + prompt, nil
}

func TestExecutor_RunReturnsClientResult(t *testing.T) {
	client := &fakeChatClient{}
	e := NewExecutor(client, 2, 0)

	out, err := e.Run(context.Background(), "hi", time.Second)
	require.NoError(t, err)
	require.Equal(t, "response:hi", out)
}

func TestExecutor_PropagatesClientError(t *testing.T) {
	client := &fakeChatClient{err: errors.New("boom")}
	e := NewExecutor(client, 1, 0)

	_, err := e.Run(context.Background(), "hi", time.Second)
	require.Error(t, err)
}

func TestExecutor_TimesOutSlowCalls(t *testing.T) {
	client := &fakeChatClient{delay: 50 * time.Millisecond}
	e := NewExecutor(client, 1, 0)

	_, err := e.Run(context.Background(), "hi", 5*time.Millisecond)
	require.Error(t, err)
}

func TestExecutor_BoundsConcurrency(t *testing.T) {
	client := &fakeChatClient{delay: 20 * time.Millisecond}
	e := NewExecutor(client, 2, 0)

	done := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, _ = e.Run(context.Background(), "hi", time.Second)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	require.LessOrEqual(t, atomic.LoadInt32(&client.maxSeen), int32(2))
}
