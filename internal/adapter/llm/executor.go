// Package llm implements the bounded-concurrency remote client executor and
// the summary/sentiment adapter layered on top of it.
package llm

import (
	"context"
	"fmt"
	"time"
)

// ChatClient is the blocking, provider-specific call the executor wraps. It
// is invoked on a separate goroutine and bounded by a timeout.
type ChatClient interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Executor is a bounded-concurrency gate around a ChatClient: a
// buffered-channel permit of capacity maxConcurrency, plus a minimum
// inter-call delay enforced only after a successful call. Each
// RemoteProvider constructs its own Executor, so the permit and the delay
// are not shared between providers.
type Executor struct {
	client   ChatClient
	permits  chan struct{}
	minDelay time.Duration
}

// NewExecutor constructs an Executor with the given concurrency cap and
// minimum inter-call delay (applied only after a successful invocation).
func NewExecutor(client ChatClient, maxConcurrency int, minDelay time.Duration) *Executor {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if minDelay < 0 {
		minDelay = 0
	}
	return &Executor{
		client:   client,
		permits:  make(chan struct{}, maxConcurrency),
		minDelay: minDelay,
	}
}

// Run acquires a permit, invokes the underlying client bounded by timeout,
// and on success sleeps minDelay before releasing the permit. The pair caps
// both in-flight and per-time-window request count across callers.
func (e *Executor) Run(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	select {
	case e.permits <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-e.permits }()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		text, err := e.client.Invoke(callCtx, prompt)
		resultCh <- outcome{text: text, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("op=llm.executor.run: %w", res.err)
		}
		if e.minDelay > 0 {
			select {
			case <-time.After(e.minDelay):
			case <-ctx.Done():
			}
		}
		return res.text, nil
	case <-callCtx.Done():
		return "", fmt.Errorf("op=llm.executor.run: %w", callCtx.Err())
	}
}
