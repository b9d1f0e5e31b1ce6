package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MockProvider is a deterministic in-process provider used for local
// development and as the default safety-net fallback. It infers the
// requested operation from the prompt text itself; the sentiment prompt
// template is distinctive enough to key on.
type MockProvider struct{}

func (MockProvider) Name() string { return "mock" }

func (MockProvider) Invoke(_ context.Context, prompt string, _ time.Duration) (string, error) {
	if strings.Contains(prompt, "Analyse the sentiment") {
		return mockSentiment(prompt), nil
	}
	return mockSummary(prompt), nil
}

var positiveLexicon = []string{"great", "good", "love", "awesome", "excellent", "improved", "success", "fast"}
var negativeLexicon = []string{"bad", "hate", "poor", "slow", "issue", "problem", "bug", "error"}

// mockSummary returns the first text line from the prompt's Texts block,
// truncated to 160 characters.
func mockSummary(prompt string) string {
	body := prompt
	if idx := strings.Index(prompt, "Texts:\n"); idx != -1 {
		body = prompt[idx+len("Texts:\n"):]
	}
	for _, l := range strings.Split(body, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if len(l) > 160 {
			l = l[:160]
		}
		return l
	}
	return ""
}

func mockSentiment(prompt string) string {
	body := prompt
	if idx := strings.Index(prompt, "Texts:\n"); idx != -1 {
		body = prompt[idx+len("Texts:\n"):]
	}
	var lines []string
	for _, l := range strings.Split(body, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 && strings.TrimSpace(body) != "" {
		lines = []string{strings.TrimSpace(body)}
	}

	var positive, negative, neutral int
	for _, line := range lines {
		lower := strings.ToLower(line)
		posHits := countHits(lower, positiveLexicon)
		negHits := countHits(lower, negativeLexicon)
		switch {
		case posHits > negHits:
			positive++
		case negHits > posHits:
			negative++
		default:
			neutral++
		}
	}
	total := positive + negative + neutral
	if total == 0 {
		total = 1
	}
	out, _ := json.Marshal(map[string]float64{
		"positive": float64(positive) / float64(total),
		"negative": float64(negative) / float64(total),
		"neutral":  float64(neutral) / float64(total),
	})
	return string(out)
}

func countHits(text string, lexicon []string) int {
	count := 0
	for _, word := range lexicon {
		if strings.Contains(text, word) {
			count++
		}
	}
	return count
}

// RemoteProvider invokes an OpenAI-compatible chat completions endpoint
// through a bounded-concurrency Executor.
type RemoteProvider struct {
	name     string
	executor *Executor
	httpc    *http.Client
	baseURL  string
	apiKey   string
	model    string
}

// NewRemoteProvider constructs a RemoteProvider bound to an OpenAI-compatible
// base URL (e.g. https://api.openai.com/v1 or a Gemini OpenAI-compatible
// endpoint), using its own Executor instance so each provider enforces its
// own concurrency/min-delay ceiling.
func NewRemoteProvider(name, baseURL, apiKey, model string, maxConcurrency int, minDelay time.Duration) *RemoteProvider {
	client := &RemoteProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpc:   &http.Client{},
	}
	client.executor = NewExecutor(chatClientFunc(client.chat), maxConcurrency, minDelay)
	return client
}

func (r *RemoteProvider) Name() string { return r.name }

// Invoke runs the chat completion through this provider's executor, which
// enforces the concurrency permit and success-only min-delay.
func (r *RemoteProvider) Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	return r.executor.Run(ctx, prompt, timeout)
}

// chatClientFunc adapts a plain function to the ChatClient interface.
type chatClientFunc func(ctx context.Context, prompt string) (string, error)

func (f chatClientFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (r *RemoteProvider) chat(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       r.model,
		Temperature: 0.3,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("op=llm.remote.chat: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("op=llm.remote.chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("op=llm.remote.chat: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("op=llm.remote.chat: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("op=llm.remote.chat: status %d: %s", resp.StatusCode, string(data))
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("op=llm.remote.chat: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("op=llm.remote.chat: empty choices in response")
	}
	return out.Choices[0].Message.Content, nil
}
