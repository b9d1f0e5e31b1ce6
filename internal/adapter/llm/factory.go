package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/brandmentions/worker/internal/config"
)

const (
	geminiOpenAICompatBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	openAIBaseURL             = "https://api.openai.com/v1"
)

// NewAdapterFromConfig builds the summary/sentiment Adapter: mock primary
// with no fallback; or a remote primary with the other remote as fallback
// when its credentials are present, otherwise mock as fallback.
func NewAdapterFromConfig(cfg config.Config, workerID string, metrics metricsSink) (*Adapter, error) {
	primary, fallback, err := buildProviders(cfg)
	if err != nil {
		return nil, fmt.Errorf("op=llm.NewAdapterFromConfig: %w", err)
	}
	timeout := time.Duration(cfg.LLMTimeoutSec) * time.Second
	return NewAdapter(primary, fallback, cfg.LLMSummaryMaxTokens, timeout, workerID, metrics), nil
}

func buildProviders(cfg config.Config) (primary, fallback Provider, err error) {
	minDelay := time.Duration(cfg.LLMMinDelaySec * float64(time.Second))

	switch strings.ToLower(cfg.LLMProvider) {
	case "mock":
		return MockProvider{}, nil, nil

	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil, fmt.Errorf("GEMINI_API_KEY must be set when LLM_PROVIDER is %q", cfg.LLMProvider)
		}
		primary = NewRemoteProvider("gemini", geminiOpenAICompatBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMMaxConcurrency, minDelay)
		if cfg.OpenAIAPIKey != "" {
			fallback = NewRemoteProvider("openai", openAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMMaxConcurrency, minDelay)
		} else {
			fallback = MockProvider{}
		}
		return primary, fallback, nil

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY must be set when LLM_PROVIDER is %q", cfg.LLMProvider)
		}
		primary = NewRemoteProvider("openai", openAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMMaxConcurrency, minDelay)
		if cfg.GeminiAPIKey != "" {
			fallback = NewRemoteProvider("gemini", geminiOpenAICompatBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMMaxConcurrency, minDelay)
		} else {
			fallback = MockProvider{}
		}
		return primary, fallback, nil

	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}
