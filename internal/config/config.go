// Package config defines configuration parsing for the worker.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"
)

// Config holds all runtime configuration parsed from environment variables.
type Config struct {
	RedisURL       string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	WorkerID       string `env:"WORKER_ID"`
	ChunkBatchSize int    `env:"CHUNK_BATCH_SIZE" envDefault:"1"`

	EmbeddingsProvider string `env:"EMBEDDINGS_PROVIDER" envDefault:"local"`
	LLMProvider        string `env:"LLM_PROVIDER" envDefault:"mock"`

	EmbeddingAPIKey string `env:"EMBEDDING_API_KEY"`
	LLMAPIKey       string `env:"LLM_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`

	GeminiModel      string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiAPIVersion string `env:"GEMINI_API_VERSION" envDefault:"v1"`
	OpenAIModel      string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	MaxRetries       int     `env:"MAX_RETRIES" envDefault:"3"`
	RetryBackoffBase float64 `env:"RETRY_BACKOFF_BASE" envDefault:"0.5"`

	PrometheusPort int `env:"PROMETHEUS_PORT" envDefault:"9090"`
	HTTPPort       int `env:"HTTP_PORT" envDefault:"8080"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HeartbeatIntervalSec      int `env:"HEARTBEAT_INTERVAL_SEC" envDefault:"10"`
	BLPopTimeoutSec           int `env:"BLPOP_TIMEOUT_SEC" envDefault:"5"`
	MetricsWaitLogIntervalSec int `env:"METRICS_WAIT_LOG_INTERVAL_SEC" envDefault:"30"`

	RedisQueuePrefix   string `env:"REDIS_QUEUE_PREFIX" envDefault:"q"`
	RedisResultPrefix  string `env:"REDIS_RESULT_PREFIX" envDefault:"r"`
	RedisFailedPrefix  string `env:"REDIS_FAILED_PREFIX" envDefault:"f"`
	RedisSpikePrefix   string `env:"REDIS_SPIKE_PREFIX" envDefault:"s"`
	SpikeHistoryTTLSec int    `env:"SPIKE_HISTORY_TTL_SEC" envDefault:"86400"`

	LLMSummaryMaxTokens int     `env:"LLM_SUMMARY_MAX_TOKENS" envDefault:"160"`
	LLMTimeoutSec       int     `env:"LLM_TIMEOUT_SEC" envDefault:"20"`
	LLMMinDelaySec      float64 `env:"LLM_MIN_DELAY_SEC" envDefault:"2.0"`
	LLMMaxConcurrency   int     `env:"LLM_MAX_CONCURRENCY" envDefault:"4"`

	EmbeddingsBatchSize   int `env:"EMBEDDINGS_BATCH_SIZE" envDefault:"32"`
	PreprocessingExamples int `env:"PREPROCESSING_EXAMPLES" envDefault:"3"`
}

// Load parses environment variables into a Config and validates that every
// selected provider has the credentials it needs.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.LLMProvider) {
	case "mock":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be set when LLM_PROVIDER is %q", c.LLMProvider)
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY must be set when LLM_PROVIDER is %q", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}

	switch strings.ToLower(c.EmbeddingsProvider) {
	case "local":
	case "openai", "gemini":
		if c.EmbeddingAPIKey == "" {
			return fmt.Errorf("EMBEDDING_API_KEY must be set when EMBEDDINGS_PROVIDER is %q", c.EmbeddingsProvider)
		}
	default:
		return fmt.Errorf("unsupported EMBEDDINGS_PROVIDER %q", c.EmbeddingsProvider)
	}
	return nil
}

// EffectiveWorkerID returns the configured worker id, or a freshly generated
// "worker-<uuid>" when none was set. The generated id is stored in c on the
// first call, so later calls on the same Config return the same id.
func (c *Config) EffectiveWorkerID() string {
	if c.WorkerID != "" {
		return c.WorkerID
	}
	c.WorkerID = "worker-" + uuid.NewString()
	return c.WorkerID
}

// HeartbeatTTLSec returns the TTL, in seconds, applied to the heartbeat key:
// max(2*interval, interval+5), so a key always outlives at least one missed
// refresh.
func (c Config) HeartbeatTTLSec() int {
	interval := c.HeartbeatIntervalSec
	if interval < 1 {
		interval = 1
	}
	a := 2 * interval
	b := interval + 5
	if a > b {
		return a
	}
	return b
}
