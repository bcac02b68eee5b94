package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the insight engine service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// LLM backend (OpenAI-compatible chat completions API)
	LLMBaseURL string `envconfig:"LLM_BASE_URL" default:"https://api.openai.com/v1"`
	LLMAPIKey  string `envconfig:"LLM_API_KEY" default:""`
	LLMTimeout int    `envconfig:"LLM_TIMEOUT" default:"30"` // seconds

	// Model IDs per role. Pricing-tier classification keys off these names.
	ScreeningModel string `envconfig:"SCREENING_MODEL" default:"claude-3-5-haiku"`
	AnalysisModel  string `envconfig:"ANALYSIS_MODEL" default:"claude-sonnet-4-5"`
	CopilotModel   string `envconfig:"COPILOT_MODEL" default:"claude-sonnet-4-5"`
	SummaryModel   string `envconfig:"SUMMARY_MODEL" default:"claude-sonnet-4-5"`

	// Speech-to-text backend (whisper-server style HTTP endpoint)
	STTBaseURL string `envconfig:"STT_BASE_URL" default:"http://localhost:9000"`
	STTModel   string `envconfig:"STT_MODEL" default:"whisper-small"`
	STTTimeout int    `envconfig:"STT_TIMEOUT" default:"20"` // seconds
	Language   string `envconfig:"LANGUAGE" default:"es"`

	// Audio segmentation
	SampleRate        int     `envconfig:"SAMPLE_RATE" default:"16000"`
	PollIntervalMs    int     `envconfig:"POLL_INTERVAL_MS" default:"500"`     // Segmenter tick interval
	MinAudioSeconds   float64 `envconfig:"MIN_AUDIO_SECONDS" default:"0.3"`    // Skip transcription below this
	SilenceThreshold  float64 `envconfig:"SILENCE_THRESHOLD" default:"0.01"`   // RMS threshold for silence
	SilenceDuration   float64 `envconfig:"SILENCE_DURATION" default:"0.5"`     // Seconds of trailing silence
	MaxBufferSeconds  float64 `envconfig:"MAX_BUFFER_SECONDS" default:"30.0"`  // Hard overflow finalization
	MaxSegmentSeconds float64 `envconfig:"MAX_SEGMENT_SECONDS" default:"15.0"` // Forced-but-clean finalization

	// Screening pipeline
	ScreeningIntervalSeconds int     `envconfig:"SCREENING_INTERVAL_SECONDS" default:"30"`
	SessionBudgetUSD         float64 `envconfig:"SESSION_BUDGET_USD" default:"1.00"`
	CacheMaxEntries          int     `envconfig:"CACHE_MAX_ENTRIES" default:"100"`
	CacheTTLSeconds          float64 `envconfig:"CACHE_TTL_SECONDS" default:"300"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fails fast on configuration a session could not safely run with.
func (c *Config) Validate() error {
	if c.SessionBudgetUSD <= 0 {
		return fmt.Errorf("SESSION_BUDGET_USD must be positive, got %f", c.SessionBudgetUSD)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.PollIntervalMs < 100 || c.PollIntervalMs > 5000 {
		return fmt.Errorf("POLL_INTERVAL_MS must be between 100 and 5000, got %d", c.PollIntervalMs)
	}
	if c.SilenceThreshold <= 0 {
		return fmt.Errorf("SILENCE_THRESHOLD must be positive, got %f", c.SilenceThreshold)
	}
	if c.SilenceDuration <= 0 {
		return fmt.Errorf("SILENCE_DURATION must be positive, got %f", c.SilenceDuration)
	}
	if c.MaxSegmentSeconds > c.MaxBufferSeconds {
		return fmt.Errorf("MAX_SEGMENT_SECONDS (%f) must not exceed MAX_BUFFER_SECONDS (%f)",
			c.MaxSegmentSeconds, c.MaxBufferSeconds)
	}
	if c.ScreeningIntervalSeconds <= 0 {
		return fmt.Errorf("SCREENING_INTERVAL_SECONDS must be positive, got %d", c.ScreeningIntervalSeconds)
	}
	if c.CacheMaxEntries <= 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be positive, got %d", c.CacheMaxEntries)
	}
	if c.CacheTTLSeconds <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive, got %f", c.CacheTTLSeconds)
	}
	return nil
}
