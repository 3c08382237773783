package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	LLM       LLMConfig
	Arxiv     ArxivConfig
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig
	Pipeline  PipelineConfig
	Reports   ReportsConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Env                    string `envconfig:"ENV" default:"development"`
	Port                   string `envconfig:"PORT" default:"9020"`
	ShutdownTimeoutSeconds int    `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" default:"10"`
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

type DatabaseConfig struct {
	URL            string `envconfig:"DATABASE_URL"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`
	MaxConns       int    `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns       int    `envconfig:"DB_MIN_CONNS" default:"2"`
}

type LLMConfig struct {
	APIBase            string  `envconfig:"LLM_API_BASE" default:"https://openrouter.ai/api/v1"`
	APIKey             string  `envconfig:"LLM_API_KEY"`
	GenerationModel    string  `envconfig:"GENERATION_MODEL" default:"openrouter/auto"`
	EmbeddingModel     string  `envconfig:"EMBEDDING_MODEL" default:"openai/text-embedding-3-small"`
	EmbeddingDimension int     `envconfig:"EMBEDDING_DIMENSION" default:"1536"`
	Temperature        float64 `envconfig:"LLM_TEMPERATURE" default:"0.3"`
	TimeoutSeconds     int     `envconfig:"LLM_TIMEOUT_SECONDS" default:"120"`
	RequestsPerSecond  float64 `envconfig:"LLM_REQUESTS_PER_SECOND" default:"1"`
	SummaryMaxTokens   int     `envconfig:"SUMMARY_MAX_TOKENS" default:"512"`
	SynthesisMaxTokens int     `envconfig:"SYNTHESIS_MAX_TOKENS" default:"1024"`
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ArxivConfig struct {
	BaseURL                string `envconfig:"ARXIV_BASE_URL" default:"https://export.arxiv.org"`
	TimeoutSeconds         int    `envconfig:"ARXIV_TIMEOUT_SECONDS" default:"30"`
	RequestIntervalSeconds int    `envconfig:"ARXIV_REQUEST_INTERVAL_SECONDS" default:"3"`
}

func (c ArxivConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ArxivConfig) RequestInterval() time.Duration {
	return time.Duration(c.RequestIntervalSeconds) * time.Second
}

type ChunkingConfig struct {
	MaxTokens     int `envconfig:"CHUNK_MAX_TOKENS" default:"280"`
	OverlapTokens int `envconfig:"CHUNK_OVERLAP_TOKENS" default:"40"`
}

type RetrievalConfig struct {
	TopK            int `envconfig:"RAG_TOP_K" default:"5"`
	MaxContextChars int `envconfig:"RAG_MAX_CONTEXT_CHARS" default:"6000"`
}

type PipelineConfig struct {
	IndexConcurrency     int `envconfig:"INDEX_CONCURRENCY" default:"4"`
	SummaryConcurrency   int `envconfig:"SUMMARY_CONCURRENCY" default:"3"`
	RetryMaxAttempts     int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelayMS     int `envconfig:"RETRY_BASE_DELAY_MS" default:"500"`
	RunTimeoutSeconds    int `envconfig:"RUN_TIMEOUT_SECONDS" default:"600"`
	DefaultMaxArticles   int `envconfig:"DEFAULT_MAX_ARTICLES" default:"10"`
	QuickSummaryArticles int `envconfig:"QUICK_SUMMARY_ARTICLES" default:"3"`
	FallbackSummaryChars int `envconfig:"FALLBACK_SUMMARY_CHARS" default:"600"`
	WorkerPollIntervalMS int `envconfig:"WORKER_POLL_INTERVAL_MS" default:"500"`
}

func (c PipelineConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

func (c PipelineConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

func (c PipelineConfig) WorkerPollInterval() time.Duration {
	return time.Duration(c.WorkerPollIntervalMS) * time.Millisecond
}

type ReportsConfig struct {
	Dir string `envconfig:"REPORTS_DIR" default:"reports"`
}

type TelemetryConfig struct {
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"litwatch"`
	OTelEnabled bool   `envconfig:"OTEL_ENABLED" default:"false"`
}

// Load reads configuration from the environment, falling back to a .env
// file when present. Env vars set in the shell take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = readSecretFile("LLM_API_KEY_FILE")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("%w: DATABASE_URL", ErrMissingRequired)
	}
	if c.LLM.APIBase == "" {
		return fmt.Errorf("%w: LLM_API_BASE", ErrMissingRequired)
	}
	if c.LLM.GenerationModel == "" {
		return fmt.Errorf("%w: GENERATION_MODEL", ErrMissingRequired)
	}
	if c.LLM.EmbeddingModel == "" {
		return fmt.Errorf("%w: EMBEDDING_MODEL", ErrMissingRequired)
	}
	if c.LLM.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: EMBEDDING_DIMENSION must be positive, got %d", ErrInvalidValue, c.LLM.EmbeddingDimension)
	}
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("%w: CHUNK_MAX_TOKENS must be positive, got %d", ErrInvalidValue, c.Chunking.MaxTokens)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return fmt.Errorf("%w: CHUNK_OVERLAP_TOKENS must be in [0, CHUNK_MAX_TOKENS), got %d", ErrInvalidValue, c.Chunking.OverlapTokens)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("%w: RAG_TOP_K must be at least 1, got %d", ErrInvalidValue, c.Retrieval.TopK)
	}
	if c.Pipeline.IndexConcurrency < 1 {
		return fmt.Errorf("%w: INDEX_CONCURRENCY must be at least 1, got %d", ErrInvalidValue, c.Pipeline.IndexConcurrency)
	}
	if c.Pipeline.SummaryConcurrency < 1 {
		return fmt.Errorf("%w: SUMMARY_CONCURRENCY must be at least 1, got %d", ErrInvalidValue, c.Pipeline.SummaryConcurrency)
	}
	return nil
}

func readSecretFile(fileEnvKey string) string {
	filePath, ok := os.LookupEnv(fileEnvKey)
	if !ok {
		return ""
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}
