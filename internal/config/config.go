package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"filechat-ai/internal/apperr"
	"filechat-ai/internal/indexer"
	"filechat-ai/internal/llm"
)

// Embedding providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Vector index backends.
const (
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort        string
	LogLevel       slog.Level
	LogFormat      string
	MaxUploadBytes int64

	ChunkSize          int
	ChunkOverlap       int
	ChunkLookback      int
	TopK               int
	RelevanceThreshold float64

	EmbeddingProvider    string
	EmbeddingBaseURL     string
	EmbeddingModelName   string
	EmbeddingAPIKey      string
	EmbeddingDimension   int
	EmbeddingBatchSize   int
	EmbeddingConcurrency int
	EmbeddingRPS         float64
	EmbeddingProbe       bool

	ChatBaseURL   string
	ChatModelName string
	ChatAPIKey    string

	RetryMaxAttempts int
	RequestTimeout   time.Duration

	VectorBackend string
	QdrantURL     string
	QdrantAPIKey  string
	QdrantPrefix  string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the result.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// If CONFIG_FILE names a YAML file, its keys (lowercase env names) fill in
// values the environment leaves unset.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	file, err := loadFile(getEnv("CONFIG_FILE", ""))
	if err != nil {
		return nil, err
	}

	p := parser{file: file}
	cfg := &Config{
		APIPort:        p.getString("API_PORT", "9000"),
		LogFormat:      strings.ToLower(p.getString("LOG_FORMAT", "text")),
		MaxUploadBytes: p.getInt64("MAX_UPLOAD_BYTES", 32<<20),

		ChunkSize:          p.getInt("CHUNK_SIZE", indexer.DefaultChunkSize),
		ChunkOverlap:       p.getInt("CHUNK_OVERLAP", indexer.DefaultChunkOverlap),
		ChunkLookback:      p.getInt("CHUNK_LOOKBACK", indexer.DefaultLookback),
		TopK:               p.getInt("TOP_K", 3),
		RelevanceThreshold: p.getFloat("RELEVANCE_THRESHOLD", 0.1),

		EmbeddingProvider:    strings.ToLower(p.getString("EMBEDDING_PROVIDER", ProviderGemini)),
		EmbeddingBaseURL:     p.getString("EMBEDDING_BASE_URL", ""),
		EmbeddingModelName:   p.getString("EMBEDDING_MODEL_NAME", "text-embedding-004"),
		EmbeddingDimension:   p.getInt("EMBEDDING_DIMENSION", 0),
		EmbeddingBatchSize:   p.getInt("EMBEDDING_BATCH_SIZE", 100),
		EmbeddingConcurrency: p.getInt("EMBEDDING_CONCURRENCY", 4),
		EmbeddingRPS:         p.getFloat("EMBEDDING_REQUESTS_PER_SECOND", 0),
		EmbeddingProbe:       p.getBool("EMBEDDING_PROBE", true),

		ChatBaseURL:   p.getString("CHAT_BASE_URL", llm.DefaultChatBaseURL),
		ChatModelName: p.getString("CHAT_MODEL_NAME", "deepseek-chat"),

		RetryMaxAttempts: p.getInt("RETRY_MAX_ATTEMPTS", 3),
		RequestTimeout:   p.getDuration("REQUEST_TIMEOUT", 30*time.Second),

		VectorBackend: strings.ToLower(p.getString("VECTOR_BACKEND", BackendMemory)),
		QdrantURL:     p.getString("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:  p.getString("QDRANT_API_KEY", ""),
		QdrantPrefix:  p.getString("QDRANT_COLLECTION_PREFIX", "filechat"),
	}
	cfg.LogLevel = p.getLevel("LOG_LEVEL", slog.LevelInfo)
	if p.err != nil {
		return nil, p.err
	}

	// Provider-specific keys are accepted as fallbacks.
	embeddingFallback := "GEMINI_API_KEY"
	if cfg.EmbeddingProvider == ProviderOpenAI {
		embeddingFallback = "OPENAI_API_KEY"
	}
	cfg.EmbeddingAPIKey = p.getString("EMBEDDING_API_KEY", p.getString(embeddingFallback, ""))
	cfg.ChatAPIKey = p.getString("CHAT_API_KEY", p.getString("DEEPSEEK_API_KEY", ""))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and required credentials.
func (c *Config) Validate() error {
	if err := indexer.ValidateParams(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}

	switch {
	case c.ChunkLookback < 0:
		return fmt.Errorf("%w: CHUNK_LOOKBACK must be >= 0, got %d", apperr.ErrInvalidConfiguration, c.ChunkLookback)
	case c.TopK <= 0:
		return fmt.Errorf("%w: TOP_K must be > 0, got %d", apperr.ErrInvalidConfiguration, c.TopK)
	case c.RelevanceThreshold < -1 || c.RelevanceThreshold > 1:
		return fmt.Errorf("%w: RELEVANCE_THRESHOLD must be in [-1, 1], got %g", apperr.ErrInvalidConfiguration, c.RelevanceThreshold)
	case c.EmbeddingProvider != ProviderGemini && c.EmbeddingProvider != ProviderOpenAI:
		return fmt.Errorf("%w: EMBEDDING_PROVIDER must be %q or %q, got %q", apperr.ErrInvalidConfiguration, ProviderGemini, ProviderOpenAI, c.EmbeddingProvider)
	case c.EmbeddingModelName == "":
		return fmt.Errorf("%w: EMBEDDING_MODEL_NAME is required", apperr.ErrInvalidConfiguration)
	case c.EmbeddingDimension < 0:
		return fmt.Errorf("%w: EMBEDDING_DIMENSION must be >= 0, got %d", apperr.ErrInvalidConfiguration, c.EmbeddingDimension)
	case c.EmbeddingBatchSize <= 0:
		return fmt.Errorf("%w: EMBEDDING_BATCH_SIZE must be > 0, got %d", apperr.ErrInvalidConfiguration, c.EmbeddingBatchSize)
	case c.EmbeddingConcurrency <= 0:
		return fmt.Errorf("%w: EMBEDDING_CONCURRENCY must be > 0, got %d", apperr.ErrInvalidConfiguration, c.EmbeddingConcurrency)
	case c.EmbeddingRPS < 0:
		return fmt.Errorf("%w: EMBEDDING_REQUESTS_PER_SECOND must be >= 0, got %g", apperr.ErrInvalidConfiguration, c.EmbeddingRPS)
	case c.ChatModelName == "":
		return fmt.Errorf("%w: CHAT_MODEL_NAME is required", apperr.ErrInvalidConfiguration)
	case c.RetryMaxAttempts <= 0:
		return fmt.Errorf("%w: RETRY_MAX_ATTEMPTS must be > 0, got %d", apperr.ErrInvalidConfiguration, c.RetryMaxAttempts)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: REQUEST_TIMEOUT must be > 0, got %s", apperr.ErrInvalidConfiguration, c.RequestTimeout)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: MAX_UPLOAD_BYTES must be > 0, got %d", apperr.ErrInvalidConfiguration, c.MaxUploadBytes)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: LOG_FORMAT must be \"text\" or \"json\", got %q", apperr.ErrInvalidConfiguration, c.LogFormat)
	case c.VectorBackend != BackendMemory && c.VectorBackend != BackendQdrant:
		return fmt.Errorf("%w: VECTOR_BACKEND must be %q or %q, got %q", apperr.ErrInvalidConfiguration, BackendMemory, BackendQdrant, c.VectorBackend)
	case c.VectorBackend == BackendQdrant && c.QdrantURL == "":
		return fmt.Errorf("%w: QDRANT_URL is required for the qdrant backend", apperr.ErrInvalidConfiguration)
	}

	if c.EmbeddingAPIKey == "" {
		return fmt.Errorf("%w: EMBEDDING_API_KEY is required", apperr.ErrMissingCredential)
	}
	if c.ChatAPIKey == "" {
		return fmt.Errorf("%w: CHAT_API_KEY is required", apperr.ErrMissingCredential)
	}
	return nil
}

// RetryPolicy returns the retry policy for external model calls.
func (c *Config) RetryPolicy() llm.RetryPolicy {
	policy := llm.DefaultRetryPolicy()
	policy.MaxAttempts = c.RetryMaxAttempts
	policy.Timeout = c.RequestTimeout
	return policy
}

// loadFile reads a flat YAML mapping. Keys are lowercased env names.
func loadFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", apperr.ErrInvalidConfiguration, err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file %s: %v", apperr.ErrInvalidConfiguration, path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return values, nil
}

// parser resolves keys from the environment, then the config file, then the
// default. The first parse error is kept.
type parser struct {
	file map[string]string
	err  error
}

func (p *parser) getString(key, defaultValue string) string {
	if value := getEnv(key, ""); value != "" {
		return value
	}
	if value, ok := p.file[strings.ToLower(key)]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (p *parser) fail(key, value, kind string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s must be a valid %s, got %q", apperr.ErrInvalidConfiguration, key, kind, value)
	}
}

func (p *parser) getInt(key string, defaultValue int) int {
	s := p.getString(key, "")
	if s == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		p.fail(key, s, "integer")
		return defaultValue
	}
	return v
}

func (p *parser) getInt64(key string, defaultValue int64) int64 {
	s := p.getString(key, "")
	if s == "" {
		return defaultValue
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		p.fail(key, s, "integer")
		return defaultValue
	}
	return v
}

func (p *parser) getFloat(key string, defaultValue float64) float64 {
	s := p.getString(key, "")
	if s == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(key, s, "number")
		return defaultValue
	}
	return v
}

func (p *parser) getBool(key string, defaultValue bool) bool {
	s := p.getString(key, "")
	if s == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, s, "boolean")
		return defaultValue
	}
	return v
}

func (p *parser) getDuration(key string, defaultValue time.Duration) time.Duration {
	s := p.getString(key, "")
	if s == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		p.fail(key, s, "duration")
		return defaultValue
	}
	return v
}

func (p *parser) getLevel(key string, defaultValue slog.Level) slog.Level {
	s := p.getString(key, "")
	if s == "" {
		return defaultValue
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		p.fail(key, s, "log level")
		return defaultValue
	}
	return l
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
