package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/uniconnect/internal/infrastructure/resilience"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type Config struct {
	APIPort  string
	LogLevel string

	DocumentsDir       string
	IndexDir           string
	DocumentExtensions []string

	ChunkSize        int
	ChunkOverlap     int
	RAGTopK          int
	RAGPreviewChars  int
	EmbedBatchSize   int
	EmbedConcurrency int

	LLMProvider       string
	LLMTemperature    float64
	LLMTimeoutSeconds int

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIGenModel   string
	OpenAIEmbedModel string

	RetryMaxAttempts          int
	RetryInitialBackoffMS     int
	RetryMaxBackoffMS         int
	RetryMultiplier           float64
	CallTimeoutSeconds        int
	BreakerEnabled            bool
	BreakerMinRequests        int
	BreakerFailureRatio       float64
	BreakerOpenTimeoutSeconds int
	BreakerHalfOpenMaxCalls   int

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxConnections int

	NATSURL     string
	NATSSubject string

	WatchDocuments  bool
	WatchDebounceMS int
	ProcessOnStart  bool
}

type lookupFunc func(key string) string

// Load reads .env (when present), then the YAML file named by
// UNICONNECT_CONFIG, then the process environment. Later sources win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	overlay, err := readOverlay(os.Getenv("UNICONNECT_CONFIG"))
	if err != nil {
		return Config{}, err
	}

	cfg := build(func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return overlay[key]
	})
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func build(lookup lookupFunc) Config {
	return Config{
		APIPort:  mustEnv(lookup, "API_PORT", "8080"),
		LogLevel: mustEnv(lookup, "LOG_LEVEL", "info"),

		DocumentsDir:       mustEnv(lookup, "DOCUMENTS_DIR", "./data/pdfs"),
		IndexDir:           mustEnv(lookup, "INDEX_DIR", "./data/vector_store"),
		DocumentExtensions: mustEnvList(lookup, "DOCUMENT_EXTENSIONS", []string{".pdf"}),

		ChunkSize:        mustEnvInt(lookup, "CHUNK_SIZE", 1000),
		ChunkOverlap:     mustEnvInt(lookup, "CHUNK_OVERLAP", 200),
		RAGTopK:          mustEnvInt(lookup, "RAG_TOP_K", 4),
		RAGPreviewChars:  mustEnvInt(lookup, "RAG_PREVIEW_CHARS", 300),
		EmbedBatchSize:   mustEnvInt(lookup, "EMBED_BATCH_SIZE", 64),
		EmbedConcurrency: mustEnvInt(lookup, "EMBED_CONCURRENCY", 4),

		LLMProvider:       strings.ToLower(mustEnv(lookup, "LLM_PROVIDER", ProviderOllama)),
		LLMTemperature:    mustEnvFloat(lookup, "LLM_TEMPERATURE", 0.7),
		LLMTimeoutSeconds: mustEnvInt(lookup, "LLM_TIMEOUT_SECONDS", 120),

		OllamaURL:        mustEnv(lookup, "OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv(lookup, "OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv(lookup, "OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		OpenAIAPIKey:     mustEnv(lookup, "OPENAI_API_KEY", ""),
		OpenAIBaseURL:    mustEnv(lookup, "OPENAI_BASE_URL", ""),
		OpenAIGenModel:   mustEnv(lookup, "OPENAI_GEN_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: mustEnv(lookup, "OPENAI_EMBED_MODEL", "text-embedding-3-small"),

		RetryMaxAttempts:          mustEnvInt(lookup, "RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoffMS:     mustEnvInt(lookup, "RETRY_INITIAL_BACKOFF_MS", 200),
		RetryMaxBackoffMS:         mustEnvInt(lookup, "RETRY_MAX_BACKOFF_MS", 2000),
		RetryMultiplier:           mustEnvFloat(lookup, "RETRY_MULTIPLIER", 2),
		CallTimeoutSeconds:        mustEnvInt(lookup, "LLM_CALL_TIMEOUT_SECONDS", 0),
		BreakerEnabled:            mustEnvBool(lookup, "BREAKER_ENABLED", true),
		BreakerMinRequests:        mustEnvInt(lookup, "BREAKER_MIN_REQUESTS", 10),
		BreakerFailureRatio:       mustEnvFloat(lookup, "BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenTimeoutSeconds: mustEnvInt(lookup, "BREAKER_OPEN_TIMEOUT_SECONDS", 30),
		BreakerHalfOpenMaxCalls:   mustEnvInt(lookup, "BREAKER_HALF_OPEN_MAX_CALLS", 2),

		APIRateLimitRPS:   mustEnvFloat(lookup, "API_RATE_LIMIT_RPS", 10),
		APIRateLimitBurst: mustEnvInt(lookup, "API_RATE_LIMIT_BURST", 20),
		APIMaxConnections: mustEnvInt(lookup, "API_MAX_CONNECTIONS", 256),

		NATSURL:     mustEnv(lookup, "NATS_URL", ""),
		NATSSubject: mustEnv(lookup, "NATS_SUBJECT", "uniconnect.documents.add"),

		WatchDocuments:  mustEnvBool(lookup, "WATCH_DOCUMENTS", false),
		WatchDebounceMS: mustEnvInt(lookup, "WATCH_DEBOUNCE_MS", 1500),
		ProcessOnStart:  mustEnvBool(lookup, "PROCESS_ON_START", false),
	}
}

func (c Config) Validate() error {
	var problems []string
	switch c.LLMProvider {
	case ProviderOllama:
	case ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			problems = append(problems, "OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	default:
		problems = append(problems, fmt.Sprintf("LLM_PROVIDER must be %q or %q, got %q", ProviderOllama, ProviderOpenAI, c.LLMProvider))
	}
	if c.ChunkSize <= 0 {
		problems = append(problems, "CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		problems = append(problems, "CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if c.RAGTopK <= 0 {
		problems = append(problems, "RAG_TOP_K must be positive")
	}
	if len(c.DocumentExtensions) == 0 {
		problems = append(problems, "DOCUMENT_EXTENSIONS must list at least one extension")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) Resilience() resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        c.RetryMaxAttempts,
		RetryInitialBackoff:     time.Duration(c.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(c.RetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:         c.RetryMultiplier,
		CallTimeout:             time.Duration(c.CallTimeoutSeconds) * time.Second,
		BreakerEnabled:          c.BreakerEnabled,
		BreakerMinRequests:      uint32(max(c.BreakerMinRequests, 0)),
		BreakerFailureRatio:     c.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(c.BreakerOpenTimeoutSeconds) * time.Second,
		BreakerHalfOpenMaxCalls: uint32(max(c.BreakerHalfOpenMaxCalls, 0)),
	}
}

func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// readOverlay parses a flat YAML mapping whose keys are the environment
// variable names, e.g. "CHUNK_SIZE: 800".
func readOverlay(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			out[strings.ToUpper(key)] = strings.Join(parts, ",")
		default:
			out[strings.ToUpper(key)] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func mustEnv(lookup lookupFunc, key, fallback string) string {
	v := lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(lookup lookupFunc, key string, fallback int) int {
	v := lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(lookup lookupFunc, key string, fallback float64) float64 {
	v := lookup(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(lookup lookupFunc, key string, fallback bool) bool {
	v := lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvList(lookup lookupFunc, key string, fallback []string) []string {
	v := lookup(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
