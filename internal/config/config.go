package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all runtime settings for the HR assistant.
// Values come from defaults, then an optional YAML file, then the
// environment; later sources win.
type Config struct {
	BindAddr                 string        `yaml:"bind_addr"`
	ShutdownTimeout          time.Duration `yaml:"shutdown_timeout"`
	SessionInactivityTimeout time.Duration `yaml:"session_inactivity_timeout"`
	MetricsNamespace         string        `yaml:"metrics_namespace"`

	AllowAnyOrigin bool `yaml:"allow_any_origin"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	CorpusDir          string `yaml:"corpus_dir"`
	IndexBackend       string `yaml:"index_backend"`
	IndexPath          string `yaml:"index_path"`
	RetrievalTopK      int    `yaml:"retrieval_top_k"`
	RetrievalCacheSize int    `yaml:"retrieval_cache_size"`
	ChunkSize          int    `yaml:"chunk_size"`
	ChunkOverlap       int    `yaml:"chunk_overlap"`

	QdrantURL        string `yaml:"qdrant_url"`
	QdrantAPIKey     string `yaml:"qdrant_api_key"`
	QdrantCollection string `yaml:"qdrant_collection"`
	EmbeddingURL     string `yaml:"embedding_url"`
	EmbeddingModel   string `yaml:"embedding_model"`

	LLMBackend     string        `yaml:"llm_backend"`
	LLMModel       string        `yaml:"llm_model"`
	OllamaURL      string        `yaml:"ollama_url"`
	OpenAIBaseURL  string        `yaml:"openai_base_url"`
	OpenAIAPIKey   string        `yaml:"openai_api_key"`
	LLMTimeout     time.Duration `yaml:"llm_timeout"`
	LLMMaxTokens   int           `yaml:"llm_max_tokens"`
	LLMTemperature float64       `yaml:"llm_temperature"`

	DatabaseURL string `yaml:"database_url"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Config {
	return Config{
		BindAddr:                 ":8080",
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
		MetricsNamespace:         "hrdesk",
		LogLevel:                 "info",
		LogFormat:                "text",
		CorpusDir:                "data/hr_policies",
		IndexBackend:             "bleve",
		IndexPath:                "data/index.bleve",
		RetrievalTopK:            3,
		RetrievalCacheSize:       512,
		ChunkSize:                1000,
		ChunkOverlap:             200,
		QdrantCollection:         "hr_policies",
		EmbeddingModel:           "nomic-embed-text",
		LLMBackend:               "auto",
		LLMModel:                 "llama3",
		OllamaURL:                "http://localhost:11434",
		LLMTimeout:               2 * time.Minute,
		LLMMaxTokens:             1024,
		LLMTemperature:           0.1,
	}
}

// Load reads HRDESK_CONFIG (if set) and the environment.
func Load() (Config, error) {
	return LoadFile(stringsTrimSpace("HRDESK_CONFIG"))
}

// LoadFile applies the YAML file at path over the defaults, then the
// environment. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.BindAddr = envOrDefault("APP_BIND_ADDR", cfg.BindAddr)
	cfg.MetricsNamespace = envOrDefault("APP_METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.CorpusDir = envOrDefault("CORPUS_DIR", cfg.CorpusDir)
	cfg.IndexBackend = envOrDefault("INDEX_BACKEND", cfg.IndexBackend)
	cfg.IndexPath = envOrDefault("INDEX_PATH", cfg.IndexPath)
	cfg.QdrantURL = envOrDefault("QDRANT_URL", cfg.QdrantURL)
	cfg.QdrantAPIKey = envOrDefault("QDRANT_API_KEY", cfg.QdrantAPIKey)
	cfg.QdrantCollection = envOrDefault("QDRANT_COLLECTION", cfg.QdrantCollection)
	cfg.EmbeddingURL = envOrDefault("EMBEDDING_URL", cfg.EmbeddingURL)
	cfg.EmbeddingModel = envOrDefault("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.LLMBackend = envOrDefault("LLM_BACKEND", cfg.LLMBackend)
	cfg.LLMModel = envOrDefault("LLM_MODEL", cfg.LLMModel)
	cfg.OllamaURL = envOrDefault("OLLAMA_URL", cfg.OllamaURL)
	cfg.OpenAIBaseURL = envOrDefault("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIAPIKey = envOrDefault("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return err
	}
	if cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout); err != nil {
		return err
	}
	if cfg.LLMTimeout, err = durationFromEnv("LLM_TIMEOUT", cfg.LLMTimeout); err != nil {
		return err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return err
	}
	if cfg.RetrievalTopK, err = intFromEnv("RETRIEVAL_TOP_K", cfg.RetrievalTopK); err != nil {
		return err
	}
	if cfg.RetrievalCacheSize, err = intFromEnv("RETRIEVAL_CACHE_SIZE", cfg.RetrievalCacheSize); err != nil {
		return err
	}
	if cfg.ChunkSize, err = intFromEnv("CHUNK_SIZE", cfg.ChunkSize); err != nil {
		return err
	}
	if cfg.ChunkOverlap, err = intFromEnv("CHUNK_OVERLAP", cfg.ChunkOverlap); err != nil {
		return err
	}
	if cfg.LLMMaxTokens, err = intFromEnv("LLM_MAX_TOKENS", cfg.LLMMaxTokens); err != nil {
		return err
	}
	if cfg.LLMTemperature, err = floatFromEnv("LLM_TEMPERATURE", cfg.LLMTemperature); err != nil {
		return err
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.SessionInactivityTimeout < 5*time.Second {
		return errors.New("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if c.RetrievalTopK <= 0 {
		return errors.New("RETRIEVAL_TOP_K must be positive")
	}
	if c.RetrievalCacheSize < 0 {
		return errors.New("RETRIEVAL_CACHE_SIZE must be >= 0")
	}
	if c.ChunkSize <= 0 {
		return errors.New("CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return errors.New("CHUNK_OVERLAP must be >= 0 and smaller than CHUNK_SIZE")
	}
	if c.LLMMaxTokens <= 0 {
		return errors.New("LLM_MAX_TOKENS must be positive")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return errors.New("LLM_TEMPERATURE must be within [0, 2]")
	}
	switch strings.ToLower(c.IndexBackend) {
	case "bleve", "memory":
	case "qdrant":
		if c.QdrantURL == "" {
			return errors.New("QDRANT_URL is required when INDEX_BACKEND=qdrant")
		}
	default:
		return fmt.Errorf("INDEX_BACKEND %q is not one of bleve, memory, qdrant", c.IndexBackend)
	}
	switch strings.ToLower(c.LLMBackend) {
	case "auto", "ollama", "openai", "mock":
	default:
		return fmt.Errorf("LLM_BACKEND %q is not one of auto, ollama, openai, mock", c.LLMBackend)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT %q is not one of text, json", c.LogFormat)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
