// Package config loads bookrag configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete bookrag configuration.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Hyde      HydeConfig      `yaml:"hyde"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CorpusConfig locates the chunk corpus.
type CorpusConfig struct {
	// Path is the JSONL chunk file.
	Path string `yaml:"path"`

	// Subject restricts loading to chunks tagged with this subject.
	// Untagged chunks always load.
	Subject string `yaml:"subject"`
}

// SearchConfig tunes the retrieval pipeline.
type SearchConfig struct {
	// TopK is the default number of results returned.
	TopK int `yaml:"top_k"`

	// CandidateK floors the fused candidate pool size.
	CandidateK int `yaml:"candidate_k"`

	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60, the value used by Azure AI Search and OpenSearch.
	RRFConstant int `yaml:"rrf_constant"`

	// RerankAlpha blends cross-encoder relevance with the fused score.
	RerankAlpha float64 `yaml:"rerank_alpha"`

	// ContextWindow is the neighbor radius for context expansion.
	ContextWindow int `yaml:"context_window"`

	UseHyde           bool `yaml:"use_hyde"`
	UseReranker       bool `yaml:"use_reranker"`
	UseQueryRewriting bool `yaml:"use_query_rewriting"`
}

// EmbeddingConfig configures the Ollama embedding provider.
type EmbeddingConfig struct {
	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host"`

	// Model is the embedding model name.
	Model string `yaml:"model"`

	// Dimensions is the embedding dimension. Zero auto-detects from the model.
	Dimensions int `yaml:"dimensions"`

	BatchSize int `yaml:"batch_size"`

	// CachePath persists corpus embeddings between runs. Empty disables
	// the on-disk cache.
	CachePath string `yaml:"cache_path"`
}

// HydeConfig configures hypothetical-answer generation. Whether HYDE
// runs at all is controlled by search.use_hyde.
type HydeConfig struct {
	Model string `yaml:"model"`

	// Timeout is a duration string ("15s"). Durations are strings in
	// YAML; yaml.v3 cannot decode "15s" into time.Duration directly.
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// TimeoutDuration parses the timeout, falling back to 15s.
func (h HydeConfig) TimeoutDuration() time.Duration {
	return parseDuration(h.Timeout, 15*time.Second)
}

// RerankerConfig configures the cross-encoder reranking service.
type RerankerConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// TimeoutDuration parses the timeout, falling back to 30s.
func (r RerankerConfig) TimeoutDuration() time.Duration {
	return parseDuration(r.Timeout, 30*time.Second)
}

// parseDuration parses a duration string, returning fallback on empty
// or malformed input.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Path: "chunks.jsonl",
		},
		Search: SearchConfig{
			TopK:              5,
			CandidateK:        20,
			RRFConstant:       60,
			RerankAlpha:       0.5,
			ContextWindow:     1,
			UseHyde:           true,
			UseReranker:       true,
			UseQueryRewriting: true,
		},
		Embedding: EmbeddingConfig{
			OllamaHost: "http://localhost:11434",
			Model:      "nomic-embed-text",
			BatchSize:  32,
			CachePath:  defaultCachePath(),
		},
		Hyde: HydeConfig{
			Model:       "llama3.2:1b",
			Timeout:     "15s",
			MaxTokens:   256,
			Temperature: 0.3,
		},
		Reranker: RerankerConfig{
			Endpoint: "http://localhost:9659",
			Model:    "cross-encoder-small",
			Timeout:  "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// defaultCachePath returns the default embedding cache location.
func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".bookrag", "embeddings.gob")
	}
	return filepath.Join(home, ".bookrag", "embeddings.gob")
}

// Load loads configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Config file (.bookrag.yaml or .bookrag.yml in dir)
//  3. Environment variables (BOOKRAG_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile loads configuration from an explicit YAML path plus env
// overrides. Used for the --config flag.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromDir attempts .bookrag.yaml then .bookrag.yml. A missing file
// is fine; defaults apply.
func (c *Config) loadFromDir(dir string) error {
	yamlPath := filepath.Join(dir, ".bookrag.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".bookrag.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c. Booleans in the
// search section are handled via env vars and CLI flags instead, since
// YAML cannot distinguish "false" from "unset" here.
func (c *Config) mergeWith(other *Config) {
	if other.Corpus.Path != "" {
		c.Corpus.Path = other.Corpus.Path
	}
	if other.Corpus.Subject != "" {
		c.Corpus.Subject = other.Corpus.Subject
	}

	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.CandidateK != 0 {
		c.Search.CandidateK = other.Search.CandidateK
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.RerankAlpha != 0 {
		c.Search.RerankAlpha = other.Search.RerankAlpha
	}
	if other.Search.ContextWindow != 0 {
		c.Search.ContextWindow = other.Search.ContextWindow
	}

	if other.Embedding.OllamaHost != "" {
		c.Embedding.OllamaHost = other.Embedding.OllamaHost
	}
	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.Dimensions != 0 {
		c.Embedding.Dimensions = other.Embedding.Dimensions
	}
	if other.Embedding.BatchSize != 0 {
		c.Embedding.BatchSize = other.Embedding.BatchSize
	}
	if other.Embedding.CachePath != "" {
		c.Embedding.CachePath = other.Embedding.CachePath
	}

	if other.Hyde.Model != "" {
		c.Hyde.Model = other.Hyde.Model
	}
	if other.Hyde.Timeout != "" {
		c.Hyde.Timeout = other.Hyde.Timeout
	}
	if other.Hyde.MaxTokens != 0 {
		c.Hyde.MaxTokens = other.Hyde.MaxTokens
	}
	if other.Hyde.Temperature != 0 {
		c.Hyde.Temperature = other.Hyde.Temperature
	}

	if other.Reranker.Endpoint != "" {
		c.Reranker.Endpoint = other.Reranker.Endpoint
	}
	if other.Reranker.Model != "" {
		c.Reranker.Model = other.Reranker.Model
	}
	if other.Reranker.Timeout != "" {
		c.Reranker.Timeout = other.Reranker.Timeout
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		c.Logging.Format = other.Logging.Format
	}
}

// applyEnvOverrides applies BOOKRAG_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BOOKRAG_CORPUS"); v != "" {
		c.Corpus.Path = v
	}
	if v := os.Getenv("BOOKRAG_SUBJECT"); v != "" {
		c.Corpus.Subject = v
	}

	if v := os.Getenv("BOOKRAG_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.TopK = k
		}
	}
	if v := os.Getenv("BOOKRAG_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("BOOKRAG_RERANK_ALPHA"); v != "" {
		if a, err := strconv.ParseFloat(v, 64); err == nil && a >= 0 && a <= 1 {
			c.Search.RerankAlpha = a
		}
	}
	if v := os.Getenv("BOOKRAG_USE_HYDE"); v != "" {
		c.Search.UseHyde = parseBool(v)
	}
	if v := os.Getenv("BOOKRAG_USE_RERANKER"); v != "" {
		c.Search.UseReranker = parseBool(v)
	}
	if v := os.Getenv("BOOKRAG_USE_QUERY_REWRITING"); v != "" {
		c.Search.UseQueryRewriting = parseBool(v)
	}

	if v := os.Getenv("BOOKRAG_OLLAMA_HOST"); v != "" {
		c.Embedding.OllamaHost = v
	}
	if v := os.Getenv("BOOKRAG_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("BOOKRAG_HYDE_MODEL"); v != "" {
		c.Hyde.Model = v
	}
	if v := os.Getenv("BOOKRAG_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
	}
	if v := os.Getenv("BOOKRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func parseBool(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Corpus.Path == "" {
		return fmt.Errorf("corpus.path must be set")
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.CandidateK <= 0 {
		return fmt.Errorf("search.candidate_k must be positive, got %d", c.Search.CandidateK)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.RerankAlpha < 0 || c.Search.RerankAlpha > 1 {
		return fmt.Errorf("search.rerank_alpha must be in [0,1], got %g", c.Search.RerankAlpha)
	}
	if c.Search.ContextWindow < 0 {
		return fmt.Errorf("search.context_window must not be negative, got %d", c.Search.ContextWindow)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}
