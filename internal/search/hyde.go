package search

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

// HYDE generation defaults.
const (
	DefaultHydeModel       = "llama3.2:1b"
	DefaultHydeTimeout     = 15 * time.Second
	DefaultHydeMaxTokens   = 256
	DefaultHydeTemperature = 0.3
	DefaultOllamaHost      = "http://localhost:11434"
)

// hydePromptFormat asks for a short textbook-style paragraph. The
// generated answer is embedded in place of the query for the semantic
// leg; a hypothetical answer sits closer to real passages in embedding
// space than the question itself does.
const hydePromptFormat = `Given the technical question: %q
Write a short, textbook-style paragraph that directly and precisely answers this question. Focus on the key concepts, definitions, and steps. Limit the answer to 2-3 sentences.`

// HypotheticalGenerator produces a hypothetical answer paragraph for a
// query. Implementations call an external model; failures are expected
// and handled by the searcher (degrade, never abort).
type HypotheticalGenerator interface {
	// Generate returns a short hypothetical answer for the query.
	Generate(ctx context.Context, query string) (string, error)
}

// HydeConfig configures the Ollama-backed generator.
type HydeConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string

	// Model is the generation model (default: llama3.2:1b).
	Model string

	// Timeout bounds each generation request (default: 15s).
	Timeout time.Duration

	// MaxTokens caps the generated answer length (default: 256).
	MaxTokens int

	// Temperature controls sampling (default: 0.3; answers should be
	// conservative, not creative).
	Temperature float64
}

// DefaultHydeConfig returns sensible defaults.
func DefaultHydeConfig() HydeConfig {
	return HydeConfig{
		Host:        DefaultOllamaHost,
		Model:       DefaultHydeModel,
		Timeout:     DefaultHydeTimeout,
		MaxTokens:   DefaultHydeMaxTokens,
		Temperature: DefaultHydeTemperature,
	}
}

// HydeGenerator generates hypothetical answers via Ollama /api/generate.
type HydeGenerator struct {
	client *http.Client
	config HydeConfig
}

// Verify interface implementation at compile time.
var _ HypotheticalGenerator = (*HydeGenerator)(nil)

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// generateResponse is the Ollama /api/generate response body.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewHydeGenerator creates a generator with the given configuration.
func NewHydeGenerator(cfg HydeConfig) *HydeGenerator {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultHydeModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHydeTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultHydeMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultHydeTemperature
	}

	return &HydeGenerator{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// Generate returns a short hypothetical answer for the query.
func (g *HydeGenerator) Generate(ctx context.Context, query string) (string, error) {
	reqBody := generateRequest{
		Model:  g.config.Model,
		Prompt: fmt.Sprintf(hydePromptFormat, query),
		Stream: false,
		Options: generateOptions{
			NumPredict:  g.config.MaxTokens,
			Temperature: g.config.Temperature,
			TopP:        0.9,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := g.config.Host + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return strings.TrimSpace(result.Response), nil
}

// Available checks if Ollama is reachable.
func (g *HydeGenerator) Available(ctx context.Context) bool {
	url := g.config.Host + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}
