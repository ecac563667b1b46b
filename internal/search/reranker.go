package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cross-encoder reranker defaults.
const (
	DefaultRerankerEndpoint = "http://localhost:9659"
	DefaultRerankerModel    = "cross-encoder-small"
	DefaultRerankerTimeout  = 30 * time.Second

	// rerankPassageLimit caps how much chunk text is sent per passage.
	rerankPassageLimit = 512
)

// Reranker reorders candidates by query relevance using a cross-encoder.
// Cross-encoders jointly encode query-passage pairs, which scores
// relevance more accurately than bi-encoders at higher latency.
type Reranker interface {
	// Rerank rescores candidates against the query and returns them
	// sorted by combined score descending.
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error)

	// Available checks if the reranker service is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// RerankerConfig configures the HTTP cross-encoder client.
type RerankerConfig struct {
	// Endpoint is the reranker server URL (default: http://localhost:9659).
	Endpoint string

	// Model is the cross-encoder model alias.
	Model string

	// Timeout bounds each rerank request (default: 30s).
	Timeout time.Duration

	// Alpha blends cross-encoder relevance with the incoming pipeline
	// score: (1-alpha)*original + alpha*relevance (default: 0.5).
	Alpha float64

	// SkipHealthCheck skips the construction-time health check (for testing).
	SkipHealthCheck bool
}

// DefaultRerankerConfig returns default reranker configuration.
func DefaultRerankerConfig() RerankerConfig {
	return RerankerConfig{
		Endpoint: DefaultRerankerEndpoint,
		Model:    DefaultRerankerModel,
		Timeout:  DefaultRerankerTimeout,
		Alpha:    DefaultRerankAlpha,
	}
}

// CrossEncoderReranker scores query-passage pairs via an HTTP /rerank
// endpoint and blends the relevance scores into the pipeline scores.
type CrossEncoderReranker struct {
	client   *http.Client
	config   RerankerConfig
	endpoint string

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time.
var _ Reranker = (*CrossEncoderReranker)(nil)

// NewCrossEncoderReranker creates a reranker client. Unless skipped, it
// health-checks the endpoint and fails fast so a searcher configured
// for reranking never starts against a dead service.
func NewCrossEncoderReranker(ctx context.Context, cfg RerankerConfig) (*CrossEncoderReranker, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRerankerEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankerModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRerankerTimeout
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = DefaultRerankAlpha
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	r := &CrossEncoderReranker{
		client:   client,
		config:   cfg,
		endpoint: cfg.Endpoint,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := r.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("reranker health check failed: %w", err)
		}
	}

	slog.Debug("reranker_created",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("model", cfg.Model),
		slog.Float64("alpha", cfg.Alpha))

	return r, nil
}

// healthCheck verifies the reranker server is reachable.
func (r *CrossEncoderReranker) healthCheck(ctx context.Context) error {
	url := r.endpoint + "/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to reranker server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reranker server unhealthy (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// rerankRequest is the JSON request to the /rerank endpoint.
type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

// rerankResponse is the JSON response from the /rerank endpoint.
type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
	Model string `json:"model"`
}

// Rerank rescores candidates and returns them sorted by combined score
// descending. The passage sent per candidate is the header path plus a
// bounded text prefix; headers carry most of the section identity.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return []Candidate{}, nil
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = rerankPassage(c.Chunk.HeaderPath, c.Chunk.Text)
	}

	reqBody := rerankRequest{
		Query:     query,
		Documents: documents,
		Model:     r.config.Model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	url := r.endpoint + "/rerank"
	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	// Blend relevance into pipeline scores. Candidates the server did
	// not score keep their original score.
	alpha := r.config.Alpha
	reranked := make([]Candidate, len(candidates))
	copy(reranked, candidates)
	for _, res := range result.Results {
		if res.Index < 0 || res.Index >= len(reranked) {
			continue
		}
		orig := candidates[res.Index].Score
		reranked[res.Index].Score = (1.0-alpha)*orig + alpha*res.Score
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	return reranked, nil
}

// rerankPassage builds the passage string sent to the cross-encoder:
// header path, then a character-bounded prefix of the text with
// newlines flattened.
func rerankPassage(headerPath, text string) string {
	text = strings.ReplaceAll(textPrefix(text, rerankPassageLimit), "\n", " ")
	return headerPath + ". " + text
}

// Available checks if the reranker service is reachable.
func (r *CrossEncoderReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return false
	}
	r.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.healthCheck(checkCtx) == nil
}

// Close releases resources.
func (r *CrossEncoderReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if transport, ok := r.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}

	return nil
}
