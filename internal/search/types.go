// Package search implements hybrid retrieval over textbook chunks:
// BM25 and dense results are fused with Reciprocal Rank Fusion, filtered
// and boosted by query intent, and optionally reranked by a cross-encoder.
package search

import (
	"errors"

	"github.com/tutorlib/bookrag/internal/corpus"
)

// Result source tags.
const (
	SourceHybrid   = "hybrid"
	SourceReranked = "reranked"
)

// Intent-dependent score adjustments. All multiplicative; relative
// candidate order within a configuration is what matters.
const (
	// DefinitionBoost favors definition chunks for definition-seeking queries.
	DefinitionBoost = 1.5

	// NegationPenalty demotes chunks whose header negates the queried
	// concept (e.g. "Non-Deadlock" for a deadlock query).
	NegationPenalty = 0.25

	// ProceduralBoost favors algorithm and section chunks for how-to queries.
	ProceduralBoost = 1.10

	// ComparativeBoost favors protocol, comparison, and section chunks
	// for compare/versus queries.
	ComparativeBoost = 1.05
)

// Default retrieval configuration values.
const (
	DefaultTopK        = 5
	DefaultCandidateK  = 20
	DefaultRerankAlpha = 0.5
	DefaultRRFConstant = 60
)

// Sentinel errors.
var (
	// ErrNilDependency is returned when a searcher is constructed
	// without a required index.
	ErrNilDependency = errors.New("search: required dependency is nil")

	// ErrContextExpansionDisabled is returned by SearchWithContext when
	// the searcher was built without a retained corpus.
	ErrContextExpansionDisabled = errors.New(
		"search: context expansion not enabled; construct the searcher with WithContextExpansion")
)

// Intent captures what a query is asking for. It is computed per query
// and never persisted. All fields are explicit; downstream stages branch
// on them directly.
type Intent struct {
	// DefinitionSeeking is true for "what is X" style queries.
	DefinitionSeeking bool

	// Concept is the extracted subject of a definition-seeking query.
	// Empty when no concept could be extracted.
	Concept string

	// NegativeSignals are phrases whose presence disqualifies a chunk
	// for this query (e.g. "tls" for a TCP handshake query).
	NegativeSignals []string

	// Procedural is true for how-to / step-by-step queries.
	Procedural bool

	// Comparative is true for compare / versus queries.
	Comparative bool
}

// RetrievalResult is a final scored hit. Score scale depends on the
// pipeline configuration (RRF-based when unreranked, blended when
// reranked); scores are comparable within a result list but not across
// differently configured searchers.
type RetrievalResult struct {
	Chunk  corpus.Chunk
	Score  float64
	Source string
}

// Candidate is an intermediate (chunk, score) pair flowing between
// pipeline stages.
type Candidate struct {
	Chunk corpus.Chunk
	Score float64
}

// Config controls the hybrid retrieval pipeline.
type Config struct {
	// UseHyde enables hypothetical-answer generation for the semantic leg.
	UseHyde bool

	// UseReranker enables cross-encoder reranking of the candidate pool.
	UseReranker bool

	// UseQueryRewriting enables keyword expansion and semantic cleanup.
	UseQueryRewriting bool

	// TopK is the default number of results returned (default: 5).
	TopK int

	// CandidateK floors the fused candidate pool size; the effective
	// pool is max(topK*3, CandidateK) (default: 20).
	CandidateK int

	// RerankAlpha blends cross-encoder relevance with the pipeline
	// score: (1-alpha)*original + alpha*relevance (default: 0.5).
	RerankAlpha float64

	// RRFConstant is the RRF smoothing constant (default: 60).
	RRFConstant int
}

// DefaultConfig returns the standard pipeline configuration.
func DefaultConfig() Config {
	return Config{
		UseHyde:           true,
		UseReranker:       true,
		UseQueryRewriting: true,
		TopK:              DefaultTopK,
		CandidateK:        DefaultCandidateK,
		RerankAlpha:       DefaultRerankAlpha,
		RRFConstant:       DefaultRRFConstant,
	}
}

// applyDefaults fills zero values with defaults.
func (c Config) applyDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.CandidateK <= 0 {
		c.CandidateK = DefaultCandidateK
	}
	if c.RerankAlpha <= 0 {
		c.RerankAlpha = DefaultRerankAlpha
	}
	if c.RRFConstant <= 0 {
		c.RRFConstant = DefaultRRFConstant
	}
	return c
}
