package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tutorlib/bookrag/internal/corpus"
	"github.com/tutorlib/bookrag/internal/index"
)

// HybridSearcher runs the full retrieval pipeline: rewrite, HYDE,
// parallel lexical + semantic search, RRF fusion, intent-aware
// filtering, and optional cross-encoder reranking.
//
// The searcher is safe for concurrent Search calls; both indices are
// read-only after construction.
type HybridSearcher struct {
	bm25     *index.BM25Index
	dense    *index.DenseIndex
	config   Config
	rewriter *Rewriter
	hyde     HypotheticalGenerator
	reranker Reranker

	// chunks and byBook are set only when context expansion is enabled.
	chunks []corpus.Chunk
	byBook map[string][]corpus.Chunk

	// hydeDisabled latches after the first generation failure so one
	// slow or dead model degrades this searcher once, not per query.
	// Scoped to the searcher; other searchers are unaffected.
	hydeDisabled atomic.Bool
}

// Option configures a HybridSearcher.
type Option func(*HybridSearcher)

// WithHydeGenerator attaches a hypothetical-answer generator. Only used
// when Config.UseHyde is set.
func WithHydeGenerator(g HypotheticalGenerator) Option {
	return func(s *HybridSearcher) { s.hyde = g }
}

// WithReranker attaches a cross-encoder reranker. Only used when
// Config.UseReranker is set.
func WithReranker(r Reranker) Option {
	return func(s *HybridSearcher) { s.reranker = r }
}

// WithContextExpansion retains the corpus so SearchWithContext can pull
// neighboring chunks.
func WithContextExpansion(chunks []corpus.Chunk) Option {
	return func(s *HybridSearcher) {
		s.chunks = chunks
		s.byBook = BuildBookIndex(chunks)
	}
}

// NewHybridSearcher creates a searcher over the given indices.
// Both indices are required; search cannot run without them.
func NewHybridSearcher(bm25 *index.BM25Index, dense *index.DenseIndex, cfg Config, opts ...Option) (*HybridSearcher, error) {
	if bm25 == nil {
		return nil, fmt.Errorf("%w: bm25 index", ErrNilDependency)
	}
	if dense == nil {
		return nil, fmt.Errorf("%w: dense index", ErrNilDependency)
	}

	s := &HybridSearcher{
		bm25:   bm25,
		dense:  dense,
		config: cfg.applyDefaults(),
	}
	if s.config.UseQueryRewriting {
		s.rewriter = NewRewriter()
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Config returns the effective configuration.
func (s *HybridSearcher) Config() Config {
	return s.config
}

// Search retrieves the topK most relevant chunks for the query.
// A zero topK returns no results; a negative topK uses the configured
// default. An empty query returns an empty result, not an error.
func (s *HybridSearcher) Search(ctx context.Context, query string, topK int) ([]RetrievalResult, error) {
	intent := Analyze(query)
	return s.SearchWithIntent(ctx, query, topK, intent)
}

// SearchWithIntent is Search with a precomputed intent, for callers
// that analyzed the query already.
func (s *HybridSearcher) SearchWithIntent(ctx context.Context, query string, topK int, intent Intent) ([]RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return []RetrievalResult{}, nil
	}
	// Zero is an explicit request for nothing, not the default.
	if topK == 0 {
		return []RetrievalResult{}, nil
	}
	if topK < 0 {
		topK = s.config.TopK
	}

	candidateK := topK * 3
	if candidateK < s.config.CandidateK {
		candidateK = s.config.CandidateK
	}

	bm25Query, denseQuery := query, query
	if s.rewriter != nil {
		rewritten := s.rewriter.Rewrite(query)
		bm25Query = rewritten.BM25Query
		denseQuery = rewritten.SemanticQuery
	}

	denseInput := denseQuery
	if s.config.UseHyde && s.hyde != nil && !s.hydeDisabled.Load() {
		answer, err := s.hyde.Generate(ctx, query)
		switch {
		case err != nil:
			// Degrade to the plain semantic query and stop trying HYDE
			// on this searcher.
			s.hydeDisabled.Store(true)
			slog.Warn("hyde_disabled",
				slog.String("query", query),
				slog.String("error", err.Error()))
		case answer != "":
			denseInput = answer
		}
	}

	var (
		bm25Results  []index.Result
		denseResults []index.Result
		denseErr     error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bm25Results = s.bm25.Search(bm25Query, candidateK)
		return nil
	})
	g.Go(func() error {
		// Dense failure degrades to lexical-only rather than failing
		// the whole query; the error is captured, not returned.
		denseResults, denseErr = s.dense.Search(gctx, denseInput, candidateK)
		return nil
	})
	_ = g.Wait()

	if denseErr != nil {
		slog.Warn("semantic_search_degraded",
			slog.String("query", query),
			slog.String("error", denseErr.Error()))
		denseResults = nil
		if len(bm25Results) == 0 {
			return nil, fmt.Errorf("semantic search failed and lexical search returned nothing: %w", denseErr)
		}
	}

	bm25IDs := make([]string, len(bm25Results))
	for i, r := range bm25Results {
		bm25IDs[i] = r.Chunk.ID
	}
	denseIDs := make([]string, len(denseResults))
	for i, r := range denseResults {
		denseIDs[i] = r.Chunk.ID
	}

	merged := RRFMerge([][]string{bm25IDs, denseIDs}, candidateK, s.config.RRFConstant)

	byID := make(map[string]corpus.Chunk, len(bm25Results)+len(denseResults))
	for _, r := range bm25Results {
		byID[r.Chunk.ID] = r.Chunk
	}
	for _, r := range denseResults {
		byID[r.Chunk.ID] = r.Chunk
	}

	candidates := make([]Candidate, 0, len(merged))
	for _, m := range merged {
		ch, ok := byID[m.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{Chunk: ch, Score: m.Score})
	}

	scored := FilterAndScore(candidates, intent)

	source := SourceHybrid
	if s.config.UseReranker && s.reranker != nil {
		reranked, err := s.reranker.Rerank(ctx, query, scored)
		if err != nil {
			// Reranker failures fall back to the fused order.
			slog.Warn("rerank_failed",
				slog.String("query", query),
				slog.String("error", err.Error()))
			scored = sortCandidates(scored)
		} else {
			scored = reranked
			source = SourceReranked
		}
	} else {
		scored = sortCandidates(scored)
	}

	if topK < len(scored) {
		scored = scored[:topK]
	}

	results := make([]RetrievalResult, len(scored))
	for i, c := range scored {
		results[i] = RetrievalResult{Chunk: c.Chunk, Score: c.Score, Source: source}
	}
	return results, nil
}

// SearchWithContext retrieves topK hits and expands each with its
// neighboring chunks from the same book. Scores are dropped; the output
// is reading material, not a ranking. Requires WithContextExpansion.
func (s *HybridSearcher) SearchWithContext(ctx context.Context, query string, topK, window int) ([]corpus.Chunk, error) {
	if s.chunks == nil {
		return nil, ErrContextExpansionDisabled
	}

	results, err := s.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]Candidate, len(results))
	for i, r := range results {
		hits[i] = Candidate{Chunk: r.Chunk, Score: r.Score}
	}
	return ExpandWithNeighbors(hits, s.byBook, window), nil
}

// sortCandidates orders by score descending with the lexicographic id
// tie-break, matching the fusion contract.
func sortCandidates(candidates []Candidate) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Chunk.ID < candidates[j].Chunk.ID
	})
	return candidates
}
