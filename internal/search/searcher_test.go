package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlib/bookrag/internal/corpus"
	"github.com/tutorlib/bookrag/internal/index"
)

// fakeEmbedder maps keyword occurrence counts onto vector dimensions so
// similarity rankings in tests are predictable by inspection.
type fakeEmbedder struct {
	keywords  []string
	failEmbed bool
	lastQuery string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.failEmbed {
		return nil, errors.New("embedder offline")
	}
	f.lastQuery = text
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.vector(text)
	}
	return vectors, nil
}

func (f *fakeEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(f.keywords))
	for i, kw := range f.keywords {
		v[i] = float32(strings.Count(lower, kw))
	}
	return v
}

func (f *fakeEmbedder) Dimensions() int                  { return len(f.keywords) }
func (f *fakeEmbedder) ModelName() string                { return "fake" }
func (f *fakeEmbedder) Available(_ context.Context) bool { return !f.failEmbed }
func (f *fakeEmbedder) Close() error                     { return nil }

type fakeHyde struct {
	answer string
	err    error
	calls  int
}

func (f *fakeHyde) Generate(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type fakeReranker struct {
	err   error
	calls int
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, candidates []Candidate) ([]Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	// Reverse the incoming order with fresh descending scores.
	out := make([]Candidate, len(candidates))
	for i, c := range candidates {
		out[len(candidates)-1-i] = Candidate{Chunk: c.Chunk, Score: float64(i + 1)}
	}
	return out, nil
}

func (f *fakeReranker) Available(_ context.Context) bool { return true }
func (f *fakeReranker) Close() error                     { return nil }

func searchCorpus() []corpus.Chunk {
	return []corpus.Chunk{
		{
			ID:         corpus.ChunkID("os", 1),
			BookID:     "os",
			HeaderPath: "Operating Systems > Deadlock",
			Type:       corpus.TypeDefinition,
			KeyTerms:   []string{"deadlock"},
			Text:       "A deadlock is a situation where every process waits for a resource held by another process.",
		},
		{
			ID:         corpus.ChunkID("os", 2),
			BookID:     "os",
			HeaderPath: "Operating Systems > Paging",
			Type:       corpus.TypeSection,
			Text:       "Paging divides memory into fixed size frames and pages.",
		},
		{
			ID:         corpus.ChunkID("os", 3),
			BookID:     "os",
			HeaderPath: "Operating Systems > Deadlock Avoidance",
			Type:       corpus.TypeAlgorithm,
			Text:       "The banker algorithm avoids deadlock by simulating allocation.",
		},
		{
			ID:         corpus.ChunkID("os", 4),
			BookID:     "os",
			HeaderPath: "Operating Systems > Problems",
			Type:       corpus.TypeExercise,
			Text:       "List the conditions for deadlock.",
		},
		{
			ID:         corpus.ChunkID("os", 5),
			BookID:     "os",
			HeaderPath: "Operating Systems > Non-Deadlock Approaches",
			Type:       corpus.TypeSection,
			Text:       "Some systems simply ignore the problem.",
		},
	}
}

// newTestSearcher builds a searcher over searchCorpus with no external
// services attached.
func newTestSearcher(t *testing.T, cfg Config, opts ...Option) (*HybridSearcher, *fakeEmbedder) {
	t.Helper()

	chunks := searchCorpus()
	embedder := &fakeEmbedder{keywords: []string{"deadlock", "paging", "banker"}}

	bm25, err := index.NewBM25Index(chunks)
	require.NoError(t, err)
	dense, err := index.BuildDenseIndex(context.Background(), chunks, embedder, "")
	require.NoError(t, err)

	s, err := NewHybridSearcher(bm25, dense, cfg, opts...)
	require.NoError(t, err)
	return s, embedder
}

func resultIDs(results []RetrievalResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Chunk.ID
	}
	return ids
}

func TestNewHybridSearcher_NilDependencies(t *testing.T) {
	chunks := searchCorpus()
	embedder := &fakeEmbedder{keywords: []string{"deadlock"}}

	bm25, err := index.NewBM25Index(chunks)
	require.NoError(t, err)
	dense, err := index.BuildDenseIndex(context.Background(), chunks, embedder, "")
	require.NoError(t, err)

	_, err = NewHybridSearcher(nil, dense, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewHybridSearcher(bm25, nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestSearch_EmptyQuery(t *testing.T) {
	s, _ := newTestSearcher(t, Config{UseQueryRewriting: true})

	results, err := s.Search(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_DefinitionQuery(t *testing.T) {
	s, _ := newTestSearcher(t, Config{UseQueryRewriting: true})

	results, err := s.Search(context.Background(), "what is a deadlock?", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	ids := resultIDs(results)

	// The definition chunk wins: top-ranked in both legs plus the
	// definition boost.
	assert.Equal(t, "os::chunk_00001", ids[0])
	// Exercise chunks never surface.
	assert.NotContains(t, ids, "os::chunk_00004")
	// The negated-concept chunk is penalized to the bottom.
	assert.Equal(t, "os::chunk_00005", ids[len(ids)-1])

	for _, r := range results {
		assert.Equal(t, SourceHybrid, r.Source)
	}
}

func TestSearch_TopKBoundAndNoDuplicates(t *testing.T) {
	s, _ := newTestSearcher(t, Config{UseQueryRewriting: true})

	results, err := s.Search(context.Background(), "deadlock avoidance", 2)
	require.NoError(t, err)
	require.LessOrEqual(t, len(results), 2)

	seen := map[string]bool{}
	for _, r := range results {
		assert.False(t, seen[r.Chunk.ID], "duplicate id %s", r.Chunk.ID)
		seen[r.Chunk.ID] = true
	}
}

func TestSearch_TopKZeroReturnsEmpty(t *testing.T) {
	s, _ := newTestSearcher(t, Config{UseQueryRewriting: true})

	results, err := s.Search(context.Background(), "what is a deadlock?", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_NegativeTopKUsesDefault(t *testing.T) {
	s, _ := newTestSearcher(t, Config{TopK: 2, UseQueryRewriting: true})

	results, err := s.Search(context.Background(), "deadlock avoidance", -1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2)
}

func TestSearch_HydeAnswerDrivesSemanticLeg(t *testing.T) {
	hyde := &fakeHyde{answer: "A deadlock occurs when processes hold resources while waiting."}
	s, embedder := newTestSearcher(t, Config{UseHyde: true, UseQueryRewriting: true},
		WithHydeGenerator(hyde))

	_, err := s.Search(context.Background(), "what is a deadlock?", 3)
	require.NoError(t, err)

	assert.Equal(t, 1, hyde.calls)
	assert.Equal(t, hyde.answer, embedder.lastQuery)
}

func TestSearch_HydeFailureLatchesOff(t *testing.T) {
	hyde := &fakeHyde{err: errors.New("model not loaded")}
	s, _ := newTestSearcher(t, Config{UseHyde: true, UseQueryRewriting: true},
		WithHydeGenerator(hyde))

	first, err := s.Search(context.Background(), "what is a deadlock?", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	// Second query must not retry the dead generator.
	second, err := s.Search(context.Background(), "deadlock avoidance", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, second)
	assert.Equal(t, 1, hyde.calls)
}

func TestSearch_RerankerReorders(t *testing.T) {
	reranker := &fakeReranker{}
	s, _ := newTestSearcher(t, Config{UseReranker: true, UseQueryRewriting: true},
		WithReranker(reranker))

	results, err := s.Search(context.Background(), "what is a deadlock?", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, 1, reranker.calls)
	for _, r := range results {
		assert.Equal(t, SourceReranked, r.Source)
	}
	// The fake reranker inverts the fused order, so the definition chunk
	// no longer leads.
	assert.NotEqual(t, "os::chunk_00001", results[0].Chunk.ID)
}

func TestSearch_RerankerFailureFallsBack(t *testing.T) {
	reranker := &fakeReranker{err: errors.New("rerank service down")}
	s, _ := newTestSearcher(t, Config{UseReranker: true, UseQueryRewriting: true},
		WithReranker(reranker))

	results, err := s.Search(context.Background(), "what is a deadlock?", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "os::chunk_00001", results[0].Chunk.ID)
	for _, r := range results {
		assert.Equal(t, SourceHybrid, r.Source)
	}
}

func TestSearch_DenseFailureDegradesToLexical(t *testing.T) {
	s, embedder := newTestSearcher(t, Config{UseQueryRewriting: true})
	embedder.failEmbed = true

	results, err := s.Search(context.Background(), "deadlock avoidance", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "os::chunk_00003", results[0].Chunk.ID)
}

func TestSearch_DenseFailureWithNoLexicalHits(t *testing.T) {
	s, embedder := newTestSearcher(t, Config{UseQueryRewriting: true})
	embedder.failEmbed = true

	_, err := s.Search(context.Background(), "zzzz", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "semantic search failed")
}

func TestSearchWithContext(t *testing.T) {
	chunks := searchCorpus()
	s, _ := newTestSearcher(t, Config{UseQueryRewriting: true},
		WithContextExpansion(chunks))

	expanded, err := s.SearchWithContext(context.Background(), "paging", 1, 1)
	require.NoError(t, err)

	ids := make([]string, len(expanded))
	for i, c := range expanded {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"os::chunk_00001", "os::chunk_00002", "os::chunk_00003"}, ids)
}

func TestSearchWithContext_Disabled(t *testing.T) {
	s, _ := newTestSearcher(t, Config{UseQueryRewriting: true})

	_, err := s.SearchWithContext(context.Background(), "paging", 1, 1)
	assert.ErrorIs(t, err, ErrContextExpansionDisabled)
}

func TestSearch_Deterministic(t *testing.T) {
	s, _ := newTestSearcher(t, Config{UseQueryRewriting: true})

	first, err := s.Search(context.Background(), "what is a deadlock?", 5)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := s.Search(context.Background(), "what is a deadlock?", 5)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
