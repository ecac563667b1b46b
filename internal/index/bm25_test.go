package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlib/bookrag/internal/corpus"
)

func testChunks() []corpus.Chunk {
	return []corpus.Chunk{
		{
			ID:         "os::chunk_00001",
			BookID:     "os",
			HeaderPath: "OS > Deadlock",
			Type:       corpus.TypeDefinition,
			Text:       "A deadlock is a situation where processes wait forever for resources held by each other.",
		},
		{
			ID:         "os::chunk_00002",
			BookID:     "os",
			HeaderPath: "OS > Paging",
			Type:       corpus.TypeSection,
			Text:       "Paging divides memory into fixed size pages mapped through a page table.",
		},
		{
			ID:         "os::chunk_00003",
			BookID:     "os",
			HeaderPath: "OS > Deadlock > Avoidance",
			Type:       corpus.TypeAlgorithm,
			Text:       "Deadlock avoidance uses the bankers algorithm to keep the system in a safe state. Deadlock never occurs.",
		},
	}
}

func TestNewBM25Index_EmptyCorpus(t *testing.T) {
	_, err := NewBM25Index(nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestBM25Search_RanksMatchingChunks(t *testing.T) {
	idx, err := NewBM25Index(testChunks())
	require.NoError(t, err)

	results := idx.Search("deadlock avoidance", 10)
	require.Len(t, results, 2, "paging chunk shares no query terms")

	// The avoidance chunk matches both terms and should lead.
	assert.Equal(t, "os::chunk_00003", results[0].Chunk.ID)
	assert.Equal(t, "os::chunk_00001", results[1].Chunk.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestBM25Search_DropsNonPositiveScores(t *testing.T) {
	idx, err := NewBM25Index(testChunks())
	require.NoError(t, err)

	results := idx.Search("quantum chromodynamics", 10)
	assert.Empty(t, results)
}

func TestBM25Search_TopKBound(t *testing.T) {
	idx, err := NewBM25Index(testChunks())
	require.NoError(t, err)

	results := idx.Search("deadlock", 1)
	require.Len(t, results, 1)

	assert.Empty(t, idx.Search("deadlock", 0))
}

func TestBM25Search_EmptyQuery(t *testing.T) {
	idx, err := NewBM25Index(testChunks())
	require.NoError(t, err)

	assert.Empty(t, idx.Search("", 5))
	assert.Empty(t, idx.Search("the and of", 5), "stopword-only query yields no tokens")
}

func TestBM25Search_TieKeepsCorpusOrder(t *testing.T) {
	chunks := []corpus.Chunk{
		{ID: "b::chunk_00002", BookID: "b", HeaderPath: "B", Type: corpus.TypeSection, Text: "mutex lock"},
		{ID: "a::chunk_00001", BookID: "a", HeaderPath: "A", Type: corpus.TypeSection, Text: "mutex lock"},
	}
	idx, err := NewBM25Index(chunks)
	require.NoError(t, err)

	results := idx.Search("mutex", 5)
	require.Len(t, results, 2)
	assert.Equal(t, results[0].Score, results[1].Score)
	// Identical documents score equally; corpus order decides.
	assert.Equal(t, "b::chunk_00002", results[0].Chunk.ID)
	assert.Equal(t, "a::chunk_00001", results[1].Chunk.ID)
}

func TestBM25Search_Deterministic(t *testing.T) {
	idx, err := NewBM25Index(testChunks())
	require.NoError(t, err)

	first := idx.Search("deadlock avoidance safe state", 10)
	for i := 0; i < 10; i++ {
		again := idx.Search("deadlock avoidance safe state", 10)
		require.Equal(t, first, again)
	}
}
