package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlib/bookrag/internal/corpus"
)

func bookChunks(bookID string, n int) []corpus.Chunk {
	chunks := make([]corpus.Chunk, n)
	for i := range chunks {
		chunks[i] = corpus.Chunk{
			ID:         corpus.ChunkID(bookID, i),
			BookID:     bookID,
			HeaderPath: bookID,
			Type:       corpus.TypeSection,
			Text:       "text",
		}
	}
	return chunks
}

func chunkIDs(chunks []corpus.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

func TestBuildBookIndex_SortsBySequence(t *testing.T) {
	shuffled := []corpus.Chunk{
		{ID: corpus.ChunkID("os", 2), BookID: "os"},
		{ID: corpus.ChunkID("os", 0), BookID: "os"},
		{ID: corpus.ChunkID("cn", 1), BookID: "cn"},
		{ID: corpus.ChunkID("os", 1), BookID: "os"},
	}

	byBook := BuildBookIndex(shuffled)
	require.Len(t, byBook, 2)
	assert.Equal(t,
		[]string{"os::chunk_00000", "os::chunk_00001", "os::chunk_00002"},
		chunkIDs(byBook["os"]))
	assert.Equal(t, []string{"cn::chunk_00001"}, chunkIDs(byBook["cn"]))
}

func TestBuildBookIndex_UnparseableSequenceSortsFirst(t *testing.T) {
	chunks := []corpus.Chunk{
		{ID: corpus.ChunkID("os", 3), BookID: "os"},
		{ID: "os::intro", BookID: "os"}, // no chunk_ suffix, sequence 0
	}

	byBook := BuildBookIndex(chunks)
	assert.Equal(t, "os::intro", byBook["os"][0].ID)
}

func TestExpandWithNeighbors_MiddleHit(t *testing.T) {
	chunks := bookChunks("os", 5)
	byBook := BuildBookIndex(chunks)

	expanded := ExpandWithNeighbors(
		[]Candidate{{Chunk: chunks[2], Score: 1.0}},
		byBook, 1)

	assert.Equal(t,
		[]string{"os::chunk_00001", "os::chunk_00002", "os::chunk_00003"},
		chunkIDs(expanded))
}

func TestExpandWithNeighbors_ClampsAtBookEdges(t *testing.T) {
	chunks := bookChunks("os", 5)
	byBook := BuildBookIndex(chunks)

	first := ExpandWithNeighbors([]Candidate{{Chunk: chunks[0], Score: 1.0}}, byBook, 2)
	assert.Equal(t, []string{"os::chunk_00000", "os::chunk_00001", "os::chunk_00002"}, chunkIDs(first))

	last := ExpandWithNeighbors([]Candidate{{Chunk: chunks[4], Score: 1.0}}, byBook, 2)
	assert.Equal(t, []string{"os::chunk_00002", "os::chunk_00003", "os::chunk_00004"}, chunkIDs(last))
}

func TestExpandWithNeighbors_WindowCoversWholeBook(t *testing.T) {
	chunks := bookChunks("os", 3)
	byBook := BuildBookIndex(chunks)

	expanded := ExpandWithNeighbors([]Candidate{{Chunk: chunks[1], Score: 1.0}}, byBook, 10)
	assert.Len(t, expanded, 3)
}

func TestExpandWithNeighbors_UnknownBookPassesThrough(t *testing.T) {
	chunks := bookChunks("os", 3)
	byBook := BuildBookIndex(chunks)

	stray := corpus.Chunk{ID: "dbms::chunk_00007", BookID: "dbms"}
	expanded := ExpandWithNeighbors([]Candidate{{Chunk: stray, Score: 1.0}}, byBook, 1)

	require.Len(t, expanded, 1)
	assert.Equal(t, "dbms::chunk_00007", expanded[0].ID)
}

func TestExpandWithNeighbors_DeduplicatesOverlappingWindows(t *testing.T) {
	chunks := bookChunks("os", 5)
	byBook := BuildBookIndex(chunks)

	// Hits at 1 and 2 produce overlapping windows; each chunk appears once,
	// first-seen order preserved.
	expanded := ExpandWithNeighbors([]Candidate{
		{Chunk: chunks[1], Score: 1.0},
		{Chunk: chunks[2], Score: 0.9},
	}, byBook, 1)

	assert.Equal(t,
		[]string{"os::chunk_00000", "os::chunk_00001", "os::chunk_00002", "os::chunk_00003"},
		chunkIDs(expanded))
}

func TestExpandWithNeighbors_ZeroWindow(t *testing.T) {
	chunks := bookChunks("os", 3)
	byBook := BuildBookIndex(chunks)

	expanded := ExpandWithNeighbors([]Candidate{{Chunk: chunks[1], Score: 1.0}}, byBook, 0)
	assert.Equal(t, []string{"os::chunk_00001"}, chunkIDs(expanded))
}
