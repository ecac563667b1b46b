package search

import (
	"sort"

	"github.com/tutorlib/bookrag/internal/corpus"
)

// BuildBookIndex groups chunks by book and sorts each group by the
// numeric suffix of the chunk id. IDs without a parseable suffix sort
// as sequence 0.
func BuildBookIndex(chunks []corpus.Chunk) map[string][]corpus.Chunk {
	byBook := make(map[string][]corpus.Chunk)
	for _, ch := range chunks {
		byBook[ch.BookID] = append(byBook[ch.BookID], ch)
	}
	for _, list := range byBook {
		sort.SliceStable(list, func(i, j int) bool {
			return corpus.SequenceOf(list[i].ID) < corpus.SequenceOf(list[j].ID)
		})
	}
	return byBook
}

// ExpandWithNeighbors widens each hit to the window of chunks around it
// in its book. Hits from unknown books pass through unexpanded. The
// output is deduplicated by chunk id, preserving first-seen order, so a
// chunk that is both a hit and a neighbor appears once.
func ExpandWithNeighbors(results []Candidate, byBook map[string][]corpus.Chunk, window int) []corpus.Chunk {
	seen := make(map[string]struct{})
	var expanded []corpus.Chunk

	add := func(ch corpus.Chunk) {
		if _, ok := seen[ch.ID]; ok {
			return
		}
		seen[ch.ID] = struct{}{}
		expanded = append(expanded, ch)
	}

	for _, hit := range results {
		bookChunks := byBook[hit.Chunk.BookID]
		if len(bookChunks) == 0 {
			add(hit.Chunk)
			continue
		}

		pos := -1
		for i, ch := range bookChunks {
			if ch.ID == hit.Chunk.ID {
				pos = i
				break
			}
		}
		if pos < 0 {
			add(hit.Chunk)
			continue
		}

		start := pos - window
		if start < 0 {
			start = 0
		}
		end := pos + window
		if end > len(bookChunks)-1 {
			end = len(bookChunks) - 1
		}
		for i := start; i <= end; i++ {
			add(bookChunks[i])
		}
	}

	return expanded
}
