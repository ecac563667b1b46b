package index

import (
	"errors"
	"math"
	"sort"

	"github.com/tutorlib/bookrag/internal/corpus"
)

// Okapi BM25 parameters.
const (
	// BM25K1 controls term frequency saturation.
	BM25K1 = 1.2

	// BM25B controls document length normalization.
	BM25B = 0.75
)

// ErrEmptyCorpus is returned when an index is built over zero chunks.
var ErrEmptyCorpus = errors.New("index: corpus contains no chunks")

// Result is a single scored retrieval hit.
type Result struct {
	Chunk corpus.Chunk
	Score float64
}

// BM25Index is an in-memory Okapi BM25 index over chunk texts.
// It is immutable after construction and safe for concurrent Search calls.
type BM25Index struct {
	chunks    []corpus.Chunk
	termFreqs []map[string]int // per-document term counts
	docLens   []int
	docFreq   map[string]int
	avgDocLen float64
}

// NewBM25Index builds a BM25 index over the given chunks.
func NewBM25Index(chunks []corpus.Chunk) (*BM25Index, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}

	idx := &BM25Index{
		chunks:    chunks,
		termFreqs: make([]map[string]int, len(chunks)),
		docLens:   make([]int, len(chunks)),
		docFreq:   make(map[string]int),
	}

	totalLen := 0
	for i, c := range chunks {
		tokens := Tokenize(c.Text)
		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		idx.termFreqs[i] = freqs
		idx.docLens[i] = len(tokens)
		totalLen += len(tokens)

		for tok := range freqs {
			idx.docFreq[tok]++
		}
	}
	idx.avgDocLen = float64(totalLen) / float64(len(chunks))

	return idx, nil
}

// Len returns the number of indexed chunks.
func (idx *BM25Index) Len() int {
	return len(idx.chunks)
}

// Search returns up to topK chunks scored against the query, sorted by
// score descending. Ties keep the original chunk order. Chunks with a
// score <= 0 are dropped, so queries sharing no vocabulary with the
// corpus return an empty result.
func (idx *BM25Index) Search(query string, topK int) []Result {
	if topK <= 0 {
		return []Result{}
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return []Result{}
	}

	type scoredDoc struct {
		pos   int
		score float64
	}
	scored := make([]scoredDoc, len(idx.chunks))
	for i := range idx.chunks {
		scored[i] = scoredDoc{pos: i, score: idx.score(queryTokens, i)}
	}

	// Stable sort keeps corpus order for equal scores.
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].score > scored[b].score
	})

	results := make([]Result, 0, topK)
	for _, s := range scored {
		if len(results) >= topK {
			break
		}
		if s.score <= 0 {
			continue
		}
		results = append(results, Result{Chunk: idx.chunks[s.pos], Score: s.score})
	}
	return results
}

// score computes the BM25 score of document pos against the query tokens.
// Repeated query terms contribute once per occurrence, matching the
// bag-of-words query model.
func (idx *BM25Index) score(queryTokens []string, pos int) float64 {
	freqs := idx.termFreqs[pos]
	docLen := float64(idx.docLens[pos])

	var total float64
	for _, tok := range queryTokens {
		tf := freqs[tok]
		if tf == 0 {
			continue
		}
		total += idx.idf(tok) * idx.termScore(float64(tf), docLen)
	}
	return total
}

// idf uses the Lucene formulation, which never goes negative:
// log(1 + (N - df + 0.5) / (df + 0.5)).
func (idx *BM25Index) idf(term string) float64 {
	df := float64(idx.docFreq[term])
	n := float64(len(idx.chunks))
	return math.Log(1.0 + (n-df+0.5)/(df+0.5))
}

// termScore is the saturated term frequency component.
func (idx *BM25Index) termScore(tf, docLen float64) float64 {
	return (tf * (BM25K1 + 1.0)) / (tf + BM25K1*(1.0-BM25B+BM25B*(docLen/idx.avgDocLen)))
}
