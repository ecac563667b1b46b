package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/tutorlib/bookrag/internal/corpus"
	"github.com/tutorlib/bookrag/internal/embed"
)

// DenseIndex is an exact nearest-neighbor index over normalized chunk
// embeddings. With unit-length vectors, cosine similarity reduces to a
// dot product. The corpus is small enough that a full scan is both
// exact and fast, which keeps rankings reproducible run to run.
type DenseIndex struct {
	chunks   []corpus.Chunk
	vectors  [][]float32
	embedder embed.Embedder
}

// BuildDenseIndex embeds every chunk text and builds the index.
// If cachePath is non-empty, previously computed embeddings are reused
// when the cached chunk-id list matches the corpus exactly; otherwise
// the corpus is re-embedded and the cache rewritten.
func BuildDenseIndex(ctx context.Context, chunks []corpus.Chunk, embedder embed.Embedder, cachePath string) (*DenseIndex, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}
	if embedder == nil {
		return nil, fmt.Errorf("index: nil embedder")
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}

	var vectors [][]float32
	if cachePath != "" {
		if cached, ok := loadEmbeddingCache(cachePath, ids); ok {
			vectors = cached
			slog.Debug("embedding_cache_hit",
				slog.String("path", cachePath),
				slog.Int("chunks", len(chunks)))
		}
	}

	if vectors == nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}

		var err error
		vectors, err = embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed corpus: %w", err)
		}
		if len(vectors) != len(chunks) {
			return nil, fmt.Errorf("embed corpus: got %d vectors for %d chunks", len(vectors), len(chunks))
		}
		for _, v := range vectors {
			normalizeInPlace(v)
		}

		if cachePath != "" {
			if err := saveEmbeddingCache(cachePath, ids, vectors); err != nil {
				// Cache persistence is best effort.
				slog.Warn("embedding_cache_save_failed",
					slog.String("path", cachePath),
					slog.String("error", err.Error()))
			}
		}
	}

	return &DenseIndex{
		chunks:   chunks,
		vectors:  vectors,
		embedder: embedder,
	}, nil
}

// Len returns the number of indexed chunks.
func (d *DenseIndex) Len() int {
	return len(d.chunks)
}

// Search embeds the text and returns up to topK chunks ranked by cosine
// similarity, descending. There is no score floor; weak matches still
// rank. Ties keep the original chunk order.
func (d *DenseIndex) Search(ctx context.Context, text string, topK int) ([]Result, error) {
	if topK <= 0 {
		return []Result{}, nil
	}

	qvec, err := d.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	normalizeInPlace(qvec)

	type scoredDoc struct {
		pos   int
		score float64
	}
	scored := make([]scoredDoc, len(d.chunks))
	for i, v := range d.vectors {
		scored[i] = scoredDoc{pos: i, score: dot(v, qvec)}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].score > scored[b].score
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	results := make([]Result, topK)
	for i := 0; i < topK; i++ {
		results[i] = Result{Chunk: d.chunks[scored[i].pos], Score: scored[i].score}
	}
	return results, nil
}

// dot computes the dot product of two equal-length vectors.
func dot(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalizeInPlace scales a vector to unit length. Zero vectors are
// left untouched.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return
	}
	for i, val := range v {
		v[i] = float32(float64(val) / magnitude)
	}
}
