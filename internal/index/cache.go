package index

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// embeddingCache is the on-disk gob payload for corpus embeddings.
// ChunkIDs records the exact corpus ordering the vectors were computed
// for; any mismatch invalidates the whole cache.
type embeddingCache struct {
	ChunkIDs []string
	Vectors  [][]float32
}

// loadEmbeddingCache reads cached vectors from path. It returns false
// when the file is missing, unreadable, or was computed for a different
// chunk-id sequence.
func loadEmbeddingCache(path string, ids []string) ([][]float32, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer func() { _ = f.Close() }()

	var cache embeddingCache
	if err := gob.NewDecoder(f).Decode(&cache); err != nil {
		slog.Warn("embedding_cache_corrupt",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, false
	}

	if len(cache.ChunkIDs) != len(ids) {
		return nil, false
	}
	for i, id := range ids {
		if cache.ChunkIDs[i] != id {
			return nil, false
		}
	}

	return cache.Vectors, true
}

// saveEmbeddingCache atomically persists vectors to path. A file lock
// guards against concurrent builds racing on the same cache, and the
// tmp-then-rename sequence keeps readers from observing partial writes.
func saveEmbeddingCache(path string, ids []string, vectors [][]float32) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".embeddings.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire cache lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, ".embeddings-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	cache := embeddingCache{ChunkIDs: ids, Vectors: vectors}
	if err := gob.NewEncoder(tmp).Encode(&cache); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
