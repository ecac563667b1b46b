package search

import "sort"

// FusedScore is a chunk id with its accumulated RRF score.
type FusedScore struct {
	ID    string
	Score float64
}

// RRFMerge combines ranked id lists using Reciprocal Rank Fusion.
// Each list contributes 1/(kRRF + rank + 1) per id, rank zero-based,
// so a top hit contributes 1/(kRRF+1). Input scores are deliberately
// ignored; only positions matter, which makes BM25 and cosine scales
// commensurable without normalization.
//
// Results are sorted by fused score descending; equal scores order
// lexicographically by id. The tie-break is part of the contract:
// merge output is deterministic regardless of input list order.
func RRFMerge(lists [][]string, k, kRRF int) []FusedScore {
	if kRRF <= 0 {
		kRRF = DefaultRRFConstant
	}

	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, id := range list {
			scores[id] += 1.0 / float64(kRRF+rank+1)
		}
	}

	merged := make([]FusedScore, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, FusedScore{ID: id, Score: score})
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})

	if k > 0 && k < len(merged) {
		merged = merged[:k]
	}
	return merged
}
