package search

import (
	"strings"
	"unicode/utf8"

	"github.com/tutorlib/bookrag/internal/corpus"
)

// excludedTypes are chunk types that never answer a question directly.
var excludedTypes = map[string]struct{}{
	corpus.TypeExercise:     {},
	corpus.TypeReferences:   {},
	corpus.TypeBibliography: {},
	corpus.TypeCitations:    {},
}

// headerMarkers flag back-matter sections regardless of chunk type.
var headerMarkers = []string{
	"references",
	"selected bibliography",
	"bibliography",
	"further reading",
	"appendix",
	"exercises",
	"review questions",
}

// negativeSignalPrefixLen bounds how much chunk text is scanned for
// negative signals.
const negativeSignalPrefixLen = 200

// FilterAndScore applies intent-aware filtering and score adjustment to
// fused candidates. Exclusions run first, in a fixed order (type, header
// markers, negative signals); survivors then receive multiplicative
// adjustments. Output preserves input order; it is not sorted.
func FilterAndScore(candidates []Candidate, intent Intent) []Candidate {
	out := make([]Candidate, 0, len(candidates))

	for _, cand := range candidates {
		ch := cand.Chunk

		if _, excluded := excludedTypes[ch.Type]; excluded {
			continue
		}

		headerLower := strings.ToLower(ch.HeaderPath)
		if containsAny(headerLower, headerMarkers) {
			continue
		}

		if len(intent.NegativeSignals) > 0 {
			prefix := textPrefix(ch.Text, negativeSignalPrefixLen)
			probe := strings.ToLower(ch.HeaderPath + " " + prefix)
			if containsAny(probe, intent.NegativeSignals) {
				continue
			}
		}

		score := cand.Score

		if intent.Concept != "" && ChunkNegatesConcept(ch, intent.Concept) {
			score *= NegationPenalty
		}

		if intent.DefinitionSeeking && ch.Type == corpus.TypeDefinition {
			if intent.Concept == "" || ChunkAboutConcept(ch, intent.Concept) {
				score *= DefinitionBoost
			}
		}

		if intent.Procedural &&
			(ch.Type == corpus.TypeAlgorithm || ch.Type == corpus.TypeSection) {
			score *= ProceduralBoost
		}

		if intent.Comparative &&
			(ch.Type == corpus.TypeProtocol || ch.Type == corpus.TypeComparison || ch.Type == corpus.TypeSection) {
			score *= ComparativeBoost
		}

		out = append(out, Candidate{Chunk: ch, Score: score})
	}

	return out
}

// textPrefix returns the first n characters of s. Counting runes rather
// than bytes keeps the window stable on non-ASCII text and never splits
// a multibyte sequence.
func textPrefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
