package search

import (
	"regexp"
	"strings"

	"github.com/tutorlib/bookrag/internal/corpus"
)

// definitionPatterns are tried in order; the first match wins and its
// capture group becomes the concept. Order encodes priority: "what is"
// is the most reliable signal, the bare "... definition" suffix the least.
var definitionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwhat\s+is\s+(?:a\s+|an\s+|the\s+)?(.+?)(?:\?|$)`),
	regexp.MustCompile(`(?i)\bdefine\s+(.+?)(?:\?|$)`),
	regexp.MustCompile(`(?i)\bexplain\s+(?:what\s+is\s+)?(?:a\s+|an\s+|the\s+)?(.+?)(?:\?|$)`),
	regexp.MustCompile(`(?i)\bmeaning\s+of\s+(?:a\s+|an\s+|the\s+)?(.+?)(?:\?|$)`),
	regexp.MustCompile(`(?i)\bdescribe\s+(?:what\s+is\s+)?(?:a\s+|an\s+|the\s+)?(.+?)(?:\?|$)`),
	regexp.MustCompile(`(?i)(.+?)\s+definition\s*$`),
}

// Analyze inspects a query and returns its Intent. It is pure: same
// query, same result.
func Analyze(query string) Intent {
	q := strings.TrimSpace(query)
	qLower := strings.ToLower(q)

	intent := Intent{
		Procedural:  isProceduralQuery(qLower),
		Comparative: isComparativeQuery(qLower),
	}

	for _, pat := range definitionPatterns {
		m := pat.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		concept := strings.TrimSpace(m[1])
		concept = strings.TrimSpace(strings.TrimRight(concept, "?"))
		intent.DefinitionSeeking = true
		intent.Concept = concept
		intent.NegativeSignals = negativeSignalsFor(concept, qLower)
		return intent
	}

	intent.NegativeSignals = negativeSignalsFor("", qLower)
	return intent
}

// negativeSignalsFor returns phrases that disqualify chunks for this
// query. The table encodes known confusions in the corpus: TCP handshake
// sections sit next to TLS material, B+ tree chapters next to R-trees,
// and virtual memory next to virtual machines.
func negativeSignalsFor(concept, qLower string) []string {
	var signals []string
	cLower := strings.ToLower(concept)

	if (strings.Contains(qLower, "tcp") || strings.Contains(cLower, "tcp")) &&
		strings.Contains(qLower, "handshake") {
		signals = append(signals, "tls", "record protocol", "authentication protocol")
	}

	if strings.Contains(qLower, "b+ tree") ||
		strings.Contains(qLower, "b plus tree") ||
		strings.Contains(qLower, "b-tree") {
		signals = append(signals, "r tree", "generalized search trees")
	}

	if strings.Contains(qLower, "virtual memory") {
		signals = append(signals, "virtual machines", "virtual machine")
	}

	return signals
}

// isProceduralQuery detects "how to" / "how does X work" style queries.
func isProceduralQuery(qLower string) bool {
	for _, prefix := range []string{"how to ", "how do ", "how does ", "explain how "} {
		if strings.HasPrefix(qLower, prefix) {
			return true
		}
	}
	if strings.Contains(qLower, " step by step") || strings.Contains(qLower, "steps to") {
		return true
	}
	if strings.Contains(qLower, "algorithm for") || strings.Contains(qLower, "procedure for") {
		return true
	}
	return false
}

// isComparativeQuery detects "compare X and Y" / "difference between" queries.
func isComparativeQuery(qLower string) bool {
	if strings.Contains(qLower, "compare ") {
		return true
	}
	if strings.Contains(qLower, " vs ") || strings.Contains(qLower, " versus ") {
		return true
	}
	if strings.Contains(qLower, "difference between") {
		return true
	}
	if strings.Contains(qLower, "advantages of") && strings.Contains(qLower, "over") {
		return true
	}
	return false
}

// ChunkAboutConcept reports whether the chunk is about the concept,
// based on substring containment in its key terms.
func ChunkAboutConcept(chunk corpus.Chunk, concept string) bool {
	c := strings.TrimSpace(strings.ToLower(concept))
	if c == "" {
		return false
	}
	for _, term := range chunk.KeyTerms {
		if strings.Contains(strings.ToLower(term), c) {
			return true
		}
	}
	return false
}

// ChunkNegatesConcept reports whether the chunk's header explicitly
// negates the concept (e.g. "non-deadlock", "without paging").
func ChunkNegatesConcept(chunk corpus.Chunk, concept string) bool {
	c := strings.TrimSpace(strings.ToLower(concept))
	if c == "" {
		return false
	}
	header := strings.ToLower(chunk.HeaderPath)
	for _, phrase := range []string{"non-" + c, "non " + c, "no " + c, "without " + c} {
		if strings.Contains(header, phrase) {
			return true
		}
	}
	return false
}
