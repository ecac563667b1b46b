// Package index provides the lexical (BM25) and semantic (dense vector)
// retrieval indices over the textbook corpus.
package index

import (
	"regexp"
	"strings"
)

// tokenRegex matches alphanumeric sequences (underscores included).
var tokenRegex = regexp.MustCompile(`[a-z0-9_]+`)

// stopwords excluded from lexical indexing. Tokens of length <= 2 are
// dropped before this check, so short stopwords are listed only for
// queries arriving pre-tokenized.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {},
	"in": {}, "on": {}, "for": {}, "to": {}, "is": {}, "are": {},
	"be": {}, "as": {}, "that": {}, "this": {}, "these": {}, "those": {},
	"with": {}, "by": {}, "at": {}, "from": {}, "it": {}, "its": {},
	"we": {}, "they": {}, "you": {},
}

// Tokenize lowercases text, splits on non-alphanumeric boundaries, and
// drops tokens of length <= 2 and stopwords. Both indexing and query
// parsing use the same rules.
func Tokenize(text string) []string {
	var tokens []string
	for _, tok := range tokenRegex.FindAllString(strings.ToLower(text), -1) {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
