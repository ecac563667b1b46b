package search

import "strings"

// expansion maps a trigger phrase to extra BM25 terms. The table is an
// ordered slice, not a map, so expansions accumulate in a fixed order
// and rewritten queries are byte-identical across runs.
type expansion struct {
	phrase string
	terms  string
}

// keywordExpansions covers the canonical OS, networking, and database
// topics of the corpus.
var keywordExpansions = []expansion{
	// OS
	{"deadlock", "circular wait hold-and-wait mutual exclusion resource allocation graph"},
	{"critical section", "race condition mutual exclusion synchronization"},
	{"paging", "page table page fault virtual memory"},
	{"segmentation", "segment table segmentation fault memory management"},
	{"scheduling", "cpu scheduling preemptive non-preemptive round-robin priority"},
	// CN
	{"tcp handshake", "three-way handshake 3-way handshake connection establishment syn ack fin"},
	{"three way handshake", "three-way handshake 3-way handshake connection establishment"},
	{"udp", "user datagram protocol connectionless"},
	{"osi model", "osi reference model seven layers 7 layers"},
	{"routing", "routing algorithms distance vector link state shortest path"},
	{"congestion control", "tcp congestion window slow start congestion avoidance"},
	// DBMS
	{"acid", "atomicity consistency isolation durability transaction properties"},
	{"transaction", "commit rollback concurrency serializability schedule"},
	{"normalization", "functional dependency 1nf 2nf 3nf bcnf"},
	{"indexing", "b tree b+ tree index selectivity clustered nonclustered"},
}

// fillerPrefixes are stripped (first match only) from the semantic
// variant; embedding models do better without politeness framing.
var fillerPrefixes = []string{
	"please explain ",
	"explain ",
	"can you explain ",
	"what do you mean by ",
	"what is meant by ",
}

// Rewritten holds per-retriever variants of a query.
type Rewritten struct {
	// Original is the trimmed user query.
	Original string

	// BM25Query is the keyword-expanded variant for lexical search.
	BM25Query string

	// SemanticQuery is the cleaned variant for embedding search.
	SemanticQuery string
}

// Rewriter produces retriever-specific query variants.
type Rewriter struct {
	expansions []expansion
}

// NewRewriter creates a rewriter with the default expansion table.
func NewRewriter() *Rewriter {
	return &Rewriter{expansions: keywordExpansions}
}

// Rewrite returns the original, BM25, and semantic variants of query.
func (r *Rewriter) Rewrite(query string) Rewritten {
	base := strings.TrimSpace(query)
	return Rewritten{
		Original:      base,
		BM25Query:     r.expandForKeyword(base),
		SemanticQuery: cleanForSemantic(base),
	}
}

// expandForKeyword appends expansion terms for every trigger phrase
// present in the query. Matching is case-insensitive substring; the
// original casing is preserved.
func (r *Rewriter) expandForKeyword(query string) string {
	qLower := strings.ToLower(query)

	var additions []string
	for _, e := range r.expansions {
		if strings.Contains(qLower, e.phrase) {
			additions = append(additions, e.terms)
		}
	}

	if len(additions) == 0 {
		return query
	}
	return query + " " + strings.Join(additions, " ")
}

// cleanForSemantic strips one leading filler prefix and trailing
// question marks.
func cleanForSemantic(query string) string {
	q := strings.TrimSpace(query)
	lower := strings.ToLower(q)
	for _, prefix := range fillerPrefixes {
		if strings.HasPrefix(lower, prefix) {
			q = q[len(prefix):]
			break
		}
	}
	q = strings.TrimRight(q, " ?")
	return strings.TrimSpace(q)
}
