// Package corpus provides the textbook chunk model and JSONL corpus loading.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Chunk type tags used by the ingestion pipeline.
const (
	TypeDefinition   = "definition"
	TypeAlgorithm    = "algorithm"
	TypeProtocol     = "protocol"
	TypeComparison   = "comparison"
	TypeSection      = "section"
	TypeExercise     = "exercise"
	TypeReferences   = "references"
	TypeBibliography = "bibliography"
	TypeCitations    = "citations"
)

// Chunk is a single passage from the textbook corpus.
// Chunks are immutable after loading; the corpus is fixed for the
// lifetime of a searcher.
type Chunk struct {
	// ID is "<book_id>::chunk_<5-digit-sequence>", e.g. "os_galvin::chunk_00042".
	ID string `json:"id"`

	// BookID identifies the source book.
	BookID string `json:"book_id"`

	// HeaderPath is the section breadcrumb, segments joined by " > ".
	HeaderPath string `json:"header_path"`

	// Type is one of the chunk type tags above (default: section).
	Type string `json:"chunk_type"`

	// KeyTerms are lowercase key phrases for the chunk, in corpus order.
	KeyTerms []string `json:"key_terms"`

	// Text is the chunk body.
	Text string `json:"text"`

	// PotentialQuestions are optional study questions attached at ingestion.
	PotentialQuestions []string `json:"potential_questions,omitempty"`

	// Subject is an optional subject tag (e.g. "os", "cn", "dbms").
	Subject string `json:"subject,omitempty"`
}

// ChunkID formats a chunk identifier for a book and zero-based sequence number.
func ChunkID(bookID string, seq int) string {
	return fmt.Sprintf("%s::chunk_%05d", bookID, seq)
}

// SequenceOf extracts the numeric sequence from a chunk ID.
// Returns 0 if the ID does not follow the "chunk_<n>" convention.
func SequenceOf(id string) int {
	_, suffix, ok := strings.Cut(id, "chunk_")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0
	}
	return n
}

// Load reads chunks from a JSONL file, one JSON object per line.
// Blank lines are skipped. If subject is non-empty, chunks carrying a
// different subject tag are filtered out; chunks without a subject tag
// are kept.
func Load(path, subject string) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	var chunks []Chunk
	scanner := bufio.NewScanner(f)
	// Chunk bodies can exceed the default 64KB scanner limit.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var c Chunk
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("parse corpus line %d: %w", lineNo, err)
		}
		if c.Type == "" {
			c.Type = TypeSection
		}
		if subject != "" && c.Subject != "" && c.Subject != subject {
			continue
		}
		chunks = append(chunks, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	return chunks, nil
}
