// Package output renders retrieval results for the CLI, with colors
// when writing to a terminal and plain text otherwise.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/tutorlib/bookrag/internal/corpus"
	"github.com/tutorlib/bookrag/internal/search"
)

// Format selects the output representation.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// snippetLen caps the preview text per result in text mode.
const snippetLen = 240

// Writer renders results and status messages.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer. Color is enabled only when out is a terminal.
func New(out io.Writer) *Writer {
	noColor := true
	if f, ok := out.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return &Writer{out: out, styles: GetStyles(noColor)}
}

// newPlain creates a Writer that never emits color codes. Tests use it
// to keep rendered output free of escape sequences.
func newPlain(out io.Writer) *Writer {
	return &Writer{out: out, styles: NoColorStyles()}
}

// Warning prints a warning message.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Warning(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Warning.Render(msg))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Error.Render(msg))
}

// Results renders a ranked result list in the given format.
func (w *Writer) Results(results []search.RetrievalResult, format string) error {
	if format == FormatJSON {
		return w.resultsJSON(results)
	}
	w.resultsText(results)
	return nil
}

// resultJSON is the wire shape of one result in JSON mode.
type resultJSON struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	BookID     string  `json:"book_id"`
	HeaderPath string  `json:"header_path"`
	ChunkType  string  `json:"chunk_type"`
	Score      float64 `json:"score"`
	Source     string  `json:"source"`
	Text       string  `json:"text"`
}

func (w *Writer) resultsJSON(results []search.RetrievalResult) error {
	out := make([]resultJSON, len(results))
	for i, r := range results {
		out[i] = resultJSON{
			Rank:       i + 1,
			ID:         r.Chunk.ID,
			BookID:     r.Chunk.BookID,
			HeaderPath: r.Chunk.HeaderPath,
			ChunkType:  r.Chunk.Type,
			Score:      r.Score,
			Source:     r.Source,
			Text:       r.Chunk.Text,
		}
	}

	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (w *Writer) resultsText(results []search.RetrievalResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render("no results"))
		return
	}

	for i, r := range results {
		_, _ = fmt.Fprintf(w.out, "%s %s  %s\n",
			w.styles.Rank.Render(fmt.Sprintf("%d.", i+1)),
			w.styles.Header.Render(r.Chunk.HeaderPath),
			w.styles.Score.Render(fmt.Sprintf("score=%.4f", r.Score)))
		_, _ = fmt.Fprintf(w.out, "   %s\n",
			w.styles.Source.Render(fmt.Sprintf("%s · %s · %s", r.Chunk.ID, r.Chunk.Type, r.Source)))
		_, _ = fmt.Fprintf(w.out, "   %s\n\n",
			w.styles.Snippet.Render(snippet(r.Chunk.Text)))
	}
}

// Chunks renders expanded context chunks in reading order.
func (w *Writer) Chunks(chunks []corpus.Chunk, format string) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		return enc.Encode(chunks)
	}

	if len(chunks) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render("no results"))
		return nil
	}

	for _, c := range chunks {
		_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(c.HeaderPath))
		_, _ = fmt.Fprintf(w.out, "%s\n",
			w.styles.Source.Render(fmt.Sprintf("%s · %s", c.ID, c.Type)))
		_, _ = fmt.Fprintf(w.out, "%s\n\n", w.styles.Snippet.Render(c.Text))
	}
	return nil
}

// snippet flattens newlines and truncates to snippetLen.
func snippet(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	if len(flat) > snippetLen {
		return flat[:snippetLen] + "…"
	}
	return flat
}
