package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/tribunal/internal/review"
)

// Renderer writes review rounds in a specific format.
type Renderer interface {
	// Round renders one completed round.
	Round(w io.Writer, st *review.State, r *review.Round) error
	// Session renders every completed round of the session.
	Session(w io.Writer, st *review.State) error
}

// GetRenderer returns a renderer for the specified format. noColor only
// affects the text format.
func GetRenderer(format string, noColor bool) (Renderer, error) {
	switch format {
	case "text", "":
		return &TextWriter{NoColor: noColor}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "yaml", "yml":
		return &YAMLWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Streaming reports whether format is rendered round by round as the
// session runs. Structured formats are written once, when the session ends.
func Streaming(format string) bool {
	switch format {
	case "text", "", "markdown", "md":
		return true
	default:
		return false
	}
}

// Open returns the destination for rendered output: the file at path, or
// stdout when path is empty.
func Open(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// sessionRounds renders each round in order with r.
func sessionRounds(r Renderer, w io.Writer, st *review.State) error {
	for _, round := range st.Rounds {
		if err := r.Round(w, st, round); err != nil {
			return err
		}
	}
	return nil
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

// Write lets tablewriter render into an errWriter.
func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	var n int
	n, ew.err = ew.w.Write(p)
	return n, ew.err
}

// roundHeading is shared by the text and markdown renderers.
func roundHeading(r *review.Round) string {
	return fmt.Sprintf("ROUND %d - %s", r.Number, r.Title())
}

type section struct {
	title    string
	findings []review.Finding
}

func verdictSections(v *review.Verdict) []section {
	return []section{
		{"Must Fix", v.MustFix},
		{"Should Fix", v.ShouldFix},
		{"Refactoring Opportunities", v.RefactorOpportunities},
	}
}
