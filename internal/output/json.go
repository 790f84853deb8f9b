package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dshills/tribunal/internal/review"
)

// roundDoc is a single round with enough session context to stand alone.
type roundDoc struct {
	SessionID string        `json:"sessionId" yaml:"sessionId"`
	Repo      string        `json:"repo" yaml:"repo"`
	Source    string        `json:"source" yaml:"source"`
	Target    string        `json:"target" yaml:"target"`
	Round     *review.Round `json:"round" yaml:"round"`
}

func newRoundDoc(st *review.State, r *review.Round) roundDoc {
	return roundDoc{SessionID: st.ID, Repo: st.Repo, Source: st.Source, Target: st.Target, Round: r}
}

// JSONWriter outputs rounds or the whole session as indented JSON.
type JSONWriter struct{}

// Round implements Renderer.
func (j *JSONWriter) Round(w io.Writer, st *review.State, r *review.Round) error {
	return writeJSON(w, newRoundDoc(st, r))
}

// Session implements Renderer.
func (j *JSONWriter) Session(w io.Writer, st *review.State) error {
	return writeJSON(w, st)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// YAMLWriter outputs rounds or the whole session as YAML.
type YAMLWriter struct{}

// Round implements Renderer.
func (y *YAMLWriter) Round(w io.Writer, st *review.State, r *review.Round) error {
	return writeYAML(w, newRoundDoc(st, r))
}

// Session implements Renderer.
func (y *YAMLWriter) Session(w io.Writer, st *review.State) error {
	return writeYAML(w, st)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing YAML: %w", err)
	}
	return enc.Close()
}
