package output

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/tribunal/internal/review"
)

// SARIFWriter outputs verdict findings in SARIF v2.1.0 format, one run per
// round, for code-scanning uploads.
type SARIFWriter struct {
	Version string
}

// Round implements Renderer.
func (s *SARIFWriter) Round(w io.Writer, _ *review.State, r *review.Round) error {
	return s.write(w, []*review.Round{r})
}

// Session implements Renderer.
func (s *SARIFWriter) Session(w io.Writer, st *review.State) error {
	return s.write(w, st.Rounds)
}

func (s *SARIFWriter) write(w io.Writer, rounds []*review.Round) error {
	log := sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Runs:    []sarifRun{},
	}
	for _, r := range rounds {
		log.Runs = append(log.Runs, s.buildRun(r))
	}
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool          `json:"tool"`
	Results    []sarifResult      `json:"results"`
	Properties sarifRunProperties `json:"properties"`
}

type sarifRunProperties struct {
	Round        int      `json:"round"`
	Kind         string   `json:"kind"`
	Decision     string   `json:"decision,omitempty"`
	Degradations []string `json:"degradations,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID     string                `json:"ruleId"`
	Level      string                `json:"level"`
	Message    sarifMessage          `json:"message"`
	Locations  []sarifLocation       `json:"locations,omitempty"`
	Fixes      []sarifFix            `json:"fixes,omitempty"`
	Properties sarifResultProperties `json:"properties"`
}

type sarifResultProperties struct {
	Lens     string `json:"lens"`
	Severity string `json:"severity"`
	Category string `json:"category"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

type sarifFix struct {
	Description sarifMessage `json:"description"`
}

func (s *SARIFWriter) buildRun(r *review.Round) sarifRun {
	run := sarifRun{
		Tool:       sarifTool{Driver: sarifDriver{Name: "tribunal", Version: s.Version, Rules: []sarifRule{}}},
		Results:    []sarifResult{},
		Properties: sarifRunProperties{Round: r.Number, Kind: string(r.Kind)},
	}
	if r.Verdict == nil {
		return run
	}
	run.Properties.Decision = string(r.Verdict.Decision)
	run.Properties.Degradations = r.Verdict.Degradations

	seen := make(map[string]bool)
	for _, sec := range verdictSections(r.Verdict) {
		for _, f := range sec.findings {
			ruleID := generateRuleID(f)
			if !seen[ruleID] {
				seen[ruleID] = true
				run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
					ID:               ruleID,
					Name:             string(f.Category),
					ShortDescription: sarifMessage{Text: ruleTitle(f)},
					DefaultConfig:    sarifDefaultConfig{Level: severityToLevel(f.Severity)},
				})
			}

			result := sarifResult{
				RuleID:  ruleID,
				Level:   severityToLevel(f.Severity),
				Message: sarifMessage{Text: f.Description},
				Properties: sarifResultProperties{
					Lens:     string(f.Lens),
					Severity: string(f.Severity),
					Category: string(f.Category),
				},
			}
			if f.Path != "" {
				loc := sarifLocation{PhysicalLocation: sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: f.Path}}}
				if f.Lines != nil {
					end := f.Lines.End
					if end < f.Lines.Start {
						end = f.Lines.Start
					}
					loc.PhysicalLocation.Region = &sarifRegion{StartLine: f.Lines.Start, EndLine: end}
				}
				result.Locations = append(result.Locations, loc)
			}
			if f.SuggestedFix != "" {
				result.Fixes = append(result.Fixes, sarifFix{Description: sarifMessage{Text: f.SuggestedFix}})
			}
			run.Results = append(run.Results, result)
		}
	}
	return run
}

// severityToLevel maps finding severity to SARIF level.
func severityToLevel(s review.Severity) string {
	switch s {
	case review.SeverityCritical, review.SeverityHigh:
		return "error"
	case review.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

func ruleTitle(f review.Finding) string {
	if f.Title != "" {
		return f.Title
	}
	return string(f.Category)
}

// generateRuleID creates a stable rule ID from lens, category and title.
func generateRuleID(f review.Finding) string {
	category := string(f.Category)
	if category == "" {
		category = "general"
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s/%s/%s", f.Lens, category, ruleTitle(f))))
	return fmt.Sprintf("tribunal/%s/%x", category, h[:4])
}
