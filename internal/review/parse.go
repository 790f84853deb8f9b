package review

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// rawFinding is the wire shape a model returns. Several spellings are
// accepted for the fields models most often rename.
type rawFinding struct {
	Severity     string `json:"severity"`
	Category     string `json:"category"`
	Title        string `json:"title"`
	File         string `json:"file"`
	Path         string `json:"path"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
	StartLine    int    `json:"startLine"`
	EndLine      int    `json:"endLine"`
	Line         int    `json:"line"`
	Description  string `json:"description"`
	Message      string `json:"message"`
	SuggestedFix string `json:"suggested_fix"`
	Suggestion   string `json:"suggestion"`
}

var errMissingDescription = errors.New("finding has no description")

// parseFindings decodes a model response into findings attributed to lens.
// Order is preserved as returned.
func parseFindings(lens Lens, content string) ([]Finding, error) {
	content = stripCodeFences(strings.TrimSpace(content))

	raw, err := decodeRaw(content)
	if err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(raw))
	for i, r := range raw {
		f, err := r.finding(lens)
		if err != nil {
			return nil, fmt.Errorf("finding %d: %w", i, err)
		}
		findings = append(findings, f)
	}
	return findings, nil
}

func decodeRaw(content string) ([]rawFinding, error) {
	var raw []rawFinding
	err := json.Unmarshal([]byte(content), &raw)
	if err == nil {
		return raw, nil
	}

	// {"findings": [...]}
	var wrapped struct {
		Findings *[]rawFinding `json:"findings"`
	}
	if json.Unmarshal([]byte(content), &wrapped) == nil && wrapped.Findings != nil {
		return *wrapped.Findings, nil
	}

	// Prose around the array.
	start, end := strings.Index(content, "["), strings.LastIndex(content, "]")
	if start >= 0 && end > start {
		if json.Unmarshal([]byte(content[start:end+1]), &raw) == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("invalid JSON array: %w", err)
}

func (r rawFinding) finding(lens Lens) (Finding, error) {
	f := Finding{
		Lens:         lens,
		Severity:     ParseSeverity(r.Severity),
		Category:     Category(strings.ToLower(strings.TrimSpace(r.Category))),
		Title:        strings.TrimSpace(r.Title),
		Path:         strings.TrimPrefix(strings.TrimSpace(firstNonEmpty(r.File, r.Path)), "./"),
		Description:  strings.TrimSpace(firstNonEmpty(r.Description, r.Message, r.Title)),
		SuggestedFix: strings.TrimSpace(firstNonEmpty(r.SuggestedFix, r.Suggestion)),
	}
	if f.Description == "" {
		return Finding{}, errMissingDescription
	}

	start := firstPositive(r.LineStart, r.StartLine, r.Line)
	if start > 0 {
		end := firstPositive(r.LineEnd, r.EndLine)
		if end < start {
			end = start
		}
		f.Lines = &LineRange{Start: start, End: end}
	}

	f.ID = findingID(f)
	return f, nil
}

// findingID is a stable short hash of lens, location and description.
func findingID(f Finding) string {
	line := 0
	if f.Lines != nil {
		line = f.Lines.Start
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d:%s", f.Lens, f.Path, line, normalizeText(f.Description))))
	return fmt.Sprintf("%x", h[:4])
}

func stripCodeFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return content
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.Join(lines[1:end], "\n")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
