package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dshills/tribunal/internal/review"
)

// TextWriter outputs a human-readable report, coloured unless NoColor is
// set.
type TextWriter struct {
	NoColor bool
}

type palette struct {
	heading, critical, high, medium, low, dim, ok func(a ...any) string
}

func (t *TextWriter) palette() palette {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if t.NoColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		heading:  mk(color.Bold, color.FgHiCyan),
		critical: mk(color.Bold, color.FgHiRed),
		high:     mk(color.FgHiRed),
		medium:   mk(color.FgHiYellow),
		low:      mk(color.FgHiBlue),
		dim:      mk(color.Faint),
		ok:       mk(color.Bold, color.FgHiGreen),
	}
}

func (p palette) severity(s review.Severity) string {
	label := "[" + strings.ToUpper(string(s)) + "]"
	switch s {
	case review.SeverityCritical:
		return p.critical(label)
	case review.SeverityHigh:
		return p.high(label)
	case review.SeverityMedium:
		return p.medium(label)
	case review.SeverityLow:
		return p.low(label)
	default:
		return p.dim(label)
	}
}

func (p palette) decision(d review.Decision) string {
	switch d {
	case review.DecisionApprove:
		return p.ok(string(d))
	case review.DecisionRequestChanges:
		return p.critical(string(d))
	default:
		return p.medium(string(d))
	}
}

// Round renders the lens sections, the three verdict categories, the
// executive summary and the decision, in that order.
func (t *TextWriter) Round(w io.Writer, st *review.State, r *review.Round) error {
	ew := &errWriter{w: w}
	p := t.palette()
	rule := strings.Repeat("─", 60)

	ew.printf("\n%s\n%s\n%s\n", rule, p.heading(roundHeading(r)), rule)
	if r.Kind == review.RoundFollowUp {
		ew.printf("Feedback: %s\n", r.Input)
	} else {
		ew.printf("Repository: %s\n", st.Repo)
		ew.printf("Range: %s\n", r.Input)
	}

	for _, res := range r.Results {
		ew.printf("\n%s\n", p.heading(res.Lens.Label()+" Review"))
		switch {
		case res.Failed():
			ew.printf("  %s %s\n", p.medium("unavailable this round:"), res.Error)
		case len(res.Findings) == 0:
			ew.println("  No issues found.")
		default:
			for _, f := range res.Findings {
				t.writeFinding(ew, p, f)
			}
		}
	}

	v := r.Verdict
	if v == nil {
		return ew.err
	}

	for _, sec := range verdictSections(v) {
		ew.printf("\n%s\n", p.heading(fmt.Sprintf("%s (%d)", strings.ToUpper(sec.title), len(sec.findings))))
		if len(sec.findings) == 0 {
			ew.println("  None.")
			continue
		}
		for _, f := range sec.findings {
			t.writeFinding(ew, p, f)
		}
	}

	ew.printf("\n%s\n", p.heading("EXECUTIVE SUMMARY"))
	for _, para := range strings.Split(v.ExecutiveSummary, "\n\n") {
		for _, line := range wrapText(para, 72) {
			ew.printf("  %s\n", line)
		}
	}
	if v.Total() > 0 {
		ew.println("")
		table := newTable(ew, []string{"  Severity", "Count"})
		for _, sev := range review.Severities {
			if n := countSeverity(v, sev); n > 0 {
				_ = table.Append([]string{"  " + string(sev), fmt.Sprint(n)})
			}
		}
		_ = table.Render()
	}

	ew.printf("\nFINAL VERDICT: %s\n", p.decision(v.Decision))
	return ew.err
}

// Session implements Renderer.
func (t *TextWriter) Session(w io.Writer, st *review.State) error {
	return sessionRounds(t, w, st)
}

func (t *TextWriter) writeFinding(ew *errWriter, p palette, f review.Finding) {
	ew.printf("\n  %s %s", p.severity(f.Severity), f.Location())
	if f.Title != "" {
		ew.printf("  %s", f.Title)
	}
	ew.println("")
	for _, line := range wrapText(f.Description, 70) {
		ew.printf("      %s\n", line)
	}
	if f.SuggestedFix != "" {
		ew.printf("      %s\n", p.dim("Suggested fix:"))
		for _, line := range strings.Split(strings.TrimRight(f.SuggestedFix, "\n"), "\n") {
			ew.printf("        %s\n", line)
		}
	}
}

func countSeverity(v *review.Verdict, sev review.Severity) int {
	n := 0
	for _, sec := range verdictSections(v) {
		for _, f := range sec.findings {
			if f.Severity == sev {
				n++
			}
		}
	}
	return n
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
