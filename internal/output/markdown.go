package output

import (
	"io"
	"strings"

	"github.com/dshills/tribunal/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

// Round implements Renderer.
func (m *MarkdownWriter) Round(w io.Writer, st *review.State, r *review.Round) error {
	ew := &errWriter{w: w}

	ew.printf("## %s\n\n", roundHeading(r))
	if r.Kind == review.RoundFollowUp {
		ew.printf("> %s\n\n", strings.ReplaceAll(r.Input, "\n", "\n> "))
	} else {
		ew.printf("**Range:** `%s`\n\n", r.Input)
	}

	for _, res := range r.Results {
		ew.printf("### %s Review\n\n", res.Lens.Label())
		switch {
		case res.Failed():
			ew.printf(":warning: Unavailable this round: %s\n\n", res.Error)
		case len(res.Findings) == 0:
			ew.printf("No issues found.\n\n")
		default:
			for _, f := range res.Findings {
				writeMarkdownFinding(ew, f)
			}
		}
	}

	v := r.Verdict
	if v == nil {
		return ew.err
	}

	for _, sec := range verdictSections(v) {
		ew.printf("### %s (%d)\n\n", sec.title, len(sec.findings))
		if len(sec.findings) == 0 {
			ew.printf("None.\n\n")
			continue
		}
		for _, f := range sec.findings {
			writeMarkdownFinding(ew, f)
		}
	}

	ew.printf("### Executive Summary\n\n%s\n\n", v.ExecutiveSummary)
	if v.Total() > 0 {
		ew.printf("| Severity | Count |\n|----------|-------|\n")
		for _, sev := range review.Severities {
			if n := countSeverity(v, sev); n > 0 {
				ew.printf("| %s %s | %d |\n", mdSeverityIcon(sev), sev, n)
			}
		}
		ew.println("")
	}

	ew.printf("### Final Verdict\n\n**%s**\n\n", v.Decision)
	return ew.err
}

// Session implements Renderer.
func (m *MarkdownWriter) Session(w io.Writer, st *review.State) error {
	ew := &errWriter{w: w}
	ew.printf("# Code Review: `%s` into `%s`\n\n", st.Source, st.Target)
	if ew.err != nil {
		return ew.err
	}
	return sessionRounds(m, w, st)
}

func writeMarkdownFinding(ew *errWriter, f review.Finding) {
	ew.printf("- %s **%s** `%s`", mdSeverityIcon(f.Severity), strings.ToUpper(string(f.Severity)), f.Location())
	if f.Title != "" {
		ew.printf(" %s", f.Title)
	}
	ew.printf("\n\n  %s\n\n", strings.ReplaceAll(f.Description, "\n", "\n  "))

	if f.SuggestedFix == "" {
		return
	}
	ew.printf("  **Suggested fix:**\n\n")
	if looksLikeCode(f.SuggestedFix) {
		body := strings.ReplaceAll(f.SuggestedFix, "\n", "\n  ")
		ew.printf("  ```%s\n  %s\n  ```\n\n", inferLang(f.Path), body)
	} else {
		ew.printf("  > %s\n\n", strings.ReplaceAll(f.SuggestedFix, "\n", "\n  > "))
	}
}

func mdSeverityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return ":red_circle:"
	case review.SeverityHigh:
		return ":orange_circle:"
	case review.SeverityMedium:
		return ":yellow_circle:"
	case review.SeverityLow:
		return ":large_blue_circle:"
	default:
		return ":white_circle:"
	}
}

func looksLikeCode(s string) bool {
	codeIndicators := []string{
		"func ", "if ", "for ", "return ", "var ", "const ",
		"def ", "class ", "import ", "from ",
		"{", "}", "=>", "->", ":=", "==",
		"()", "[];",
	}
	for _, indicator := range codeIndicators {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}

var mdLangByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".ts":    "typescript",
	".tsx":   "tsx",
	".jsx":   "jsx",
	".rs":    "rust",
	".java":  "java",
	".rb":    "ruby",
	".cpp":   "cpp",
	".c":     "c",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".sh":    "bash",
	".sql":   "sql",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".tf":    "hcl",
}

func inferLang(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	return mdLangByExt[path[i:]]
}

