package redact

import (
	"regexp"
	"strings"

	"github.com/dshills/tribunal/internal/tools"
)

const placeholder = "[REDACTED]"

// defaultPatterns are regex heuristics for common secret shapes.
var defaultPatterns = []*regexp.Regexp{
	// Generic API keys (long strings after common key names)
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// AWS secret access keys
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	// Quoted secrets, tokens and passwords in assignments
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	// Connection strings with inline credentials
	regexp.MustCompile(`(?i)\b(postgres|postgresql|mysql|mongodb(\+srv)?|redis|amqp)://[^\s:/@]+:[^\s@]+@`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-or-v1-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	// Long hex strings assigned to key-like names
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Redactor scrubs secrets from text before it leaves the process.
type Redactor struct {
	patterns []*regexp.Regexp
	paths    []string
}

// New returns a Redactor using the built-in secret patterns. Files whose
// repository path matches one of paths are withheld entirely.
func New(paths []string) *Redactor {
	return &Redactor{patterns: defaultPatterns, paths: paths}
}

// Secrets replaces detected secrets in text with [REDACTED] and reports how
// many replacements were made.
func (r *Redactor) Secrets(text string) (string, int) {
	count := 0
	for _, pat := range r.patterns {
		text = pat.ReplaceAllStringFunc(text, func(string) string {
			count++
			return placeholder
		})
	}
	return text, count
}

// Withheld reports whether path is covered by the path policy.
func (r *Redactor) Withheld(path string) bool {
	return len(r.paths) > 0 && tools.MatchesAny(path, r.paths)
}

// Diff redacts a unified diff. Sections for withheld paths keep their header
// line but lose their hunks; every other section is scanned for secrets.
func (r *Redactor) Diff(diff string) (string, int) {
	sections := tools.SplitDiffSections(diff)
	if len(sections) == 0 {
		return r.Secrets(diff)
	}
	var b strings.Builder
	total := 0
	for _, section := range sections {
		if path := tools.SectionPath(section); path != "" && r.Withheld(path) {
			header, _, _ := strings.Cut(section, "\n")
			b.WriteString(header)
			b.WriteString("\n" + placeholder + " (file content withheld by path policy)\n")
			total++
			continue
		}
		redacted, n := r.Secrets(section)
		b.WriteString(redacted)
		total += n
	}
	return b.String(), total
}

// File redacts the contents of a single file read for context.
func (r *Redactor) File(path, content string) (string, int) {
	if r.Withheld(path) {
		return placeholder + " (file content withheld by path policy)\n", 1
	}
	return r.Secrets(content)
}
