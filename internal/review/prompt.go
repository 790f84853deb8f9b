package review

import (
	"fmt"
	"strings"
)

const outputContract = `You MUST respond with ONLY a JSON array of findings. No markdown, no explanation, no preamble. Just the JSON array.

Each finding must have this exact structure:
{
  "severity": "critical|high|medium|low|info",
  "category": "bug|security|performance|concurrency|error-handling|design|maintainability|style|docs|testing",
  "title": "Short descriptive title",
  "file": "relative/file/path",
  "line_start": 1,
  "line_end": 1,
  "description": "What is wrong and why it matters",
  "suggested_fix": "How to fix it, with code if helpful (optional)"
}

Use "style" only for purely cosmetic issues. Omit line_start and line_end when the issue is not tied to specific lines.
If there are no issues, respond with an empty array: []`

// SystemPrompt returns the system prompt for one lens.
func SystemPrompt(spec LensSpec, rules *Rules) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert code reviewer on a review team. Your lens is %s.\n\n", strings.ToLower(spec.Title))
	b.WriteString("Rules:\n")
	b.WriteString("1. Only review the changes shown in the diff. Surrounding file content is context, not a review target.\n")
	b.WriteString("2. Stay within your lens. Other reviewers cover other concerns.\n")
	b.WriteString("3. Be concise and actionable. Reference line numbers in the new version of the file.\n")
	b.WriteString("4. Rate severity as critical (must never merge), high, medium, low, or info.\n\n")
	b.WriteString("Analyze the diff and report on:\n")
	for _, item := range spec.Focus {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	if section := rules.promptSection(spec.Lens); section != "" {
		b.WriteString(section)
	}
	b.WriteString("\n")
	b.WriteString(outputContract)
	return b.String()
}

// buildUserPrompt renders the user message for one chunk of input.
func buildUserPrompt(in Input, diff string, files []string, fileContext string) string {
	var b strings.Builder

	if in.Kind == RoundFollowUp {
		b.WriteString("The developer has follow-up feedback on a previous review round.\n\n")
		b.WriteString("--- FEEDBACK ---\n")
		b.WriteString(strings.TrimSpace(in.Question))
		b.WriteString("\n--- END FEEDBACK ---\n\n")
		if in.Prior != "" {
			b.WriteString("Summary of the previous round:\n")
			b.WriteString(in.Prior)
			b.WriteString("\n\n")
		}
		b.WriteString("Re-review the change with this feedback in mind. Report the findings that still apply, ")
		b.WriteString("including earlier ones you still consider valid. Findings you omit are treated as resolved.\n\n")
	} else {
		b.WriteString("Review the following code diff.\n\n")
	}

	if in.Diff.Source != "" || in.Diff.Target != "" {
		fmt.Fprintf(&b, "Comparing %s against %s.\n", in.Diff.Source, in.Diff.Target)
	}

	if langs := detectLanguages(files); len(langs) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(langs, ", "))
	}

	if in.ProjectContext != "" {
		b.WriteString("\n--- PROJECT GUIDELINES ---\n")
		b.WriteString(in.ProjectContext)
		b.WriteString("--- END PROJECT GUIDELINES ---\n")
	}

	if fileContext != "" {
		b.WriteString("\n--- CHANGED FILE CONTENTS ---\n")
		b.WriteString(fileContext)
		b.WriteString("--- END CHANGED FILE CONTENTS ---\n")
	}

	if diff != "" {
		b.WriteString("\n--- BEGIN DIFF ---\n")
		b.WriteString(diff)
		b.WriteString("\n--- END DIFF ---\n")
	} else if len(files) > 0 {
		fmt.Fprintf(&b, "\nChanged files: %s\n", strings.Join(files, ", "))
	}

	return b.String()
}

func repairPrompt(parseErr error, previous string) string {
	return fmt.Sprintf(
		"Your previous response was not valid JSON. The error was: %s\n\nPlease fix and respond with ONLY a valid JSON array of findings.\n\nPrevious response:\n%s",
		parseErr.Error(), previous,
	)
}

var langByExt = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript/React",
	".jsx":   "JavaScript/React",
	".rs":    "Rust",
	".java":  "Java",
	".rb":    "Ruby",
	".cpp":   "C++",
	".c":     "C",
	".h":     "C/C++",
	".cs":    "C#",
	".php":   "PHP",
	".swift": "Swift",
	".kt":    "Kotlin",
	".sql":   "SQL",
	".sh":    "Shell",
	".yaml":  "YAML",
	".yml":   "YAML",
	".json":  "JSON",
	".tf":    "Terraform",
}

func detectLanguages(files []string) []string {
	seen := make(map[string]bool)
	var langs []string
	for _, f := range files {
		i := strings.LastIndex(f, ".")
		if i < 0 {
			continue
		}
		if lang, ok := langByExt[f[i:]]; ok && !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	return langs
}
