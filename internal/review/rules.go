package review

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules is a team policy pack loaded from --rules. The file is YAML; JSON is
// accepted as well.
type Rules struct {
	Focus             []string            `yaml:"focus,omitempty"`
	SeverityOverrides map[string]string   `yaml:"severityOverrides,omitempty"`
	Required          []RequiredCheck     `yaml:"required,omitempty"`
	Lenses            map[string][]string `yaml:"lenses,omitempty"`
}

// RequiredCheck is a policy check that should always be enforced.
type RequiredCheck struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// LoadRules loads a rules file from disk. Returns nil Rules and nil error if path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	for cat, sev := range rules.SeverityOverrides {
		if SeverityRank(Severity(strings.ToLower(sev))) == 0 {
			return nil, fmt.Errorf("rules file: invalid severity %q for category %q", sev, cat)
		}
		rules.SeverityOverrides[cat] = strings.ToLower(sev)
	}
	return &rules, nil
}

// promptSection returns additional prompt instructions for one lens.
func (r *Rules) promptSection(lens Lens) string {
	if r == nil {
		return ""
	}

	var b strings.Builder

	if len(r.Focus) > 0 {
		fmt.Fprintf(&b, "\nTeam focus areas: %s. Prioritize findings in these areas.\n",
			strings.Join(r.Focus, ", "))
	}

	if extra := r.Lenses[string(lens)]; len(extra) > 0 {
		b.WriteString("\nAdditional checks for this review:\n")
		for _, item := range extra {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}

	if len(r.SeverityOverrides) > 0 {
		cats := make([]string, 0, len(r.SeverityOverrides))
		for cat := range r.SeverityOverrides {
			cats = append(cats, cat)
		}
		sort.Strings(cats)
		b.WriteString("\nSeverity policy:\n")
		for _, cat := range cats {
			fmt.Fprintf(&b, "- %s findings should be rated as %s severity.\n", cat, r.SeverityOverrides[cat])
		}
	}

	if len(r.Required) > 0 {
		b.WriteString("\nRequired checks (always evaluate these):\n")
		for _, req := range r.Required {
			fmt.Fprintf(&b, "- [%s] %s\n", req.ID, req.Text)
		}
	}

	return b.String()
}

// applySeverityOverrides enforces the severity policy on freshly parsed
// findings, before the worker hands them back.
func (r *Rules) applySeverityOverrides(findings []Finding) {
	if r == nil || len(r.SeverityOverrides) == 0 {
		return
	}
	for i := range findings {
		if override, ok := r.SeverityOverrides[string(findings[i].Category)]; ok {
			findings[i].Severity = Severity(override)
		}
	}
}
