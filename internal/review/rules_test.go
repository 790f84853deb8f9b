package review

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRules_Empty(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Nil(t, rules)
}

func TestLoadRules_YAML(t *testing.T) {
	path := writeRules(t, "rules.yaml", `
focus: [security, correctness]
severityOverrides:
  style: LOW
required:
  - id: go-errors
    text: Ensure errors are wrapped with context
lenses:
  security_performance:
    - Check every SQL statement uses placeholders
`)
	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"security", "correctness"}, rules.Focus)
	assert.Equal(t, "low", rules.SeverityOverrides["style"])
	require.Len(t, rules.Required, 1)
	assert.Equal(t, "go-errors", rules.Required[0].ID)

	sec := rules.promptSection(LensSecurityPerformance)
	assert.Contains(t, sec, "placeholders")
	assert.Contains(t, sec, "[go-errors]")
	assert.Contains(t, sec, "style findings should be rated as low")
	assert.NotContains(t, rules.promptSection(LensQuality), "placeholders")
}

func TestLoadRules_JSON(t *testing.T) {
	path := writeRules(t, "rules.json", `{"focus": ["performance"], "severityOverrides": {"security": "high"}}`)
	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"performance"}, rules.Focus)
	assert.Equal(t, "high", rules.SeverityOverrides["security"])
}

func TestLoadRules_Invalid(t *testing.T) {
	_, err := LoadRules(writeRules(t, "bad.yaml", "severityOverrides:\n  style: urgent\n"))
	assert.ErrorContains(t, err, "invalid severity")

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRules_ApplySeverityOverrides(t *testing.T) {
	rules := &Rules{SeverityOverrides: map[string]string{"style": "info"}}
	findings := []Finding{
		{Category: CategoryStyle, Severity: SeverityHigh},
		{Category: CategoryBug, Severity: SeverityHigh},
	}
	rules.applySeverityOverrides(findings)
	assert.Equal(t, SeverityInfo, findings[0].Severity)
	assert.Equal(t, SeverityHigh, findings[1].Severity)

	var none *Rules
	none.applySeverityOverrides(findings)
	assert.Empty(t, none.promptSection(LensQuality))
}
