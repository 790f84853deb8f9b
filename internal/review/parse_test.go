package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFindings(t *testing.T) {
	content := `[
  {"severity": "critical", "category": "security", "title": "Hardcoded credential",
   "file": "./auth.py", "line_start": 42, "line_end": 42,
   "description": "Password literal in source", "suggested_fix": "Read it from the environment"},
  {"severity": "low", "category": "style", "file": "util.go", "description": "Inconsistent naming"}
]`
	findings, err := parseFindings(LensSecurityPerformance, content)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	f := findings[0]
	assert.Equal(t, LensSecurityPerformance, f.Lens)
	assert.Equal(t, SeverityCritical, f.Severity)
	assert.Equal(t, CategorySecurity, f.Category)
	assert.Equal(t, "auth.py", f.Path)
	assert.Equal(t, &LineRange{Start: 42, End: 42}, f.Lines)
	assert.Equal(t, "Read it from the environment", f.SuggestedFix)
	assert.Len(t, f.ID, 8)

	assert.Nil(t, findings[1].Lines)
	assert.Equal(t, "util.go", findings[1].Location())
}

func TestParseFindings_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty array", "[]", 0},
		{"code fence", "```json\n[{\"file\":\"a.go\",\"description\":\"x\"}]\n```", 1},
		{"wrapper object", `{"findings":[{"file":"a.go","description":"x"},{"file":"b.go","description":"y"}]}`, 2},
		{"prose around array", "Here is my review:\n[{\"file\":\"a.go\",\"description\":\"x\"}]\nHope this helps.", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, err := parseFindings(LensQuality, tt.content)
			require.NoError(t, err)
			assert.Len(t, findings, tt.want)
		})
	}
}

func TestParseFindings_AlternateFieldNames(t *testing.T) {
	content := `[{"severity":"warning","path":"db.go","startLine":7,"endLine":9,"message":"N+1 query","suggestion":"Batch it"}]`
	findings, err := parseFindings(LensSecurityPerformance, content)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, SeverityMedium, findings[0].Severity)
	assert.Equal(t, "db.go:7-9", findings[0].Location())
	assert.Equal(t, "N+1 query", findings[0].Description)
	assert.Equal(t, "Batch it", findings[0].SuggestedFix)
}

func TestParseFindings_LineEndBeforeStart(t *testing.T) {
	findings, err := parseFindings(LensQuality, `[{"file":"a.go","line":12,"line_end":3,"description":"x"}]`)
	require.NoError(t, err)
	assert.Equal(t, &LineRange{Start: 12, End: 12}, findings[0].Lines)
}

func TestParseFindings_Errors(t *testing.T) {
	_, err := parseFindings(LensQuality, "I found no issues.")
	assert.Error(t, err)

	_, err = parseFindings(LensQuality, `[{"file":"a.go","severity":"high"}]`)
	assert.ErrorIs(t, err, errMissingDescription)
}

func TestParseSeverity(t *testing.T) {
	tests := map[string]Severity{
		"Critical": SeverityCritical,
		"blocker":  SeverityCritical,
		"HIGH":     SeverityHigh,
		"error":    SeverityHigh,
		"medium":   SeverityMedium,
		"warning":  SeverityMedium,
		"minor":    SeverityLow,
		"info":     SeverityInfo,
		"bogus":    SeverityInfo,
		"":         SeverityInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseSeverity(in), in)
	}
}

func TestFindingID_Stable(t *testing.T) {
	a := Finding{Lens: LensQuality, Path: "a.go", Lines: lines(3, 3), Description: "Unchecked error"}
	b := a
	b.Description = "unchecked   ERROR."
	assert.Equal(t, findingID(a), findingID(b))

	b.Lens = LensSecurityPerformance
	assert.NotEqual(t, findingID(a), findingID(b))
}
