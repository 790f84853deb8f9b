package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidate_KeepsHigherSeverity(t *testing.T) {
	findings := []Finding{
		{ID: "a", Lens: LensQuality, Severity: SeverityLow, Path: "auth.py", Lines: lines(42, 42), Description: "Hardcoded password."},
		{ID: "b", Lens: LensSecurityPerformance, Severity: SeverityHigh, Path: "auth.py", Lines: lines(40, 44), Description: "hardcoded   PASSWORD"},
	}
	kept, removed := Consolidate(findings, DefaultSimilarity)
	require.Len(t, kept, 1)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "b", kept[0].ID)
}

func TestConsolidate_TiePrefersSuggestedFix(t *testing.T) {
	findings := []Finding{
		{ID: "a", Severity: SeverityMedium, Path: "db.go", Lines: lines(10, 12), Description: "Query built by string concatenation"},
		{ID: "b", Severity: SeverityMedium, Path: "db.go", Lines: lines(12, 12), Description: "query built by string concatenation", SuggestedFix: "Use placeholders"},
	}
	kept, _ := Consolidate(findings, DefaultSimilarity)
	require.Len(t, kept, 1)
	assert.Equal(t, "b", kept[0].ID)

	// Full tie: the earlier one stays.
	findings[1].SuggestedFix = ""
	kept, _ = Consolidate(findings, DefaultSimilarity)
	require.Len(t, kept, 1)
	assert.Equal(t, "a", kept[0].ID)
}

func TestConsolidate_SurvivorTakesFirstPosition(t *testing.T) {
	findings := []Finding{
		{ID: "dup-low", Severity: SeverityLow, Path: "a.go", Lines: lines(1, 1), Description: "nil map write"},
		{ID: "other", Severity: SeverityInfo, Path: "b.go", Description: "typo"},
		{ID: "dup-high", Severity: SeverityHigh, Path: "a.go", Lines: lines(1, 1), Description: "Nil map write!"},
	}
	kept, removed := Consolidate(findings, DefaultSimilarity)
	assert.Equal(t, 1, removed)
	require.Len(t, kept, 2)
	assert.Equal(t, "dup-high", kept[0].ID)
	assert.Equal(t, "other", kept[1].ID)
}

func TestConsolidate_NotDuplicates(t *testing.T) {
	base := Finding{Severity: SeverityHigh, Path: "a.go", Lines: lines(10, 12), Description: "unchecked error"}

	tests := []struct {
		name  string
		other Finding
	}{
		{"different file", Finding{Severity: SeverityHigh, Path: "b.go", Lines: lines(10, 12), Description: "unchecked error"}},
		{"disjoint lines", Finding{Severity: SeverityHigh, Path: "a.go", Lines: lines(13, 20), Description: "unchecked error"}},
		{"one without lines", Finding{Severity: SeverityHigh, Path: "a.go", Description: "unchecked error"}},
		{"different description", Finding{Severity: SeverityHigh, Path: "a.go", Lines: lines(11, 11), Description: "goroutine leak on early return"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, removed := Consolidate([]Finding{base, tt.other}, DefaultSimilarity)
			assert.Len(t, kept, 2)
			assert.Zero(t, removed)
		})
	}
}

func TestConsolidate_BothWithoutLines(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityLow, Path: "README.md", Description: "Outdated install steps"},
		{Severity: SeverityLow, Path: "README.md", Description: "outdated install steps"},
	}
	kept, removed := Consolidate(findings, DefaultSimilarity)
	assert.Len(t, kept, 1)
	assert.Equal(t, 1, removed)
}

func TestConsolidate_SimilarityThreshold(t *testing.T) {
	findings := []Finding{
		{Severity: SeverityHigh, Path: "login.go", Lines: lines(5, 5), Description: "Hardcoded password in login handler"},
		{Severity: SeverityHigh, Path: "login.go", Lines: lines(5, 5), Description: "Hardcoded password in the login handler"},
	}

	kept, _ := Consolidate(findings, DefaultSimilarity)
	assert.Len(t, kept, 1, "near-identical wording merges at the default threshold")

	kept, _ = Consolidate(findings, 1)
	assert.Len(t, kept, 2, "threshold 1 merges exact matches only")
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("abc", "abc"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.InDelta(t, 0.75, Similarity("abcd", "abce"), 1e-9)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "hard coded password", normalizeText("  Hard-coded   PASSWORD!! "))
	assert.Equal(t, "", normalizeText("..."))
}
