package review

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(findings []Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.ID
	}
	return out
}

func TestCategorize(t *testing.T) {
	findings := []Finding{
		{ID: "low-a", Severity: SeverityLow, Path: "a.go"},
		{ID: "crit-z", Severity: SeverityCritical, Path: "z.go"},
		{ID: "high-b", Severity: SeverityHigh, Path: "b.go"},
		{ID: "med-c", Severity: SeverityMedium, Path: "c.go"},
		{ID: "crit-a", Severity: SeverityCritical, Path: "a.go"},
		{ID: "info-x", Severity: SeverityInfo, Path: "x.go"},
		{ID: "style-d", Severity: SeverityMedium, Category: CategoryStyle, Path: "d.go"},
	}

	must, should, refactor := Categorize(findings)
	assert.Equal(t, []string{"crit-a", "crit-z", "high-b"}, ids(must))
	assert.Equal(t, []string{"med-c"}, ids(should))
	assert.Equal(t, []string{"style-d", "low-a", "info-x"}, ids(refactor))
	assert.Equal(t, "low-a", findings[0].ID, "input is not reordered")
}

func TestCategorize_StableForTies(t *testing.T) {
	findings := []Finding{
		{ID: "first", Severity: SeverityHigh, Path: "a.go"},
		{ID: "second", Severity: SeverityHigh, Path: "a.go"},
		{ID: "third", Severity: SeverityHigh, Path: "a.go"},
	}
	must, _, _ := Categorize(findings)
	assert.Equal(t, []string{"first", "second", "third"}, ids(must))
}

func TestCategorize_EmptySetsAreNonNil(t *testing.T) {
	must, should, refactor := Categorize(nil)
	assert.NotNil(t, must)
	assert.NotNil(t, should)
	assert.NotNil(t, refactor)
}

func TestDecide(t *testing.T) {
	one := []Finding{{}}
	assert.Equal(t, DecisionRequestChanges, Decide(one, one))
	assert.Equal(t, DecisionRequestChanges, Decide(one, nil))
	assert.Equal(t, DecisionNeedsDiscussion, Decide(nil, one))
	assert.Equal(t, DecisionApprove, Decide(nil, nil))
}

func TestJudge_HardcodedCredentialScenario(t *testing.T) {
	results := []LensResult{
		{Lens: LensQuality, Findings: []Finding{}},
		{Lens: LensSecurityPerformance, Findings: []Finding{{
			ID: "cred", Lens: LensSecurityPerformance, Severity: SeverityCritical,
			Category: CategorySecurity, Path: "auth.py", Lines: lines(42, 42),
			Description: "Hardcoded credential",
		}}},
	}

	v, err := Judge(results, DefaultSimilarity)
	require.NoError(t, err)
	require.Len(t, v.MustFix, 1)
	assert.Equal(t, "auth.py", v.MustFix[0].Path)
	assert.Empty(t, v.ShouldFix)
	assert.Equal(t, DecisionRequestChanges, v.Decision)
	assert.Contains(t, v.ExecutiveSummary, "auth.py:42")
}

func TestJudge_CommentFormattingScenario(t *testing.T) {
	results := []LensResult{
		{Lens: LensQuality, Findings: []Finding{{ID: "q", Severity: SeverityInfo, Path: "util.go", Lines: lines(3, 3), Description: "Comment wraps oddly"}}},
		{Lens: LensSecurityPerformance, Findings: []Finding{{ID: "s", Severity: SeverityInfo, Path: "util.go", Lines: lines(9, 9), Description: "Comment could mention units"}}},
	}

	v, err := Judge(results, DefaultSimilarity)
	require.NoError(t, err)
	assert.Empty(t, v.MustFix)
	assert.Empty(t, v.ShouldFix)
	assert.Len(t, v.RefactorOpportunities, 2)
	assert.Equal(t, DecisionApprove, v.Decision)
}

func TestJudge_PartialFailure(t *testing.T) {
	cause := errors.New("upstream timeout")
	results := []LensResult{
		{Lens: LensQuality, Findings: []Finding{{ID: "q", Lens: LensQuality, Severity: SeverityMedium, Path: "a.go", Description: "long function"}}},
		{Lens: LensSecurityPerformance, err: &WorkerError{Lens: LensSecurityPerformance, Err: cause}, Error: "x"},
	}

	v, err := Judge(results, DefaultSimilarity)
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, ids(v.ShouldFix))
	require.Len(t, v.Degradations, 1)
	assert.Equal(t, "security_performance lens unavailable this round: upstream timeout", v.Degradations[0])
	assert.Contains(t, v.ExecutiveSummary, "Partial review")
	assert.Equal(t, DecisionNeedsDiscussion, v.Decision)
}

func TestJudge_AllFailed(t *testing.T) {
	results := []LensResult{
		{Lens: LensQuality, err: &WorkerError{Lens: LensQuality, Err: errors.New("a")}},
		{Lens: LensSecurityPerformance, Error: "stored failure"},
	}

	v, err := Judge(results, DefaultSimilarity)
	assert.Nil(t, v)
	var re *RoundError
	require.ErrorAs(t, err, &re)
	assert.Len(t, re.Errors, 2)

	var we *WorkerError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, LensQuality, we.Lens)
}

func TestJudge_NoWorkers(t *testing.T) {
	_, err := Judge(nil, DefaultSimilarity)
	assert.True(t, IsRoundError(err))
}

func TestJudge_Deterministic(t *testing.T) {
	results := []LensResult{
		{Lens: LensQuality, Findings: randomFindings(rand.New(rand.NewSource(7)), LensQuality, 30)},
		{Lens: LensSecurityPerformance, Findings: randomFindings(rand.New(rand.NewSource(8)), LensSecurityPerformance, 30)},
	}
	a, err := Judge(results, DefaultSimilarity)
	require.NoError(t, err)
	b, err := Judge(results, DefaultSimilarity)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestJudge_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		results := []LensResult{
			{Lens: LensQuality, Findings: randomFindings(rng, LensQuality, rng.Intn(6))},
			{Lens: LensSecurityPerformance, Findings: randomFindings(rng, LensSecurityPerformance, rng.Intn(6))},
		}
		v, err := Judge(results, DefaultSimilarity)
		require.NoError(t, err)

		for _, group := range [][]Finding{v.MustFix, v.ShouldFix, v.RefactorOpportunities} {
			for _, f := range group {
				assert.Contains(t, []Lens{LensQuality, LensSecurityPerformance}, f.Lens)
			}
		}

		switch {
		case len(v.MustFix) > 0:
			assert.Equal(t, DecisionRequestChanges, v.Decision)
		case len(v.ShouldFix) > 0:
			assert.Equal(t, DecisionNeedsDiscussion, v.Decision)
		default:
			assert.Equal(t, DecisionApprove, v.Decision)
		}

		total := len(results[0].Findings) + len(results[1].Findings)
		assert.Equal(t, total, v.Total()+v.DuplicatesRemoved)
	}
}

func randomFindings(rng *rand.Rand, lens Lens, n int) []Finding {
	paths := []string{"a.go", "b.go", "c.go"}
	descs := []string{"unchecked error", "nil dereference", "slow loop", "typo in comment"}
	out := make([]Finding, n)
	for i := range out {
		start := 1 + rng.Intn(20)
		out[i] = Finding{
			ID:          fmt.Sprintf("%s-%d", lens, i),
			Lens:        lens,
			Severity:    Severities[rng.Intn(len(Severities))],
			Path:        paths[rng.Intn(len(paths))],
			Lines:       lines(start, start+rng.Intn(3)),
			Description: descs[rng.Intn(len(descs))],
		}
	}
	return out
}

func TestSummarizeRound(t *testing.T) {
	r := &Round{Number: 1, Kind: RoundReview, Verdict: &Verdict{
		Decision: DecisionRequestChanges,
		MustFix:  []Finding{{Severity: SeverityCritical, Path: "auth.py", Lines: lines(42, 42), Title: "Hardcoded credential"}},
	}}
	s := SummarizeRound(r)
	assert.Contains(t, s, "Round 1 (Code Review) decision: REQUEST_CHANGES")
	assert.Contains(t, s, "- [critical] auth.py:42: Hardcoded credential")

	assert.Empty(t, SummarizeRound(nil))
	assert.Contains(t, SummarizeRound(&Round{Number: 2, Kind: RoundFollowUp, Verdict: &Verdict{Decision: DecisionApprove}}), "no findings")
}
