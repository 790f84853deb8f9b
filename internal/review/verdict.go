package review

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Categorize sorts findings by severity (most severe first), then file path,
// keeping input order for ties, and splits them into must fix, should fix and
// refactoring opportunities. Purely cosmetic findings below high severity are
// refactoring opportunities.
func Categorize(findings []Finding) (mustFix, shouldFix, refactor []Finding) {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := SeverityRank(sorted[i].Severity), SeverityRank(sorted[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return sorted[i].Path < sorted[j].Path
	})

	mustFix, shouldFix, refactor = []Finding{}, []Finding{}, []Finding{}
	for _, f := range sorted {
		switch {
		case f.Severity == SeverityCritical || f.Severity == SeverityHigh:
			mustFix = append(mustFix, f)
		case f.Severity == SeverityMedium && f.Category != CategoryStyle:
			shouldFix = append(shouldFix, f)
		default:
			refactor = append(refactor, f)
		}
	}
	return mustFix, shouldFix, refactor
}

// Decide maps the categorized sets to a decision.
func Decide(mustFix, shouldFix []Finding) Decision {
	switch {
	case len(mustFix) > 0:
		return DecisionRequestChanges
	case len(shouldFix) > 0:
		return DecisionNeedsDiscussion
	default:
		return DecisionApprove
	}
}

// Judge consolidates, categorizes and decides one round's worker results.
// Failed lenses become degradation notes; if every lens failed the result is
// a *RoundError and no verdict.
func Judge(results []LensResult, similarity float64) (*Verdict, error) {
	if len(results) == 0 {
		return nil, &RoundError{Errors: []error{errors.New("no reviewers configured")}}
	}

	var (
		all          []Finding
		failures     []error
		degradations []string
		consulted    []Lens
	)
	for _, r := range results {
		if r.Failed() {
			err := r.Err()
			if err == nil {
				err = errors.New(r.Error)
			}
			failures = append(failures, err)
			degradations = append(degradations, degradationNote(r.Lens, err))
			continue
		}
		consulted = append(consulted, r.Lens)
		all = append(all, r.Findings...)
	}
	if len(failures) == len(results) {
		return nil, &RoundError{Errors: failures}
	}

	kept, removed := Consolidate(all, similarity)
	mustFix, shouldFix, refactor := Categorize(kept)
	v := &Verdict{
		MustFix:               mustFix,
		ShouldFix:             shouldFix,
		RefactorOpportunities: refactor,
		Decision:              Decide(mustFix, shouldFix),
		Degradations:          degradations,
		DuplicatesRemoved:     removed,
	}
	v.ExecutiveSummary = Summarize(v, consulted)
	return v, nil
}

func degradationNote(lens Lens, err error) string {
	var we *WorkerError
	if errors.As(err, &we) {
		err = we.Err
	}
	return fmt.Sprintf("%s lens unavailable this round: %v", lens, err)
}

// Summarize writes the executive summary for v. It depends only on its
// arguments.
func Summarize(v *Verdict, consulted []Lens) string {
	var b strings.Builder

	names := make([]string, len(consulted))
	for i, l := range consulted {
		names[i] = string(l)
	}
	switch len(names) {
	case 0:
	case 1:
		fmt.Fprintf(&b, "Reviewed by the %s lens. ", names[0])
	default:
		fmt.Fprintf(&b, "Reviewed by the %s lenses. ", strings.Join(names, " and "))
	}

	if v.Total() == 0 {
		b.WriteString("No issues found.")
	} else {
		fmt.Fprintf(&b, "Found %s: %d must fix, %d should fix, %s.",
			plural(v.Total(), "issue", "issues"),
			len(v.MustFix), len(v.ShouldFix),
			plural(len(v.RefactorOpportunities), "refactoring opportunity", "refactoring opportunities"))
	}
	if v.DuplicatesRemoved > 0 {
		fmt.Fprintf(&b, " %s merged across lenses.", plural(v.DuplicatesRemoved, "duplicate", "duplicates"))
	}

	if len(v.MustFix) > 0 {
		top := v.MustFix[0]
		fmt.Fprintf(&b, "\n\nMost pressing: [%s] %s at %s.", top.Severity, headline(top), top.Location())
	} else if len(v.ShouldFix) > 0 {
		top := v.ShouldFix[0]
		fmt.Fprintf(&b, "\n\nWorth discussing: %s at %s.", headline(top), top.Location())
	}

	if len(v.Degradations) > 0 {
		fmt.Fprintf(&b, "\n\nPartial review: %s.", strings.Join(v.Degradations, "; "))
	}
	return b.String()
}

// SummarizeRound renders the previous round's verdict for a follow-up
// prompt.
func SummarizeRound(r *Round) string {
	if r == nil || r.Verdict == nil {
		return ""
	}
	const maxItems = 20

	var b strings.Builder
	fmt.Fprintf(&b, "Round %d (%s) decision: %s\n", r.Number, r.Title(), r.Verdict.Decision)
	n := 0
	for _, group := range [][]Finding{r.Verdict.MustFix, r.Verdict.ShouldFix, r.Verdict.RefactorOpportunities} {
		for _, f := range group {
			if n == maxItems {
				fmt.Fprintf(&b, "- ... and %d more\n", r.Verdict.Total()-maxItems)
				return b.String()
			}
			fmt.Fprintf(&b, "- [%s] %s: %s\n", f.Severity, f.Location(), headline(f))
			n++
		}
	}
	if n == 0 {
		b.WriteString("- no findings\n")
	}
	return b.String()
}

func headline(f Finding) string {
	if f.Title != "" {
		return f.Title
	}
	line, _, _ := strings.Cut(f.Description, "\n")
	return line
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
