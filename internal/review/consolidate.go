package review

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultSimilarity is the normalized description similarity at or above
// which two co-located findings are treated as the same issue.
const DefaultSimilarity = 0.85

// Consolidate merges findings from every lens into one list, dropping
// duplicates. The surviving instance of a duplicate pair is the more severe
// one, then the one carrying a suggested fix, then the earlier one; it takes
// the position of the first occurrence. It returns the kept findings and the
// number removed.
//
// similarity <= 0 selects DefaultSimilarity; similarity >= 1 means only
// descriptions identical after normalization are merged.
func Consolidate(findings []Finding, similarity float64) ([]Finding, int) {
	if similarity <= 0 {
		similarity = DefaultSimilarity
	}

	kept := make([]Finding, 0, len(findings))
	norms := make([]string, 0, len(findings))
	removed := 0

	for _, f := range findings {
		norm := normalizeText(f.Description)
		dup := -1
		for j := range kept {
			if isDuplicate(kept[j], norms[j], f, norm, similarity) {
				dup = j
				break
			}
		}
		if dup < 0 {
			kept = append(kept, f)
			norms = append(norms, norm)
			continue
		}
		removed++
		if preferred(f, kept[dup]) {
			kept[dup] = f
			norms[dup] = norm
		}
	}
	return kept, removed
}

// isDuplicate requires the same file, overlapping lines and similar
// descriptions. Findings without a line reference only match each other.
func isDuplicate(a Finding, na string, b Finding, nb string, threshold float64) bool {
	if a.Path != b.Path {
		return false
	}
	switch {
	case a.Lines == nil && b.Lines == nil:
	case a.Lines == nil || b.Lines == nil:
		return false
	case !a.Lines.Overlaps(*b.Lines):
		return false
	}
	if na == nb {
		return true
	}
	if threshold >= 1 {
		return false
	}
	return Similarity(na, nb) >= threshold
}

// preferred reports whether candidate should replace current.
func preferred(candidate, current Finding) bool {
	rc, rk := SeverityRank(candidate.Severity), SeverityRank(current.Severity)
	if rc != rk {
		return rc > rk
	}
	return candidate.SuggestedFix != "" && current.SuggestedFix == ""
}

// Similarity returns 1 minus the Levenshtein distance over the longer
// length, in runes.
func Similarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// normalizeText lowercases s and collapses punctuation and whitespace runs
// into single spaces.
func normalizeText(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}
