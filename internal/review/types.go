package review

import (
	"fmt"
	"strings"
	"time"
)

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every severity, most severe first.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// SeverityRank returns a numeric rank for sorting (higher = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// ParseSeverity maps the labels models tend to use onto the five levels.
// Anything unrecognised becomes info.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "blocker", "severe":
		return SeverityCritical
	case "high", "error", "major":
		return SeverityHigh
	case "medium", "moderate", "warning", "warn":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Lens names the analytical focus of a reviewer worker.
type Lens string

const (
	LensQuality             Lens = "quality"
	LensSecurityPerformance Lens = "security_performance"
)

// Category is the kind of issue a finding describes.
type Category string

const (
	CategoryBug             Category = "bug"
	CategorySecurity        Category = "security"
	CategoryPerformance     Category = "performance"
	CategoryConcurrency     Category = "concurrency"
	CategoryErrorHandling   Category = "error-handling"
	CategoryDesign          Category = "design"
	CategoryMaintainability Category = "maintainability"
	CategoryStyle           Category = "style"
	CategoryDocs            Category = "docs"
	CategoryTesting         Category = "testing"
)

// LineRange is an inclusive range of line numbers in the post-image.
type LineRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

func (r LineRange) String() string {
	if r.End <= r.Start {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Overlaps reports whether the two ranges share at least one line.
func (r LineRange) Overlaps(o LineRange) bool {
	return r.Start <= o.last() && o.Start <= r.last()
}

func (r LineRange) last() int {
	if r.End < r.Start {
		return r.Start
	}
	return r.End
}

// Finding is a single issue reported by one reviewer worker. Findings are
// not modified after a worker returns them.
type Finding struct {
	ID           string     `json:"id" yaml:"id"`
	Lens         Lens       `json:"lens" yaml:"lens"`
	Severity     Severity   `json:"severity" yaml:"severity"`
	Category     Category   `json:"category,omitempty" yaml:"category,omitempty"`
	Title        string     `json:"title,omitempty" yaml:"title,omitempty"`
	Path         string     `json:"path" yaml:"path"`
	Lines        *LineRange `json:"lines,omitempty" yaml:"lines,omitempty"`
	Description  string     `json:"description" yaml:"description"`
	SuggestedFix string     `json:"suggestedFix,omitempty" yaml:"suggestedFix,omitempty"`
}

// Location renders path and optional line reference as path:line.
func (f Finding) Location() string {
	path := f.Path
	if path == "" {
		path = "(general)"
	}
	if f.Lines == nil {
		return path
	}
	return path + ":" + f.Lines.String()
}

// Decision is the final verdict token of a round.
type Decision string

const (
	DecisionApprove         Decision = "APPROVE"
	DecisionRequestChanges  Decision = "REQUEST_CHANGES"
	DecisionNeedsDiscussion Decision = "NEEDS_DISCUSSION"
)

// Verdict is the consolidated, categorized and decided outcome of one round.
type Verdict struct {
	ExecutiveSummary      string    `json:"executiveSummary" yaml:"executiveSummary"`
	MustFix               []Finding `json:"mustFix" yaml:"mustFix"`
	ShouldFix             []Finding `json:"shouldFix" yaml:"shouldFix"`
	RefactorOpportunities []Finding `json:"refactorOpportunities" yaml:"refactorOpportunities"`
	Decision              Decision  `json:"decision" yaml:"decision"`
	Degradations          []string  `json:"degradations,omitempty" yaml:"degradations,omitempty"`
	DuplicatesRemoved     int       `json:"duplicatesRemoved" yaml:"duplicatesRemoved"`
}

// Total returns the number of findings across all categories.
func (v *Verdict) Total() int {
	return len(v.MustFix) + len(v.ShouldFix) + len(v.RefactorOpportunities)
}

// LensResult is what one worker produced in one round.
type LensResult struct {
	Lens     Lens          `json:"lens" yaml:"lens"`
	Findings []Finding     `json:"findings" yaml:"findings"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"durationNs" yaml:"durationNs"`
	err      error
}

// Failed reports whether the worker failed this round.
func (r LensResult) Failed() bool { return r.err != nil || r.Error != "" }

// Err returns the worker failure, if any.
func (r LensResult) Err() error { return r.err }

// RoundKind distinguishes the initial review from follow-ups.
type RoundKind string

const (
	RoundReview   RoundKind = "review"
	RoundFollowUp RoundKind = "follow_up"
)

// Round is one dispatch, consolidate and decide cycle.
type Round struct {
	Number     int          `json:"number" yaml:"number"`
	Kind       RoundKind    `json:"kind" yaml:"kind"`
	Input      string       `json:"input" yaml:"input"`
	Results    []LensResult `json:"results" yaml:"results"`
	Verdict    *Verdict     `json:"verdict" yaml:"verdict"`
	StartedAt  time.Time    `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt" yaml:"finishedAt"`
}

// Title is the heading used when rendering the round.
func (r *Round) Title() string {
	if r.Kind == RoundFollowUp {
		return "Follow-up"
	}
	return "Code Review"
}
