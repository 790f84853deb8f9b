package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Diff is the immutable review input for one round.
type Diff struct {
	Text   string
	Files  []string
	Source string
	Target string
}

// Empty reports whether the branches have no differences.
func (d Diff) Empty() bool {
	return strings.TrimSpace(d.Text) == ""
}

// Range is the merge-base range the diff was computed from.
func (d Diff) Range() string {
	return d.Target + "..." + d.Source
}

// Options controls which paths a Provider reports.
type Options struct {
	// Exclude holds doublestar globs; matching files are dropped from diffs.
	Exclude []string
}

// Provider answers read-only queries about one repository.
type Provider struct {
	root    string
	exclude []string
}

// New opens the repository containing repo. It fails with a GitError when
// repo is not inside a git work tree.
func New(ctx context.Context, repo string, opts Options) (*Provider, error) {
	if repo == "" {
		repo = "."
	}
	abs, err := filepath.Abs(repo)
	if err != nil {
		return nil, &GitError{Op: "open", Ref: repo, Err: err}
	}
	top, err := gitOutput(ctx, abs, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, &GitError{Op: "open", Ref: repo, Err: fmt.Errorf("not a git repository: %w", err)}
	}
	root := strings.TrimSpace(top)
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	return &Provider{root: root, exclude: opts.Exclude}, nil
}

// Root returns the absolute repository root.
func (p *Provider) Root() string { return p.root }

// ValidateRefs checks that every ref resolves to a commit.
func (p *Provider) ValidateRefs(ctx context.Context, refs ...string) error {
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			return &GitError{Op: "rev-parse", Ref: ref, Err: errors.New("empty ref")}
		}
		if _, err := gitOutput(ctx, p.root, "rev-parse", "--verify", "--quiet", ref+"^{commit}"); err != nil {
			return &GitError{Op: "rev-parse", Ref: ref, Err: errors.New("ref does not resolve")}
		}
	}
	return nil
}

// GetDiff returns the changes on source since it diverged from target
// (git diff target...source).
func (p *Provider) GetDiff(ctx context.Context, source, target string) (Diff, error) {
	if err := p.ValidateRefs(ctx, target, source); err != nil {
		return Diff{}, err
	}
	text, err := gitOutput(ctx, p.root, "diff", target+"..."+source)
	if err != nil {
		return Diff{}, &GitError{Op: "diff", Ref: target + "..." + source, Err: err}
	}
	files, err := p.GetChangedFiles(ctx, source, target)
	if err != nil {
		return Diff{}, err
	}
	if len(p.exclude) > 0 {
		text = filterExcluded(text, p.exclude)
	}
	return Diff{Text: text, Files: files, Source: source, Target: target}, nil
}

// GetChangedFiles lists paths changed on source relative to the merge base
// with target, in git's order.
func (p *Provider) GetChangedFiles(ctx context.Context, source, target string) ([]string, error) {
	out, err := gitOutput(ctx, p.root, "diff", "--name-only", target+"..."+source)
	if err != nil {
		return nil, &GitError{Op: "diff --name-only", Ref: target + "..." + source, Err: err}
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || MatchesAny(line, p.exclude) {
			continue
		}
		files = append(files, line)
	}
	return files, nil
}

// GetBranches lists local and remote branch names.
func (p *Provider) GetBranches(ctx context.Context) ([]string, error) {
	out, err := gitOutput(ctx, p.root, "branch", "-a", "--format=%(refname:short)")
	if err != nil {
		return nil, &GitError{Op: "branch", Err: err}
	}
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

// MatchesAny returns true if the path matches any of the given doublestar
// patterns. Patterns without a slash also match the base name.
func MatchesAny(path string, patterns []string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, err := doublestar.Match(pattern, filepath.Base(path)); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// SplitDiffSections splits a unified diff into per-file sections.
func SplitDiffSections(diff string) []string {
	if strings.TrimSpace(diff) == "" {
		return nil
	}
	var sections []string
	var current strings.Builder
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if s := current.String(); strings.TrimSpace(s) != "" {
		sections = append(sections, s)
	}
	return sections
}

// SectionPath returns the post-image path of a diff section, or the
// pre-image path for deletions.
func SectionPath(section string) string {
	var minus string
	for _, line := range strings.Split(section, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ b/"):
			return strings.TrimPrefix(line, "+++ b/")
		case strings.HasPrefix(line, "--- a/"):
			minus = strings.TrimPrefix(line, "--- a/")
		}
	}
	return minus
}

func filterExcluded(diff string, excludes []string) string {
	var kept []string
	for _, section := range SplitDiffSections(diff) {
		path := SectionPath(section)
		if path == "" || !MatchesAny(path, excludes) {
			kept = append(kept, section)
		}
	}
	return strings.Join(kept, "")
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
