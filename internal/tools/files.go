package tools

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxFileBytes is the read cap when callers pass no limit.
const DefaultMaxFileBytes = 50 * 1024

// skipDirs are never descended into by FindFile.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".build":       true,
	".venv":        true,
	"venv":         true,
	".tox":         true,
	"Pods":         true,
	"DerivedData":  true,
}

// projectContextFiles are agent instruction files read for review context.
var projectContextFiles = []string{"AGENTS.md", "CLAUDE.md"}

// ReadFile returns the contents of path, relative to the repository root.
// Paths that resolve outside the repository and files larger than maxBytes
// fail with a ValidationError.
func (p *Provider) ReadFile(path string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(p.root, path)
	}
	full = filepath.Clean(full)
	if !p.contains(full) {
		return "", &ValidationError{Path: path, Reason: "path resolves outside the repository"}
	}

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if !p.contains(resolved) {
		return "", &ValidationError{Path: path, Reason: "path resolves outside the repository"}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return "", &ValidationError{Path: path, Reason: "is a directory"}
	}
	if info.Size() > maxBytes {
		return "", &ValidationError{Path: path, Reason: fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), maxBytes)}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// FindFile returns repository-relative paths matching pattern, in walk order.
// A pattern without a slash is matched against base names as well.
func (p *Provider) FindFile(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, &ValidationError{Path: pattern, Reason: "invalid glob pattern"}
	}
	var matches []string
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		if d.IsDir() {
			if path != p.root && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return nil
		}
		if MatchesAny(rel, []string{pattern}) {
			matches = append(matches, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", pattern, err)
	}
	return matches, nil
}

// ProjectContext returns the concatenated contents of AGENTS.md and
// CLAUDE.md, preferring the repository root copies. Files that cannot be
// read within maxBytes are skipped.
func (p *Provider) ProjectContext(maxBytes int64) string {
	var b strings.Builder
	for _, name := range projectContextFiles {
		path := name
		if _, err := os.Stat(filepath.Join(p.root, name)); err != nil {
			found, err := p.FindFile(name)
			if err != nil || len(found) == 0 {
				continue
			}
			path = found[0]
		}
		content, err := p.ReadFile(path, maxBytes)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "### %s\n%s\n", path, strings.TrimSpace(content))
	}
	return b.String()
}

func (p *Provider) contains(path string) bool {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
