package tools

import "fmt"

// GitError reports an invalid repository or an unresolvable ref.
type GitError struct {
	Op  string
	Ref string
	Err error
}

func (e *GitError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("git %s %q: %v", e.Op, e.Ref, e.Err)
	}
	return fmt.Sprintf("git %s: %v", e.Op, e.Err)
}

func (e *GitError) Unwrap() error { return e.Err }

// ValidationError reports a denied file operation: a path that escapes the
// repository, or a file above the size cap.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}
