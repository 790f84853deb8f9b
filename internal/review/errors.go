package review

import (
	"errors"
	"fmt"
	"strings"
)

// WorkerError reports that one lens could not produce findings. It does not
// abort sibling workers.
type WorkerError struct {
	Lens Lens
	Err  error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("%s lens: %v", e.Lens, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// RoundError reports that every worker failed, so the round has no verdict.
type RoundError struct {
	Round  int
	Errors []error
}

func (e *RoundError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("round %d: all reviewers failed: %s", e.Round, strings.Join(msgs, "; "))
}

func (e *RoundError) Unwrap() []error { return e.Errors }

// IsRoundError reports whether err is or wraps a RoundError.
func IsRoundError(err error) bool {
	var re *RoundError
	return errors.As(err, &re)
}
