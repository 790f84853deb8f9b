package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dshills/tribunal/internal/providers"
	"github.com/dshills/tribunal/internal/session"
)

// usageError marks bad flags or arguments.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// configError marks an unusable configuration: bad file, bad value or bad
// rules.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// usageArgs wraps a cobra argument validator so its failures map to the
// usage exit code.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func exitCode(err error) int {
	var (
		ue *usageError
		ce *configError
		pe *providers.ConfigError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, session.ErrInterrupted):
		return ExitInterrupted
	case errors.As(err, &ue):
		return ExitUsageError
	case errors.As(err, &ce), errors.As(err, &pe), providers.IsAuthError(err):
		return ExitConfigError
	default:
		return ExitRuntimeError
	}
}
