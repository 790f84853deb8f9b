package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/tribunal/internal/review"
)

const (
	followUpPrompt = "Enter follow-up feedback for another review round, or 'q' to end the session."
	retryPrompt    = "Enter 'r' to retry the round, or 'q' to end the session."
	completeLine   = "Review session complete."
)

// ErrInterrupted is returned when the session context is cancelled, either
// mid-round or while waiting for input. No partial verdict is emitted.
var ErrInterrupted = errors.New("review session interrupted")

// Coordinator runs rounds against the session state.
type Coordinator interface {
	RunReview(ctx context.Context, st *review.State) (*review.Round, error)
	FollowUp(ctx context.Context, question string, st *review.State) (*review.Round, error)
}

// Recorder persists completed rounds. Failures are logged and never end the
// session.
type Recorder interface {
	SaveRound(ctx context.Context, st *review.State, r *review.Round) error
}

// RoundHandler receives each completed round, typically to render it.
type RoundHandler func(st *review.State, r *review.Round) error

// Loop drives one review session: the initial review, then follow-up rounds
// until the user ends it.
type Loop struct {
	coord       Coordinator
	in          *lineReader
	out         io.Writer
	onRound     RoundHandler
	recorder    Recorder
	log         *slog.Logger
	interactive bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithRoundHandler sets the callback for completed rounds.
func WithRoundHandler(h RoundHandler) Option {
	return func(l *Loop) { l.onRound = h }
}

// WithRecorder appends every completed round to r.
func WithRecorder(r Recorder) Option {
	return func(l *Loop) { l.recorder = r }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loop) {
		if log != nil {
			l.log = log
		}
	}
}

// NonInteractive runs the initial review only and never reads input.
func NonInteractive() Option {
	return func(l *Loop) { l.interactive = false }
}

// New creates a Loop reading follow-ups from in and writing prompts to out.
func New(coord Coordinator, in io.Reader, out io.Writer, opts ...Option) *Loop {
	l := &Loop{
		coord:       coord,
		in:          newLineReader(in),
		out:         out,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		interactive: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// errEnded signals that the user chose to end the session after a failed
// round.
var errEnded = errors.New("session ended")

// Run executes the session until a terminator, end of input or an error.
// A nil error means the session ended normally.
func (l *Loop) Run(ctx context.Context, st *review.State) error {
	err := l.attempt(ctx, st, func(ctx context.Context) (*review.Round, error) {
		return l.coord.RunReview(ctx, st)
	})
	switch {
	case errors.Is(err, errEnded):
		return l.complete()
	case err != nil:
		return err
	}

	for l.interactive {
		l.printf("\n%s\n> ", followUpPrompt)
		line, err := l.in.readLine(ctx)
		if errors.Is(err, io.EOF) {
			l.printf("\n")
			break
		}
		if err != nil {
			return l.readErr(ctx, err)
		}
		if IsTerminator(line) {
			break
		}
		question := strings.TrimSpace(line)
		err = l.attempt(ctx, st, func(ctx context.Context) (*review.Round, error) {
			return l.coord.FollowUp(ctx, question, st)
		})
		if errors.Is(err, errEnded) {
			break
		}
		if err != nil {
			return err
		}
	}
	return l.complete()
}

// attempt runs one round, offering a retry whenever every reviewer failed.
func (l *Loop) attempt(ctx context.Context, st *review.State, run func(context.Context) (*review.Round, error)) error {
	for {
		start := time.Now()
		round, err := run(ctx)
		if err == nil {
			l.log.Info("round complete",
				"round", round.Number,
				"kind", string(round.Kind),
				"decision", string(round.Verdict.Decision),
				"findings", round.Verdict.Total(),
				"elapsed", time.Since(start))
			return l.emit(ctx, st, round)
		}
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		if !review.IsRoundError(err) {
			return err
		}

		l.log.Warn("round failed", "error", err)
		l.printf("\nRound failed: %v\n", err)
		if !l.interactive {
			return err
		}
		l.printf("%s\n> ", retryPrompt)
		line, rerr := l.in.readLine(ctx)
		if errors.Is(rerr, io.EOF) {
			l.printf("\n")
			return errEnded
		}
		if rerr != nil {
			return l.readErr(ctx, rerr)
		}
		if !IsRetry(line) {
			return errEnded
		}
	}
}

func (l *Loop) emit(ctx context.Context, st *review.State, r *review.Round) error {
	if l.onRound != nil {
		if err := l.onRound(st, r); err != nil {
			return fmt.Errorf("rendering round %d: %w", r.Number, err)
		}
	}
	if l.recorder != nil {
		if err := l.recorder.SaveRound(ctx, st, r); err != nil {
			l.log.Warn("saving round to transcript", "round", r.Number, "error", err)
		}
	}
	return nil
}

func (l *Loop) readErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ErrInterrupted
	}
	return fmt.Errorf("reading input: %w", err)
}

func (l *Loop) complete() error {
	l.printf("\n%s\n", completeLine)
	return nil
}

func (l *Loop) printf(format string, args ...any) {
	fmt.Fprintf(l.out, format, args...)
}

// IsTerminator reports whether input ends the session: q, quit, exit, done
// or nothing at all, case-insensitively and ignoring surrounding space.
func IsTerminator(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "q", "quit", "exit", "done", "":
		return true
	}
	return false
}

// IsRetry reports whether input asks to retry a failed round.
func IsRetry(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "r", "retry":
		return true
	}
	return false
}
