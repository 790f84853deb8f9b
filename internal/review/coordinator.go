package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/tribunal/internal/tools"
)

const tracerName = "github.com/dshills/tribunal/internal/review"

// Repo is the part of the tool provider the coordinator needs.
type Repo interface {
	GetDiff(ctx context.Context, source, target string) (tools.Diff, error)
	ProjectContext(maxBytes int64) string
}

// Observer is notified as workers and rounds complete.
type Observer interface {
	WorkerDone(lens Lens, elapsed time.Duration, findings int, err error)
	RoundDone(round *Round, err error)
}

// Coordinator fans a round out to every worker, waits for all of them and
// judges the combined result.
type Coordinator struct {
	repo         Repo
	workers      []Worker
	similarity   float64
	contextBytes int64
	log          *slog.Logger
	tracer       trace.Tracer
	observer     Observer
	now          func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSimilarity sets the dedup similarity threshold.
func WithSimilarity(s float64) Option {
	return func(c *Coordinator) { c.similarity = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTracer sets the tracer used for round and worker spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithObserver registers an observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// WithProjectContextBytes caps the AGENTS.md/CLAUDE.md context. Zero
// disables it.
func WithProjectContextBytes(n int64) Option {
	return func(c *Coordinator) { c.contextBytes = n }
}

// NewCoordinator creates a coordinator over workers, which run in the given
// order when results are reported.
func NewCoordinator(repo Repo, workers []Worker, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:         repo,
		workers:      workers,
		similarity:   DefaultSimilarity,
		contextBytes: tools.DefaultMaxFileBytes,
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lenses returns the lens of every worker in dispatch order.
func (c *Coordinator) Lenses() []Lens {
	out := make([]Lens, len(c.workers))
	for i, w := range c.workers {
		out[i] = w.Lens()
	}
	return out
}

// RunReview fetches the diff between the session branches and runs the
// first review round. An empty diff is approved without dispatching.
func (c *Coordinator) RunReview(ctx context.Context, st *State) (*Round, error) {
	round := &Round{Number: st.NextRound(), Kind: RoundReview, StartedAt: c.now()}
	ctx, span := c.startRound(ctx, round)
	defer span.End()

	diff, err := c.repo.GetDiff(ctx, st.Source, st.Target)
	if err != nil {
		return nil, c.failRound(span, round, err)
	}
	round.Input = diff.Range()
	st.Diff = diff
	if c.contextBytes > 0 {
		st.ProjectContext = c.repo.ProjectContext(c.contextBytes)
	}

	if diff.Empty() {
		round.Verdict = &Verdict{
			ExecutiveSummary:      fmt.Sprintf("No differences between %s and %s.", diff.Target, diff.Source),
			MustFix:               []Finding{},
			ShouldFix:             []Finding{},
			RefactorOpportunities: []Finding{},
			Decision:              DecisionApprove,
		}
		return c.finishRound(span, st, round), nil
	}

	c.log.Info("dispatching review", "round", round.Number, "files", len(diff.Files), "bytes", len(diff.Text))
	in := Input{Kind: RoundReview, Diff: diff, ProjectContext: st.ProjectContext}
	return c.judgeRound(ctx, span, st, round, in)
}

// FollowUp runs another round with question and a summary of the previous
// round as context. The verdict covers the new findings only.
func (c *Coordinator) FollowUp(ctx context.Context, question string, st *State) (*Round, error) {
	prior := st.Last()
	if prior == nil {
		return nil, errors.New("follow-up requires a completed review round")
	}

	round := &Round{Number: st.NextRound(), Kind: RoundFollowUp, Input: question, StartedAt: c.now()}
	ctx, span := c.startRound(ctx, round)
	defer span.End()

	c.log.Info("dispatching follow-up", "round", round.Number)
	in := Input{
		Kind:           RoundFollowUp,
		Diff:           st.Diff,
		Question:       question,
		Prior:          SummarizeRound(prior),
		ProjectContext: st.ProjectContext,
	}
	return c.judgeRound(ctx, span, st, round, in)
}

// Dispatch runs every worker concurrently on in and returns once all have
// returned or failed. Results are in worker order.
func (c *Coordinator) Dispatch(ctx context.Context, in Input) []LensResult {
	results := make([]LensResult, len(c.workers))
	var wg sync.WaitGroup
	for i, w := range c.workers {
		wg.Add(1)
		go func(i int, w Worker) {
			defer wg.Done()
			results[i] = c.runWorker(ctx, w, in)
		}(i, w)
	}
	wg.Wait()
	return results
}

func (c *Coordinator) runWorker(ctx context.Context, w Worker, in Input) LensResult {
	lens := w.Lens()
	ctx, span := c.tracer.Start(ctx, "review.worker", trace.WithAttributes(attribute.String("lens", string(lens))))
	defer span.End()

	start := c.now()
	findings, err := w.Review(ctx, in)
	res := LensResult{Lens: lens, Duration: c.now().Sub(start)}

	if err != nil {
		var we *WorkerError
		if !errors.As(err, &we) {
			err = &WorkerError{Lens: lens, Err: err}
		}
		res.err = err
		res.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "worker failed")
		c.log.Warn("reviewer failed", "lens", string(lens), "error", err)
	} else {
		res.Findings = make([]Finding, len(findings))
		for i, f := range findings {
			f.Lens = lens
			res.Findings[i] = f
		}
		span.SetAttributes(attribute.Int("findings", len(findings)))
		c.log.Debug("reviewer finished", "lens", string(lens), "findings", len(findings), "elapsed", res.Duration)
	}

	if c.observer != nil {
		c.observer.WorkerDone(lens, res.Duration, len(res.Findings), err)
	}
	return res
}

func (c *Coordinator) judgeRound(ctx context.Context, span trace.Span, st *State, round *Round, in Input) (*Round, error) {
	round.Results = c.Dispatch(ctx, in)
	if err := ctx.Err(); err != nil {
		return nil, c.failRound(span, round, fmt.Errorf("round %d interrupted: %w", round.Number, err))
	}

	verdict, err := Judge(round.Results, c.similarity)
	if err != nil {
		var re *RoundError
		if errors.As(err, &re) {
			re.Round = round.Number
		}
		return nil, c.failRound(span, round, err)
	}
	round.Verdict = verdict
	return c.finishRound(span, st, round), nil
}

func (c *Coordinator) startRound(ctx context.Context, round *Round) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "review.round", trace.WithAttributes(
		attribute.Int("round", round.Number),
		attribute.String("kind", string(round.Kind)),
	))
}

func (c *Coordinator) finishRound(span trace.Span, st *State, round *Round) *Round {
	round.FinishedAt = c.now()
	st.append(round)
	span.SetAttributes(
		attribute.String("decision", string(round.Verdict.Decision)),
		attribute.Int("findings", round.Verdict.Total()),
	)
	if c.observer != nil {
		c.observer.RoundDone(round, nil)
	}
	return round
}

func (c *Coordinator) failRound(span trace.Span, round *Round, err error) error {
	round.FinishedAt = c.now()
	span.RecordError(err)
	span.SetStatus(codes.Error, "round failed")
	if c.observer != nil {
		c.observer.RoundDone(round, err)
	}
	return err
}
