package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/tribunal/internal/cache"
	"github.com/dshills/tribunal/internal/config"
	"github.com/dshills/tribunal/internal/metrics"
	"github.com/dshills/tribunal/internal/output"
	"github.com/dshills/tribunal/internal/providers"
	"github.com/dshills/tribunal/internal/redact"
	"github.com/dshills/tribunal/internal/review"
	"github.com/dshills/tribunal/internal/session"
	"github.com/dshills/tribunal/internal/store"
	"github.com/dshills/tribunal/internal/tools"
	"github.com/dshills/tribunal/internal/tracing"
)

// reviewOptions holds the review flags.
type reviewOptions struct {
	source         string
	target         string
	repo           string
	provider       string
	model          string
	format         string
	out            string
	sessionDB      string
	metricsAddr    string
	rules          string
	lenses         []string
	noRedact       bool
	noCache        bool
	nonInteractive bool
}

func addReviewFlags(cmd *cobra.Command, o *reviewOptions) {
	f := cmd.Flags()
	f.StringVarP(&o.source, "source", "s", "", "Source branch containing the changes")
	f.StringVarP(&o.target, "target", "t", "", "Target branch to compare against (e.g. main)")
	f.StringVarP(&o.repo, "repo", "r", ".", "Path to the git repository")
	f.StringVarP(&o.provider, "provider", "p", "", "LLM provider (anthropic, openai, openrouter, gemini, ollama); auto-detected when empty")
	f.StringVarP(&o.model, "model", "m", "", "Model ID (provider default when empty)")
	f.StringVar(&o.format, "format", "", "Output format (text, markdown, json, yaml, sarif)")
	f.StringVar(&o.out, "out", "", "Output file path (default: stdout)")
	f.StringVar(&o.sessionDB, "session-db", "", "Append the session transcript to this SQLite database")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	f.StringVar(&o.rules, "rules", "", "Rules file path")
	f.StringSliceVar(&o.lenses, "lenses", nil, "Reviewer lenses to run (default: all)")
	f.BoolVar(&o.noRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	f.BoolVar(&o.noCache, "no-cache", false, "Bypass the response cache")
	f.BoolVar(&o.nonInteractive, "non-interactive", false, "Run the initial review only")
}

// overrides maps set flags onto config keys.
func (o *reviewOptions) overrides() map[string]any {
	m := map[string]any{}
	set := func(key, val string) {
		if val != "" {
			m[key] = val
		}
	}
	set("provider", o.provider)
	set("model", o.model)
	set("format", o.format)
	set("session.db", o.sessionDB)
	set("metrics.addr", o.metricsAddr)
	set("rulesFile", o.rules)
	if len(o.lenses) > 0 {
		m["lenses"] = o.lenses
	}
	if o.noRedact {
		m["privacy.redactSecrets"] = false
	}
	if o.noCache {
		m["cache.enabled"] = false
	}
	return m
}

func newReviewCmd(g *globalOptions) *cobra.Command {
	o := &reviewOptions{}
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review the changes on a source branch against a target branch",
		Long: "Review the changes on --source since it diverged from --target. After the\n" +
			"first round, enter follow-up feedback to run another round, or q to finish.",
		Example: "  tribunal review -s feature/new-api -t main\n" +
			"  tribunal review -s dev -t main -p openrouter -m anthropic/claude-sonnet-4",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd, g, o)
		},
	}
	addReviewFlags(cmd, o)
	return cmd
}

func loadConfig(g *globalOptions, overrides map[string]any) (config.Config, error) {
	if overrides == nil {
		overrides = map[string]any{}
	}
	if g.logLevel != "" {
		overrides["log.level"] = g.logLevel
	}
	cfg, err := config.Load(g.configPath, overrides)
	if err != nil {
		return config.Config{}, &configError{err: err}
	}
	return cfg, nil
}

func runReview(cmd *cobra.Command, g *globalOptions, o *reviewOptions) error {
	if o.source == "" || o.target == "" {
		return &usageError{err: errors.New("both --source and --target are required")}
	}
	cfg, err := loadConfig(g, o.overrides())
	if err != nil {
		return err
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	ui := newUI(g, stdout, stderr)
	log := newLogger(cfg.Log, stderr)

	name, err := providers.Detect(cfg.Provider)
	if err != nil {
		return err
	}
	model, err := providers.New(name, cfg.Model)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := tools.New(ctx, o.repo, tools.Options{Exclude: cfg.Exclude})
	if err != nil {
		return err
	}
	if err := checkBranches(ctx, repo, o.source, o.target); err != nil {
		return err
	}

	if !cfg.Privacy.RedactSecrets {
		ui.Warning("secret redaction is disabled")
	}
	workers, err := buildWorkers(cfg, model, repo, log)
	if err != nil {
		return err
	}

	shutdown := tracing.Setup(cfg.Tracing.Enabled, log)
	defer func() { _ = shutdown(context.Background()) }()

	coordOpts := []review.Option{
		review.WithSimilarity(cfg.Dedup.Similarity),
		review.WithLogger(log),
		review.WithProjectContextBytes(cfg.MaxFileBytes),
	}
	if cfg.Metrics.Addr != "" {
		m := metrics.New()
		addr, err := m.Serve(ctx, cfg.Metrics.Addr, log)
		if err != nil {
			return err
		}
		ui.Info("Serving metrics on http://%s/metrics", addr)
		coordOpts = append(coordOpts, review.WithObserver(m))
	}
	coord := review.NewCoordinator(repo, workers, coordOpts...)

	out, err := output.Open(o.out)
	if err != nil {
		return err
	}
	defer out.Close()

	renderer, err := output.GetRenderer(cfg.Format, o.out != "" || !useColor(g, stdout))
	if err != nil {
		return &configError{err: err}
	}
	streaming := output.Streaming(cfg.Format)

	// Prompts share stdout only when the review itself streams there.
	prompts := stderr
	if streaming && o.out == "" {
		prompts = stdout
	}

	loopOpts := []session.Option{session.WithLogger(log)}
	if streaming {
		loopOpts = append(loopOpts, session.WithRoundHandler(func(st *review.State, r *review.Round) error {
			return renderer.Round(out, st, r)
		}))
	}
	if o.nonInteractive {
		loopOpts = append(loopOpts, session.NonInteractive())
	}
	if cfg.Session.DB != "" {
		db, err := store.Open(ctx, cfg.Session.DB)
		if err != nil {
			return err
		}
		defer db.Close()
		loopOpts = append(loopOpts, session.WithRecorder(db))
	}

	st := review.NewState(repo.Root(), o.source, o.target)
	st.Provider, st.Model = model.Name(), model.ModelID()

	ui.Info("Starting code review: %s -> %s using %s (%s) with %s", o.source, o.target, st.Provider, st.Model, lensList(coord.Lenses()))
	runErr := session.New(coord, cmd.InOrStdin(), prompts, loopOpts...).Run(ctx, st)

	if !streaming && len(st.Rounds) > 0 {
		if err := renderer.Session(out, st); err != nil {
			return err
		}
	}
	if runErr == nil && o.out != "" {
		ui.Success("Review written to %s", o.out)
	}
	if runErr == nil && cfg.Session.DB != "" {
		ui.Info("Session %s saved to %s", st.ID, cfg.Session.DB)
	}
	return runErr
}

// checkBranches validates both refs; a bad ref lists the branches that do
// exist.
func checkBranches(ctx context.Context, repo *tools.Provider, source, target string) error {
	err := repo.ValidateRefs(ctx, source, target)
	if err == nil {
		return nil
	}
	branches, berr := repo.GetBranches(ctx)
	if berr != nil || len(branches) == 0 {
		return err
	}
	return fmt.Errorf("%w (available branches: %s)", err, strings.Join(branches, ", "))
}

func buildWorkers(cfg config.Config, model providers.Model, repo *tools.Provider, log *slog.Logger) ([]review.Worker, error) {
	specs, err := review.LookupLenses(cfg.Lenses)
	if err != nil {
		return nil, &configError{err: err}
	}
	rules, err := review.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, &configError{err: err}
	}
	var red *redact.Redactor
	if cfg.Privacy.RedactSecrets {
		red = redact.New(cfg.Privacy.RedactPaths)
	}
	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		log.Warn("response cache unavailable", "error", err)
		c = nil
	}

	opts := review.WorkerOptions{
		Files:           repo,
		Redactor:        red,
		Cache:           c,
		Rules:           rules,
		Logger:          log,
		MaxContextFiles: cfg.MaxContextFiles,
		MaxFileBytes:    cfg.MaxFileBytes,
		ChunkThreshold:  cfg.Chunk.ThresholdBytes,
		MaxConcurrency:  cfg.Chunk.MaxConcurrency,
		MaxTokens:       cfg.MaxTokens,
	}
	workers := make([]review.Worker, len(specs))
	for i, spec := range specs {
		workers[i] = review.NewLLMWorker(spec, model, opts)
	}
	return workers, nil
}

func lensList(lenses []review.Lens) string {
	labels := make([]string, len(lenses))
	for i, l := range lenses {
		labels[i] = l.Label()
	}
	return strings.Join(labels, " + ")
}

func newBranchesCmd() *cobra.Command {
	var repoPath string
	cmd := &cobra.Command{
		Use:   "branches",
		Short: "List branches available for review",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := tools.New(cmd.Context(), repoPath, tools.Options{})
			if err != nil {
				return err
			}
			branches, err := repo.GetBranches(cmd.Context())
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), branches)
		},
	}
	cmd.Flags().StringVarP(&repoPath, "repo", "r", ".", "Path to the git repository")
	return cmd
}

func printLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
