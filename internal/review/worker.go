package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/dshills/tribunal/internal/cache"
	"github.com/dshills/tribunal/internal/providers"
	"github.com/dshills/tribunal/internal/redact"
	"github.com/dshills/tribunal/internal/tools"
)

// Worker produces findings for one lens. Implementations must not share
// mutable state with other workers.
type Worker interface {
	Lens() Lens
	Review(ctx context.Context, in Input) ([]Finding, error)
}

// Input is what every worker receives in a round.
type Input struct {
	Kind           RoundKind
	Diff           tools.Diff
	Question       string
	Prior          string
	ProjectContext string
}

// FileReader is the read-only slice of the tool provider a worker may use to
// pull context beyond the diff.
type FileReader interface {
	ReadFile(path string, maxBytes int64) (string, error)
}

// WorkerOptions configures an LLMWorker. Zero values select defaults; a nil
// Files disables context retrieval and a nil Redactor disables redaction.
type WorkerOptions struct {
	Files           FileReader
	Redactor        *redact.Redactor
	Cache           *cache.Cache
	Rules           *Rules
	Logger          *slog.Logger
	MaxContextFiles int
	MaxFileBytes    int64
	ChunkThreshold  int
	MaxConcurrency  int
	MaxTokens       int
}

// LLMWorker reviews through a language model.
type LLMWorker struct {
	spec  LensSpec
	model providers.Model
	opts  WorkerOptions
	log   *slog.Logger
}

// NewLLMWorker creates a worker for spec backed by model.
func NewLLMWorker(spec LensSpec, model providers.Model, opts WorkerOptions) *LLMWorker {
	if opts.ChunkThreshold <= 0 {
		opts.ChunkThreshold = DefaultChunkThreshold
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = tools.DefaultMaxFileBytes
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = providers.DefaultMaxTokens
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LLMWorker{
		spec:  spec,
		model: model,
		opts:  opts,
		log:   log.With("lens", string(spec.Lens)),
	}
}

// Lens implements Worker.
func (w *LLMWorker) Lens() Lens { return w.spec.Lens }

// Review implements Worker. Failures are returned as *WorkerError.
func (w *LLMWorker) Review(ctx context.Context, in Input) ([]Finding, error) {
	findings, err := w.review(ctx, in)
	if err != nil {
		return nil, &WorkerError{Lens: w.spec.Lens, Err: err}
	}
	return findings, nil
}

func (w *LLMWorker) review(ctx context.Context, in Input) ([]Finding, error) {
	diff := in.Diff.Text
	if w.opts.Redactor != nil {
		var n int
		diff, n = w.opts.Redactor.Diff(diff)
		in.Question, _ = w.opts.Redactor.Secrets(in.Question)
		in.ProjectContext, _ = w.opts.Redactor.Secrets(in.ProjectContext)
		if n > 0 {
			w.log.Debug("redacted diff", "replacements", n)
		}
	}

	var chunks []Chunk
	if len(diff) > w.opts.ChunkThreshold {
		if in.Kind == RoundFollowUp {
			// Follow-ups on large changes carry the file list, not the diff.
			chunks = []Chunk{{Files: in.Diff.Files}}
		} else {
			chunks = SplitIntoChunks(diff, w.opts.ChunkThreshold)
			w.log.Info("reviewing in chunks", "chunks", len(chunks), "bytes", len(diff))
		}
	} else {
		chunks = []Chunk{{Diff: diff, Files: in.Diff.Files}}
	}

	fileContext := ""
	if len(chunks) == 1 {
		fileContext = w.gatherContext(in.Diff.Files)
	}

	system := SystemPrompt(w.spec, w.opts.Rules)
	if len(chunks) == 1 {
		return w.reviewChunk(ctx, system, buildUserPrompt(in, chunks[0].Diff, chunks[0].Files, fileContext))
	}
	return w.reviewChunks(ctx, system, in, chunks)
}

// reviewChunks reviews chunks in parallel and merges findings in chunk order.
func (w *LLMWorker) reviewChunks(ctx context.Context, system string, in Input, chunks []Chunk) ([]Finding, error) {
	type result struct {
		findings []Finding
		err      error
	}

	results := make([]result, len(chunks))
	var wg sync.WaitGroup
	sem := make(chan struct{}, w.opts.MaxConcurrency)

	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk Chunk) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			findings, err := w.reviewChunk(ctx, system, buildUserPrompt(in, chunk.Diff, chunk.Files, ""))
			if err != nil {
				err = fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			results[i] = result{findings: findings, err: err}
		}(i, chunk)
	}

	wg.Wait()

	var all []Finding
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		all = append(all, r.findings...)
	}
	return all, nil
}

func (w *LLMWorker) reviewChunk(ctx context.Context, system, user string) ([]Finding, error) {
	key := cache.Key{
		Lens:     string(w.spec.Lens),
		Provider: w.model.Name(),
		Model:    w.model.ModelID(),
		Prompt:   system + "\x00" + user,
	}
	if cached, ok := w.opts.Cache.Lookup(key); ok {
		if findings, err := parseFindings(w.spec.Lens, cached); err == nil {
			w.log.Debug("cache hit", "findings", len(findings))
			w.opts.Rules.applySeverityOverrides(findings)
			return findings, nil
		}
	}

	req := providers.Request{System: system, Prompt: user, MaxTokens: w.opts.MaxTokens}
	resp, err := w.model.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	w.log.Debug("model responded", "tokens", resp.TokensUsed)

	findings, err := parseFindings(w.spec.Lens, resp.Text)
	if err != nil {
		w.log.Warn("invalid response, requesting repair", "error", err)
		req.Prompt = repairPrompt(err, resp.Text)
		resp, err = w.model.Invoke(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("repair request: %w", err)
		}
		findings, err = parseFindings(w.spec.Lens, resp.Text)
		if err != nil {
			return nil, fmt.Errorf("validation after repair: %w", err)
		}
	}

	if err := w.opts.Cache.Store(key, resp.Text); err != nil {
		w.log.Warn("failed to write cache entry", "error", err)
	}
	w.opts.Rules.applySeverityOverrides(findings)
	return findings, nil
}

// gatherContext reads changed files through the tool provider. Denied reads
// are logged and skipped.
func (w *LLMWorker) gatherContext(files []string) string {
	if w.opts.Files == nil || w.opts.MaxContextFiles <= 0 {
		return ""
	}
	var b strings.Builder
	read := 0
	for _, path := range files {
		if read >= w.opts.MaxContextFiles {
			break
		}
		content, err := w.opts.Files.ReadFile(path, w.opts.MaxFileBytes)
		if err != nil {
			var ve *tools.ValidationError
			if errors.As(err, &ve) {
				w.log.Info("file read denied", "path", path, "reason", ve.Reason)
			} else {
				w.log.Debug("file not readable", "path", path, "error", err)
			}
			continue
		}
		if w.opts.Redactor != nil {
			content, _ = w.opts.Redactor.File(path, content)
		}
		fmt.Fprintf(&b, "### %s\n```\n%s\n```\n", path, strings.TrimRight(content, "\n"))
		read++
	}
	return b.String()
}
