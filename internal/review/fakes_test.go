package review

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dshills/tribunal/internal/providers"
	"github.com/dshills/tribunal/internal/tools"
)

type fakeWorker struct {
	lens     Lens
	findings []Finding
	err      error
	block    bool

	mu     sync.Mutex
	inputs []Input
}

func (w *fakeWorker) Lens() Lens { return w.lens }

func (w *fakeWorker) Review(ctx context.Context, in Input) ([]Finding, error) {
	w.mu.Lock()
	w.inputs = append(w.inputs, in)
	w.mu.Unlock()
	if w.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if w.err != nil {
		return nil, w.err
	}
	return w.findings, nil
}

func (w *fakeWorker) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inputs)
}

type fakeRepo struct {
	diff    tools.Diff
	err     error
	context string
}

func (r *fakeRepo) GetDiff(_ context.Context, source, target string) (tools.Diff, error) {
	if r.err != nil {
		return tools.Diff{}, r.err
	}
	d := r.diff
	d.Source, d.Target = source, target
	return d, nil
}

func (r *fakeRepo) ProjectContext(int64) string { return r.context }

// fakeModel answers every request through respond and records what it was
// asked.
type fakeModel struct {
	respond func(n int, req providers.Request) (string, error)

	mu       sync.Mutex
	requests []providers.Request
}

func staticModel(responses ...string) *fakeModel {
	return &fakeModel{respond: func(n int, _ providers.Request) (string, error) {
		if n >= len(responses) {
			n = len(responses) - 1
		}
		return responses[n], nil
	}}
}

func (m *fakeModel) Invoke(_ context.Context, req providers.Request) (providers.Response, error) {
	m.mu.Lock()
	n := len(m.requests)
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	text, err := m.respond(n, req)
	if err != nil {
		return providers.Response{}, err
	}
	return providers.Response{Text: text, TokensUsed: len(text)}, nil
}

func (m *fakeModel) Name() string    { return "fake" }
func (m *fakeModel) ModelID() string { return "fake-1" }

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *fakeModel) request(i int) providers.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

func diffFor(files ...string) string {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "diff --git a/%s b/%s\n--- a/%s\n+++ b/%s\n@@ -1,3 +1,4 @@\n+changed line in %s\n", f, f, f, f, f)
	}
	return b.String()
}

func lines(start, end int) *LineRange { return &LineRange{Start: start, End: end} }
