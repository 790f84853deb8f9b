package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/tribunal/internal/providers"
	"github.com/dshills/tribunal/internal/review"
	"github.com/dshills/tribunal/internal/session"
)

// isolate points every user directory at a temp dir and clears provider keys.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("NO_COLOR", "1")
	for _, env := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(env, "")
	}
	return dir
}

// run executes the CLI in-process and returns the exit code with both streams.
func run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	code := Execute(context.Background(), root, args)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	isolate(t)
	code, out, _ := run(t, "", "version")
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, want %d", code, ExitSuccess)
	}
	if !strings.Contains(out, "tribunal version "+version) {
		t.Errorf("output = %q", out)
	}
}

func TestRoot_NoFlagsShowsHelp(t *testing.T) {
	isolate(t)
	code, out, _ := run(t, "")
	if code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(out, "Usage:") {
		t.Errorf("expected help output, got %q", out)
	}
}

func TestUsageErrors(t *testing.T) {
	isolate(t)
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"source without target", []string{"-s", "feature"}},
		{"review missing target", []string{"review", "-s", "feature"}},
		{"extra argument", []string{"version", "extra"}},
		{"config set arity", []string{"config", "set", "format"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := run(t, "", tt.args...)
			if code != ExitUsageError {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, ExitUsageError, errOut)
			}
			if !strings.HasPrefix(errOut, "Error: ") {
				t.Errorf("stderr = %q, want Error: prefix", errOut)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &usageError{err: errors.New("bad flag")}, ExitUsageError},
		{"config", &configError{err: errors.New("bad yaml")}, ExitConfigError},
		{"provider config", &providers.ConfigError{Reason: "no API key found"}, ExitConfigError},
		{"wrapped provider config", fmt.Errorf("setup: %w", &providers.ConfigError{Reason: "x"}), ExitConfigError},
		{"interrupted", fmt.Errorf("round 2: %w", session.ErrInterrupted), ExitInterrupted},
		{"round failure", &review.RoundError{}, ExitRuntimeError},
		{"other", errors.New("boom"), ExitRuntimeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestReview_NoCredentials(t *testing.T) {
	isolate(t)
	code, _, errOut := run(t, "", "review", "-s", "feature", "-t", "main")
	if code != ExitConfigError {
		t.Fatalf("exit code = %d, want %d (stderr %q)", code, ExitConfigError, errOut)
	}
	if !strings.Contains(errOut, "ANTHROPIC_API_KEY") {
		t.Errorf("stderr should name the expected key variables, got %q", errOut)
	}
}

func TestConfigInitSetShow(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "tribunal.yaml")

	if code, _, errOut := run(t, "", "--config", path, "config", "init"); code != ExitSuccess {
		t.Fatalf("init exit code = %d: %s", code, errOut)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if code, _, _ := run(t, "", "--config", path, "config", "init"); code != ExitConfigError {
		t.Errorf("second init without --force: exit code = %d, want %d", code, ExitConfigError)
	}
	if code, _, errOut := run(t, "", "--config", path, "config", "init", "--force"); code != ExitSuccess {
		t.Errorf("init --force exit code = %d: %s", code, errOut)
	}

	if code, _, errOut := run(t, "", "--config", path, "config", "set", "format", "markdown"); code != ExitSuccess {
		t.Fatalf("set exit code = %d: %s", code, errOut)
	}
	if code, _, _ := run(t, "", "--config", path, "config", "set", "no.such.key", "1"); code != ExitConfigError {
		t.Errorf("unknown key: exit code = %d, want %d", code, ExitConfigError)
	}

	code, out, errOut := run(t, "", "--config", path, "config", "show")
	if code != ExitSuccess {
		t.Fatalf("show exit code = %d: %s", code, errOut)
	}
	var found bool
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[0] == "format" {
			found = true
			if fields[1] != "markdown" || fields[2] != "file" {
				t.Errorf("format row = %q, want markdown from file", line)
			}
		}
	}
	if !found {
		t.Errorf("format key missing from config show:\n%s", out)
	}
}

func TestCacheShowClear(t *testing.T) {
	dir := isolate(t)
	cacheDir := filepath.Join(dir, "cache", "tribunal", "quality")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	entry := `{"lens":"quality","provider":"ollama","model":"llama3.1","response":"[]","createdAt":"2099-01-01T00:00:00Z"}`
	if err := os.WriteFile(filepath.Join(cacheDir, "abc.json"), []byte(entry), 0o644); err != nil {
		t.Fatal(err)
	}

	code, out, errOut := run(t, "", "cache", "show")
	if code != ExitSuccess {
		t.Fatalf("show exit code = %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Entries:   1") {
		t.Errorf("cache show output = %q", out)
	}

	code, out, errOut = run(t, "", "cache", "clear")
	if code != ExitSuccess {
		t.Fatalf("clear exit code = %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Removed 1 cached responses") {
		t.Errorf("cache clear output = %q", out)
	}
}

func TestModelsList(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	code, out, _ := run(t, "", "models", "list")
	if code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{"anthropic", "ANTHROPIC_API_KEY missing", "OPENAI_API_KEY set", "not required"} {
		if !strings.Contains(out, want) {
			t.Errorf("models list missing %q:\n%s", want, out)
		}
	}
}

func TestSessions_NoDatabase(t *testing.T) {
	isolate(t)
	code, _, errOut := run(t, "", "sessions", "list")
	if code != ExitUsageError {
		t.Errorf("exit code = %d, want %d (stderr %q)", code, ExitUsageError, errOut)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{"debug": "DEBUG", "INFO": "INFO", "error": "ERROR", "": "WARN", "loud": "WARN"}
	for in, want := range tests {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestReviewOverrides(t *testing.T) {
	o := &reviewOptions{provider: "ollama", format: "json", lenses: []string{"quality"}, noRedact: true, noCache: true}
	got := o.overrides()
	if got["provider"] != "ollama" || got["format"] != "json" {
		t.Errorf("overrides = %v", got)
	}
	if got["privacy.redactSecrets"] != false || got["cache.enabled"] != false {
		t.Errorf("boolean overrides missing: %v", got)
	}
	if _, ok := got["model"]; ok {
		t.Error("unset flags must not override config")
	}
}

// --- end to end ---

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	base := []string{"-C", dir, "-c", "user.email=test@example.com", "-c", "user.name=Test", "-c", "commit.gpgsign=false"}
	if out, err := exec.Command("git", append(base, args...)...).CombinedOutput(); err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
}

func newRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	gitCmd(t, dir, "init", "-q")
	gitCmd(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	write("auth.go", "package auth\n\nfunc Login() bool { return true }\n")
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-q", "-m", "initial")
	gitCmd(t, dir, "checkout", "-q", "-b", "feature")
	write("auth.go", "package auth\n\nfunc Login(user string) bool {\n\treturn user != \"\"\n}\n")
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-q", "-m", "feature")
	gitCmd(t, dir, "checkout", "-q", "main")
	return dir
}

// fakeChat answers every chat completion with the same findings array.
func fakeChat(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "llama3.1",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 10, "total_tokens": 20},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReview_EndToEnd(t *testing.T) {
	dir := isolate(t)
	repo := newRepo(t)
	srv := fakeChat(t, `[{"severity":"critical","category":"security","title":"Login accepts any user","file":"auth.go","line_start":3,"line_end":5,"description":"Login returns true for any non-empty user without checking credentials."}]`)
	t.Setenv("OLLAMA_HOST", srv.URL)

	outPath := filepath.Join(dir, "review.json")
	code, _, errOut := run(t, "",
		"review", "-r", repo, "-s", "feature", "-t", "main",
		"-p", "ollama", "--format", "json", "--out", outPath,
		"--non-interactive", "--no-cache")
	if code != ExitSuccess {
		t.Fatalf("exit code = %d\n%s", code, errOut)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	var st review.State
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decoding review: %v\n%s", err, data)
	}
	if st.Source != "feature" || st.Target != "main" || st.Provider != "ollama" {
		t.Errorf("session header = %+v", st)
	}
	if len(st.Rounds) != 1 {
		t.Fatalf("rounds = %d, want 1", len(st.Rounds))
	}
	r := st.Rounds[0]
	if len(r.Results) != 2 {
		t.Errorf("lens results = %d, want 2", len(r.Results))
	}
	if r.Verdict == nil || r.Verdict.Decision != review.DecisionRequestChanges {
		t.Fatalf("verdict = %+v, want REQUEST_CHANGES", r.Verdict)
	}
	if len(r.Verdict.MustFix) != 1 {
		t.Errorf("must fix = %d, want the two identical findings merged into one", len(r.Verdict.MustFix))
	}
}

func TestReview_UnknownBranch(t *testing.T) {
	isolate(t)
	repo := newRepo(t)
	srv := fakeChat(t, "[]")
	t.Setenv("OLLAMA_HOST", srv.URL)

	code, _, errOut := run(t, "", "review", "-r", repo, "-s", "nope", "-t", "main", "-p", "ollama", "--non-interactive")
	if code != ExitRuntimeError {
		t.Fatalf("exit code = %d, want %d", code, ExitRuntimeError)
	}
	if !strings.Contains(errOut, "available branches: feature, main") {
		t.Errorf("stderr = %q", errOut)
	}
}
