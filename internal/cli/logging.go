package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/dshills/tribunal/internal/config"
	"github.com/dshills/tribunal/internal/output"
)

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// useColor decides whether output written to w should be coloured.
func useColor(g *globalOptions, w io.Writer) bool {
	if g.noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTerminal(w)
}

func newUI(g *globalOptions, out, errOut io.Writer) *output.UI {
	if !useColor(g, errOut) {
		color.NoColor = true
	}
	return &output.UI{Out: out, ErrOut: errOut}
}
