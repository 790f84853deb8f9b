package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// UI prints status lines and tables for humans. Diagnostics go to ErrOut so
// they never mix with rendered reviews.
type UI struct {
	Out    io.Writer
	ErrOut io.Writer
}

// NewUI creates a UI with default stdout/stderr writers.
func NewUI() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

func prefix(attr color.Attribute, mark string) string {
	return color.New(attr).Sprint(mark)
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", prefix(color.FgHiBlue, "i"), fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", prefix(color.FgHiGreen, "✓"), fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", prefix(color.FgHiYellow, "⚠"), fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", prefix(color.FgHiRed, "✗"), fmt.Sprintf(format, a...))
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	return newTable(u.Out, headers)
}

func newTable(w io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}
