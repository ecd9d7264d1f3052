package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	symCheck = "✔"
	symCross = "✖"
)

// SetColorForcing overrides terminal detection for CLI output.
func SetColorForcing(force, disable bool) {
	switch {
	case disable:
		lipgloss.SetColorProfile(termenv.Ascii)
	case force:
		lipgloss.SetColorProfile(termenv.ANSI256)
	default:
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}
}

// Printer writes status lines in the active theme.
type Printer struct {
	Out, Err io.Writer
	Theme    Theme
}

// NewPrinter prints to stdout and stderr.
func NewPrinter(t Theme) *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr, Theme: t}
}

func (p *Printer) OK(msg string) {
	fmt.Fprintln(p.Out, p.Theme.Success.Render(symCheck+" "+msg))
}

func (p *Printer) Fail(msg string) {
	fmt.Fprintln(p.Err, p.Theme.Error.Render(symCross+" "+msg))
}

func (p *Printer) Muted(msg string) {
	fmt.Fprintln(p.Out, p.Theme.Muted.Render(msg))
}
