package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Terminal color palette.
const (
	colorGreen  = "42"
	colorWhite  = "255"
	colorGray   = "245"
	colorYellow = "220"
)

// printer renders CLI output, styled only when writing to a terminal so
// piped output stays clean.
type printer struct {
	w       io.Writer
	header  lipgloss.Style
	success lipgloss.Style
	dim     lipgloss.Style
	answer  lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if isTerminal(w) {
		p.header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWhite))
		p.success = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen))
		p.dim = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray))
		p.answer = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorGray)).
			Padding(0, 1).
			Width(80)
	} else {
		p.header = lipgloss.NewStyle()
		p.success = lipgloss.NewStyle()
		p.dim = lipgloss.NewStyle()
		p.answer = lipgloss.NewStyle()
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) Headerf(format string, args ...any) {
	fmt.Fprintln(p.w, p.header.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) Successf(format string, args ...any) {
	fmt.Fprintln(p.w, p.success.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) Infof(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) Dimf(format string, args ...any) {
	fmt.Fprintln(p.w, p.dim.Render(fmt.Sprintf(format, args...)))
}

func (p *printer) Answer(text string) {
	fmt.Fprintln(p.w, p.answer.Render(text))
}
