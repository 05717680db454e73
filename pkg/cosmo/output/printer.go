package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Printer writes user-facing progress lines. Colour follows fatih/color's
// terminal detection and the NO_COLOR convention.
type Printer struct {
	w io.Writer

	step    *color.Color
	success *color.Color
	warn    *color.Color
	fail    *color.Color
}

func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = io.Discard
	}
	return &Printer{
		w:       w,
		step:    color.New(color.FgCyan),
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
	}
}

func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) Step(format string, args ...any) {
	p.line(p.step, "==>", format, args...)
}

func (p *Printer) Success(format string, args ...any) {
	p.line(p.success, "✓", format, args...)
}

func (p *Printer) Warn(format string, args ...any) {
	p.line(p.warn, "!", format, args...)
}

func (p *Printer) Error(format string, args ...any) {
	p.line(p.fail, "✗", format, args...)
}

// Detail prints an indented line below the previous message.
func (p *Printer) Detail(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, "   "+format+"\n", args...)
}

func (p *Printer) line(c *color.Color, marker, format string, args ...any) {
	_, _ = c.Fprint(p.w, marker)
	_, _ = fmt.Fprintf(p.w, " "+format+"\n", args...)
}
