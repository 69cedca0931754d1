// Package ui renders command output: headers, tables, status lines and
// error messages with suggestions.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/bizobj/internal/bo/rules"
)

// Printer writes colored output to a writer
type Printer struct {
	w       io.Writer
	noColor bool
}

// NewPrinter creates a printer. noColor disables all ANSI sequences.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	return &Printer{w: w, noColor: noColor}
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) color(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c
}

// Header prints a bold section title with an underline
func (p *Printer) Header(title string) {
	p.color(color.FgCyan, color.Bold).Fprintln(p.w, title)
	p.color(color.FgHiBlack).Fprintln(p.w, strings.Repeat("─", len(title)))
}

// Line prints a plain line
func (p *Printer) Line(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Bullet prints an indented list item
func (p *Printer) Bullet(format string, args ...interface{}) {
	p.color(color.FgHiBlack).Fprint(p.w, "  • ")
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Success prints a green check line
func (p *Printer) Success(format string, args ...interface{}) {
	p.color(color.FgGreen, color.Bold).Fprintf(p.w, "✓ "+format+"\n", args...)
}

// Warning prints a yellow line
func (p *Printer) Warning(format string, args ...interface{}) {
	p.color(color.FgYellow).Fprintf(p.w, "! "+format+"\n", args...)
}

// Error prints an error with optional suggestions
func (p *Printer) Error(err error, suggestions ...string) {
	p.color(color.FgRed, color.Bold).Fprintf(p.w, "✗ %v\n", err)
	if len(suggestions) > 0 {
		p.color(color.FgYellow).Fprintf(p.w, "  Did you mean: %s?\n", strings.Join(suggestions, ", "))
	}
}

// SeverityLabel returns a colored label for a broken rule severity
func (p *Printer) SeverityLabel(s rules.Severity) string {
	switch s {
	case rules.Error:
		return p.color(color.FgRed).Sprint(s.String())
	case rules.Warning:
		return p.color(color.FgYellow).Sprint(s.String())
	default:
		return p.color(color.FgCyan).Sprint(s.String())
	}
}

// Table collects rows and renders them with aligned columns
type Table struct {
	p       *Printer
	headers []string
	rows    [][]string
}

// Table starts a table with the given headers
func (p *Printer) Table(headers ...string) *Table {
	return &Table{p: p, headers: headers}
}

// AddRow appends a row; missing cells render empty
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render writes the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := len(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	head := t.p.color(color.FgCyan, color.Bold)
	sep := t.p.color(color.FgHiBlack)
	for i, h := range t.headers {
		head.Fprint(t.p.w, pad(h, widths[i], i == len(widths)-1))
	}
	fmt.Fprintln(t.p.w)
	for i, w := range widths {
		sep.Fprint(t.p.w, pad(strings.Repeat("─", w), w, i == len(widths)-1))
	}
	fmt.Fprintln(t.p.w)

	for _, row := range t.rows {
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			fmt.Fprint(t.p.w, pad(cell, widths[i], i == len(widths)-1))
		}
		fmt.Fprintln(t.p.w)
	}
}

// pad right-pads s and adds the column gap; the last column is not padded
func pad(s string, width int, last bool) string {
	if last {
		return s
	}
	if n := len([]rune(s)); n < width {
		s += strings.Repeat(" ", width-n)
	}
	return s + "  "
}
