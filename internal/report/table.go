// Package report renders scan tables to the terminal and exports them as
// spreadsheets.
package report

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"nse-screener/internal/screening"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes terminal color codes.
func stripANSI(s string) string {
	return ansi.ReplaceAllString(s, "")
}

func width(s string) int {
	return utf8.RuneCountInString(stripANSI(s))
}

// Table is a column-aligned text table.
type Table struct {
	Title   string
	Columns []string
	Rows    []screening.Record
	// Plain drops color codes from cells, for non-terminal writers.
	Plain bool
}

// Render writes the table to w.
func (t *Table) Render(w io.Writer) error {
	if len(t.Columns) == 0 {
		return nil
	}

	cell := func(r screening.Record, col string) string {
		v, ok := r[col]
		if !ok || v == "" {
			v = "-"
		}
		if t.Plain {
			return stripANSI(v)
		}
		return v
	}

	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = width(c)
	}
	for _, r := range t.Rows {
		for i, c := range t.Columns {
			widths[i] = max(widths[i], width(cell(r, c)))
		}
	}

	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	if t.Plain {
		bold = fmt.Sprint
		dim = fmt.Sprint
	}

	if t.Title != "" {
		if _, err := fmt.Fprintln(w, bold(t.Title)); err != nil {
			return err
		}
	}

	header := make([]string, len(t.Columns))
	sep := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = bold(pad(c, widths[i]))
		sep[i] = strings.Repeat("─", widths[i])
	}
	if _, err := fmt.Fprintln(w, strings.Join(header, "  ")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, dim(strings.Join(sep, "──"))); err != nil {
		return err
	}

	for _, r := range t.Rows {
		parts := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			parts[i] = pad(cell(r, c), widths[i])
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " ")); err != nil {
			return err
		}
	}
	return nil
}

func pad(s string, n int) string {
	if p := n - width(s); p > 0 {
		return s + strings.Repeat(" ", p)
	}
	return s
}
