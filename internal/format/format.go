// Package format renders CLI tables and formats metric values.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the table output format.
type Mode int

const (
	ASCII    Mode = iota // box-drawn terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode maps a --format flag value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "table", "ascii":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	}
	return ASCII, fmt.Errorf("unknown output format %q (want table or markdown)", s)
}

// Table is a header plus rows, rendered once in its Mode.
type Table struct {
	w    table.Writer
	mode Mode
}

// NewTable starts a table with the given column headers.
func NewTable(m Mode, header ...string) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	row := make(table.Row, len(header))
	for i, h := range header {
		row[i] = h
	}
	w.AppendHeader(row)
	return &Table{w: w, mode: m}
}

// Row appends one row. Values render with fmt.Sprint.
func (t *Table) Row(vals ...any) {
	t.w.AppendRow(table.Row(vals))
}

// AlignRight right-aligns the given 1-based columns. Use it for numbers.
func (t *Table) AlignRight(cols ...int) {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		cfgs[i] = table.ColumnConfig{Number: c, Align: text.AlignRight}
	}
	t.w.SetColumnConfigs(cfgs)
}

// Len is the number of rows appended so far.
func (t *Table) Len() int { return t.w.Length() }

func (t *Table) String() string {
	if t.mode == Markdown {
		return t.w.RenderMarkdown()
	}
	return t.w.Render()
}

// Score formats a metric in [0, 1] to four places.
func Score(v float64) string { return fmt.Sprintf("%.4f", v) }

// Threshold formats a decision threshold.
func Threshold(v float64) string { return fmt.Sprintf("%.2f", v) }

// Duration formats d as "Xm Ys" or "Ys". Zero or negative is "-".
func Duration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	s := int(d.Round(time.Second).Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// Truncate shortens s to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// PassFail renders a gate result.
func PassFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}
