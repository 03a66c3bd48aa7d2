package format_test

import (
	"strings"
	"testing"
	"time"

	"txshield/internal/format"
)

func TestASCII_Table(t *testing.T) {
	tb := format.NewTable(format.ASCII, "RUN", "OUTCOME", "F2")
	tb.Row("20260101T000000Z-ab12cd34", "promoted", format.Score(0.91234))
	tb.AlignRight(3)
	out := tb.String()

	for _, want := range []string{"RUN", "promoted", "0.9123", "───"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if tb.Len() != 1 {
		t.Errorf("Len = %d, want 1", tb.Len())
	}
}

func TestMarkdown_Table(t *testing.T) {
	tb := format.NewTable(format.Markdown, "Column", "p-value")
	tb.Row("Transaction Amount", "0.0001")
	out := tb.String()

	if !strings.Contains(out, "| Column") || !strings.Contains(out, "---") {
		t.Errorf("not a markdown table:\n%s", out)
	}
	if strings.Contains(out, "───") {
		t.Errorf("markdown output has box-drawing characters:\n%s", out)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want format.Mode
		err  bool
	}{
		{"", format.ASCII, false},
		{"table", format.ASCII, false},
		{"Markdown", format.Markdown, false},
		{"md", format.Markdown, false},
		{"html", format.ASCII, true},
	}
	for _, tt := range tests {
		got, err := format.ParseMode(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "-"},
		{1400 * time.Millisecond, "1s"},
		{45 * time.Second, "45s"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
	}
	for _, tt := range tests {
		if got := format.Duration(tt.d); got != tt.want {
			t.Errorf("Duration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := format.Truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := format.Truncate("read raw data: no such file", 12); got != "read raw ..." {
		t.Errorf("got %q", got)
	}
	if got := format.Truncate("abcdef", 2); got != "ab" {
		t.Errorf("got %q", got)
	}
}

func TestScoreAndThreshold(t *testing.T) {
	if got := format.Score(0.5); got != "0.5000" {
		t.Errorf("Score = %q", got)
	}
	if got := format.Threshold(0.35); got != "0.35" {
		t.Errorf("Threshold = %q", got)
	}
	if format.PassFail(true) != "pass" || format.PassFail(false) != "fail" {
		t.Error("PassFail")
	}
}
