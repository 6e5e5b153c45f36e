package views

import (
	"testing"
	"time"
)

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"\U0001F44D\U0001F3FB", "\U0001F44D"},
		{"\U0001F468\u200D\U0001F469\u200D\U0001F467", "\U0001F468\U0001F469\U0001F467"},
		{"\u2764\uFE0F", "\u2764"},
	}
	for _, tt := range tests {
		if got := sanitizeForTerminal(tt.in); got != tt.want {
			t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 5, 18, 0, 0, 0, time.Local)

	if got := formatTimestamp(0, now); got != "" {
		t.Errorf("zero = %q", got)
	}
	today := time.Date(2024, 3, 5, 9, 30, 0, 0, time.Local).UnixMilli()
	if got := formatTimestamp(today, now); got != "09:30" {
		t.Errorf("today = %q", got)
	}
	earlier := time.Date(2024, 1, 2, 9, 30, 0, 0, time.Local).UnixMilli()
	if got := formatTimestamp(earlier, now); got != "Jan 02 09:30" {
		t.Errorf("this year = %q", got)
	}
	old := time.Date(2022, 1, 2, 9, 30, 0, 0, time.Local).UnixMilli()
	if got := formatTimestamp(old, now); got != "2022-01-02" {
		t.Errorf("old = %q", got)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("hello\nworld", 0); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := firstLine("abcdef", 4); got != "abc…" {
		t.Errorf("got %q", got)
	}
}
