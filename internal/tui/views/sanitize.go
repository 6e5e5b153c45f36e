package views

import (
	"strings"
	"time"
)

// sanitizeForTerminal drops the codepoints tcell renders with the wrong
// width: skin tone modifiers, zero width joiners and variation selectors.
// Emoji sequences collapse to their base character.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if isCombiningGlyph(r) {
			return -1
		}
		return r
	}, s)
}

func isCombiningGlyph(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}

// formatTimestamp shows the clock for today's times and the date otherwise.
func formatTimestamp(ms int64, now time.Time) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 02 15:04")
	}
	return t.Format("2006-01-02")
}

// firstLine returns the first line of s cut to n runes.
func firstLine(s string, n int) string {
	s, _, _ = strings.Cut(s, "\n")
	r := []rune(s)
	if n > 0 && len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
