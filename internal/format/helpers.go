package format

import (
	"fmt"
	"time"
)

// FmtScore formats a similarity score with three decimals.
func FmtScore(s float64) string { return fmt.Sprintf("%.3f", s) }

// FmtPercent formats a ratio in [0,1] as a percentage.
func FmtPercent(r float64) string { return fmt.Sprintf("%.0f%%", r*100) }

// FmtDuration formats a duration as "Xm Ys" or "Ys".
func FmtDuration(d time.Duration) string {
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// Truncate shortens s to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
