package cli

import (
	"fmt"
	"strings"
	"time"

	"tradesim/internal/models"
)

// FormatTime formats a time in UTC, the reference zone for game resets.
func FormatTime(t time.Time) string {
	return t.UTC().Format("15:04:05")
}

// FormatDateTime formats a datetime in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("02-Jan-2006 15:04:05")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatLeverage formats a leverage multiplier, e.g. 5x or 2.5x.
func FormatLeverage(l float64) string {
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", l), "0"), ".")
	return s + "x"
}

// FormatDirection renders a direction in upper case for tables.
func FormatDirection(d models.Direction) string {
	return strings.ToUpper(d.String())
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
