package cli

import (
	"fmt"
	"time"

	"nse-screener/pkg/utils"
)

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
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

// FormatDate formats a date in IST.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(utils.IndiaLocation).Format("02-Jan-2006")
}

// FormatDateTime formats a datetime in IST.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(utils.IndiaLocation).Format("02-Jan-2006 15:04:05")
}

// FormatCount formats a counter with Indian digit grouping.
func FormatCount(n int64) string {
	return utils.FormatIndianNumber(n)
}

// FormatRatio formats "found of total" with the hit rate.
func FormatRatio(found, total int64) string {
	if total <= 0 {
		return fmt.Sprintf("%s of %s", FormatCount(found), FormatCount(total))
	}
	return fmt.Sprintf("%s of %s (%.1f%%)", FormatCount(found), FormatCount(total), float64(found)/float64(total)*100)
}
