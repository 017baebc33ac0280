package lib

import (
	"fmt"
	"math"
	"time"
)

// FormatCookieDuration renders a cookie expiry as the text shown in reports.
// A nil expiry means a session cookie. Expiries in the past render as
// "Expired", under a day as minutes, anything longer as fractional days.
func FormatCookieDuration(expires *time.Time, now time.Time) string {
	if expires == nil {
		return "Session"
	}
	remaining := expires.Sub(now)
	if remaining <= 0 {
		return "Expired"
	}
	if remaining < 24*time.Hour {
		minutes := int(math.Round(remaining.Minutes()))
		if minutes < 1 {
			minutes = 1
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return fmt.Sprintf("%.1f days", remaining.Hours()/24)
}
