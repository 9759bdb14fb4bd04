package wakatimeapi

import "fmt"

// FormatSeconds renders a duration the way WakaTime does, e.g. "5 hrs 30 mins".
// Every unit is floored; a value never rounds up into the next unit.
func FormatSeconds(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%d secs", int64(seconds))
	}

	minutes := int64(seconds) / 60
	if minutes < 60 {
		return fmt.Sprintf("%d mins", minutes)
	}

	hours := minutes / 60
	remMinutes := minutes % 60
	if hours < 24 {
		if remMinutes == 0 {
			return fmt.Sprintf("%d hrs", hours)
		}
		return fmt.Sprintf("%d hrs %d mins", hours, remMinutes)
	}

	days := hours / 24
	remHours := hours % 24
	if remHours == 0 {
		return fmt.Sprintf("%d days", days)
	}
	return fmt.Sprintf("%d days %d hrs", days, remHours)
}
