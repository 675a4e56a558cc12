package logging

import "time"

// Console lines carry milliseconds: readiness samples and retries are often
// less than a second apart.
const consoleTimeLayout = "2006-01-02 15:04:05.000"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(consoleTimeLayout)
}

// formatTimeValue renders time attributes (marker creation, history stamps)
// in UTC so they compare directly with marker JSON.
func formatTimeValue(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}
