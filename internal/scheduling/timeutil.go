package scheduling

import (
	"fmt"
	"strings"
	"time"

	"medlink-server/internal/apperr"
)

var scheduledTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseScheduledTime parses an ISO-8601 timestamp. Values without a zone are
// taken as UTC. The result is UTC truncated to the second.
func ParseScheduledTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apperr.Validation("invalid_scheduled_time", "scheduled time is required")
	}
	for _, layout := range scheduledTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return normalize(t), nil
		}
	}
	return time.Time{}, apperr.Validation("invalid_scheduled_time",
		fmt.Sprintf("cannot parse %q as an ISO-8601 timestamp", value))
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, apperr.Validation("invalid_date",
			fmt.Sprintf("cannot parse %q as a YYYY-MM-DD date", value))
	}
	return t, nil
}

// StartOfDay returns UTC midnight of t's UTC calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// normalize drops the zone, sub-second precision and monotonic reading so
// stored and compared times agree across drivers.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
