package utils

import (
	"fmt"
	"time"
)

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// TrailingWindow returns the [now-span, now] bounds used when a caller does not
// supply an explicit collection window.
func TrailingWindow(span time.Duration) (time.Time, time.Time) {
	if span <= 0 {
		span = 24 * time.Hour
	}
	end := time.Now().UTC()
	return end.Add(-span), end
}
