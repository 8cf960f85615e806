package utils

import (
	"fmt"
	"time"
)

const compactLayout = "20060102"

// CompactDate renders the calendar date of t in its own location as YYYYMMDD.
func CompactDate(t time.Time) string {
	return t.Format(compactLayout)
}

// AddDays adds whole calendar days, keeping the wall-clock time.
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// ParseDateParam accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
// A plain date used as an upper bound covers the whole day.
func ParseDateParam(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
