package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDeadline parses a watch deadline. Zone-less forms are read in loc:
//   - "2025-10-20"              (end of that day, 23:59)
//   - "2025-10-20 15:00"
//   - "2025-10-20 15:00:30"
//   - "2025-10-20T15:00:00+08:00" (RFC3339, keeps its own zone)
func ParseDeadline(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("invalid deadline %q. Use YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC3339 (e.g. 2025-10-20 23:00)", s)
}
