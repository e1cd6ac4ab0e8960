package model

import "time"

// TimestampLayout is the ISO-8601 form used for every persisted timestamp.
const TimestampLayout = time.RFC3339Nano

// FormatTimestamp renders t for storage; the zero time renders empty.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a stored timestamp; the boolean is false for
// malformed or empty input.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
