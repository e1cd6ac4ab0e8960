package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"todozen/internal/model"
)

var dueLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDue reads a due time typed by a person. Accepted forms are RFC 3339,
// "YYYY-MM-DD HH:MM", "YYYY-MM-DD" (09:00 that day), "HH:MM" (the next such
// moment after now) and "+<duration>" relative to now. Local forms use
// now's location.
func ParseDue(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty due", ErrInvalidInput)
	}
	if strings.HasPrefix(s, "+") {
		d, err := time.ParseDuration(s[1:])
		if err != nil || d <= 0 {
			return time.Time{}, fmt.Errorf("%w: bad relative due %q", ErrInvalidInput, s)
		}
		return now.Add(d).Truncate(time.Minute), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	loc := now.Location()
	for _, layout := range dueLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" {
			t = t.Add(9 * time.Hour)
		}
		return t, nil
	}
	if t, err := time.ParseInLocation("15:04", s, loc); err == nil {
		y, m, d := now.Date()
		at := time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return at, nil
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised due %q", ErrInvalidInput, s)
}

// ParseRecurrence reads a recurrence rule: none, daily, weekly, monthly,
// "every:N" for every N days, or "days:tue,fri" for a weekday set.
func ParseRecurrence(s string) (model.Recurrence, model.RecurrenceExtra, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none", "once":
		return model.RecurrenceNone, nil, nil
	case "daily", "weekly", "monthly":
		return model.Recurrence(s), nil, nil
	}

	kind, arg, ok := strings.Cut(s, ":")
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown recurrence %q", ErrInvalidInput, s)
	}
	switch kind {
	case "every":
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(arg), "d"))
		if err != nil || n < 1 {
			return "", nil, fmt.Errorf("%w: every-N-days needs a positive N, got %q", ErrInvalidInput, arg)
		}
		return model.RecurrenceCustom, model.EveryNDays{N: n}, nil
	case "days", "weekdays":
		var days []int
		for _, part := range strings.Split(arg, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			d, err := model.ParseWeekday(part)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			days = append(days, d)
		}
		if len(days) == 0 {
			return "", nil, fmt.Errorf("%w: weekday set is empty", ErrInvalidInput)
		}
		sorted, _ := model.Weekdays{Days: days}.Sorted()
		return model.RecurrenceCustom, model.Weekdays{Days: sorted}, nil
	}
	return "", nil, fmt.Errorf("%w: unknown recurrence %q", ErrInvalidInput, s)
}

// ShortID is the id prefix shown in compact listings.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
