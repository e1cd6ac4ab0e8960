// Package recurrence computes the next occurrence of a repeating task.
//
// Every rule advances from the task's previous scheduled due time, never
// from the moment it was completed, so late or early completion does not
// shift the schedule.
package recurrence

import (
	"time"

	"todozen/internal/model"
)

// Next returns the due time following task.Due under the task's recurrence
// policy. The boolean is false when no further occurrence exists: the task
// does not repeat, has no usable due time, or its custom rule is malformed.
func Next(task model.Task) (time.Time, bool) {
	if !task.HasDue() {
		return time.Time{}, false
	}
	due := task.Due

	switch task.Recurrence {
	case model.RecurrenceDaily:
		return due.AddDate(0, 0, 1), true
	case model.RecurrenceWeekly:
		return due.AddDate(0, 0, 7), true
	case model.RecurrenceMonthly:
		return addMonthClamped(due), true
	case model.RecurrenceCustom:
		return nextCustom(due, task.Extra)
	default:
		return time.Time{}, false
	}
}

func nextCustom(due time.Time, extra model.RecurrenceExtra) (time.Time, bool) {
	switch v := extra.(type) {
	case model.EveryNDays:
		if v.N < 1 {
			return time.Time{}, false
		}
		return due.AddDate(0, 0, v.N), true
	case model.Weekdays:
		days, ok := v.Sorted()
		if !ok || len(days) == 0 {
			return time.Time{}, false
		}
		return due.AddDate(0, 0, daysUntilNext(Weekday(due), days)), true
	default:
		return time.Time{}, false
	}
}

// daysUntilNext picks the smallest configured day after wd, wrapping into
// the following week when none is left. days must be sorted.
func daysUntilNext(wd int, days []int) int {
	for _, d := range days {
		if d > wd {
			return d - wd
		}
	}
	return (7 - wd) + days[0]
}

// Weekday maps t to 0=Monday..6=Sunday.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// addMonthClamped moves t to the same day of the next month, falling back
// to that month's last day when it is shorter (Jan 31 -> Feb 28/29).
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if last := daysInMonth(month, year); day > last {
		day = last
	}
	hour, minute, sec := t.Clock()
	return time.Date(year, month, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
