package model

import "time"

// GuestOwner is the owner of tasks created without a signed-in profile.
const GuestOwner = "guest"

// DefaultCategory is used when a task is created without a category.
const DefaultCategory = "General"

// Recurrence names how a task repeats once completed.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceCustom  Recurrence = "custom"
)

func (r Recurrence) IsValid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceCustom:
		return true
	}
	return false
}

// Task represents one scheduled occurrence of a reminder.
type Task struct {
	ID         string
	Owner      string
	Title      string
	Category   string
	Due        time.Time
	Created    time.Time
	Done       bool
	Recurrence Recurrence
	// Extra is only meaningful for RecurrenceCustom; nil otherwise.
	Extra    RecurrenceExtra
	Notified bool
	XP       int
}

// HasDue reports whether the task carries a usable due timestamp.
// Rows whose stored due could not be parsed load with a zero Due.
func (t Task) HasDue() bool {
	return !t.Due.IsZero()
}

// Repeats reports whether completing the task schedules another occurrence.
func (t Task) Repeats() bool {
	return t.Recurrence != "" && t.Recurrence != RecurrenceNone
}
