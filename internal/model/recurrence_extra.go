package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RecurrenceExtra configures a custom recurrence. The concrete value is
// either EveryNDays or Weekdays; a nil RecurrenceExtra means no custom rule.
type RecurrenceExtra interface {
	recurrenceExtra()
}

// EveryNDays repeats the task N days after its previous due date.
type EveryNDays struct {
	N int
}

// Weekdays repeats the task on the listed weekdays, 0=Monday..6=Sunday.
type Weekdays struct {
	Days []int
}

func (EveryNDays) recurrenceExtra() {}
func (Weekdays) recurrenceExtra()   {}

// Sorted returns the distinct configured days in ascending order and
// whether every index lies in 0..6.
func (w Weekdays) Sorted() ([]int, bool) {
	seen := make(map[int]bool, len(w.Days))
	out := make([]int, 0, len(w.Days))
	for _, d := range w.Days {
		if d < 0 || d > 6 {
			return nil, false
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out, true
}

// extraDoc is the persisted key-value form of a RecurrenceExtra.
type extraDoc struct {
	EveryXDays *int  `json:"every_x_days,omitempty" yaml:"every_x_days,omitempty"`
	Weekdays   []int `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`
}

// EncodeRecurrenceExtra serialises extra into its stored text form.
func EncodeRecurrenceExtra(extra RecurrenceExtra) string {
	var doc extraDoc
	switch v := extra.(type) {
	case EveryNDays:
		n := v.N
		doc.EveryXDays = &n
	case Weekdays:
		doc.Weekdays = append([]int{}, v.Days...)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// DecodeRecurrenceExtra parses the stored text form. An empty document
// decodes to nil. Exactly one sub-mode may be present.
func DecodeRecurrenceExtra(raw string) (RecurrenceExtra, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" || raw == "null" {
		return nil, nil
	}
	var doc extraDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode recurrence extra: %w", err)
	}
	switch {
	case doc.EveryXDays != nil && doc.Weekdays != nil:
		return nil, fmt.Errorf("recurrence extra has both every_x_days and weekdays")
	case doc.EveryXDays != nil:
		return EveryNDays{N: *doc.EveryXDays}, nil
	case doc.Weekdays != nil:
		return Weekdays{Days: doc.Weekdays}, nil
	}
	return nil, nil
}

// DescribeRecurrence renders a short human label, e.g. "custom: Tue, Fri".
func DescribeRecurrence(r Recurrence, extra RecurrenceExtra) string {
	if r != RecurrenceCustom {
		if r == "" {
			return string(RecurrenceNone)
		}
		return string(r)
	}
	switch v := extra.(type) {
	case EveryNDays:
		return fmt.Sprintf("custom: every %d days", v.N)
	case Weekdays:
		days, ok := v.Sorted()
		if !ok {
			return "custom: invalid weekdays"
		}
		names := make([]string, 0, len(days))
		for _, d := range days {
			names = append(names, weekdayNames[d])
		}
		return "custom: " + strings.Join(names, ", ")
	}
	return "custom"
}

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ParseWeekday accepts "mon".."sun" (any case, 3+ letters) or "0".."6".
func ParseWeekday(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 1 && s[0] >= '0' && s[0] <= '6' {
		return int(s[0] - '0'), nil
	}
	if len(s) >= 3 {
		for i, name := range weekdayNames {
			if strings.HasPrefix(s, strings.ToLower(name)) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
