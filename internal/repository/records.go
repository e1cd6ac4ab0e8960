package repository

import (
	"todozen/internal/model"
)

// Timestamps are stored as ISO-8601 text so a malformed value only affects
// the row that carries it.
type taskRecord struct {
	ID              string `gorm:"primaryKey"`
	Owner           string `gorm:"index;not null"`
	Title           string `gorm:"not null"`
	Category        string `gorm:"not null"`
	Due             string `gorm:"not null"`
	Created         string `gorm:"not null"`
	Done            bool   `gorm:"not null"`
	Recurrence      string `gorm:"not null"`
	RecurrenceExtra string `gorm:"not null"`
	Notified        bool   `gorm:"not null"`
	XP              int    `gorm:"column:xp;not null"`
}

func (taskRecord) TableName() string { return "tasks" }

type profileRecord struct {
	Username      string `gorm:"primaryKey"`
	Credential    []byte
	Coins         int `gorm:"not null"`
	Streak        int `gorm:"not null"`
	LastCompleted *string
}

func (profileRecord) TableName() string { return "profiles" }

func toTaskRecord(t model.Task) taskRecord {
	extra := "{}"
	if t.Recurrence == model.RecurrenceCustom {
		extra = model.EncodeRecurrenceExtra(t.Extra)
	}
	rec := string(t.Recurrence)
	if rec == "" {
		rec = string(model.RecurrenceNone)
	}
	return taskRecord{
		ID:              t.ID,
		Owner:           t.Owner,
		Title:           t.Title,
		Category:        t.Category,
		Due:             model.FormatTimestamp(t.Due),
		Created:         model.FormatTimestamp(t.Created),
		Done:            t.Done,
		Recurrence:      rec,
		RecurrenceExtra: extra,
		Notified:        t.Notified,
		XP:              t.XP,
	}
}

// toTask never fails: an unparsable due loads as zero and a malformed
// recurrence extra loads as nil, both of which the callers treat as inert.
func (r taskRecord) toTask() model.Task {
	due, _ := model.ParseTimestamp(r.Due)
	created, _ := model.ParseTimestamp(r.Created)
	task := model.Task{
		ID:         r.ID,
		Owner:      r.Owner,
		Title:      r.Title,
		Category:   r.Category,
		Due:        due,
		Created:    created,
		Done:       r.Done,
		Recurrence: model.Recurrence(r.Recurrence),
		Notified:   r.Notified,
		XP:         r.XP,
	}
	if task.Recurrence == model.RecurrenceCustom {
		if extra, err := model.DecodeRecurrenceExtra(r.RecurrenceExtra); err == nil {
			task.Extra = extra
		}
	}
	return task
}

func toProfileRecord(p model.Profile) profileRecord {
	rec := profileRecord{
		Username:   p.Username,
		Credential: p.Credential,
		Coins:      p.Coins,
		Streak:     p.Streak,
	}
	if p.LastCompleted != nil {
		s := model.FormatTimestamp(*p.LastCompleted)
		rec.LastCompleted = &s
	}
	return rec
}

func (r profileRecord) toProfile() model.Profile {
	p := model.Profile{
		Username:   r.Username,
		Credential: r.Credential,
		Coins:      r.Coins,
		Streak:     r.Streak,
	}
	if r.LastCompleted != nil {
		if t, ok := model.ParseTimestamp(*r.LastCompleted); ok {
			p.LastCompleted = &t
		}
	}
	return p
}
