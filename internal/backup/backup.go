// Package backup exports the local task store to a flat list of records and
// restores it through the store's regular upsert path.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"todozen/internal/model"
	"todozen/internal/repository"
)

// Format selects the serialization used for a backup.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts a format name or a file name ending in a known extension.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == "json" || strings.HasSuffix(s, ".json"):
		return FormatJSON, nil
	case s == "yaml" || s == "yml" || strings.HasSuffix(s, ".yaml") || strings.HasSuffix(s, ".yml"):
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown backup format %q", s)
}

// Record is one task with every field present.
type Record struct {
	ID              string `json:"id" yaml:"id"`
	Owner           string `json:"owner" yaml:"owner"`
	Title           string `json:"title" yaml:"title"`
	Category        string `json:"category" yaml:"category"`
	Due             string `json:"due" yaml:"due"`
	Created         string `json:"created" yaml:"created"`
	Done            bool   `json:"done" yaml:"done"`
	Recurrence      string `json:"recurrence" yaml:"recurrence"`
	RecurrenceExtra string `json:"recurrence_extra" yaml:"recurrence_extra"`
	Notified        bool   `json:"notified" yaml:"notified"`
	XP              int    `json:"xp" yaml:"xp"`
}

func toRecord(t model.Task) Record {
	return Record{
		ID:              t.ID,
		Owner:           t.Owner,
		Title:           t.Title,
		Category:        t.Category,
		Due:             model.FormatTimestamp(t.Due),
		Created:         model.FormatTimestamp(t.Created),
		Done:            t.Done,
		Recurrence:      string(t.Recurrence),
		RecurrenceExtra: model.EncodeRecurrenceExtra(t.Extra),
		Notified:        t.Notified,
		XP:              t.XP,
	}
}

// toTask mirrors how the store loads rows: unreadable timestamps become zero
// and an unreadable recurrence rule becomes nil.
func (r Record) toTask() model.Task {
	due, _ := model.ParseTimestamp(r.Due)
	created, _ := model.ParseTimestamp(r.Created)
	extra, _ := model.DecodeRecurrenceExtra(r.RecurrenceExtra)
	rec := model.Recurrence(r.Recurrence)
	if !rec.IsValid() {
		rec = model.RecurrenceNone
	}
	return model.Task{
		ID:         r.ID,
		Owner:      r.Owner,
		Title:      r.Title,
		Category:   r.Category,
		Due:        due,
		Created:    created,
		Done:       r.Done,
		Recurrence: rec,
		Extra:      extra,
		Notified:   r.Notified,
		XP:         r.XP,
	}
}

type Source interface {
	ListTasks(ctx context.Context, opts repository.ListOptions) ([]model.Task, error)
}

type Sink interface {
	UpsertTask(ctx context.Context, task model.Task) error
}

// Export writes every task in src to w and returns how many were written.
func Export(ctx context.Context, src Source, w io.Writer, format Format) (int, error) {
	tasks, err := src.ListTasks(ctx, repository.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	records := make([]Record, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, toRecord(t))
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return 0, fmt.Errorf("export: encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return 0, fmt.Errorf("export: encode yaml: %w", err)
		}
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return 0, fmt.Errorf("export: encode json: %w", err)
		}
	}
	return len(records), nil
}

// Import reads records from r and upserts each one into dst. Records keep
// their ids, so re-importing the same backup changes nothing. Records without
// an id are skipped.
func Import(ctx context.Context, dst Sink, r io.Reader, format Format) (int, error) {
	var records []Record
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&records); err != nil && err != io.EOF {
			return 0, fmt.Errorf("import: decode yaml: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return 0, fmt.Errorf("import: decode json: %w", err)
		}
	}

	n := 0
	for _, rec := range records {
		if strings.TrimSpace(rec.ID) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := dst.UpsertTask(ctx, rec.toTask()); err != nil {
			return n, fmt.Errorf("import %s: %w", rec.ID, err)
		}
		n++
	}
	return n, nil
}
