package service

import (
	"context"
	"sort"
	"strings"

	"todozen/internal/model"
)

// CategoryService provides helpers around categories.
type CategoryService struct {
	store TaskStore
}

func NewCategoryService(store TaskStore) *CategoryService {
	return &CategoryService{store: store}
}

// List returns per-category open and done counts for owner, by name.
func (s *CategoryService) List(ctx context.Context, owner string) ([]model.CategoryStats, error) {
	tasks, err := s.store.ListTasks(ctx, listAll(owner))
	if err != nil {
		return nil, storeErr("list categories", err)
	}
	return CategoryStats(tasks), nil
}

// CategoryStats groups tasks by category label, case-insensitively.
func CategoryStats(tasks []model.Task) []model.CategoryStats {
	byKey := make(map[string]*model.CategoryStats)
	for _, t := range tasks {
		name := strings.TrimSpace(t.Category)
		if name == "" {
			name = model.DefaultCategory
		}
		key := strings.ToLower(name)
		st, ok := byKey[key]
		if !ok {
			st = &model.CategoryStats{Name: name}
			byKey[key] = st
		}
		if t.Done {
			st.Done++
		} else {
			st.Open++
		}
	}

	out := make([]model.CategoryStats, 0, len(byKey))
	for _, st := range byKey {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
