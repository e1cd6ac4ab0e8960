package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"todozen/internal/model"
)

// Summary is a snapshot of an owner's tasks and reward state.
type Summary struct {
	Owner      string
	At         time.Time
	Total      int
	Open       int
	Done       int
	Overdue    []model.Task
	DueToday   []model.Task
	XPEarned   int
	Coins      int
	Streak     int
	Categories []model.CategoryStats
}

// CompletionRate is the share of done tasks in percent.
func (s Summary) CompletionRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Done) * 100 / float64(s.Total)
}

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	tasks    TaskStore
	profiles *ProfileService
}

func NewReminderService(tasks TaskStore, profiles *ProfileService) *ReminderService {
	return &ReminderService{tasks: tasks, profiles: profiles}
}

func (s *ReminderService) DailySummary(ctx context.Context, owner string, now time.Time) (Summary, error) {
	tasks, err := s.tasks.ListTasks(ctx, listAll(owner))
	if err != nil {
		return Summary{}, storeErr("daily summary", err)
	}

	sum := Summary{Owner: owner, At: now, Total: len(tasks), Categories: CategoryStats(tasks)}
	if sum.Owner == "" {
		sum.Owner = model.GuestOwner
	}
	y, m, d := now.Date()
	endOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	for _, task := range tasks {
		if task.Done {
			sum.Done++
			sum.XPEarned += task.XP
			continue
		}
		sum.Open++
		if !task.HasDue() {
			continue
		}
		switch {
		case task.Due.Before(now):
			sum.Overdue = append(sum.Overdue, task)
		case task.Due.Before(endOfDay):
			sum.DueToday = append(sum.DueToday, task)
		}
	}
	sortByDue(sum.Overdue)
	sortByDue(sum.DueToday)

	if s.profiles != nil {
		p, err := s.profiles.Get(ctx, sum.Owner)
		switch {
		case err == nil:
			sum.Coins = p.Coins
			sum.Streak = p.Streak
		case !isNotFound(err):
			return Summary{}, err
		}
	}
	return sum, nil
}

func sortByDue(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Due.Before(tasks[j].Due) })
}

// Text renders the summary. With asHTML the output uses Telegram's HTML
// subset and escapes user text.
func (s Summary) Text(asHTML bool) string {
	esc := func(v string) string { return v }
	bold := func(v string) string { return v }
	if asHTML {
		esc = html.EscapeString
		bold = func(v string) string { return "<b>" + v + "</b>" }
	}
	loc := s.At.Location()

	var b strings.Builder
	b.WriteString(bold("Daily report") + "\n")
	b.WriteString(fmt.Sprintf("%s · %s\n\n", s.At.Format("2006-01-02"), esc(s.Owner)))
	b.WriteString(fmt.Sprintf("Tasks: %d open, %d done (%.0f%% complete)\n", s.Open, s.Done, s.CompletionRate()))
	b.WriteString(fmt.Sprintf("XP earned: %d · Coins: %d · Streak: %d\n", s.XPEarned, s.Coins, s.Streak))

	section := func(title string, tasks []model.Task, layout string) {
		b.WriteString("\n" + bold(title) + "\n")
		if len(tasks) == 0 {
			b.WriteString("- nothing\n")
			return
		}
		for _, t := range tasks {
			b.WriteString(fmt.Sprintf("- %s %s", t.Due.In(loc).Format(layout), esc(t.Title)))
			if t.Category != "" {
				b.WriteString(fmt.Sprintf(" (%s)", esc(t.Category)))
			}
			b.WriteByte('\n')
		}
	}
	section("Overdue", s.Overdue, "01-02 15:04")
	section("Due today", s.DueToday, "15:04")

	if len(s.Categories) > 0 {
		b.WriteString("\n" + bold("Categories") + "\n")
		for _, c := range s.Categories {
			b.WriteString(fmt.Sprintf("- %s: %d open, %d done\n", esc(c.Name), c.Open, c.Done))
		}
	}
	return strings.TrimSpace(b.String())
}
