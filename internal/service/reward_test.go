package service_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"todozen/internal/model"
	"todozen/internal/service"
)

func TestRewardPolicy_XP(t *testing.T) {
	policy := service.DefaultRewardPolicy()

	cases := []struct {
		name string
		task model.Task
		want int
	}{
		{"base", model.Task{Title: "tea"}, 10},
		{"work category", model.Task{Title: "tea", Category: "Work"}, 15},
		{"urgent category", model.Task{Title: "call", Category: "Urgent"}, 20},
		{"urgent and important count once", model.Task{Title: "x", Category: "urgent important"}, 20},
		{"work and urgent", model.Task{Title: "tea", Category: "urgent work"}, 25},
		{"keyword in title ignored", model.Task{Title: "Homework", Category: model.DefaultCategory}, 11},
		{"urgent title ignored", model.Task{Title: "URGENT", Category: "Home"}, 11},
		{"length capped", model.Task{Title: strings.Repeat("a", 500)}, 30},
		{"runes not bytes", model.Task{Title: "ççççç"}, 11},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, policy.XP(tc.task))
		})
	}
}

func TestRewardPolicy_Coins(t *testing.T) {
	policy := service.DefaultRewardPolicy()
	assert.Equal(t, 2, policy.Coins(14))
	assert.Equal(t, 0, policy.Coins(4))
	assert.Equal(t, 0, policy.Coins(-10))
	assert.Equal(t, 0, service.RewardPolicy{}.Coins(100))
}

func TestApplyCompletion(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2025, 3, d, h, 0, 0, 0, time.UTC) }

	var p model.Profile
	service.ApplyCompletion(&p, 2, day(1, 23))
	assert.Equal(t, 1, p.Streak)
	assert.Equal(t, 2, p.Coins)

	// Just after midnight is already the next calendar day.
	service.ApplyCompletion(&p, 2, day(2, 0))
	assert.Equal(t, 2, p.Streak)

	service.ApplyCompletion(&p, 0, day(2, 20))
	assert.Equal(t, 2, p.Streak)
	assert.Equal(t, 4, p.Coins)

	service.ApplyCompletion(&p, 1, day(5, 8))
	assert.Equal(t, 1, p.Streak)
	assert.Equal(t, 5, p.Coins)
	assert.True(t, p.LastCompleted.Equal(day(5, 8)))
}

func TestApplyCompletion_AcrossMonthEnd(t *testing.T) {
	last := time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC)
	p := model.Profile{Streak: 4, LastCompleted: &last}
	service.ApplyCompletion(&p, 0, time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC))
	assert.Equal(t, 5, p.Streak)
}
