package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"todozen/internal/model"
)

// KeywordBonus adds Bonus XP when any of Keywords appears in the category of a
// completed task.
type KeywordBonus struct {
	Keywords []string
	Bonus    int
}

// RewardPolicy is the weight table used to price a completion.
type RewardPolicy struct {
	Base int
	// Bonuses are evaluated independently; each row contributes at most once.
	Bonuses []KeywordBonus
	// RunesPerPoint adds one XP per that many title runes, up to LengthCap.
	RunesPerPoint int
	LengthCap     int
	// CoinDivisor converts XP to coins.
	CoinDivisor int
}

func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{
		Base: 10,
		Bonuses: []KeywordBonus{
			{Keywords: []string{"work"}, Bonus: 5},
			{Keywords: []string{"urgent", "important"}, Bonus: 10},
		},
		RunesPerPoint: 5,
		LengthCap:     20,
		CoinDivisor:   5,
	}
}

// XP returns the reward for completing task.
func (p RewardPolicy) XP(task model.Task) int {
	haystack := strings.ToLower(task.Category)
	xp := p.Base
	for _, row := range p.Bonuses {
		for _, kw := range row.Keywords {
			if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
				xp += row.Bonus
				break
			}
		}
	}
	if p.RunesPerPoint > 0 {
		extra := utf8.RuneCountInString(task.Title) / p.RunesPerPoint
		if p.LengthCap > 0 && extra > p.LengthCap {
			extra = p.LengthCap
		}
		xp += extra
	}
	return xp
}

func (p RewardPolicy) Coins(xp int) int {
	if p.CoinDivisor <= 0 || xp <= 0 {
		return 0
	}
	return xp / p.CoinDivisor
}

// ApplyCompletion credits coins and advances the streak for a completion at now.
// The streak grows only when the previous completion was on the calendar day
// before now, stays put for a second completion on the same day and restarts
// at 1 otherwise.
func ApplyCompletion(p *model.Profile, coins int, now time.Time) {
	if coins > 0 {
		p.Coins += coins
	}
	switch {
	case p.LastCompleted == nil:
		p.Streak = 1
	default:
		switch calendarDaysBetween(*p.LastCompleted, now) {
		case 0:
			if p.Streak == 0 {
				p.Streak = 1
			}
		case 1:
			p.Streak++
		default:
			p.Streak = 1
		}
	}
	completed := now
	p.LastCompleted = &completed
}

// calendarDaysBetween counts midnights crossed from a to b in b's location.
func calendarDaysBetween(a, b time.Time) int {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
