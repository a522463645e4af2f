package services

import (
	"math"

	"rewards-engine/models"
)

// LevelingCalculator maps cumulative XP to levels along a configurable
// exponential curve. Pure; it mutates only the profile passed in and never
// touches storage.
type LevelingCalculator struct {
	BaseXP     int
	Multiplier float64
}

func NewLevelingCalculator(cfg Config) *LevelingCalculator {
	return &LevelingCalculator{BaseXP: cfg.BaseXP, Multiplier: cfg.LevelMultiplier}
}

// XPForLevel returns the XP needed to clear the given level:
// base_xp * multiplier^(level-1)
func (l *LevelingCalculator) XPForLevel(level int) int {
	if level < 1 {
		level = 1
	}
	return int(float64(l.BaseXP) * math.Pow(l.Multiplier, float64(level-1)))
}

// LevelProgress returns the percentage toward the next level, capped at 100
// and rounded to 2 decimal places. A non-positive threshold (misconfigured
// curve) reports 100.
func (l *LevelingCalculator) LevelProgress(profile *models.RewardProfile) float64 {
	threshold := l.XPForLevel(profile.Level)
	if threshold <= 0 {
		return 100
	}
	pct := float64(profile.ExperiencePoints) / float64(threshold) * 100
	return math.Min(100, math.Round(pct*100)/100)
}

// TotalXP returns the cumulative XP a profile has ever earned: every cleared
// level's threshold plus the XP banked toward the next one.
func (l *LevelingCalculator) TotalXP(profile *models.RewardProfile) int {
	total := profile.ExperiencePoints
	for level := 1; level < profile.Level; level++ {
		total += l.XPForLevel(level)
	}
	return total
}

// ApplyXP adds delta to the profile's XP and consumes level thresholds while
// enough XP is banked, supporting multi-level jumps in one award. It returns
// one LevelUp per level gained; the caller publishes them after its
// transaction commits. Level never decreases: negative deltas are ignored.
func (l *LevelingCalculator) ApplyXP(profile *models.RewardProfile, delta int) []models.LevelUp {
	if delta <= 0 {
		return nil
	}

	profile.ExperiencePoints += delta

	var ups []models.LevelUp
	for profile.ExperiencePoints >= l.XPForLevel(profile.Level) {
		threshold := l.XPForLevel(profile.Level)
		if threshold <= 0 {
			break
		}
		profile.ExperiencePoints -= threshold
		previous := profile.Level
		profile.Level++
		ups = append(ups, models.LevelUp{
			UserID:        profile.UserID,
			PreviousLevel: previous,
			NewLevel:      profile.Level,
			IsMilestone:   profile.Level%10 == 0,
		})
	}
	return ups
}
