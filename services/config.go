package services

import (
	"os"
	"strconv"
)

// ActivityRule defines the point/XP weights for one CRM activity type.
type ActivityRule struct {
	Points int
	XP     int
}

// DefaultActivityRules weight the CRM activities the engine knows about.
// Unlisted activity types fall back to DefaultRule.
var DefaultActivityRules = map[string]ActivityRule{
	"lead_created":      {Points: 5, XP: 5},
	"lead_converted":    {Points: 50, XP: 40},
	"opportunity_won":   {Points: 75, XP: 60},
	"credit_disbursed":  {Points: 100, XP: 80},
	"payment_collected": {Points: 25, XP: 20},
	"client_meeting":    {Points: 10, XP: 10},
	"document_uploaded": {Points: 5, XP: 5},
}

// DefaultRule applies to activity types with no explicit weight.
var DefaultRule = ActivityRule{Points: 5, XP: 5}

// StreakBonusTier adds a multiplier to activity point awards once the streak
// reaches Days. Tiers must be ordered ascending; the highest reached wins.
type StreakBonusTier struct {
	Days       int
	Multiplier float64
}

// Config is the externally supplied tuning surface of the engine.
type Config struct {
	BaseXP           int     // XP needed to clear level 1
	LevelMultiplier  float64 // exponential curve factor
	StreakGraceHours int     // slack past the next-day boundary before a streak breaks
	StreakBonuses    []StreakBonusTier
}

// DefaultConfig mirrors the original gamification defaults.
func DefaultConfig() Config {
	return Config{
		BaseXP:           100,
		LevelMultiplier:  1.5,
		StreakGraceHours: 0,
		StreakBonuses: []StreakBonusTier{
			{Days: 7, Multiplier: 0.10},
			{Days: 14, Multiplier: 0.20},
			{Days: 30, Multiplier: 0.50},
		},
	}
}

// LoadConfig reads overrides from the environment on top of the defaults.
func LoadConfig() Config {
	cfg := DefaultConfig()
	if v, err := strconv.Atoi(os.Getenv("BASE_XP")); err == nil && v > 0 {
		cfg.BaseXP = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("LEVEL_MULTIPLIER"), 64); err == nil && v > 1 {
		cfg.LevelMultiplier = v
	}
	if v, err := strconv.Atoi(os.Getenv("STREAK_GRACE_HOURS")); err == nil && v >= 0 {
		cfg.StreakGraceHours = v
	}
	return cfg
}

// StreakBonus returns the bonus multiplier earned at a given streak length.
func (c Config) StreakBonus(streak int) float64 {
	bonus := 0.0
	for _, tier := range c.StreakBonuses {
		if streak >= tier.Days {
			bonus = tier.Multiplier
		}
	}
	return bonus
}
