package services

import (
	"fmt"
	"testing"

	"rewards-engine/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database per test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.RewardProfile{},
		&models.Transaction{},
		&models.BadgeCategory{},
		&models.Badge{},
		&models.UserBadge{},
		&models.Challenge{},
		&models.ChallengeParticipation{},
		&models.CatalogItem{},
		&models.Redemption{},
		&models.Leaderboard{},
		&models.LeaderboardEntry{},
		&models.ActivityEvent{},
		&models.RewardEvent{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// newTestStack wires the full service graph over one test database.
type testStack struct {
	DB           *gorm.DB
	Config       Config
	Events       *EventService
	Profiles     *ProfileService
	Ledger       *LedgerService
	Leveling     *LevelingCalculator
	Streaks      *StreakService
	Badges       *BadgeService
	Challenges   *ChallengeService
	Catalog      *CatalogService
	Redemptions  *RedemptionService
	Leaderboards *LeaderboardService
	Activities   *ActivityService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := newTestDB(t)
	cfg := DefaultConfig()

	events := NewEventService(db)
	profiles := NewProfileService(db)
	ledger := NewLedgerService(db, events)
	leveling := NewLevelingCalculator(cfg)
	streaks := NewStreakService(db, events, cfg)
	badges := NewBadgeService(db, events, ledger, leveling)
	challenges := NewChallengeService(db, events, ledger, leveling, badges)
	catalog := NewCatalogService(db)
	redemptions := NewRedemptionService(db, events, ledger, catalog)
	leaderboards := NewLeaderboardService(db, leveling)
	activities := NewActivityService(db, profiles, ledger, leveling, streaks, badges, challenges, events, cfg)

	return &testStack{
		DB:           db,
		Config:       cfg,
		Events:       events,
		Profiles:     profiles,
		Ledger:       ledger,
		Leveling:     leveling,
		Streaks:      streaks,
		Badges:       badges,
		Challenges:   challenges,
		Catalog:      catalog,
		Redemptions:  redemptions,
		Leaderboards: leaderboards,
		Activities:   activities,
	}
}

// createProfile seeds a profile with a given balance for tests.
func (s *testStack) createProfile(t *testing.T, userID string, points int) *models.RewardProfile {
	t.Helper()

	profile, err := s.Profiles.GetOrCreate(userID)
	if err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	if points > 0 {
		if _, err := s.Ledger.Record(profile.ID, RecordInput{
			Type:        models.TxEarn,
			Amount:      points,
			SourceKind:  models.SourceManual,
			Description: "test seed",
		}); err != nil {
			t.Fatalf("failed to seed points: %v", err)
		}
		profile, err = s.Profiles.GetByUserID(userID)
		if err != nil {
			t.Fatalf("failed to reload profile: %v", err)
		}
	}
	return profile
}

func intPtr(v int) *int { return &v }
