// handlers/profile_routes.go
package handlers

import (
	"strconv"

	"rewards-engine/middleware"
	"rewards-engine/models"
	"rewards-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProfileRoutes(
	app *fiber.App,
	profiles *services.ProfileService,
	ledger *services.LedgerService,
	leveling *services.LevelingCalculator,
	activities *services.ActivityService,
	events *services.EventService,
) {
	// Secured routes — the gateway forwards /api/v1/rewards/s/... here with
	// X-User-ID / X-User-Roles set.
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/user/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := profiles.GetOrCreate(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load profile",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"id":                profile.ID,
			"user_id":           profile.UserID,
			"level":             profile.Level,
			"experience_points": profile.ExperiencePoints,
			"xp_for_next_level": leveling.XPForLevel(profile.Level),
			"level_progress":    leveling.LevelProgress(profile),
			"total_points":      profile.TotalPoints,
			"lifetime_points":   profile.LifetimePoints,
			"current_streak":    profile.CurrentStreak,
			"longest_streak":    profile.LongestStreak,
			"last_activity_at":  profile.LastActivityAt,
		})
	})

	secured.Get("/user/transactions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "50"))

		profile, err := profiles.GetByUserID(userID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "profile not found",
			})
		}

		var typ *models.TransactionType
		if raw := c.Query("type"); raw != "" {
			t := models.TransactionType(raw)
			typ = &t
		}

		entries, err := ledger.History(profile.ID, typ, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load transactions",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"transactions": entries})
	})

	secured.Get("/user/activities", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "50"))

		profile, err := profiles.GetByUserID(userID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "profile not found",
			})
		}

		history, err := activities.History(profile.ID, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load activities",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"activities": history})
	})

	secured.Get("/user/events/stream", events.StreamUserEventsSSE)
}
