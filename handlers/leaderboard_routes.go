// handlers/leaderboard_routes.go
package handlers

import (
	"errors"
	"strconv"

	"rewards-engine/middleware"
	"rewards-engine/models"
	"rewards-engine/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupLeaderboardRoutes(
	app *fiber.App,
	profiles *services.ProfileService,
	leaderboards *services.LeaderboardService,
) {
	secured := app.Group("/s", middleware.UserContextMiddleware())
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.AdminOnly())

	secured.Get("/leaderboards", func(c *fiber.Ctx) error {
		boards, err := leaderboards.List(false)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load leaderboards",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"leaderboards": boards})
	})

	secured.Get("/leaderboards/:slug", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		n, _ := strconv.Atoi(c.Query("limit", "100"))

		board, err := leaderboards.GetBySlug(c.Params("slug"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "leaderboard not found",
			})
		}

		top, err := leaderboards.Top(board.ID, n)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load entries",
				"cause": err.Error(),
			})
		}

		entries := make([]fiber.Map, 0, len(top))
		for i := range top {
			entries = append(entries, fiber.Map{
				"entry":       top[i],
				"rank_change": top[i].RankChange(),
			})
		}

		response := fiber.Map{
			"leaderboard": board,
			"entries":     entries,
		}

		// Caller's own position, if ranked.
		if profile, err := profiles.GetByUserID(userID); err == nil {
			mine, err := leaderboards.UserRank(board.ID, profile.ID)
			if err == nil && mine != nil {
				response["my_entry"] = fiber.Map{
					"entry":       mine,
					"rank_change": mine.RankChange(),
				}
			}
		}

		return c.JSON(response)
	})

	// --- Admin leaderboard management ---

	admin.Post("/leaderboards", func(c *fiber.Ctx) error {
		var body struct {
			Name        string                   `json:"name"`
			Description string                   `json:"description"`
			Metric      models.LeaderboardMetric `json:"metric"`
			Period      models.LeaderboardPeriod `json:"period"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid payload",
				"cause": err.Error(),
			})
		}
		if body.Name == "" || body.Metric == "" || body.Period == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "name, metric and period are required",
			})
		}

		board, err := leaderboards.Create(body.Name, body.Description, body.Metric, body.Period)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create leaderboard",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(board)
	})

	admin.Post("/leaderboards/:id/rebuild", func(c *fiber.Ctx) error {
		if err := leaderboards.Rebuild(c.Params("id")); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "leaderboard not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "rebuild failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "rebuilt"})
	})

	admin.Get("/leaderboards", func(c *fiber.Ctx) error {
		boards, err := leaderboards.List(true)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load leaderboards",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"leaderboards": boards})
	})
}
