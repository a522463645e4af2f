// handlers/badge_routes.go
package handlers

import (
	"rewards-engine/middleware"
	"rewards-engine/models"
	"rewards-engine/services"
	"rewards-engine/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

func SetupBadgeRoutes(
	app *fiber.App,
	profiles *services.ProfileService,
	badges *services.BadgeService,
) {
	secured := app.Group("/s", middleware.UserContextMiddleware())
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.AdminOnly())

	secured.Get("/user/badges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := profiles.GetOrCreate(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load profile",
				"cause": err.Error(),
			})
		}

		available, err := badges.ListAvailable(profile.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load badges",
				"cause": err.Error(),
			})
		}

		earned, err := badges.ListEarned(profile.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load earned badges",
				"cause": err.Error(),
			})
		}
		earnedAt := make(map[string]*models.UserBadge, len(earned))
		for i := range earned {
			earnedAt[earned[i].BadgeID] = &earned[i]
		}

		out := make([]fiber.Map, 0, len(available))
		for i := range available {
			badge := &available[i]
			entry := fiber.Map{
				"badge":        badge,
				"rarity_color": models.RarityColor(badge.Rarity),
				"earned":       false,
			}
			if ub, ok := earnedAt[badge.ID]; ok {
				entry["earned"] = true
				entry["earned_at"] = ub.EarnedAt
			}
			out = append(out, entry)
		}
		return c.JSON(fiber.Map{"badges": out})
	})

	// --- Admin badge management ---

	admin.Post("/badges", func(c *fiber.Ctx) error {
		var badge models.Badge
		if err := c.BodyParser(&badge); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid payload",
				"cause": err.Error(),
			})
		}
		if badge.Name == "" || badge.CriteriaType == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "name and criteria_type are required",
			})
		}

		badge.ID = uuid.NewString()
		badge.Slug = slug.Make(badge.Name)
		if err := badges.DB.Create(&badge).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create badge",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(badge)
	})

	admin.Put("/badges/:id", func(c *fiber.Ctx) error {
		var badge models.Badge
		if err := badges.DB.Where("id = ?", c.Params("id")).First(&badge).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "badge not found",
			})
		}
		if err := c.BodyParser(&badge); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid payload",
				"cause": err.Error(),
			})
		}
		if err := badges.DB.Save(&badge).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update badge",
				"cause": err.Error(),
			})
		}
		return c.JSON(badge)
	})

	admin.Post("/badges/:id/icon", func(c *fiber.Ctx) error {
		var badge models.Badge
		if err := badges.DB.Where("id = ?", c.Params("id")).First(&badge).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "badge not found",
			})
		}

		file, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "icon file is required",
			})
		}

		url, err := utils.UploadFileToR2(file, utils.ImageKey("badges", badge.Name, file.Filename))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "upload failed",
				"cause": err.Error(),
			})
		}

		if err := badges.DB.Model(&badge).Update("icon_url", url).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to save icon url",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"icon_url": url})
	})

	// Manual grant: support tooling for one-off awards.
	admin.Post("/badges/:id/grant/:userId", func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)

		var badge models.Badge
		if err := badges.DB.Where("id = ?", c.Params("id")).First(&badge).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "badge not found",
			})
		}

		profile, err := profiles.GetOrCreate(c.Params("userId"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load profile",
				"cause": err.Error(),
			})
		}

		userBadge, fresh, err := badges.Grant(profile, &badge, map[string]any{
			"granted_by": adminID,
		})
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "profile not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "grant failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"user_badge": userBadge, "fresh": fresh})
	})

	admin.Get("/badges", func(c *fiber.Ctx) error {
		var all []models.Badge
		if err := badges.DB.Order("sort_order").Order("name").Find(&all).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load badges",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"badges": all})
	})
}
