// handlers/catalog_routes.go
package handlers

import (
	"errors"
	"strconv"

	"rewards-engine/middleware"
	"rewards-engine/models"
	"rewards-engine/services"
	"rewards-engine/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

func SetupCatalogRoutes(
	app *fiber.App,
	profiles *services.ProfileService,
	catalog *services.CatalogService,
	redemptions *services.RedemptionService,
) {
	secured := app.Group("/s", middleware.UserContextMiddleware())
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.AdminOnly())

	secured.Get("/catalog", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := profiles.GetOrCreate(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load profile",
				"cause": err.Error(),
			})
		}

		filter := services.ListFilter{FeaturedOnly: c.QueryBool("featured")}
		if raw := c.Query("category"); raw != "" {
			category := models.CatalogCategory(raw)
			filter.Category = &category
		}
		if c.QueryBool("affordable") {
			filter.AffordableFor = profile
		}

		items, err := catalog.List(filter)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load catalog",
				"cause": err.Error(),
			})
		}

		// Per-item eligibility so the UI can grey out what the user can't get.
		out := make([]fiber.Map, 0, len(items))
		for i := range items {
			eligibility, err := catalog.CheckEligibility(profile, &items[i])
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "eligibility check failed",
					"cause": err.Error(),
				})
			}
			out = append(out, fiber.Map{
				"item":       items[i],
				"can_redeem": eligibility.CanRedeem,
				"ineligible": eligibility.Errors,
			})
		}
		return c.JSON(fiber.Map{"items": out})
	})

	secured.Post("/catalog/:id/redeem", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := profiles.GetOrCreate(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load profile",
				"cause": err.Error(),
			})
		}

		var body struct {
			DeliveryInfo map[string]any `json:"delivery_info"`
			Notes        string         `json:"notes"`
		}
		_ = c.BodyParser(&body)

		redemption, err := redemptions.Redeem(profile.ID, c.Params("id"), body.DeliveryInfo, body.Notes)
		if err != nil {
			var eligibility *services.EligibilityError
			switch {
			case errors.As(err, &eligibility):
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"error":  "not eligible",
					"errors": eligibility.Reasons,
				})
			case errors.Is(err, services.ErrConflict):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": "item just sold out or balance changed, try again",
				})
			case errors.Is(err, gorm.ErrRecordNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "catalog item not found",
				})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "redemption failed",
					"cause": err.Error(),
				})
			}
		}
		return c.Status(fiber.StatusCreated).JSON(redemption)
	})

	secured.Get("/user/redemptions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "50"))

		profile, err := profiles.GetByUserID(userID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "profile not found",
			})
		}

		var status *models.RedemptionStatus
		if raw := c.Query("status"); raw != "" {
			st := models.RedemptionStatus(raw)
			status = &st
		}

		history, err := redemptions.History(profile.ID, status, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load redemptions",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"redemptions": history})
	})

	secured.Post("/user/redemptions/:id/cancel", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := profiles.GetByUserID(userID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "profile not found",
			})
		}

		// Users may only cancel their own redemptions.
		var owned models.Redemption
		if err := redemptions.DB.
			Where("id = ? AND reward_profile_id = ?", c.Params("id"), profile.ID).
			First(&owned).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "redemption not found",
			})
		}

		var body struct {
			Reason string `json:"reason"`
		}
		_ = c.BodyParser(&body)

		redemption, err := redemptions.Cancel(owned.ID, userID, body.Reason)
		if err != nil {
			return respondTransitionError(c, err)
		}
		return c.JSON(redemption)
	})

	// --- Admin catalog management ---

	admin.Post("/catalog", func(c *fiber.Ctx) error {
		var item models.CatalogItem
		if err := c.BodyParser(&item); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid payload",
				"cause": err.Error(),
			})
		}
		if item.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "name is required",
			})
		}

		item.ID = uuid.NewString()
		item.Slug = slug.Make(item.Name)
		if err := catalog.DB.Create(&item).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create catalog item",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(item)
	})

	admin.Put("/catalog/:id", func(c *fiber.Ctx) error {
		item, err := catalog.Get(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "catalog item not found",
			})
		}
		if err := c.BodyParser(item); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid payload",
				"cause": err.Error(),
			})
		}
		if err := catalog.DB.Save(item).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update catalog item",
				"cause": err.Error(),
			})
		}
		return c.JSON(item)
	})

	admin.Post("/catalog/:id/image", func(c *fiber.Ctx) error {
		item, err := catalog.Get(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "catalog item not found",
			})
		}

		file, err := c.FormFile("image")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "image file is required",
			})
		}

		url, err := utils.UploadFileToR2(file, utils.ImageKey("catalog", item.Name, file.Filename))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "upload failed",
				"cause": err.Error(),
			})
		}

		item.ImageURL = url
		if err := catalog.DB.Model(item).Update("image_url", url).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to save image url",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"image_url": url})
	})

	admin.Get("/catalog", func(c *fiber.Ctx) error {
		items, err := catalog.List(services.ListFilter{IncludeHidden: true})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load catalog",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"items": items})
	})

	// --- Admin redemption queue ---

	admin.Get("/redemptions", func(c *fiber.Ctx) error {
		status := models.RedemptionStatus(c.Query("status", string(models.RedemptionPending)))
		limit, _ := strconv.Atoi(c.Query("limit", "100"))

		queue, err := redemptions.ListByStatus(status, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load redemptions",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"redemptions": queue})
	})

	admin.Post("/redemptions/:id/approve", redemptionAction(redemptions.Approve))
	admin.Post("/redemptions/:id/reject", redemptionAction(redemptions.Reject))
	admin.Post("/redemptions/:id/fulfill", redemptionAction(redemptions.Fulfill))
	admin.Post("/redemptions/:id/cancel", redemptionAction(redemptions.Cancel))
}

// redemptionAction adapts one lifecycle method into a fiber handler.
func redemptionAction(fn func(redemptionID, adminID, notes string) (*models.Redemption, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)

		var body struct {
			Notes string `json:"notes"`
		}
		_ = c.BodyParser(&body)

		redemption, err := fn(c.Params("id"), adminID, body.Notes)
		if err != nil {
			return respondTransitionError(c, err)
		}
		return c.JSON(redemption)
	}
}

// respondTransitionError maps redemption lifecycle failures to statuses.
func respondTransitionError(c *fiber.Ctx, err error) error {
	var transition *services.TransitionError
	switch {
	case errors.As(err, &transition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": transition.Error(),
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "redemption not found",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "redemption update failed",
			"cause": err.Error(),
		})
	}
}
