// handlers/challenge_routes.go
package handlers

import (
	"errors"
	"time"

	"rewards-engine/middleware"
	"rewards-engine/models"
	"rewards-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

func SetupChallengeRoutes(
	app *fiber.App,
	profiles *services.ProfileService,
	challenges *services.ChallengeService,
) {
	secured := app.Group("/s", middleware.UserContextMiddleware())
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.AdminOnly())

	secured.Get("/challenges", func(c *fiber.Ctx) error {
		current, err := challenges.ListCurrent(time.Now())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load challenges",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"challenges": current})
	})

	secured.Post("/challenges/:id/join", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := profiles.GetOrCreate(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load profile",
				"cause": err.Error(),
			})
		}

		participation, err := challenges.Join(profile, c.Params("id"))
		if err != nil {
			switch {
			case errors.Is(err, services.ErrChallengeNotOpen):
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"error": services.ErrChallengeNotOpen.Error(),
				})
			case errors.Is(err, services.ErrChallengeFull):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": services.ErrChallengeFull.Error(),
				})
			case errors.Is(err, gorm.ErrRecordNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "challenge not found",
				})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "join failed",
					"cause": err.Error(),
				})
			}
		}
		return c.Status(fiber.StatusCreated).JSON(participation)
	})

	secured.Get("/user/challenges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := profiles.GetByUserID(userID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "profile not found",
			})
		}

		participations, err := challenges.ListParticipations(profile.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load participations",
				"cause": err.Error(),
			})
		}

		out := make([]fiber.Map, 0, len(participations))
		for i := range participations {
			p := &participations[i]
			var challenge models.Challenge
			if err := challenges.DB.Where("id = ?", p.ChallengeID).First(&challenge).Error; err != nil {
				continue
			}
			out = append(out, fiber.Map{
				"participation": p,
				"challenge":     challenge,
				"progress_pct":  p.ProgressPercentage(challenge.Objectives),
			})
		}
		return c.JSON(fiber.Map{"participations": out})
	})

	secured.Post("/user/challenges/:id/abandon", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := profiles.GetByUserID(userID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "profile not found",
			})
		}

		var owned models.ChallengeParticipation
		if err := challenges.DB.
			Where("id = ? AND reward_profile_id = ?", c.Params("id"), profile.ID).
			First(&owned).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "participation not found",
			})
		}

		participation, err := challenges.Abandon(owned.ID)
		if err != nil {
			if errors.Is(err, services.ErrParticipationClosed) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": services.ErrParticipationClosed.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "abandon failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(participation)
	})

	// --- Admin challenge management ---

	admin.Post("/challenges", func(c *fiber.Ctx) error {
		var challenge models.Challenge
		if err := c.BodyParser(&challenge); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid payload",
				"cause": err.Error(),
			})
		}
		if challenge.Name == "" || len(challenge.Objectives) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "name and at least one objective are required",
			})
		}

		challenge.ID = uuid.NewString()
		challenge.Slug = slug.Make(challenge.Name)
		if err := challenges.DB.Create(&challenge).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create challenge",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(challenge)
	})

	admin.Put("/challenges/:id", func(c *fiber.Ctx) error {
		var challenge models.Challenge
		if err := challenges.DB.Where("id = ?", c.Params("id")).First(&challenge).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "challenge not found",
			})
		}
		if err := c.BodyParser(&challenge); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid payload",
				"cause": err.Error(),
			})
		}
		if err := challenges.DB.Save(&challenge).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update challenge",
				"cause": err.Error(),
			})
		}
		return c.JSON(challenge)
	})

	// Manual progress set for objectives with no activity_type mapping.
	admin.Post("/participations/:id/progress", func(c *fiber.Ctx) error {
		var body struct {
			ObjectiveIndex int  `json:"objective_index"`
			Value          int  `json:"value"`
			Increment      bool `json:"increment"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid payload",
				"cause": err.Error(),
			})
		}

		participation, err := challenges.UpdateProgress(c.Params("id"), body.ObjectiveIndex, body.Value, body.Increment)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrParticipationClosed):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error": services.ErrParticipationClosed.Error(),
				})
			case errors.Is(err, gorm.ErrRecordNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "participation not found",
				})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "progress update failed",
					"cause": err.Error(),
				})
			}
		}
		return c.JSON(participation)
	})
}
