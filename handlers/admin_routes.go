// handlers/admin_routes.go
package handlers

import (
	"errors"
	"time"

	"rewards-engine/middleware"
	"rewards-engine/models"
	"rewards-engine/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes wires the CRM-facing operational endpoints: activity
// ingest, manual ledger adjustments and reconciliation checks.
func SetupAdminRoutes(
	app *fiber.App,
	profiles *services.ProfileService,
	ledger *services.LedgerService,
	activities *services.ActivityService,
) {
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.AdminOnly())

	// CRM webhook: one call per business activity.
	admin.Post("/activities", func(c *fiber.Ctx) error {
		var body struct {
			UserID       string         `json:"user_id"`
			ActivityType string         `json:"activity_type"`
			Payload      map[string]any `json:"payload"`
			OccurredAt   *time.Time     `json:"occurred_at"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid payload",
				"cause": err.Error(),
			})
		}
		if body.UserID == "" || body.ActivityType == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "user_id and activity_type are required",
			})
		}

		occurredAt := time.Now()
		if body.OccurredAt != nil {
			occurredAt = *body.OccurredAt
		}

		result, err := activities.ProcessActivity(body.UserID, body.ActivityType, body.Payload, occurredAt)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "activity processing failed",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	})

	// Manual balance correction, always through the ledger.
	admin.Post("/users/:userId/adjust", func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)

		var body struct {
			Amount int    `json:"amount"`
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid payload",
				"cause": err.Error(),
			})
		}
		if body.Amount == 0 || body.Reason == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "non-zero amount and reason are required",
			})
		}

		profile, err := profiles.GetOrCreate(c.Params("userId"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load profile",
				"cause": err.Error(),
			})
		}

		entry, err := ledger.Record(profile.ID, services.RecordInput{
			Type:        models.TxAdjustment,
			Amount:      body.Amount,
			SourceKind:  models.SourceManual,
			SourceID:    adminID,
			Description: body.Reason,
		})
		if err != nil {
			if errors.Is(err, services.ErrInsufficientPoints) {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"error": services.ErrInsufficientPoints.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "adjustment failed",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	})

	admin.Get("/users/:userId/reconcile", func(c *fiber.Ctx) error {
		profile, err := profiles.GetByUserID(c.Params("userId"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "profile not found",
			})
		}

		if err := ledger.Reconcile(profile.ID); err != nil {
			if errors.Is(err, services.ErrReconciliationMismatch) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"error":  "reconciliation mismatch",
					"detail": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "reconciliation failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "balanced"})
	})
}
