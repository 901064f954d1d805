package chat

import (
	"github.com/herd-1807-capstone/api-routes/internal/auth"
	"github.com/herd-1807-capstone/api-routes/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	// resolves (or creates) the shared thread with the recipient and
	// appends the message; always answers 201 with the resolved key
	r.Post("/:userId", authMiddleware, func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}

		var req SendRequest
		if err := c.BodyParser(&req); err != nil || req.TourID == "" || req.Text == "" {
			return fiber.NewError(fiber.StatusBadRequest, "tour_id and text required")
		}

		convID, msg, err := svc.Send(c.Context(), actor, req.TourID, c.Params("userId"), req.Text)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"conversation_key": convID,
			"message":          msg,
		})
	})

	r.Get("/:conversationId/messages", authMiddleware, func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}

		tourID := c.Query("tour_id")
		if tourID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "tour_id required")
		}

		messages, err := svc.Messages(c.Context(), actor, tourID, c.Params("conversationId"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(messages)
	})
}
