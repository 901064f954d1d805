package tour

import (
	"github.com/herd-1807-capstone/api-routes/internal/auth"
	"github.com/herd-1807-capstone/api-routes/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		var req Tour
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		created, err := svc.Create(c.Context(), actor, req)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Get("/:tourId", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		detail, err := svc.Get(c.Context(), actor, c.Params("tourId"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(detail)
	})

	r.Put("/:tourId", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		var req Update
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.Update(c.Context(), actor, c.Params("tourId"), req); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Delete("/:tourId", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		if err := svc.Delete(c.Context(), actor, c.Params("tourId")); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:tourId/spots", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		var req Spot
		if err := c.BodyParser(&req); err != nil || req.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "spot name required")
		}
		spot, err := svc.AddSpot(c.Context(), actor, c.Params("tourId"), req)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(spot)
	})

	r.Put("/:tourId/spots/:spotId", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		var req SpotUpdate
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.UpdateSpot(c.Context(), actor, c.Params("tourId"), c.Params("spotId"), req); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Delete("/:tourId/spots/:spotId", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		if err := svc.DeleteSpot(c.Context(), actor, c.Params("tourId"), c.Params("spotId")); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:tourId/members", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		members, err := svc.Members(c.Context(), actor, c.Params("tourId"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(members)
	})

	r.Post("/:tourId/members", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		var body struct {
			UserID string `json:"user_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.UserID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user_id required")
		}
		if err := svc.AddMember(c.Context(), actor, c.Params("tourId"), body.UserID); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	r.Delete("/:tourId/members/:userId", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		if err := svc.RemoveMember(c.Context(), actor, c.Params("tourId"), c.Params("userId")); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:tourId/invitations", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		invitations, err := svc.Invitations(c.Context(), actor, c.Params("tourId"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(invitations)
	})

	r.Post("/:tourId/invitations", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		var body struct {
			Email string `json:"email"`
		}
		if err := c.BodyParser(&body); err != nil || body.Email == "" {
			return fiber.NewError(fiber.StatusBadRequest, "email required")
		}
		invitation, err := svc.CreateInvitation(c.Context(), actor, c.Params("tourId"), body.Email)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(invitation)
	})

	r.Post("/:tourId/invitations/:invitationId/redeem", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		if err := svc.RedeemInvitation(c.Context(), actor, c.Params("tourId"), c.Params("invitationId")); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	r.Delete("/:tourId/invitations/:invitationId", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		if err := svc.RevokeInvitation(c.Context(), actor, c.Params("tourId"), c.Params("invitationId")); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:tourId/history", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		history, err := svc.History(c.Context(), actor, c.Params("tourId"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(history)
	})
}
