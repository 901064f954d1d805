package user

import (
	"github.com/herd-1807-capstone/api-routes/internal/auth"
	"github.com/herd-1807-capstone/api-routes/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	// lists the members of the caller's own tour
	r.Get("/", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		users, err := svc.ListByTour(c.Context(), actor, actor.Tour)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(users)
	})

	r.Get("/free", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		users, err := svc.ListFree(c.Context(), actor)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(users)
	})

	r.Get("/email/:email", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		rec, err := svc.ByEmail(c.Context(), actor, c.Params("email"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(rec)
	})

	r.Get("/:userId", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		rec, err := svc.Get(c.Context(), actor, c.Params("userId"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(rec)
	})

	r.Post("/", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		rec, err := svc.Create(c.Context(), actor, req)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	})

	r.Put("/:userId", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		var req Update
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.Update(c.Context(), actor, c.Params("userId"), req); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Delete("/:userId", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		if err := svc.Delete(c.Context(), actor, c.Params("userId")); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// updates a member's live position within a tour
	r.Put("/:userId/location/:tourId", func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		var req LocationUpdate
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.UpdateLocation(c.Context(), actor, c.Params("tourId"), c.Params("userId"), req); err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.SendStatus(fiber.StatusCreated)
	})
}
