package storage

import (
	"context"
	"time"

	"github.com/herd-1807-capstone/api-routes/internal/auth"
	"github.com/herd-1807-capstone/api-routes/internal/store"

	"github.com/gofiber/fiber/v2"
)

const objectsCollection = "/storage/objects"

// Object records an uploaded asset whose URL ends up in a tour or spot
// image_url field.
type Object struct {
	ID     string `json:"id,omitempty"`
	UserID string `json:"user_id"`
	URL    string `json:"url"`
	Kind   string `json:"kind"`
	At     int64  `json:"at"`
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

func (s *Service) SaveObject(ctx context.Context, userID, url, kind string) (string, error) {
	obj := Object{
		UserID: userID,
		URL:    url,
		Kind:   kind,
		At:     time.Now().UnixMilli(),
	}
	return s.store.Append(ctx, objectsCollection, obj)
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/upload", authMiddleware, func(c *fiber.Ctx) error {
		actor, ok := auth.FromCtx(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		var body struct {
			FileName string `json:"file_name"`
			Kind     string `json:"kind"`
		}
		_ = c.BodyParser(&body)
		if body.FileName == "" {
			body.FileName = "upload"
		}
		url := "https://storage.example/" + body.FileName
		id, err := svc.SaveObject(c.Context(), actor.ID, url, body.Kind)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"id":         id,
			"url":        url,
			"expires_at": time.Now().Add(15 * time.Minute),
		})
	})
}
