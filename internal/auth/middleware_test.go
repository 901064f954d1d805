package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/herd-1807-capstone/api-routes/internal/store"

	"github.com/gofiber/fiber/v2"
)

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	st := store.NewMemory()
	seedUser(t, st, "u1", "user@example.com", "password123", RoleMember)

	svc := NewService("test-secret", st)
	token, err := svc.signToken("u1", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	app := fiber.New()
	app.Use(Middleware("test-secret", st))
	app.Get("/me", func(c *fiber.Ctx) error {
		user, ok := FromCtx(c)
		if !ok {
			t.Errorf("expected user in locals")
		}
		return c.JSON(user)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %v %d", err, resp.StatusCode)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	st := store.NewMemory()
	seedUser(t, st, "u1", "user@example.com", "password123", RoleMember)
	svc := NewService("test-secret", st)

	app := fiber.New()
	app.Use(Middleware("test-secret", st))
	app.Get("/me", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			resp, err := app.Test(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status: %v %d", err, resp.StatusCode)
			}
		})
	}

	t.Run("token for deleted user", func(t *testing.T) {
		token, err := svc.signToken("ghost", time.Minute)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		if err != nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status: %v %d", err, resp.StatusCode)
		}
	})
}

func TestBearerFromHeader(t *testing.T) {
	if bearerFromHeader("Bearer abc") != "abc" {
		t.Fatalf("bearer parse failed")
	}
	if bearerFromHeader("bearer abc") != "abc" {
		t.Fatalf("scheme should be case-insensitive")
	}
	if bearerFromHeader("abc") != "" || bearerFromHeader("") != "" {
		t.Fatalf("malformed headers should yield empty token")
	}
}
