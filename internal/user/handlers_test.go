package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/herd-1807-capstone/api-routes/internal/auth"
	"github.com/herd-1807-capstone/api-routes/internal/store"
	"github.com/herd-1807-capstone/api-routes/internal/stream"

	"github.com/gofiber/fiber/v2"
)

func asUser(user auth.User) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("auth_user", user)
		return c.Next()
	}
}

func jsonReq(method, target string, body any) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUserHandlersCrud(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, stream.NewHub(nil))

	app := fiber.New()
	RegisterRoutes(app.Group("/users"), svc, asUser(adminActor))

	resp, err := app.Test(jsonReq(http.MethodPost, "/users/", CreateRequest{
		Email:    "ada@example.com",
		Name:     "Ada",
		Password: "secret123",
	}))
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %v %d", err, resp.StatusCode)
	}
	var created Record
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil || created.ID == "" {
		t.Fatalf("decode created: %v %+v", err, created)
	}

	resp, _ = app.Test(jsonReq(http.MethodGet, "/users/"+created.ID, nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status: %d", resp.StatusCode)
	}

	resp, _ = app.Test(jsonReq(http.MethodGet, "/users/email/ada@example.com", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("by email status: %d", resp.StatusCode)
	}

	resp, _ = app.Test(jsonReq(http.MethodGet, "/users/free", nil))
	var free []Record
	_ = json.NewDecoder(resp.Body).Decode(&free)
	if resp.StatusCode != http.StatusOK || len(free) != 1 {
		t.Fatalf("free users: %d %v", resp.StatusCode, free)
	}

	newName := "Ada L."
	resp, _ = app.Test(jsonReq(http.MethodPut, "/users/"+created.ID, Update{Name: &newName}))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("update status: %d", resp.StatusCode)
	}

	resp, _ = app.Test(jsonReq(http.MethodDelete, "/users/"+created.ID, nil))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}

	resp, _ = app.Test(jsonReq(http.MethodGet, "/users/"+created.ID, nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted user: %d", resp.StatusCode)
	}
}

func TestUserHandlersLocation(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, stream.NewHub(nil))
	ctx := context.Background()

	if err := st.AtomicUpdate(ctx, map[string]any{
		"/users/u1": Record{Email: "u1@example.com", Name: "U1", Role: "member", Tour: "t1"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	seedTour(t, st, "t1", "u1")

	actor := auth.User{ID: "u1", Role: auth.RoleMember, Tour: "t1"}
	app := fiber.New()
	RegisterRoutes(app.Group("/users"), svc, asUser(actor))

	resp, _ := app.Test(jsonReq(http.MethodPut, "/users/u1/location/t1", LocationUpdate{Lat: 1, Lng: 2}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("location status: %d", resp.StatusCode)
	}

	resp, _ = app.Test(jsonReq(http.MethodPut, "/users/u1/location/ghost", LocationUpdate{Lat: 1, Lng: 2}))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing tour: %d", resp.StatusCode)
	}

	// the tour list route reflects the caller's own tour
	resp, err := app.Test(jsonReq(http.MethodGet, "/users/", nil))
	if err != nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("member list should be forbidden: %v %d", err, resp.StatusCode)
	}
}

func TestUserHandlersForbidden(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, stream.NewHub(nil))

	member := auth.User{ID: "m1", Role: auth.RoleMember}
	app := fiber.New()
	RegisterRoutes(app.Group("/users"), svc, asUser(member))

	resp, _ := app.Test(jsonReq(http.MethodPost, "/users/", CreateRequest{Email: "x@example.com", Name: "X"}))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("member create: %d", resp.StatusCode)
	}

	resp, _ = app.Test(jsonReq(http.MethodGet, "/users/free", nil))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("member free list: %d", resp.StatusCode)
	}
}
