package auth

import (
	"strings"

	"github.com/herd-1807-capstone/api-routes/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const localsUserKey = "auth_user"

// Middleware validates bearer tokens, loads the caller's user record and
// stores the resulting capability in locals.
func Middleware(secret string, st store.Store) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
			return secretBytes, nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}

		user, err := loadUser(c.Context(), st, claims.UserID)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "unknown user")
		}

		c.Locals(localsUserKey, user)
		return c.Next()
	}
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

// FromCtx returns the caller capability stored by Middleware.
func FromCtx(c *fiber.Ctx) (User, bool) {
	user, ok := c.Locals(localsUserKey).(User)
	return user, ok
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
