package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/user/cryptodemo/backend/internal/auth"
	"github.com/user/cryptodemo/backend/internal/models"
)

const claimsKey = "claims"

// TokenValidator turns a bearer token into claims.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Protected is a middleware function to verify JWT authentication.
// Only tokens issued for an account of the given kind are let through.
func Protected(tokens TokenValidator, kind models.AccountKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "Missing authorization header")
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return unauthorized(c, "Invalid authorization header format")
		}

		claims, err := tokens.Validate(parts[1])
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}
		if claims.Kind != kind {
			code := "FORBIDDEN"
			if kind == models.AccountKindDemo {
				code = "NOT_DEMO_ACCOUNT"
			}
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Token not valid for this account type",
				"code":  code,
			})
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// Claims returns the claims stored by Protected.
func Claims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*auth.Claims)
	return claims, ok
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg, "code": "UNAUTHORIZED"})
}
