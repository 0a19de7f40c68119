package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/theleywin/Collab-Nest/src/apperr"
	"github.com/theleywin/Collab-Nest/src/lib"
)

// AccountKey is the fiber Locals key holding the authenticated account id.
const AccountKey = "accountId"

// ProtectRoute verifies the bearer token and attaches the account id to the request context
func ProtectRoute(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperr.Unauthorized("Unauthorized - No token provided")
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return apperr.Unauthorized("Unauthorized - Invalid token format")
		}

		accountID, err := lib.VerifyJWT(secret, token)
		if err != nil {
			return apperr.Unauthorized("Unauthorized - Invalid token")
		}

		c.Locals(AccountKey, accountID)
		return c.Next()
	}
}

// AccountID returns the id set by ProtectRoute.
func AccountID(c *fiber.Ctx) (uint, error) {
	id, ok := c.Locals(AccountKey).(uint)
	if !ok || id == 0 {
		return 0, apperr.Unauthorized("Unauthorized")
	}
	return id, nil
}
