package middleware

import (
	"strings"
	"time"

	"github.com/carelog/backend/utils"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthMiddleware resolves a bearer token or session cookie into a verified
// session and places the user identity in the request context.
type AuthMiddleware struct {
	logger     *zap.Logger
	tokens     *utils.TokenManager
	cookieName string
}

func NewAuthMiddleware(logger *zap.Logger, tokens *utils.TokenManager, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		logger:     logger,
		tokens:     tokens,
		cookieName: cookieName,
	}
}

func (m *AuthMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string

		// Try Authorization header first
		auth := c.Get("Authorization")
		if auth != "" && strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}

		// Fall back to cookie
		if token == "" {
			token = c.Cookies(m.cookieName)
		}

		if token == "" {
			m.logger.Debug("no authentication found",
				zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
				"code":  "NO_SESSION",
			})
		}

		session, jti, err := m.tokens.Verify(c.Context(), token)
		if err != nil {
			m.logger.Debug("invalid session",
				zap.String("path", c.Path()),
				zap.Error(err))

			// Clear invalid cookie
			c.Cookie(&fiber.Cookie{
				Name:     m.cookieName,
				Value:    "",
				Expires:  time.Now().Add(-1 * time.Hour),
				HTTPOnly: true,
				Secure:   true,
				SameSite: "Lax",
				Path:     "/",
			})

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired session",
				"code":  "SESSION_INVALID",
			})
		}

		c.Locals("userID", session.UserID)
		c.Locals("email", session.Email)
		c.Locals("role", session.Role)
		c.Locals("sessionID", jti)

		return c.Next()
	}
}
