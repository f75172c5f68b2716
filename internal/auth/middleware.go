package auth

import (
	"strings"

	"gooms-backend/internal/config"
	"gooms-backend/internal/logger"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const CtxSessionKey = "session"

// JWTMiddleware attaches a Session when a valid bearer token is present.
// Requests without a token pass through without a session; RequireRole decides
// what they may reach. A token that is present but invalid or revoked is a 401.
func JWTMiddleware(cfg config.JWTConfig, blacklist TokenBlacklist) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Next()
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return deny(c, Decide(nil), "authorization header must be 'Bearer <token>'")
		}

		claims, err := ParseToken(cfg.Secret, parts[1])
		if err != nil {
			return deny(c, Decide(nil), "invalid or expired token")
		}

		if blacklist != nil {
			ctx := c.UserContext()
			revoked, err := blacklist.IsRevoked(ctx, claims.ID)
			if err == nil && !revoked && claims.IssuedAt != nil {
				revoked, err = blacklist.IsUserRevoked(ctx, claims.UserID, claims.IssuedAt.Time)
			}
			if err != nil {
				logger.FromCtx(c).Error("token blacklist lookup failed", zap.Error(err))
				return fiber.NewError(fiber.StatusServiceUnavailable, "session store unavailable")
			}
			if revoked {
				return deny(c, Decide(nil), "token has been revoked")
			}
		}

		c.Locals(CtxSessionKey, &Session{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
			JTI:    claims.ID,
		})
		c.Locals("claims", claims)
		return c.Next()
	}
}

// RequireRole guards a route group. See Decide for the rules.
func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := Decide(SessionFromCtx(c), allowedRoles...)
		if !d.Allowed {
			return deny(c, d, d.Message)
		}
		return c.Next()
	}
}

// RequireSession only demands a logged-in user; pending accounts pass.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if SessionFromCtx(c) == nil {
			d := Decide(nil)
			return deny(c, d, d.Message)
		}
		return c.Next()
	}
}

func deny(c *fiber.Ctx, d Decision, msg string) error {
	return c.Status(d.Status).JSON(fiber.Map{
		"error":    msg,
		"redirect": d.Redirect,
	})
}

func SessionFromCtx(c *fiber.Ctx) *Session {
	s, _ := c.Locals(CtxSessionKey).(*Session)
	return s
}

// CurrentUserID returns 0 when the request has no session.
func CurrentUserID(c *fiber.Ctx) uint {
	if s := SessionFromCtx(c); s != nil {
		return s.UserID
	}
	return 0
}

func claimsFromCtx(c *fiber.Ctx) *JWTCustomClaims {
	cl, _ := c.Locals("claims").(*JWTCustomClaims)
	return cl
}

// Deny writes the guard response for a failed Decision.
func Deny(c *fiber.Ctx, d Decision) error {
	return deny(c, d, d.Message)
}
