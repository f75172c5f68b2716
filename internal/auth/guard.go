package auth

import (
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	RedirectLogin           = "/login"
	RedirectPendingApproval = "/pending-approval"
	RedirectUnauthorized    = "/unauthorized"
)

// Session is the authenticated caller attached to a request.
type Session struct {
	UserID uint
	Email  string
	Role   models.UserRole
	JTI    string
}

// Decision is the outcome of a route guard check. Redirect is empty when Allowed.
type Decision struct {
	Allowed  bool
	Status   int
	Redirect string
	Message  string
}

// Decide checks a session against the roles a route accepts. Admin passes every
// check. An empty allowed list accepts any approved role.
func Decide(session *Session, allowed ...models.UserRole) Decision {
	if session == nil {
		return Decision{
			Status:   fiber.StatusUnauthorized,
			Redirect: RedirectLogin,
			Message:  "authentication required",
		}
	}
	if session.Role == models.RolePending {
		return Decision{
			Status:   fiber.StatusForbidden,
			Redirect: RedirectPendingApproval,
			Message:  "account is waiting for approval",
		}
	}
	if session.Role == models.RoleAdmin || len(allowed) == 0 {
		return Decision{Allowed: true, Status: fiber.StatusOK}
	}
	for _, r := range allowed {
		if r == session.Role {
			return Decision{Allowed: true, Status: fiber.StatusOK}
		}
	}
	return Decision{
		Status:   fiber.StatusForbidden,
		Redirect: RedirectUnauthorized,
		Message:  "insufficient role for this action",
	}
}
