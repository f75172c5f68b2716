package auth

import (
	"errors"
	"strings"

	"gooms-backend/internal/config"
	"gooms-backend/internal/database"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/logger"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SetRoleRequest struct {
	Role models.UserRole `json:"role" validate:"required,oneof=admin manager production finance sales viewer pending"`
}

type UserResponse struct {
	ID    uint            `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// POST /api/auth/register
// Self-registration. The account stays pending until an admin assigns a role.
func RegisterHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		user, err := createUser(body, models.RolePending)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

// POST /api/auth/bootstrap-admin
// Creates the first admin. Refused once any admin exists.
func BootstrapAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		var count int64
		if err := database.DB.Model(&models.User{}).
			Where("role = ?", models.RoleAdmin).
			Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not check existing admins")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "an admin already exists")
		}

		user, err := createUser(body, models.RoleAdmin)
		if err != nil {
			return err
		}
		logger.FromCtx(c).Info("bootstrap admin created", zap.Uint("user_id", user.ID))
		return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
	}
}

func createUser(body RegisterRequest, role models.UserRole) (*models.User, error) {
	email := strings.TrimSpace(strings.ToLower(body.Email))

	var existing int64
	if err := database.DB.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "could not check email")
	}
	if existing > 0 {
		return nil, fiber.NewError(fiber.StatusConflict, "email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
	}

	user := models.User{
		Name:         strings.TrimSpace(body.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "could not create user")
	}
	return &user, nil
}

// POST /api/auth/login
func LoginHandler(cfg config.JWTConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		email := strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
		}

		token, claims, err := GenerateToken(cfg, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create token")
		}

		return c.JSON(fiber.Map{
			"token":      token,
			"expires_at": claims.ExpiresAt.Time,
			"user":       toUserResponse(&user),
		})
	}
}

// GET /api/auth/me
func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := SessionFromCtx(c)
		if s == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}

		var user models.User
		if err := database.DB.First(&user, s.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "user no longer exists")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not load user")
		}

		resp := fiber.Map{"user": toUserResponse(&user)}
		if d := Decide(s); !d.Allowed {
			resp["redirect"] = d.Redirect
		}
		return c.JSON(resp)
	}
}

// POST /api/auth/logout
func LogoutHandler(blacklist TokenBlacklist) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := claimsFromCtx(c)
		if claims == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		if err := blacklist.Revoke(c.UserContext(), claims.ID, claims.remaining()); err != nil {
			logger.FromCtx(c).Error("revoke token", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not log out")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// -----------------------------------------------------------------------------
// Admin user management
// -----------------------------------------------------------------------------

// GET /api/admin/users?role=pending
func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.User{})
		if role := c.Query("role"); role != "" {
			if !models.UserRole(role).Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "invalid role")
			}
			q = q.Where("role = ?", role)
		}

		var users []models.User
		if err := q.Order("created_at DESC").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list users")
		}

		resp := make([]UserResponse, 0, len(users))
		for i := range users {
			resp = append(resp, toUserResponse(&users[i]))
		}
		return c.JSON(resp)
	}
}

// PUT /api/admin/users/:id/role
// Existing tokens of the user are revoked so the new role applies on next login.
func SetUserRoleHandler(cfg config.JWTConfig, blacklist TokenBlacklist) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body SetRoleRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		if id == CurrentUserID(c) && body.Role != models.RoleAdmin {
			return fiber.NewError(fiber.StatusBadRequest, "admins cannot demote themselves")
		}

		var user models.User
		if err := database.DB.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "user not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not load user")
		}

		if user.Role != body.Role {
			if err := database.DB.Model(&user).Update("role", body.Role).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "could not update role")
			}
			if err := blacklist.RevokeUser(c.UserContext(), user.ID, cfg.TTL); err != nil {
				logger.FromCtx(c).Warn("revoke user tokens after role change", zap.Uint("user_id", user.ID), zap.Error(err))
			}
			logger.FromCtx(c).Info("user role changed",
				zap.Uint("user_id", user.ID),
				zap.String("from", string(user.Role)),
				zap.String("to", string(body.Role)),
			)
			user.Role = body.Role
		}
		return c.JSON(toUserResponse(&user))
	}
}
