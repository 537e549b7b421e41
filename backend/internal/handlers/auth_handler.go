package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/user/cryptodemo/backend/internal/middleware"
	"github.com/user/cryptodemo/backend/internal/models"
)

// CredentialsRequest defines the expected JSON body for register and login
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse defines the JSON response for successful auth
type AuthResponse struct {
	Token    string       `json:"token"`
	User     *models.User `json:"user"`
	IssuedAt time.Time    `json:"issued_at"`
}

// Register handles user registration.
func (h *Handlers) Register(c *fiber.Ctx) error {
	req := new(CredentialsRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(c, "Cannot parse request body")
	}

	user, err := h.trading.Register(c.Context(), req.Username, req.Password)
	if err != nil {
		return h.writeError(c, err)
	}
	return h.respondWithToken(c, fiber.StatusCreated, user)
}

// Login handles user authentication.
func (h *Handlers) Login(c *fiber.Ctx) error {
	req := new(CredentialsRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(c, "Cannot parse request body")
	}

	user, err := h.trading.Authenticate(c.Context(), req.Username, req.Password)
	if err != nil {
		return h.writeError(c, err)
	}
	return h.respondWithToken(c, fiber.StatusOK, user)
}

// Profile returns the authenticated user.
func (h *Handlers) Profile(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return invalidUser(c)
	}

	user, err := h.trading.Profile(c.Context(), userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

func (h *Handlers) respondWithToken(c *fiber.Ctx, status int, user *models.User) error {
	token, err := h.tokens.IssueRegistered(user.ID, user.Username)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(status).JSON(AuthResponse{
		Token:    token,
		User:     user,
		IssuedAt: time.Now(),
	})
}

// currentUserID reads the registered user id from the token claims.
func currentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.AccountID)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

func invalidUser(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token", "code": "UNAUTHORIZED"})
}
