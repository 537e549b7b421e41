package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/user/cryptodemo/backend/internal/account"
	"github.com/user/cryptodemo/backend/internal/auth"
	"github.com/user/cryptodemo/backend/internal/database"
	"github.com/user/cryptodemo/backend/internal/ledger"
	"github.com/user/cryptodemo/backend/internal/session"
	"github.com/user/cryptodemo/backend/internal/trading"
	"go.uber.org/zap"
)

type errorKind struct {
	err    error
	status int
	code   string
}

// errorKinds maps domain errors to responses. First match wins.
var errorKinds = []errorKind{
	{session.ErrAccountNotFound, fiber.StatusNotFound, "ACCOUNT_NOT_FOUND"},
	{database.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{account.ErrAccountExpired, fiber.StatusUnauthorized, "ACCOUNT_EXPIRED"},
	{ledger.ErrNotDemoAccount, fiber.StatusForbidden, "NOT_DEMO_ACCOUNT"},
	{ledger.ErrInvalidOrderType, fiber.StatusBadRequest, "INVALID_ORDER_TYPE"},
	{ledger.ErrInvalidAmount, fiber.StatusBadRequest, "INVALID_AMOUNT"},
	{ledger.ErrInvalidPrice, fiber.StatusBadRequest, "INVALID_PRICE"},
	{ledger.ErrUnsupportedAsset, fiber.StatusBadRequest, "UNSUPPORTED_ASSET"},
	{ledger.ErrInsufficientFunds, fiber.StatusBadRequest, "INSUFFICIENT_FUNDS"},
	{ledger.ErrInsufficientHoldings, fiber.StatusBadRequest, "INSUFFICIENT_HOLDINGS"},
	{database.ErrUsernameTaken, fiber.StatusConflict, "USERNAME_TAKEN"},
	{trading.ErrInvalidUsername, fiber.StatusBadRequest, "INVALID_USERNAME"},
	{auth.ErrPasswordTooShort, fiber.StatusBadRequest, "PASSWORD_TOO_SHORT"},
	{trading.ErrInvalidCredentials, fiber.StatusUnauthorized, "INVALID_CREDENTIALS"},
}

// writeError answers with the status and code of a known error kind, or 500.
func (h *Handlers) writeError(c *fiber.Ctx, err error) error {
	for _, kind := range errorKinds {
		if errors.Is(err, kind.err) {
			return c.Status(kind.status).JSON(fiber.Map{"error": kind.err.Error(), "code": kind.code})
		}
	}

	h.logger.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error", "code": "INTERNAL"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": "BAD_REQUEST"})
}
