package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/user/cryptodemo/backend/internal/ledger"
	"github.com/user/cryptodemo/backend/internal/middleware"
	"github.com/user/cryptodemo/backend/internal/models"
)

// TradeRequest defines the expected JSON body for a trade.
// Amount and price accept JSON numbers or decimal strings.
type TradeRequest struct {
	Type           string          `json:"type"`
	Cryptocurrency string          `json:"cryptocurrency"`
	Amount         decimal.Decimal `json:"amount"`
	Price          decimal.Decimal `json:"price"`
}

func (r TradeRequest) order() ledger.Order {
	return ledger.Order{
		Type:           models.TradeType(strings.ToLower(strings.TrimSpace(r.Type))),
		Cryptocurrency: strings.ToUpper(strings.TrimSpace(r.Cryptocurrency)),
		Amount:         r.Amount,
		Price:          r.Price,
	}
}

// DemoLogin creates a demo account and a token bound to it.
func (h *Handlers) DemoLogin(c *fiber.Ctx) error {
	acc := h.demo.CreateDemoAccount()

	token, err := h.tokens.IssueDemo(acc)
	if err != nil {
		h.demo.DestroyAccount(acc.ID)
		return h.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":   token,
		"account": acc,
	})
}

// GetDemoAccount returns the caller's account with wallet and trades.
func (h *Handlers) GetDemoAccount(c *fiber.Ctx) error {
	claims, _ := middleware.Claims(c)

	acc, err := h.demo.GetAccount(claims.AccountID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"account": acc})
}

// DemoTrade executes a buy or sell on the caller's account.
func (h *Handlers) DemoTrade(c *fiber.Ctx) error {
	claims, _ := middleware.Claims(c)

	req := new(TradeRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(c, "Cannot parse request body")
	}

	execution, err := h.demo.ExecuteTrade(c.Context(), claims.AccountID, req.order())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(execution)
}

// ResetDemoBalance restores the starting balance of the caller's account.
func (h *Handlers) ResetDemoBalance(c *fiber.Ctx) error {
	claims, _ := middleware.Claims(c)

	acc, err := h.demo.ResetAccount(claims.AccountID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"account": acc})
}

// DemoLogout destroys the caller's account.
func (h *Handlers) DemoLogout(c *fiber.Ctx) error {
	claims, _ := middleware.Claims(c)

	h.demo.DestroyAccount(claims.AccountID)
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}
