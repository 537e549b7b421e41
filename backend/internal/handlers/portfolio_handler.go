package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/user/cryptodemo/backend/internal/models"
)

// PortfolioResponse is the wallet plus its value at current market prices.
type PortfolioResponse struct {
	Wallet      *models.Wallet  `json:"wallet"`
	MarketValue decimal.Decimal `json:"marketValue"`
}

// GetPortfolio retrieves the user's wallet and values holdings at the current
// ticker prices. Holdings without a price are valued at their average price.
func (h *Handlers) GetPortfolio(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return invalidUser(c)
	}

	wallet, err := h.trading.Portfolio(c.Context(), userID)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(PortfolioResponse{
		Wallet:      wallet,
		MarketValue: marketValue(wallet, h.prices),
	})
}

func marketValue(wallet *models.Wallet, source PriceSource) decimal.Decimal {
	prices := source.Prices()

	value := wallet.Balance
	for _, pos := range wallet.Assets {
		price, ok := prices[pos.Symbol]
		if !ok {
			price = pos.AvgPrice
		}
		value = value.Add(pos.Amount.Mul(price))
	}
	return value
}
