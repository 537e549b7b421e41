package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// MarketPrices returns the current simulated prices.
func (h *Handlers) MarketPrices(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"prices":    h.prices.Prices(),
		"timestamp": time.Now().UnixMilli(),
	})
}
