package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CreateOrder executes a trade for the authenticated user.
func (h *Handlers) CreateOrder(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return invalidUser(c)
	}

	req := new(TradeRequest)
	if err := c.BodyParser(req); err != nil {
		return badRequest(c, "Cannot parse request body")
	}

	execution, err := h.trading.ExecuteOrder(c.Context(), userID, req.order())
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(execution)
}

// GetOrders retrieves the trade history for the authenticated user, newest first.
func (h *Handlers) GetOrders(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return invalidUser(c)
	}

	orders, err := h.trading.Orders(c.Context(), userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// GetOrderByID retrieves a specific trade by its ID.
func (h *Handlers) GetOrderByID(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return invalidUser(c)
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid order ID format")
	}

	order, err := h.trading.Order(c.Context(), userID, orderID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"order": order})
}
