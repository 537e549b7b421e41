package handlers

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	ws "github.com/user/cryptodemo/backend/internal/websocket"
	"go.uber.org/zap"
)

// PriceFeed is the handler for the WebSocket price feed. It sends a snapshot
// of current prices, then streams updates until the client goes away.
func (h *Handlers) PriceFeed(c *websocket.Conn) {
	client := ws.NewClient(c.RemoteAddr().String())
	snapshot, err := json.Marshal(fiber.Map{"prices": h.prices.Prices()})
	if err == nil && c.WriteMessage(websocket.TextMessage, snapshot) != nil {
		return
	}
	if !h.hub.Register(client) {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c, client)
	}()
	h.readPump(c, client)

	// the connection is released when this handler returns
	h.hub.Unregister(client)
	<-done
}

// writePump pumps messages from the hub to the websocket connection.
func (h *Handlers) writePump(c *websocket.Conn, client *ws.Client) {
	for message := range client.Send {
		if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Debug("websocket write failed", zap.String("client", client.ID), zap.Error(err))
			// If write fails, assume client disconnected
			c.Close()
			return
		}
	}
	// The hub closed Send: tell the client we're done
	c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.Close()
}

// readPump blocks until the client disconnects. Incoming messages are ignored.
func (h *Handlers) readPump(c *websocket.Conn, client *ws.Client) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("client disconnected unexpectedly", zap.String("client", client.ID), zap.Error(err))
			}
			return
		}
	}
}
