package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/user/cryptodemo/backend/internal/ticker"
	"go.uber.org/zap"
)

// Client represents a single WebSocket client connection.
type Client struct {
	ID   string
	Send chan []byte // Buffered channel for outbound messages
}

// NewClient creates a client with a buffered outbound queue.
func NewClient(id string) *Client {
	return &Client{ID: id, Send: make(chan []byte, 256)}
}

// Hub manages WebSocket clients and broadcasts price updates to them.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *zap.Logger
}

// NewHub creates and initializes a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its Send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run starts the Hub's event loop. It fans updates out to every client until
// ctx is done, then disconnects all clients.
func (h *Hub) Run(ctx context.Context, updates <-chan ticker.PriceUpdate) {
	h.logger.Info("websocket hub started")
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("client", client.ID))

		case client := <-h.unregister:
			h.remove(client)

		case update, ok := <-updates:
			if !ok {
				return
			}
			msg, err := json.Marshal(update)
			if err != nil {
				h.logger.Error("marshal price update", zap.Error(err))
				continue
			}
			h.broadcast(msg)
		}
	}
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.Send <- msg:
		default:
			// Client's send buffer is full, drop it
			h.logger.Warn("client too slow, disconnecting", zap.String("client", client.ID))
			close(client.Send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		h.logger.Debug("client unregistered", zap.String("client", client.ID))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.Send)
		delete(h.clients, client)
	}
}
