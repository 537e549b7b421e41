package handlers

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/user/cryptodemo/backend/internal/auth"
	"github.com/user/cryptodemo/backend/internal/ledger"
	"github.com/user/cryptodemo/backend/internal/middleware"
	"github.com/user/cryptodemo/backend/internal/models"
	ws "github.com/user/cryptodemo/backend/internal/websocket"
	"go.uber.org/zap"
)

// DemoService is the demo account surface.
type DemoService interface {
	CreateDemoAccount() *models.Account
	GetAccount(id string) (*models.Account, error)
	ResetAccount(id string) (*models.Account, error)
	ExecuteTrade(ctx context.Context, id string, order ledger.Order) (*models.Execution, error)
	DestroyAccount(id string)
}

// TradingService is the registered account surface.
type TradingService interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ExecuteOrder(ctx context.Context, userID uuid.UUID, order ledger.Order) (*models.Execution, error)
	Portfolio(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Orders(ctx context.Context, userID uuid.UUID) ([]models.TradeRecord, error)
	Order(ctx context.Context, userID, tradeID uuid.UUID) (*models.TradeRecord, error)
}

// TokenService issues and validates bearer tokens.
type TokenService interface {
	IssueDemo(account *models.Account) (string, error)
	IssueRegistered(userID uuid.UUID, username string) (string, error)
	Validate(token string) (*auth.Claims, error)
}

// PriceSource supplies current market prices.
type PriceSource interface {
	Prices() map[string]decimal.Decimal
}

type noPrices struct{}

func (noPrices) Prices() map[string]decimal.Decimal { return map[string]decimal.Decimal{} }

// Deps are the collaborators of Handlers. Trading, Prices and Hub are optional;
// without Prices the market endpoints report no prices.
type Deps struct {
	Demo    DemoService
	Trading TradingService
	Tokens  TokenService
	Prices  PriceSource
	Hub     *ws.Hub
	Logger  *zap.Logger
}

// Handlers serves the HTTP and WebSocket API.
type Handlers struct {
	demo    DemoService
	trading TradingService
	tokens  TokenService
	prices  PriceSource
	hub     *ws.Hub
	logger  *zap.Logger
}

func New(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var prices PriceSource = noPrices{}
	if deps.Prices != nil {
		prices = deps.Prices
	}
	return &Handlers{
		demo:    deps.Demo,
		trading: deps.Trading,
		tokens:  deps.Tokens,
		prices:  prices,
		hub:     deps.Hub,
		logger:  logger,
	}
}

// Routes registers every endpoint on app.
func (h *Handlers) Routes(app *fiber.App) {
	// --- WebSocket Routes ---
	if h.hub != nil {
		wsGroup := app.Group("/ws")
		wsGroup.Use("/", func(c *fiber.Ctx) error {
			// Middleware to check for upgrade request
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		wsGroup.Get("/prices", websocket.New(h.PriceFeed))
	}

	// --- API Routes ---
	api := app.Group("/api")
	api.Get("/health", h.Health)
	api.Get("/market-prices", h.MarketPrices)

	// Demo accounts
	demoOnly := middleware.Protected(h.tokens, models.AccountKindDemo)
	api.Post("/demo-login", h.DemoLogin)
	api.Get("/account", demoOnly, h.GetDemoAccount)
	api.Post("/trade", demoOnly, h.DemoTrade)
	api.Post("/reset-demo-balance", demoOnly, h.ResetDemoBalance)
	api.Post("/logout", demoOnly, h.DemoLogout)

	if h.trading == nil {
		return
	}

	// Registered accounts
	registeredOnly := middleware.Protected(h.tokens, models.AccountKindRegistered)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", h.Register)
	authGroup.Post("/login", h.Login)
	authGroup.Get("/profile", registeredOnly, h.Profile)

	tradingGroup := api.Group("/trading", registeredOnly)
	tradingGroup.Post("/order", h.CreateOrder)
	tradingGroup.Get("/orders", h.GetOrders)
	tradingGroup.Get("/order/:id", h.GetOrderByID)
	tradingGroup.Get("/portfolio", h.GetPortfolio)
}

// Health reports liveness.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":     "ok",
		"registered": h.trading != nil,
	})
}
