package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/user/cryptodemo/backend/internal/models"
	"go.uber.org/zap"
)

// Order is a buy or sell request. Price is supplied by the caller.
type Order struct {
	Type           models.TradeType `json:"type"`
	Cryptocurrency string           `json:"cryptocurrency"`
	Amount         decimal.Decimal  `json:"amount"`
	Price          decimal.Decimal  `json:"price"`
}

const (
	// MaxScale is the number of fractional digits an amount or price may carry.
	MaxScale = 18
	// MaxIntegerDigits bounds the integer part of an amount or price.
	MaxIntegerDigits = 18

	maxExponent = 64
)

// DemoChecker decides whether an account may use the demo trading path.
type DemoChecker interface {
	IsDemoAccount(a *models.Account) bool
}

// Engine validates orders and applies them to an account's wallet.
// It does no locking: callers serialize access to a single account.
type Engine struct {
	demo            DemoChecker
	allowRegistered bool
	allowed         map[string]struct{}
	now             func() time.Time
	newID           func() string
	logger          *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithAllowedSymbols restricts trading to the given symbols. No symbols means no restriction.
func WithAllowedSymbols(symbols ...string) Option {
	return func(e *Engine) {
		if len(symbols) == 0 {
			e.allowed = nil
			return
		}
		e.allowed = make(map[string]struct{}, len(symbols))
		for _, s := range symbols {
			e.allowed[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
		}
	}
}

// WithRegisteredAccounts lets the engine trade for registered accounts too.
func WithRegisteredAccounts() Option {
	return func(e *Engine) {
		e.allowRegistered = true
	}
}

// WithClock overrides time.Now for trade timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides trade id generation.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a trade engine.
func NewEngine(demo DemoChecker, opts ...Option) *Engine {
	e := &Engine{
		demo:   demo,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteTrade applies order to the account and appends the resulting trade record.
// On error the account is left exactly as it was.
func (e *Engine) ExecuteTrade(account *models.Account, order Order) (*models.TradeRecord, error) {
	accountID := ""
	if account != nil {
		accountID = account.ID
	}
	op := string(order.Type)
	if op == "" {
		op = "order"
	}

	if err := e.validate(account, order); err != nil {
		return nil, newTradeError(accountID, order.Cryptocurrency, op, err)
	}

	wallet := account.Wallet.Clone()
	total := order.Amount.Mul(order.Price)

	var err error
	switch order.Type {
	case models.TradeTypeBuy:
		err = buy(&wallet, order, total)
	case models.TradeTypeSell:
		err = sell(&wallet, order, total)
	}
	if err != nil {
		e.logger.Info("trade rejected",
			zap.String("account_id", accountID),
			zap.String("type", op),
			zap.String("symbol", order.Cryptocurrency),
			zap.String("amount", order.Amount.String()),
			zap.String("price", order.Price.String()),
			zap.Error(err))
		return nil, newTradeError(accountID, order.Cryptocurrency, op, err)
	}

	record := models.TradeRecord{
		ID:             e.newID(),
		Type:           order.Type,
		Cryptocurrency: order.Cryptocurrency,
		Amount:         order.Amount,
		Price:          order.Price,
		Total:          total,
		Timestamp:      e.now(),
	}

	// commit point: nothing above touched the account
	account.Wallet = wallet
	account.Trades = append(account.Trades, record)

	e.logger.Info("trade executed",
		zap.String("account_id", accountID),
		zap.String("trade_id", record.ID),
		zap.String("type", op),
		zap.String("symbol", record.Cryptocurrency),
		zap.String("amount", record.Amount.String()),
		zap.String("price", record.Price.String()),
		zap.String("total", record.Total.String()),
		zap.String("balance", wallet.Balance.String()))

	return &record, nil
}

func (e *Engine) validate(account *models.Account, order Order) error {
	if !e.authorized(account) {
		return ErrNotDemoAccount
	}
	if order.Type != models.TradeTypeBuy && order.Type != models.TradeTypeSell {
		return ErrInvalidOrderType
	}
	if !order.Amount.IsPositive() || !withinBounds(order.Amount) {
		return ErrInvalidAmount
	}
	if !order.Price.IsPositive() || !withinBounds(order.Price) {
		return ErrInvalidPrice
	}
	if order.Cryptocurrency == "" {
		return ErrUnsupportedAsset
	}
	if e.allowed != nil {
		if _, ok := e.allowed[order.Cryptocurrency]; !ok {
			return ErrUnsupportedAsset
		}
	}
	return nil
}

// withinBounds reports whether v has at most MaxScale significant fractional
// digits and at most MaxIntegerDigits integer digits. Exponents outside
// maxExponent are rejected before any rescaling happens.
func withinBounds(v decimal.Decimal) bool {
	exp := int(v.Exponent())
	if exp < -maxExponent || exp > MaxIntegerDigits {
		return false
	}
	digits := v.NumDigits()
	if digits > MaxIntegerDigits+maxExponent || digits+exp > MaxIntegerDigits {
		return false
	}
	// trailing zeros past MaxScale are fine, significant digits are not
	return exp >= -MaxScale || v.Equal(v.Truncate(MaxScale))
}

func (e *Engine) authorized(account *models.Account) bool {
	if account == nil {
		return false
	}
	if e.demo != nil && e.demo.IsDemoAccount(account) {
		return true
	}
	return e.allowRegistered && account.Kind == models.AccountKindRegistered && account.ID != ""
}

func buy(wallet *models.Wallet, order Order, total decimal.Decimal) error {
	if wallet.Balance.LessThan(total) {
		return ErrInsufficientFunds
	}
	wallet.Balance = wallet.Balance.Sub(total)

	i := wallet.Position(order.Cryptocurrency)
	if i < 0 {
		wallet.Assets = append(wallet.Assets, models.AssetPosition{
			Symbol:   order.Cryptocurrency,
			Amount:   order.Amount,
			AvgPrice: order.Price,
		})
		return nil
	}

	// weighted average acquisition price
	pos := &wallet.Assets[i]
	held := pos.Amount.Add(order.Amount)
	pos.AvgPrice = pos.Amount.Mul(pos.AvgPrice).Add(total).Div(held)
	pos.Amount = held
	return nil
}

func sell(wallet *models.Wallet, order Order, total decimal.Decimal) error {
	i := wallet.Position(order.Cryptocurrency)
	if i < 0 || wallet.Assets[i].Amount.LessThan(order.Amount) {
		return ErrInsufficientHoldings
	}
	wallet.Balance = wallet.Balance.Add(total)

	remaining := wallet.Assets[i].Amount.Sub(order.Amount)
	if remaining.IsZero() {
		wallet.Assets = append(wallet.Assets[:i], wallet.Assets[i+1:]...)
		return nil
	}
	wallet.Assets[i].Amount = remaining
	return nil
}
