package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind distinguishes ephemeral demo accounts from registered ones.
type AccountKind string

const (
	AccountKindDemo       AccountKind = "demo"
	AccountKindRegistered AccountKind = "registered"
)

// TradeType is the side of an executed trade.
type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

// User represents a registered user
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // Store hash, exclude from JSON responses
	CreatedAt time.Time `json:"created_at"`
}

// AssetPosition is a held quantity of one cryptocurrency.
// Amount is always strictly positive; empty positions are removed from the wallet.
type AssetPosition struct {
	Symbol   string          `json:"symbol"`
	Amount   decimal.Decimal `json:"amount"`
	AvgPrice decimal.Decimal `json:"avgPrice"`
}

// Wallet is the balance + holdings container owned by an account.
type Wallet struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
	Assets   []AssetPosition `json:"assets"`
}

// TradeRecord is an immutable log entry of one executed buy or sell.
type TradeRecord struct {
	ID             string          `json:"id"`
	Type           TradeType       `json:"type"`
	Cryptocurrency string          `json:"cryptocurrency"`
	Amount         decimal.Decimal `json:"amount"`
	Price          decimal.Decimal `json:"price"`
	Total          decimal.Decimal `json:"total"` // amount * price
	Timestamp      time.Time       `json:"timestamp"`
}

// Account owns exactly one wallet and its trade history.
type Account struct {
	ID        string        `json:"id"`
	Kind      AccountKind   `json:"kind"`
	Username  string        `json:"username,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"` // demo only
	Wallet    Wallet        `json:"wallet"`
	Trades    []TradeRecord `json:"trades"`
}

// Position returns the index of the position for symbol, or -1.
func (w *Wallet) Position(symbol string) int {
	for i := range w.Assets {
		if w.Assets[i].Symbol == symbol {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the wallet.
func (w Wallet) Clone() Wallet {
	if w.Assets != nil {
		assets := make([]AssetPosition, len(w.Assets))
		copy(assets, w.Assets)
		w.Assets = assets
	}
	return w
}

// Clone returns a deep copy so callers can't mutate registry-owned state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Wallet = a.Wallet.Clone()
	if a.Trades != nil {
		clone.Trades = make([]TradeRecord, len(a.Trades))
		copy(clone.Trades, a.Trades)
	}
	if a.ExpiresAt != nil {
		expiresAt := *a.ExpiresAt
		clone.ExpiresAt = &expiresAt
	}
	return &clone
}

// Execution is the outcome of a successful trade: the record plus the wallet after it.
type Execution struct {
	Trade  TradeRecord `json:"trade"`
	Wallet Wallet      `json:"wallet"`
}
