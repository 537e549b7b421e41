package events

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/user/cryptodemo/backend/internal/models"
)

// TradeExecuted is emitted after a trade has been applied to an account.
type TradeExecuted struct {
	TradeID        string             `json:"trade_id"`
	AccountID      string             `json:"account_id"`
	AccountKind    models.AccountKind `json:"account_kind"`
	Type           models.TradeType   `json:"type"`
	Cryptocurrency string             `json:"cryptocurrency"`
	Amount         decimal.Decimal    `json:"amount"`
	Price          decimal.Decimal    `json:"price"`
	Total          decimal.Decimal    `json:"total"`
	BalanceAfter   decimal.Decimal    `json:"balance_after"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// NewTradeExecuted builds the event for record executed against account.
func NewTradeExecuted(account *models.Account, record *models.TradeRecord) TradeExecuted {
	return TradeExecuted{
		TradeID:        record.ID,
		AccountID:      account.ID,
		AccountKind:    account.Kind,
		Type:           record.Type,
		Cryptocurrency: record.Cryptocurrency,
		Amount:         record.Amount,
		Price:          record.Price,
		Total:          record.Total,
		BalanceAfter:   account.Wallet.Balance,
		OccurredAt:     record.Timestamp,
	}
}

// Publisher delivers trade events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event TradeExecuted) error
	Close() error
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, TradeExecuted) error { return nil }
func (Nop) Close() error                                 { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []TradeExecuted
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event TradeExecuted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []TradeExecuted {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TradeExecuted, len(r.events))
	copy(out, r.events)
	return out
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
)
