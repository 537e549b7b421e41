package ledger

import (
	"errors"
	"fmt"
)

// Trade rejection kinds. Match with errors.Is.
var (
	ErrNotDemoAccount       = errors.New("not a demo account")
	ErrInvalidOrderType     = errors.New(`invalid trade type, must be "buy" or "sell"`)
	ErrInvalidAmount        = errors.New("invalid amount, must be a positive number")
	ErrInvalidPrice         = errors.New("invalid price, must be a positive number")
	ErrUnsupportedAsset     = errors.New("unsupported cryptocurrency")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient cryptocurrency holdings")
)

// TradeError adds the account and order context to a rejection.
type TradeError struct {
	AccountID string
	Symbol    string
	Op        string
	Err       error
}

func (e *TradeError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("trade %s %s on account %s: %v", e.Op, e.Symbol, e.AccountID, e.Err)
	}
	return fmt.Sprintf("trade %s on account %s: %v", e.Op, e.AccountID, e.Err)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

func newTradeError(accountID, symbol, op string, err error) *TradeError {
	return &TradeError{AccountID: accountID, Symbol: symbol, Op: op, Err: err}
}
