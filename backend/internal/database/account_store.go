package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/user/cryptodemo/backend/internal/models"
)

// GetAccount loads the registered account of userID: identity, wallet and
// positions. Trade history is not loaded; see ListTrades.
func (s *Store) GetAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	return loadAccount(ctx, s.pool, userID, false)
}

// WithAccountTx locks the wallet of userID, hands the account to fn and, if fn
// succeeds, writes back the balance, the positions and any trades fn appended.
// Any error rolls the whole transaction back.
func (s *Store) WithAccountTx(ctx context.Context, userID uuid.UUID, fn func(account *models.Account) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin account tx for %s: %w", userID, err)
	}
	// Ensure rollback happens if anything goes wrong before commit
	defer tx.Rollback(ctx)

	if err := applyAccount(ctx, tx, userID, fn); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit account tx for %s: %w", userID, err)
	}
	return nil
}

// applyAccount is the body of WithAccountTx, run on the transaction q.
func applyAccount(ctx context.Context, q querier, userID uuid.UUID, fn func(account *models.Account) error) error {
	account, err := loadAccount(ctx, q, userID, true)
	if err != nil {
		return err
	}
	known := len(account.Trades)

	if err := fn(account); err != nil {
		return err
	}

	if err := saveWallet(ctx, q, userID, account.Wallet); err != nil {
		return err
	}
	for _, trade := range account.Trades[known:] {
		if err := insertTrade(ctx, q, userID, trade); err != nil {
			return err
		}
	}
	return nil
}

// ListTrades returns the trade history of userID, newest first.
func (s *Store) ListTrades(ctx context.Context, userID uuid.UUID) ([]models.TradeRecord, error) {
	query := `SELECT id::text, type, cryptocurrency, amount::text, price::text, total::text, executed_at
			  FROM trades
			  WHERE user_id = $1
			  ORDER BY executed_at DESC, id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying trades for user %s: %w", userID, err)
	}
	defer rows.Close()

	trades := make([]models.TradeRecord, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning trade row for user %s: %w", userID, err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows for user %s: %w", userID, err)
	}
	return trades, nil
}

// GetTrade returns one trade of userID. Trades owned by someone else are reported as ErrNotFound.
func (s *Store) GetTrade(ctx context.Context, userID uuid.UUID, tradeID uuid.UUID) (*models.TradeRecord, error) {
	query := `SELECT id::text, type, cryptocurrency, amount::text, price::text, total::text, executed_at
			  FROM trades
			  WHERE id = $1 AND user_id = $2`

	trade, err := scanTrade(s.pool.QueryRow(ctx, query, tradeID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error getting trade %s: %w", tradeID, err)
	}
	return &trade, nil
}

func loadAccount(ctx context.Context, q querier, userID uuid.UUID, forUpdate bool) (*models.Account, error) {
	query := `SELECT u.username, u.created_at, w.balance::text, w.currency
			  FROM wallets w JOIN users u ON u.id = w.user_id
			  WHERE w.user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF w`
	}

	account := &models.Account{
		ID:   userID.String(),
		Kind: models.AccountKindRegistered,
	}
	var balance string
	err := q.QueryRow(ctx, query, userID).
		Scan(&account.Username, &account.CreatedAt, &balance, &account.Wallet.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error loading wallet for user %s: %w", userID, err)
	}
	if account.Wallet.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("wallet balance for user %s: %w", userID, err)
	}

	rows, err := q.Query(ctx, `SELECT symbol, amount::text, avg_price::text
			  FROM positions WHERE user_id = $1 ORDER BY ordinal, symbol`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying positions for user %s: %w", userID, err)
	}
	defer rows.Close()

	account.Wallet.Assets = make([]models.AssetPosition, 0)
	for rows.Next() {
		var pos models.AssetPosition
		var amount, avgPrice string
		if err := rows.Scan(&pos.Symbol, &amount, &avgPrice); err != nil {
			return nil, fmt.Errorf("error scanning position row for user %s: %w", userID, err)
		}
		if pos.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("position %s amount: %w", pos.Symbol, err)
		}
		if pos.AvgPrice, err = decimal.NewFromString(avgPrice); err != nil {
			return nil, fmt.Errorf("position %s avg price: %w", pos.Symbol, err)
		}
		account.Wallet.Assets = append(account.Wallet.Assets, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows for user %s: %w", userID, err)
	}

	account.Trades = make([]models.TradeRecord, 0)
	return account, nil
}

// saveWallet overwrites the balance and replaces the positions of userID,
// keeping their order in the wallet.
func saveWallet(ctx context.Context, q querier, userID uuid.UUID, wallet models.Wallet) error {
	cmdTag, err := q.Exec(ctx, `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE user_id = $2`,
		wallet.Balance.String(), userID)
	if err != nil {
		return fmt.Errorf("error updating wallet for user %s: %w", userID, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return fmt.Errorf("wallet for user %s: %w", userID, ErrNotFound)
	}

	if _, err := q.Exec(ctx, `DELETE FROM positions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("error clearing positions for user %s: %w", userID, err)
	}
	for i, pos := range wallet.Assets {
		_, err := q.Exec(ctx, `INSERT INTO positions (user_id, symbol, amount, avg_price, ordinal) VALUES ($1, $2, $3, $4, $5)`,
			userID, pos.Symbol, pos.Amount.String(), pos.AvgPrice.String(), i)
		if err != nil {
			return fmt.Errorf("error saving %s position for user %s: %w", pos.Symbol, userID, err)
		}
	}
	return nil
}

func insertTrade(ctx context.Context, q querier, userID uuid.UUID, trade models.TradeRecord) error {
	query := `INSERT INTO trades (id, user_id, type, cryptocurrency, amount, price, total, executed_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := q.Exec(ctx, query,
		trade.ID, userID, string(trade.Type), trade.Cryptocurrency,
		trade.Amount.String(), trade.Price.String(), trade.Total.String(), trade.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("error inserting trade %s for user %s: %w", trade.ID, userID, err)
	}
	return nil
}

func scanTrade(row pgx.Row) (models.TradeRecord, error) {
	var (
		trade                models.TradeRecord
		typ                  string
		amount, price, total string
		executedAt           time.Time
	)
	if err := row.Scan(&trade.ID, &typ, &trade.Cryptocurrency, &amount, &price, &total, &executedAt); err != nil {
		return trade, err
	}

	var err error
	if trade.Amount, err = decimal.NewFromString(amount); err != nil {
		return trade, fmt.Errorf("trade %s amount: %w", trade.ID, err)
	}
	if trade.Price, err = decimal.NewFromString(price); err != nil {
		return trade, fmt.Errorf("trade %s price: %w", trade.ID, err)
	}
	if trade.Total, err = decimal.NewFromString(total); err != nil {
		return trade, fmt.Errorf("trade %s total: %w", trade.ID, err)
	}
	trade.Type = models.TradeType(typ)
	trade.Timestamp = executedAt
	return trade, nil
}
