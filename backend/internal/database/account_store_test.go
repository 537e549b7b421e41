package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cryptodemo/backend/internal/ledger"
	"github.com/user/cryptodemo/backend/internal/models"
)

type positionRow struct {
	symbol, amount, avgPrice string
	ordinal                  int
}

type tradeRow struct {
	id, typ, symbol, amount, price, total string
}

// fakeTx keeps one user's rows in memory and answers the statements the
// account store issues.
type fakeTx struct {
	username   string
	createdAt  time.Time
	balance    string
	currency   string
	noWallet   bool
	positions  []positionRow
	trades     []tradeRow
	lockedRead bool
	execs      int
}

func newFakeTx(balance string) *fakeTx {
	return &fakeTx{
		username:  "alice",
		createdAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		balance:   balance,
		currency:  "USD",
	}
}

func (f *fakeTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	if !strings.Contains(sql, "FROM wallets w JOIN users u") {
		return fakeRow{err: fmt.Errorf("unexpected query: %s", sql)}
	}
	if f.noWallet {
		return fakeRow{err: pgx.ErrNoRows}
	}
	f.lockedRead = strings.Contains(sql, "FOR UPDATE OF w")
	return fakeRow{values: []any{f.username, f.createdAt, f.balance, f.currency}}
}

func (f *fakeTx) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	if !strings.Contains(sql, "FROM positions") {
		return nil, fmt.Errorf("unexpected query: %s", sql)
	}
	rows := append([]positionRow(nil), f.positions...)
	if strings.Contains(sql, "ORDER BY ordinal") {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ordinal < rows[j].ordinal })
	}
	out := &fakeRows{}
	for _, r := range rows {
		out.values = append(out.values, []any{r.symbol, r.amount, r.avgPrice})
	}
	return out, nil
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs++
	switch {
	case strings.HasPrefix(sql, "UPDATE wallets"):
		f.balance = args[0].(string)
		return pgconn.NewCommandTag("UPDATE 1"), nil
	case strings.HasPrefix(sql, "DELETE FROM positions"):
		n := len(f.positions)
		f.positions = nil
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	case strings.HasPrefix(sql, "INSERT INTO positions"):
		f.positions = append(f.positions, positionRow{
			symbol:   args[1].(string),
			amount:   args[2].(string),
			avgPrice: args[3].(string),
			ordinal:  args[4].(int),
		})
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "INSERT INTO trades"):
		f.trades = append(f.trades, tradeRow{
			id:     args[0].(string),
			typ:    args[2].(string),
			symbol: args[3].(string),
			amount: args[4].(string),
			price:  args[5].(string),
			total:  args[6].(string),
		})
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected statement: %s", sql)
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

type fakeRows struct {
	values [][]any
	pos    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(r.values[r.pos-1], dest)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.values[r.pos-1], nil
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

func registeredEngine() *ledger.Engine {
	return ledger.NewEngine(nil, ledger.WithRegisteredAccounts())
}

func buy(symbol, amount, price string) ledger.Order {
	return ledger.Order{
		Type:           models.TradeTypeBuy,
		Cryptocurrency: symbol,
		Amount:         decimal.RequireFromString(amount),
		Price:          decimal.RequireFromString(price),
	}
}

func TestApplyAccount_WritesBalancePositionsAndTrades(t *testing.T) {
	tx := newFakeTx("10000")
	engine := registeredEngine()
	userID := uuid.New()

	err := applyAccount(context.Background(), tx, userID, func(acc *models.Account) error {
		assert.Equal(t, userID.String(), acc.ID)
		assert.Equal(t, models.AccountKindRegistered, acc.Kind)
		assert.Equal(t, "alice", acc.Username)
		_, err := engine.ExecuteTrade(acc, buy("SOL", "10", "100"))
		return err
	})

	require.NoError(t, err)
	assert.True(t, tx.lockedRead)
	assert.Equal(t, "9000", tx.balance)
	require.Len(t, tx.positions, 1)
	assert.Equal(t, positionRow{symbol: "SOL", amount: "10", avgPrice: "100", ordinal: 0}, tx.positions[0])
	require.Len(t, tx.trades, 1)
	assert.Equal(t, tradeRow{id: tx.trades[0].id, typ: "buy", symbol: "SOL", amount: "10", price: "100", total: "1000"}, tx.trades[0])
	assert.NotEmpty(t, tx.trades[0].id)
}

func TestApplyAccount_KeepsPositionOrder(t *testing.T) {
	tx := newFakeTx("10000")
	engine := registeredEngine()
	userID := uuid.New()

	for _, order := range []ledger.Order{buy("SOL", "1", "100"), buy("ADA", "10", "0.5"), buy("BTC", "0.01", "45000"), buy("ADA", "10", "0.5")} {
		err := applyAccount(context.Background(), tx, userID, func(acc *models.Account) error {
			_, err := engine.ExecuteTrade(acc, order)
			return err
		})
		require.NoError(t, err)
	}

	acc, err := loadAccount(context.Background(), tx, userID, false)
	require.NoError(t, err)

	symbols := make([]string, 0, len(acc.Wallet.Assets))
	for _, pos := range acc.Wallet.Assets {
		symbols = append(symbols, pos.Symbol)
	}
	assert.Equal(t, []string{"SOL", "ADA", "BTC"}, symbols)
	assert.True(t, acc.Wallet.Assets[1].Amount.Equal(decimal.NewFromInt(20)))
	assert.False(t, tx.lockedRead)
	assert.Len(t, tx.trades, 4)
}

func TestApplyAccount_FailedCallbackWritesNothing(t *testing.T) {
	tx := newFakeTx("100")
	engine := registeredEngine()

	err := applyAccount(context.Background(), tx, uuid.New(), func(acc *models.Account) error {
		_, err := engine.ExecuteTrade(acc, buy("BTC", "1", "45000"))
		return err
	})

	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Zero(t, tx.execs)
	assert.Equal(t, "100", tx.balance)
}

func TestApplyAccount_MissingWallet(t *testing.T) {
	tx := newFakeTx("100")
	tx.noWallet = true
	called := false

	err := applyAccount(context.Background(), tx, uuid.New(), func(*models.Account) error {
		called = true
		return nil
	})

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, called)
	assert.Zero(t, tx.execs)
}

func TestSaveWallet_ReportsMissingWallet(t *testing.T) {
	q := &zeroRowsQuerier{fakeTx: newFakeTx("1")}

	err := saveWallet(context.Background(), q, uuid.New(), models.Wallet{Balance: decimal.NewFromInt(5), Currency: "USD"})

	assert.ErrorIs(t, err, ErrNotFound)
}

type zeroRowsQuerier struct {
	*fakeTx
}

func (q *zeroRowsQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if strings.HasPrefix(sql, "UPDATE wallets") {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	return q.fakeTx.Exec(ctx, sql, args...)
}
