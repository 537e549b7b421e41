package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"
	"github.com/user/cryptodemo/backend/pkg/retrier"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a wallet or trade row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned when registering a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
)

const uniqueViolation = "23505"

// Store persists registered users, their wallets and trade history.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect opens a pool for databaseURL and waits for the server to answer a ping.
func Connect(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create connection pool")
	}

	r := retrier.New(
		retrier.WithInitialInterval(500*time.Millisecond),
		retrier.WithMaxRetries(5),
	)
	err = r.Do(ctx, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database ping failed", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, pkgerrors.Wrap(err, "ping database")
	}

	logger.Info("connected to database")
	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() {
	s.pool.Close()
	s.logger.Info("database connection closed")
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wallets (
	user_id    UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	balance    NUMERIC NOT NULL CHECK (balance >= 0),
	currency   TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS positions (
	user_id   UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	symbol    TEXT NOT NULL,
	amount    NUMERIC NOT NULL CHECK (amount > 0),
	avg_price NUMERIC NOT NULL,
	ordinal   INT NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, symbol)
);

ALTER TABLE positions ADD COLUMN IF NOT EXISTS ordinal INT NOT NULL DEFAULT 0;

CREATE TABLE IF NOT EXISTS trades (
	id             UUID PRIMARY KEY,
	user_id        UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	type           TEXT NOT NULL CHECK (type IN ('buy', 'sell')),
	cryptocurrency TEXT NOT NULL,
	amount         NUMERIC NOT NULL CHECK (amount > 0),
	price          NUMERIC NOT NULL CHECK (price > 0),
	total          NUMERIC NOT NULL,
	executed_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS trades_user_executed_idx ON trades (user_id, executed_at DESC);
`

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return pkgerrors.Wrap(err, "ensure schema")
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

var (
	_ querier = (*pgxpool.Pool)(nil)
	_ querier = (pgx.Tx)(nil)
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
