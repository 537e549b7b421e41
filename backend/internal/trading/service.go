package trading

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/user/cryptodemo/backend/internal/auth"
	"github.com/user/cryptodemo/backend/internal/database"
	"github.com/user/cryptodemo/backend/internal/events"
	"github.com/user/cryptodemo/backend/internal/ledger"
	"github.com/user/cryptodemo/backend/internal/models"
	"go.uber.org/zap"
)

var (
	ErrInvalidUsername    = errors.New("username cannot be empty")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Store is the persistence the registered-account flow needs.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string, balance decimal.Decimal, currency string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	WithAccountTx(ctx context.Context, userID uuid.UUID, fn func(account *models.Account) error) error
	ListTrades(ctx context.Context, userID uuid.UUID) ([]models.TradeRecord, error)
	GetTrade(ctx context.Context, userID, tradeID uuid.UUID) (*models.TradeRecord, error)
}

var _ Store = (*database.Store)(nil)

// Service runs registration, login and trading for registered accounts.
type Service struct {
	store           Store
	engine          *ledger.Engine
	publisher       events.Publisher
	startingBalance decimal.Decimal
	currency        string
	logger          *zap.Logger
}

// NewService wires the registered-account flow. engine must be configured
// with ledger.WithRegisteredAccounts.
func NewService(
	store Store,
	engine *ledger.Engine,
	publisher events.Publisher,
	startingBalance decimal.Decimal,
	currency string,
	logger *zap.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:           store,
		engine:          engine,
		publisher:       publisher,
		startingBalance: startingBalance,
		currency:        currency,
		logger:          logger,
	}
}

// Register creates a user and a funded wallet.
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, username, hash, s.startingBalance, s.currency)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))
	return user, nil
}

// Authenticate checks credentials and returns the user.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Profile returns the user behind userID.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, database.ErrNotFound
	}
	return user, nil
}

// ExecuteOrder applies order to the user's wallet in one database transaction
// and publishes the trade after commit.
func (s *Service) ExecuteOrder(ctx context.Context, userID uuid.UUID, order ledger.Order) (*models.Execution, error) {
	var (
		execution models.Execution
		event     events.TradeExecuted
	)
	err := s.store.WithAccountTx(ctx, userID, func(account *models.Account) error {
		record, err := s.engine.ExecuteTrade(account, order)
		if err != nil {
			return err
		}
		execution = models.Execution{Trade: *record, Wallet: account.Wallet.Clone()}
		event = events.NewTradeExecuted(account, record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish trade event",
			zap.String("user_id", userID.String()),
			zap.String("trade_id", event.TradeID),
			zap.Error(err))
	}
	return &execution, nil
}

// Portfolio returns the user's wallet.
func (s *Service) Portfolio(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &account.Wallet, nil
}

// Orders returns the user's trade history, newest first.
func (s *Service) Orders(ctx context.Context, userID uuid.UUID) ([]models.TradeRecord, error) {
	return s.store.ListTrades(ctx, userID)
}

// Order returns one of the user's trades.
func (s *Service) Order(ctx context.Context, userID, tradeID uuid.UUID) (*models.TradeRecord, error) {
	return s.store.GetTrade(ctx, userID, tradeID)
}
