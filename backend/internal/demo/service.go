package demo

import (
	"context"
	"errors"
	"time"

	"github.com/user/cryptodemo/backend/internal/account"
	"github.com/user/cryptodemo/backend/internal/events"
	"github.com/user/cryptodemo/backend/internal/ledger"
	"github.com/user/cryptodemo/backend/internal/models"
	"github.com/user/cryptodemo/backend/internal/session"
	"go.uber.org/zap"
)

// Service is the demo trading surface: it ties the lifecycle manager, the
// session registry and the trade engine together.
type Service struct {
	accounts  *account.Manager
	registry  *session.Registry
	engine    *ledger.Engine
	publisher events.Publisher
	logger    *zap.Logger
}

// NewService wires a demo service. A nil publisher drops events and a nil logger logs nothing.
func NewService(
	accounts *account.Manager,
	registry *session.Registry,
	engine *ledger.Engine,
	publisher events.Publisher,
	logger *zap.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		accounts:  accounts,
		registry:  registry,
		engine:    engine,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateDemoAccount creates and registers a new demo account.
func (s *Service) CreateDemoAccount() *models.Account {
	acc := s.accounts.CreateDemoAccount()
	s.registry.Put(acc.ID, acc)

	s.logger.Info("demo account created",
		zap.String("account_id", acc.ID),
		zap.String("balance", acc.Wallet.Balance.String()),
		zap.Timep("expires_at", acc.ExpiresAt))
	return acc.Clone()
}

// GetAccount returns a snapshot of the account. Expired accounts are purged.
func (s *Service) GetAccount(id string) (*models.Account, error) {
	acc, ok := s.registry.Get(id)
	if !ok {
		return nil, session.ErrAccountNotFound
	}
	if s.accounts.IsExpired(acc) {
		s.purge(id)
		return nil, account.ErrAccountExpired
	}
	return acc, nil
}

// ResetAccount restores the starting balance and clears holdings and history.
func (s *Service) ResetAccount(id string) (*models.Account, error) {
	var snapshot *models.Account
	err := s.registry.Update(id, func(acc *models.Account) error {
		if s.accounts.IsExpired(acc) {
			return account.ErrAccountExpired
		}
		if !s.accounts.IsDemoAccount(acc) {
			return ledger.ErrNotDemoAccount
		}
		snapshot = s.accounts.ResetDemoAccount(acc).Clone()
		return nil
	})
	if err != nil {
		s.purgeIfExpired(id, err)
		return nil, err
	}

	s.logger.Info("demo account reset", zap.String("account_id", id))
	return snapshot, nil
}

// ExecuteTrade runs order against the account under that account's lock, then
// publishes the trade event once the lock is released.
func (s *Service) ExecuteTrade(ctx context.Context, id string, order ledger.Order) (*models.Execution, error) {
	var (
		execution models.Execution
		event     events.TradeExecuted
	)
	err := s.registry.Update(id, func(acc *models.Account) error {
		if s.accounts.IsExpired(acc) {
			return account.ErrAccountExpired
		}
		record, err := s.engine.ExecuteTrade(acc, order)
		if err != nil {
			return err
		}
		execution = models.Execution{Trade: *record, Wallet: acc.Wallet.Clone()}
		event = events.NewTradeExecuted(acc, record)
		return nil
	})
	if err != nil {
		s.purgeIfExpired(id, err)
		return nil, err
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish trade event",
			zap.String("account_id", id),
			zap.String("trade_id", event.TradeID),
			zap.Error(err))
	}
	return &execution, nil
}

// DestroyAccount removes the account. Unknown ids are ignored.
func (s *Service) DestroyAccount(id string) {
	s.registry.Remove(id)
	s.logger.Info("demo account destroyed", zap.String("account_id", id))
}

// PurgeExpired removes every expired account and returns how many were removed.
func (s *Service) PurgeExpired() int {
	purged := 0
	for _, id := range s.registry.IDs() {
		acc, ok := s.registry.Get(id)
		if !ok || !s.accounts.IsExpired(acc) {
			continue
		}
		s.registry.Remove(id)
		purged++
	}
	if purged > 0 {
		s.logger.Info("purged expired demo accounts",
			zap.Int("purged", purged),
			zap.Int("remaining", s.registry.Len()))
	}
	return purged
}

// RunJanitor calls PurgeExpired every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PurgeExpired()
		}
	}
}

func (s *Service) purge(id string) {
	s.registry.Remove(id)
	s.logger.Info("expired demo account purged", zap.String("account_id", id))
}

func (s *Service) purgeIfExpired(id string, err error) {
	if errors.Is(err, account.ErrAccountExpired) {
		s.purge(id)
	}
}
