package account

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/cryptodemo/backend/internal/models"
)

// ErrAccountExpired is returned for demo accounts past their expiry.
var ErrAccountExpired = errors.New("demo session expired")

// Manager creates demo accounts and answers kind/expiry questions about them.
type Manager struct {
	preset   Preset
	idPrefix string
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDPrefix overrides the demo id prefix.
func WithIDPrefix(prefix string) Option {
	return func(m *Manager) {
		m.idPrefix = prefix
	}
}

// NewManager returns a Manager that creates accounts from preset.
func NewManager(preset Preset, opts ...Option) *Manager {
	m := &Manager{
		preset:   preset,
		idPrefix: DefaultIDPrefix,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Preset returns the preset new accounts are created from.
func (m *Manager) Preset() Preset {
	return m.preset
}

// CreateDemoAccount allocates a fresh demo account. Registering it is the caller's job.
func (m *Manager) CreateDemoAccount() *models.Account {
	now := m.now()
	expiresAt := now.Add(m.preset.TTL)

	return &models.Account{
		ID:        m.idPrefix + uuid.NewString(),
		Kind:      models.AccountKindDemo,
		Username:  "demo_user",
		CreatedAt: now,
		ExpiresAt: &expiresAt,
		Wallet: models.Wallet{
			Balance:  m.preset.StartingBalance,
			Currency: m.preset.Currency,
			Assets:   []models.AssetPosition{},
		},
		Trades: []models.TradeRecord{},
	}
}

// IsDemoAccount reports whether the account is a demo account with a demo id.
func (m *Manager) IsDemoAccount(a *models.Account) bool {
	return a != nil &&
		a.Kind == models.AccountKindDemo &&
		a.ID != "" &&
		strings.HasPrefix(a.ID, m.idPrefix)
}

// IsExpired is fail-closed: nil accounts and accounts without an expiry are expired.
func (m *Manager) IsExpired(a *models.Account) bool {
	if a == nil || a.ExpiresAt == nil || a.ExpiresAt.IsZero() {
		return true
	}
	return m.now().After(*a.ExpiresAt)
}

// ResetDemoAccount restores the starting balance and clears holdings and history
// in place. Identity and expiry are untouched.
func (m *Manager) ResetDemoAccount(a *models.Account) *models.Account {
	a.Wallet.Balance = m.preset.StartingBalance
	a.Wallet.Currency = m.preset.Currency
	a.Wallet.Assets = []models.AssetPosition{}
	a.Trades = []models.TradeRecord{}
	return a
}
