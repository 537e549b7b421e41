package account

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cryptodemo/backend/internal/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestManager_CreateDemoAccount(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(BuiltinPresets()[PresetStandard], WithClock(fixedClock(now)))

	acc := m.CreateDemoAccount()

	require.NotNil(t, acc)
	assert.True(t, strings.HasPrefix(acc.ID, DefaultIDPrefix))
	assert.Equal(t, models.AccountKindDemo, acc.Kind)
	assert.Equal(t, now, acc.CreatedAt)
	require.NotNil(t, acc.ExpiresAt)
	assert.Equal(t, now.Add(24*time.Hour), *acc.ExpiresAt)
	assert.True(t, acc.Wallet.Balance.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, "USD", acc.Wallet.Currency)
	assert.Empty(t, acc.Wallet.Assets)
	assert.NotNil(t, acc.Wallet.Assets)
	assert.Empty(t, acc.Trades)
	assert.NotNil(t, acc.Trades)
}

func TestManager_CreateDemoAccount_UniqueIDs(t *testing.T) {
	m := NewManager(BuiltinPresets()[PresetStandard])
	assert.NotEqual(t, m.CreateDemoAccount().ID, m.CreateDemoAccount().ID)
}

func TestManager_CreateDemoAccount_WhalePreset(t *testing.T) {
	m := NewManager(BuiltinPresets()[PresetWhale])
	acc := m.CreateDemoAccount()
	assert.True(t, acc.Wallet.Balance.Equal(decimal.NewFromInt(1_000_000_000)))
}

func TestManager_IsDemoAccount(t *testing.T) {
	m := NewManager(BuiltinPresets()[PresetStandard])

	tests := []struct {
		name    string
		account *models.Account
		want    bool
	}{
		{name: "generated demo account", account: m.CreateDemoAccount(), want: true},
		{name: "nil account", account: nil, want: false},
		{name: "empty account", account: &models.Account{}, want: false},
		{name: "registered account", account: &models.Account{ID: "user_123", Kind: models.AccountKindRegistered}, want: false},
		{name: "demo kind without prefix", account: &models.Account{ID: "user_123", Kind: models.AccountKindDemo}, want: false},
		{name: "prefix without demo kind", account: &models.Account{ID: "demo_123", Kind: models.AccountKindRegistered}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.IsDemoAccount(tt.account))
		})
	}
}

func TestManager_IsDemoAccount_CustomPrefix(t *testing.T) {
	m := NewManager(BuiltinPresets()[PresetStandard], WithIDPrefix("sandbox-"))
	acc := m.CreateDemoAccount()
	assert.True(t, strings.HasPrefix(acc.ID, "sandbox-"))
	assert.True(t, m.IsDemoAccount(acc))
}

func TestManager_IsExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(BuiltinPresets()[PresetStandard], WithClock(fixedClock(now)))

	past := now.Add(-time.Second)
	future := now.Add(time.Hour)
	exact := now

	tests := []struct {
		name    string
		account *models.Account
		want    bool
	}{
		{name: "nil account", account: nil, want: true},
		{name: "missing expiry", account: &models.Account{}, want: true},
		{name: "zero expiry", account: &models.Account{ExpiresAt: &time.Time{}}, want: true},
		{name: "expired a second ago", account: &models.Account{ExpiresAt: &past}, want: true},
		{name: "expires in the future", account: &models.Account{ExpiresAt: &future}, want: false},
		{name: "expires right now", account: &models.Account{ExpiresAt: &exact}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.IsExpired(tt.account))
		})
	}
}

func TestManager_IsExpired_AfterTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	m := NewManager(BuiltinPresets()[PresetStandard], WithClock(func() time.Time { return clock }))

	acc := m.CreateDemoAccount()
	assert.False(t, m.IsExpired(acc))

	clock = now.Add(24*time.Hour + time.Nanosecond)
	assert.True(t, m.IsExpired(acc))
}

func TestManager_ResetDemoAccount(t *testing.T) {
	m := NewManager(BuiltinPresets()[PresetStandard])
	acc := m.CreateDemoAccount()
	id, createdAt, expiresAt := acc.ID, acc.CreatedAt, *acc.ExpiresAt

	acc.Wallet.Balance = decimal.NewFromInt(42)
	acc.Wallet.Assets = append(acc.Wallet.Assets, models.AssetPosition{Symbol: "BTC", Amount: decimal.NewFromInt(1)})
	acc.Trades = append(acc.Trades, models.TradeRecord{ID: "t1"})

	reset := m.ResetDemoAccount(acc)

	assert.Same(t, acc, reset)
	assert.True(t, reset.Wallet.Balance.Equal(decimal.NewFromInt(10000)))
	assert.Empty(t, reset.Wallet.Assets)
	assert.Empty(t, reset.Trades)
	assert.Equal(t, id, reset.ID)
	assert.Equal(t, createdAt, reset.CreatedAt)
	assert.Equal(t, expiresAt, *reset.ExpiresAt)
}
