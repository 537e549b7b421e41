package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cryptodemo/backend/internal/models"
)

func newAccount(id string, balance int64) *models.Account {
	return &models.Account{
		ID:     id,
		Kind:   models.AccountKindDemo,
		Wallet: models.Wallet{Balance: decimal.NewFromInt(balance), Currency: "USD"},
	}
}

func TestRegistry_PutGetRemove(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Get("demo_1")
	assert.False(t, ok)

	r.Put("demo_1", newAccount("demo_1", 100))
	acc, ok := r.Get("demo_1")
	require.True(t, ok)
	assert.Equal(t, "demo_1", acc.ID)
	assert.Equal(t, 1, r.Len())

	r.Remove("demo_1")
	_, ok = r.Get("demo_1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	// removing twice is fine
	r.Remove("demo_1")
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Put("demo_1", newAccount("demo_1", 100))

	acc, _ := r.Get("demo_1")
	acc.Wallet.Balance = decimal.Zero

	again, _ := r.Get("demo_1")
	assert.True(t, again.Wallet.Balance.Equal(decimal.NewFromInt(100)))
}

func TestRegistry_PutStoresCopy(t *testing.T) {
	r := NewRegistry()
	acc := newAccount("demo_1", 100)
	r.Put("demo_1", acc)

	acc.Wallet.Balance = decimal.Zero

	stored, _ := r.Get("demo_1")
	assert.True(t, stored.Wallet.Balance.Equal(decimal.NewFromInt(100)))
}

func TestRegistry_Update(t *testing.T) {
	r := NewRegistry()
	r.Put("demo_1", newAccount("demo_1", 100))

	err := r.Update("demo_1", func(a *models.Account) error {
		a.Wallet.Balance = a.Wallet.Balance.Sub(decimal.NewFromInt(40))
		return nil
	})
	require.NoError(t, err)

	acc, _ := r.Get("demo_1")
	assert.True(t, acc.Wallet.Balance.Equal(decimal.NewFromInt(60)))

	boom := errors.New("boom")
	err = r.Update("demo_1", func(a *models.Account) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = r.Update("missing", func(a *models.Account) error { return nil })
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestRegistry_UpdateAfterReplace(t *testing.T) {
	r := NewRegistry()
	r.Put("demo_1", newAccount("demo_1", 100))
	r.Put("demo_1", newAccount("demo_1", 5))

	acc, ok := r.Get("demo_1")
	require.True(t, ok)
	assert.True(t, acc.Wallet.Balance.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_IDs(t *testing.T) {
	r := NewRegistry()
	r.Put("a", newAccount("a", 1))
	r.Put("b", newAccount("b", 1))
	assert.ElementsMatch(t, []string{"a", "b"}, r.IDs())
}

// Concurrent read-modify-write on one account must never lose an update.
func TestRegistry_UpdateSerializesPerAccount(t *testing.T) {
	r := NewRegistry()
	r.Put("demo_1", newAccount("demo_1", 0))
	r.Put("demo_2", newAccount("demo_2", 0))

	const workers, perWorker = 16, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("demo_%d", w%2+1)
			for i := 0; i < perWorker; i++ {
				err := r.Update(id, func(a *models.Account) error {
					a.Wallet.Balance = a.Wallet.Balance.Add(decimal.NewFromInt(1))
					return nil
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	for _, id := range []string{"demo_1", "demo_2"} {
		acc, ok := r.Get(id)
		require.True(t, ok)
		assert.True(t, acc.Wallet.Balance.Equal(decimal.NewFromInt(workers/2*perWorker)), "%s balance %s", id, acc.Wallet.Balance)
	}
}

func TestRegistry_UpdateAfterRemove(t *testing.T) {
	r := NewRegistry()
	r.Put("demo_1", newAccount("demo_1", 1))
	r.Remove("demo_1")

	called := false
	err := r.Update("demo_1", func(a *models.Account) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.False(t, called)
}
