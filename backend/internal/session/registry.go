package session

import (
	"errors"
	"sync"

	"github.com/user/cryptodemo/backend/internal/models"
)

// ErrAccountNotFound is returned when no account is registered under an id.
var ErrAccountNotFound = errors.New("account not found")

// entry guards one account. Its mutex serializes every read-modify-write on
// that account; the registry lock is only held for map lookups.
type entry struct {
	mu      sync.Mutex
	account *models.Account
	removed bool
}

// Registry maps account ids to in-memory accounts. Not durable.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Put stores account under id, replacing any previous account.
func (r *Registry) Put(id string, account *models.Account) {
	fresh := &entry{account: account.Clone()}

	r.mu.Lock()
	old, exists := r.entries[id]
	r.entries[id] = fresh
	r.mu.Unlock()

	if exists {
		old.mu.Lock()
		old.removed = true
		old.mu.Unlock()
	}
}

// Get returns a copy of the account stored under id.
func (r *Registry) Get(id string) (*models.Account, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, false
	}
	return e.account.Clone(), true
}

// Remove deletes the account stored under id. Removing a missing id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
	}
}

// Update runs fn on the stored account while holding that account's lock.
// fn must leave the account unchanged when it returns an error.
// Update returns ErrAccountNotFound if id is unknown or was removed concurrently.
func (r *Registry) Update(id string, fn func(account *models.Account) error) error {
	e, ok := r.lookup(id)
	if !ok {
		return ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return ErrAccountNotFound
	}
	return fn(e.account)
}

// IDs returns a snapshot of the registered account ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
