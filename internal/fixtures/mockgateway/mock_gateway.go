// Package mockgateway provides an in-memory persistence.Gateway whose
// behaviour can be overridden per method in tests.
package mockgateway

import (
	"context"
	"sync"

	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/amirasaad/bankcore/pkg/persistence"
)

// Provider is reported by Status.
const Provider = "memory"

// MockGateway keeps accounts in a map. Any *Func field that is set replaces
// the default behaviour of that method.
type MockGateway struct {
	mu       sync.Mutex
	accounts map[int64]*account.Account
	saves    int

	LoadAccountsFunc  func(ctx context.Context) (map[int64]*account.Account, error)
	SaveAccountFunc   func(ctx context.Context, acc *account.Account) error
	SaveAccountsFunc  func(ctx context.Context, accs []*account.Account) error
	DeleteAccountFunc func(ctx context.Context, id int64) (bool, error)
	StatusFunc        func() persistence.Status
	CloseFunc         func() error
}

// New returns an empty MockGateway.
func New() *MockGateway {
	return &MockGateway{accounts: make(map[int64]*account.Account)}
}

// Seed stores accs as if they had been persisted earlier.
func (m *MockGateway) Seed(accs ...*account.Account) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range accs {
		m.accounts[acc.ID] = acc.Clone()
	}
	return m
}

// Stored returns a copy of the persisted account, if any.
func (m *MockGateway) Stored(id int64) (*account.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

// Saves counts successful SaveAccount and SaveAccounts calls.
func (m *MockGateway) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MockGateway) LoadAccounts(ctx context.Context) (map[int64]*account.Account, error) {
	if m.LoadAccountsFunc != nil {
		return m.LoadAccountsFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]*account.Account, len(m.accounts))
	for id, acc := range m.accounts {
		out[id] = acc.Clone()
	}
	return out, nil
}

func (m *MockGateway) SaveAccount(ctx context.Context, acc *account.Account) error {
	if m.SaveAccountFunc != nil {
		return m.SaveAccountFunc(ctx, acc)
	}
	return m.SaveAccounts(ctx, []*account.Account{acc})
}

func (m *MockGateway) SaveAccounts(ctx context.Context, accs []*account.Account) error {
	if m.SaveAccountsFunc != nil {
		return m.SaveAccountsFunc(ctx, accs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range accs {
		m.accounts[acc.ID] = acc.Clone()
	}
	m.saves++
	return nil
}

func (m *MockGateway) DeleteAccount(ctx context.Context, id int64) (bool, error) {
	if m.DeleteAccountFunc != nil {
		return m.DeleteAccountFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[id]
	delete(m.accounts, id)
	return ok, nil
}

func (m *MockGateway) Clear(context.Context) error {
	m.mu.Lock()
	m.accounts = make(map[int64]*account.Account)
	m.mu.Unlock()
	return nil
}

func (m *MockGateway) Status() persistence.Status {
	if m.StatusFunc != nil {
		return m.StatusFunc()
	}
	return persistence.Status{Provider: Provider, Available: true, Message: "in memory"}
}

func (m *MockGateway) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
