// Package persistence defines the durable storage contract of the bank and
// the error and health types shared by its implementations.
package persistence

import (
	"context"

	"github.com/amirasaad/bankcore/pkg/domain/account"
)

// Gateway is the durable copy of the ledger. It is the source of truth on
// cold start; afterwards the bank's registry is authoritative and the
// gateway mirrors every committed change.
type Gateway interface {
	LoadAccounts(ctx context.Context) (map[int64]*account.Account, error)
	SaveAccount(ctx context.Context, acc *account.Account) error
	// SaveAccounts persists a batch atomically where the store allows it.
	SaveAccounts(ctx context.Context, accs []*account.Account) error
	// DeleteAccount reports whether an account was removed.
	DeleteAccount(ctx context.Context, id int64) (bool, error)
	Clear(ctx context.Context) error
	Status() Status
	Close() error
}

// Status describes the health of a gateway.
type Status struct {
	Provider  string
	Available bool
	Message   string
	Err       error
}
