// Package cache defines the read-through account cache used by the bank.
package cache

import (
	"context"

	"github.com/amirasaad/bankcore/pkg/domain/account"
)

// AccountCache stores copies of accounts keyed by id. Implementations must
// never hand out a value that aliases one passed to Set.
type AccountCache interface {
	// Get reports ok=false on a miss.
	Get(ctx context.Context, id int64) (acc *account.Account, ok bool, err error)
	Set(ctx context.Context, acc *account.Account) error
	Delete(ctx context.Context, id int64) error
}

// Noop is an AccountCache that never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, int64) (*account.Account, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, *account.Account) error                { return nil }
func (Noop) Delete(context.Context, int64) error                        { return nil }
