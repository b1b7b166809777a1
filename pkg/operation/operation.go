// Package operation defines the units of work executed by the bank's worker
// pool. An operation names every account it touches so the caller can lock
// them before Execute runs.
package operation

import (
	"context"
	"time"

	"github.com/amirasaad/bankcore/pkg/domain/account"
)

// Kind identifies an operation variant.
type Kind int

// Operation kinds.
const (
	KindDeposit Kind = iota + 1
	KindWithdraw
	KindTransfer
	KindAnalyticsReport
)

func (k Kind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdraw:
		return "withdraw"
	case KindTransfer:
		return "transfer"
	case KindAnalyticsReport:
		return "analytics_report"
	default:
		return "unknown"
	}
}

// Accounts holds working copies of the involved accounts that exist.
// Missing accounts are absent from the map.
type Accounts map[int64]*account.Account

// Operation is a unit of work over a fixed set of accounts.
type Operation interface {
	Kind() Kind
	Description() string
	// InvolvedAccounts must list every account Execute reads or mutates.
	InvolvedAccounts() []int64
	Execute(ctx context.Context, accounts Accounts) Result
}

// Clock returns the current time. A nil Clock means time.Now in UTC.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}
