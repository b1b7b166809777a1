package operation

import (
	"context"
	"fmt"

	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/shopspring/decimal"
)

// Deposit credits Amount to AccountID.
type Deposit struct {
	AccountID int64
	Amount    decimal.Decimal
	Clock     Clock
}

// NewDeposit returns a deposit operation.
func NewDeposit(id int64, amount decimal.Decimal, clock Clock) *Deposit {
	return &Deposit{AccountID: id, Amount: amount, Clock: clock}
}

func (d *Deposit) Kind() Kind { return KindDeposit }

func (d *Deposit) Description() string {
	return fmt.Sprintf("Deposit of %s to account %d", d.Amount, d.AccountID)
}

func (d *Deposit) InvolvedAccounts() []int64 { return []int64{d.AccountID} }

func (d *Deposit) Execute(_ context.Context, accounts Accounts) Result {
	acc, ok := accounts[d.AccountID]
	if !ok {
		return fail(d, account.ErrAccountNotFound)
	}
	if _, err := acc.Deposit(d.Amount, d.Clock.now()); err != nil {
		return fail(d, err)
	}
	return Succeeded(fmt.Sprintf("%s completed, balance %s", d.Description(), acc.Balance), acc)
}

// Withdraw debits Amount from AccountID.
type Withdraw struct {
	AccountID int64
	Amount    decimal.Decimal
	Clock     Clock
}

// NewWithdraw returns a withdrawal operation.
func NewWithdraw(id int64, amount decimal.Decimal, clock Clock) *Withdraw {
	return &Withdraw{AccountID: id, Amount: amount, Clock: clock}
}

func (w *Withdraw) Kind() Kind { return KindWithdraw }

func (w *Withdraw) Description() string {
	return fmt.Sprintf("Withdrawal of %s from account %d", w.Amount, w.AccountID)
}

func (w *Withdraw) InvolvedAccounts() []int64 { return []int64{w.AccountID} }

func (w *Withdraw) Execute(_ context.Context, accounts Accounts) Result {
	acc, ok := accounts[w.AccountID]
	if !ok {
		return fail(w, account.ErrAccountNotFound)
	}
	if _, err := acc.Withdraw(w.Amount, w.Clock.now()); err != nil {
		return fail(w, err)
	}
	return Succeeded(fmt.Sprintf("%s completed, balance %s", w.Description(), acc.Balance), acc)
}

// Transfer moves Amount from Source to Target. Both legs share one transaction id.
type Transfer struct {
	Source int64
	Target int64
	Amount decimal.Decimal
	Clock  Clock
}

// NewTransfer returns a transfer operation.
func NewTransfer(source, target int64, amount decimal.Decimal, clock Clock) *Transfer {
	return &Transfer{Source: source, Target: target, Amount: amount, Clock: clock}
}

func (t *Transfer) Kind() Kind { return KindTransfer }

func (t *Transfer) Description() string {
	return fmt.Sprintf("Transfer of %s from account %d to account %d", t.Amount, t.Source, t.Target)
}

func (t *Transfer) InvolvedAccounts() []int64 { return []int64{t.Source, t.Target} }

func (t *Transfer) Execute(_ context.Context, accounts Accounts) Result {
	if t.Source == t.Target {
		return fail(t, account.ErrSameAccount)
	}
	src, ok := accounts[t.Source]
	if !ok {
		return fail(t, fmt.Errorf("source %d: %w", t.Source, account.ErrAccountNotFound))
	}
	dst, ok := accounts[t.Target]
	if !ok {
		return fail(t, fmt.Errorf("target %d: %w", t.Target, account.ErrAccountNotFound))
	}
	now := t.Clock.now()
	txID := account.NewTransactionID()
	if _, err := src.TransferOut(txID, dst.ID, t.Amount, now); err != nil {
		return fail(t, err)
	}
	if _, err := dst.TransferIn(txID, src.ID, t.Amount, now); err != nil {
		return fail(t, err)
	}
	return Succeeded(t.Description()+" completed", src, dst)
}

func fail(op Operation, err error) Result {
	return Failed(fmt.Sprintf("%s failed: %v", op.Description(), err), err)
}
