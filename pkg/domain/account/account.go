package account

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned when a transaction amount is not positive.
	ErrInvalidAmount = errors.New("transaction amount must be positive")

	// ErrInsufficientFunds is returned when a withdrawal or transfer would break the account's withdrawal policy.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotMatured is returned when money leaves a fixed deposit before its maturity date.
	ErrNotMatured = errors.New("fixed deposit has not matured")

	// ErrAccountNotFound is returned when an account cannot be found.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSameAccount is returned when a transfer is attempted from an account to itself.
	ErrSameAccount = errors.New("cannot transfer to same account")

	// ErrInvalidHolder is returned when the holder name is blank.
	ErrInvalidHolder = errors.New("holder name is required")

	// ErrInvalidType is returned when an account is built without a type or with invalid type parameters.
	ErrInvalidType = errors.New("invalid account type")
)

// MinID and MaxID bound the identifier space accounts are drawn from.
const (
	MinID int64 = 10_000_000
	MaxID int64 = 99_999_999
)

// Account is a balance-bearing entity with a type-specific withdrawal policy
// and an append-only transaction log.
//
// Invariants:
//   - The balance satisfies the type's withdrawal policy after every mutation.
//   - Transactions are only ever appended.
//
// Account is not safe for concurrent use; callers serialize access per account.
type Account struct {
	ID           int64
	Holder       string
	Balance      decimal.Decimal
	CreatedAt    time.Time
	Type         Type
	Transactions []Transaction
}

// Builder provides a fluent API for constructing Account instances.
type Builder struct {
	id           int64
	holder       string
	typ          Type
	balance      decimal.Decimal
	createdAt    time.Time
	transactions []Transaction
	initial      decimal.Decimal
}

// New creates a new Builder with a zero balance and the current time as creation date.
func New() *Builder {
	return &Builder{
		balance:   decimal.Zero,
		createdAt: time.Now().UTC(),
	}
}

// WithID sets the identifier of the account being built.
func (b *Builder) WithID(id int64) *Builder {
	b.id = id
	return b
}

// WithHolder sets the holder name. This is a mandatory field.
func (b *Builder) WithHolder(holder string) *Builder {
	b.holder = holder
	return b
}

// WithType sets the account type. This is a mandatory field.
func (b *Builder) WithType(t Type) *Builder {
	b.typ = t
	return b
}

// WithBalance sets the starting balance. This should only be used when
// hydrating an existing account from a store or for test setup.
func (b *Builder) WithBalance(balance decimal.Decimal) *Builder {
	b.balance = balance
	return b
}

// WithCreatedAt sets the creation timestamp.
func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.createdAt = t
	return b
}

// WithTransactions sets the transaction log, used when hydrating from a store.
func (b *Builder) WithTransactions(txs []Transaction) *Builder {
	b.transactions = txs
	return b
}

// WithInitialDeposit credits amount at creation time and records it as a
// Deposit transaction. A zero amount records nothing.
func (b *Builder) WithInitialDeposit(amount decimal.Decimal) *Builder {
	b.initial = amount
	return b
}

// Build validates the collected values and returns the Account.
func (b *Builder) Build() (*Account, error) {
	holder := strings.TrimSpace(b.holder)
	if holder == "" {
		return nil, ErrInvalidHolder
	}
	if b.typ == nil {
		return nil, ErrInvalidType
	}
	if err := b.typ.validate(); err != nil {
		return nil, err
	}
	if b.initial.IsNegative() {
		return nil, ErrInvalidAmount
	}
	balance := b.balance
	txs := make([]Transaction, len(b.transactions), len(b.transactions)+1)
	copy(txs, b.transactions)
	if b.initial.IsPositive() {
		balance = balance.Add(b.initial)
		txs = append(txs, newTransaction(b.initial, b.createdAt, TransactionDeposit, 0))
	}
	if balance.IsNegative() && b.typ.Kind() != KindCurrent {
		return nil, ErrInsufficientFunds
	}
	if balance.LessThan(b.typ.floor()) {
		return nil, ErrInsufficientFunds
	}
	return &Account{
		ID:           b.id,
		Holder:       holder,
		Balance:      balance,
		CreatedAt:    b.createdAt,
		Type:         b.typ,
		Transactions: txs,
	}, nil
}

// Kind returns the closed type tag of the account.
func (a *Account) Kind() Kind {
	return a.Type.Kind()
}

// Deposit credits amount and appends a Deposit transaction.
func (a *Account) Deposit(amount decimal.Decimal, now time.Time) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	a.Balance = a.Balance.Add(amount)
	return a.append(newTransaction(amount, now, TransactionDeposit, 0)), nil
}

// Withdraw debits amount if the withdrawal policy allows it and appends a Withdrawal transaction.
func (a *Account) Withdraw(amount decimal.Decimal, now time.Time) (Transaction, error) {
	if err := a.ValidateWithdraw(amount, now); err != nil {
		return Transaction{}, err
	}
	a.Balance = a.Balance.Sub(amount)
	return a.append(newTransaction(amount, now, TransactionWithdrawal, 0)), nil
}

// ValidateWithdraw checks whether amount may leave the account at now without changing it.
func (a *Account) ValidateWithdraw(amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return a.Type.allowWithdraw(a.Balance, amount, now)
}

// TransferOut debits amount towards target. txID is shared with the matching TransferIn.
func (a *Account) TransferOut(txID string, target int64, amount decimal.Decimal, now time.Time) (Transaction, error) {
	if target == a.ID {
		return Transaction{}, ErrSameAccount
	}
	if err := a.ValidateWithdraw(amount, now); err != nil {
		return Transaction{}, err
	}
	a.Balance = a.Balance.Sub(amount)
	return a.append(Transaction{
		ID:           txID,
		Amount:       amount,
		Timestamp:    now,
		Kind:         TransactionTransferOut,
		Counterparty: target,
	}), nil
}

// TransferIn credits amount received from source.
func (a *Account) TransferIn(txID string, source int64, amount decimal.Decimal, now time.Time) (Transaction, error) {
	if source == a.ID {
		return Transaction{}, ErrSameAccount
	}
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	a.Balance = a.Balance.Add(amount)
	return a.append(Transaction{
		ID:           txID,
		Amount:       amount,
		Timestamp:    now,
		Kind:         TransactionTransferIn,
		Counterparty: source,
	}), nil
}

// ApplyInterest credits one period of interest. It reports false when the
// account type earns no interest or the rounded amount is not positive.
func (a *Account) ApplyInterest(now time.Time) (decimal.Decimal, bool) {
	rate := a.Type.interestRate()
	if !rate.IsPositive() || !a.Balance.IsPositive() {
		return decimal.Zero, false
	}
	interest := a.Balance.Mul(rate).Round(2)
	if !interest.IsPositive() {
		return decimal.Zero, false
	}
	a.Balance = a.Balance.Add(interest)
	a.append(newTransaction(interest, now, TransactionInterest, 0))
	return interest, true
}

// Rename changes the holder name.
func (a *Account) Rename(holder string) error {
	holder = strings.TrimSpace(holder)
	if holder == "" {
		return ErrInvalidHolder
	}
	a.Holder = holder
	return nil
}

// Clone returns a deep copy that shares no mutable state with a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Transactions = make([]Transaction, len(a.Transactions))
	copy(cp.Transactions, a.Transactions)
	return &cp
}

func (a *Account) append(tx Transaction) Transaction {
	a.Transactions = append(a.Transactions, tx)
	return tx
}
