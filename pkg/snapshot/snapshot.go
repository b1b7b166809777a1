// Package snapshot holds versioned, serialization-only projections of the
// account aggregate. Type tags are encoded through explicit lookup tables.
package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/shopspring/decimal"
)

// CurrentVersion is the schema version written by this package.
const CurrentVersion = 1

var (
	// ErrUnknownTag is returned when a kind tag has no entry in the lookup tables.
	ErrUnknownTag = errors.New("unknown type tag")

	// ErrUnsupportedVersion is returned when a snapshot was written by a newer schema.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

var kindTags = map[account.Kind]string{
	account.KindSavings:      "savings",
	account.KindCurrent:      "current",
	account.KindFixedDeposit: "fixed_deposit",
}

var txKindTags = map[account.TransactionKind]string{
	account.TransactionDeposit:     "deposit",
	account.TransactionWithdrawal:  "withdrawal",
	account.TransactionInterest:    "interest",
	account.TransactionTransferOut: "transfer_out",
	account.TransactionTransferIn:  "transfer_in",
}

var (
	tagKinds   = invert(kindTags)
	tagTxKinds = invert(txKindTags)
)

func invert[K comparable](m map[K]string) map[string]K {
	out := make(map[string]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// KindTag returns the stable tag for an account kind.
func KindTag(k account.Kind) (string, error) {
	tag, ok := kindTags[k]
	if !ok {
		return "", fmt.Errorf("%w: account kind %d", ErrUnknownTag, k)
	}
	return tag, nil
}

// ParseKindTag resolves a tag written by KindTag.
func ParseKindTag(tag string) (account.Kind, error) {
	k, ok := tagKinds[tag]
	if !ok {
		return 0, fmt.Errorf("%w: account kind %q", ErrUnknownTag, tag)
	}
	return k, nil
}

// TxKindTag returns the stable tag for a transaction kind.
func TxKindTag(k account.TransactionKind) (string, error) {
	tag, ok := txKindTags[k]
	if !ok {
		return "", fmt.Errorf("%w: transaction kind %d", ErrUnknownTag, k)
	}
	return tag, nil
}

// ParseTxKindTag resolves a tag written by TxKindTag.
func ParseTxKindTag(tag string) (account.TransactionKind, error) {
	k, ok := tagTxKinds[tag]
	if !ok {
		return 0, fmt.Errorf("%w: transaction kind %q", ErrUnknownTag, tag)
	}
	return k, nil
}

// BankSnapshot is a point-in-time projection of the whole ledger.
type BankSnapshot struct {
	Version   int               `json:"version"`
	Provider  string            `json:"provider"`
	CreatedAt time.Time         `json:"created_at"`
	Accounts  []AccountSnapshot `json:"accounts"`
}

// AccountSnapshot is the flat projection of a single account. Type parameters
// that do not apply to Kind are left empty.
type AccountSnapshot struct {
	ID             int64                 `json:"id"`
	Holder         string                `json:"holder"`
	Balance        string                `json:"balance"`
	CreatedAt      time.Time             `json:"created_at"`
	Kind           string                `json:"kind"`
	MinimumBalance string                `json:"minimum_balance,omitempty"`
	OverdraftLimit string                `json:"overdraft_limit,omitempty"`
	InterestRate   string                `json:"interest_rate,omitempty"`
	TermMonths     int                   `json:"term_months,omitempty"`
	MaturityDate   time.Time             `json:"maturity_date,omitzero"`
	Transactions   []TransactionSnapshot `json:"transactions"`
}

// TransactionSnapshot is the projection of a single transaction.
type TransactionSnapshot struct {
	ID           string    `json:"id"`
	Amount       string    `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
	Kind         string    `json:"kind"`
	Counterparty int64     `json:"counterparty,omitempty"`
}

// FromAccount projects acc into an AccountSnapshot.
func FromAccount(acc *account.Account) (AccountSnapshot, error) {
	kind, err := KindTag(acc.Kind())
	if err != nil {
		return AccountSnapshot{}, err
	}
	s := AccountSnapshot{
		ID:           acc.ID,
		Holder:       acc.Holder,
		Balance:      acc.Balance.String(),
		CreatedAt:    acc.CreatedAt,
		Kind:         kind,
		Transactions: make([]TransactionSnapshot, 0, len(acc.Transactions)),
	}
	switch t := acc.Type.(type) {
	case account.Savings:
		s.MinimumBalance = t.MinimumBalance.String()
		s.InterestRate = t.InterestRate.String()
	case account.Current:
		s.OverdraftLimit = t.OverdraftLimit.String()
	case account.FixedDeposit:
		s.TermMonths = t.TermMonths
		s.MaturityDate = t.MaturityDate
		s.InterestRate = t.InterestRate.String()
	}
	for _, tx := range acc.Transactions {
		tag, err := TxKindTag(tx.Kind)
		if err != nil {
			return AccountSnapshot{}, err
		}
		s.Transactions = append(s.Transactions, TransactionSnapshot{
			ID:           tx.ID,
			Amount:       tx.Amount.String(),
			Timestamp:    tx.Timestamp,
			Kind:         tag,
			Counterparty: tx.Counterparty,
		})
	}
	return s, nil
}

// ToAccount rebuilds the aggregate described by s.
func (s AccountSnapshot) ToAccount() (*account.Account, error) {
	kind, err := ParseKindTag(s.Kind)
	if err != nil {
		return nil, err
	}
	var typ account.Type
	switch kind {
	case account.KindSavings:
		minBal, err := parseDecimal("minimum_balance", s.MinimumBalance)
		if err != nil {
			return nil, err
		}
		rate, err := parseDecimal("interest_rate", s.InterestRate)
		if err != nil {
			return nil, err
		}
		typ = account.Savings{MinimumBalance: minBal, InterestRate: rate}
	case account.KindCurrent:
		limit, err := parseDecimal("overdraft_limit", s.OverdraftLimit)
		if err != nil {
			return nil, err
		}
		typ = account.Current{OverdraftLimit: limit}
	case account.KindFixedDeposit:
		rate, err := parseDecimal("interest_rate", s.InterestRate)
		if err != nil {
			return nil, err
		}
		typ = account.FixedDeposit{TermMonths: s.TermMonths, MaturityDate: s.MaturityDate, InterestRate: rate}
	}
	balance, err := parseDecimal("balance", s.Balance)
	if err != nil {
		return nil, err
	}
	txs := make([]account.Transaction, 0, len(s.Transactions))
	for _, ts := range s.Transactions {
		k, err := ParseTxKindTag(ts.Kind)
		if err != nil {
			return nil, err
		}
		amount, err := parseDecimal("amount", ts.Amount)
		if err != nil {
			return nil, err
		}
		txs = append(txs, account.Transaction{
			ID:           ts.ID,
			Amount:       amount,
			Timestamp:    ts.Timestamp,
			Kind:         k,
			Counterparty: ts.Counterparty,
		})
	}
	acc, err := account.New().
		WithID(s.ID).
		WithHolder(s.Holder).
		WithType(typ).
		WithBalance(balance).
		WithCreatedAt(s.CreatedAt).
		WithTransactions(txs).
		Build()
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", s.ID, err)
	}
	return acc, nil
}

func parseDecimal(field, v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, v, err)
	}
	return d, nil
}

// FromAccounts builds a BankSnapshot of accounts ordered by id.
func FromAccounts(provider string, accounts map[int64]*account.Account, now time.Time) (BankSnapshot, error) {
	snap := BankSnapshot{
		Version:   CurrentVersion,
		Provider:  provider,
		CreatedAt: now,
		Accounts:  make([]AccountSnapshot, 0, len(accounts)),
	}
	for _, acc := range accounts {
		s, err := FromAccount(acc)
		if err != nil {
			return BankSnapshot{}, err
		}
		snap.Accounts = append(snap.Accounts, s)
	}
	sort.Slice(snap.Accounts, func(i, j int) bool { return snap.Accounts[i].ID < snap.Accounts[j].ID })
	return snap, nil
}

// ToAccounts rebuilds every account in the snapshot keyed by id.
func (b BankSnapshot) ToAccounts() (map[int64]*account.Account, error) {
	if b.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, b.Version)
	}
	out := make(map[int64]*account.Account, len(b.Accounts))
	for _, s := range b.Accounts {
		acc, err := s.ToAccount()
		if err != nil {
			return nil, err
		}
		out[acc.ID] = acc
	}
	return out, nil
}
