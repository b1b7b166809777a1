package account

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the closed enumeration of account types.
type Kind int

// Account kinds.
const (
	KindSavings Kind = iota + 1
	KindCurrent
	KindFixedDeposit
)

func (k Kind) String() string {
	switch k {
	case KindSavings:
		return "Savings"
	case KindCurrent:
		return "Current"
	case KindFixedDeposit:
		return "FixedDeposit"
	default:
		return "Unknown"
	}
}

// EarnsInterest reports whether interest batches apply to the kind.
func (k Kind) EarnsInterest() bool {
	return k == KindSavings || k == KindFixedDeposit
}

// Type carries the type-specific parameters of an account. The set of
// implementations is closed: Savings, Current and FixedDeposit.
type Type interface {
	Kind() Kind
	allowWithdraw(balance, amount decimal.Decimal, now time.Time) error
	interestRate() decimal.Decimal
	floor() decimal.Decimal
	validate() error
}

// Savings keeps the balance at or above MinimumBalance and earns interest.
type Savings struct {
	MinimumBalance decimal.Decimal
	InterestRate   decimal.Decimal
}

// DefaultSavingsRate is the per-period rate applied when none is given.
var DefaultSavingsRate = decimal.RequireFromString("0.025")

// NewSavings returns a Savings type with no minimum balance and the default rate.
func NewSavings() Savings {
	return Savings{MinimumBalance: decimal.Zero, InterestRate: DefaultSavingsRate}
}

func (Savings) Kind() Kind { return KindSavings }

func (s Savings) allowWithdraw(balance, amount decimal.Decimal, _ time.Time) error {
	if balance.Sub(amount).LessThan(s.MinimumBalance) {
		return ErrInsufficientFunds
	}
	return nil
}

func (s Savings) interestRate() decimal.Decimal { return s.InterestRate }
func (s Savings) floor() decimal.Decimal        { return s.MinimumBalance }

func (s Savings) validate() error {
	if s.MinimumBalance.IsNegative() || s.InterestRate.IsNegative() {
		return fmt.Errorf("%w: savings parameters must not be negative", ErrInvalidType)
	}
	return nil
}

// Current allows the balance to go down to -OverdraftLimit. It earns no interest.
type Current struct {
	OverdraftLimit decimal.Decimal
}

func (Current) Kind() Kind { return KindCurrent }

func (c Current) allowWithdraw(balance, amount decimal.Decimal, _ time.Time) error {
	if balance.Sub(amount).LessThan(c.OverdraftLimit.Neg()) {
		return ErrInsufficientFunds
	}
	return nil
}

func (Current) interestRate() decimal.Decimal { return decimal.Zero }
func (c Current) floor() decimal.Decimal      { return c.OverdraftLimit.Neg() }

func (c Current) validate() error {
	if c.OverdraftLimit.IsNegative() {
		return fmt.Errorf("%w: overdraft limit must not be negative", ErrInvalidType)
	}
	return nil
}

// FixedDeposit locks funds until MaturityDate.
type FixedDeposit struct {
	TermMonths   int
	MaturityDate time.Time
	InterestRate decimal.Decimal
}

// DefaultFixedDepositRate is the per-period rate applied when none is given.
var DefaultFixedDepositRate = decimal.RequireFromString("0.05")

// NewFixedDeposit returns a FixedDeposit maturing termMonths after opened.
func NewFixedDeposit(termMonths int, opened time.Time) FixedDeposit {
	return FixedDeposit{
		TermMonths:   termMonths,
		MaturityDate: opened.AddDate(0, termMonths, 0),
		InterestRate: DefaultFixedDepositRate,
	}
}

func (FixedDeposit) Kind() Kind { return KindFixedDeposit }

func (f FixedDeposit) allowWithdraw(balance, amount decimal.Decimal, now time.Time) error {
	if now.Before(f.MaturityDate) {
		return ErrNotMatured
	}
	if balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	return nil
}

func (f FixedDeposit) interestRate() decimal.Decimal { return f.InterestRate }
func (FixedDeposit) floor() decimal.Decimal          { return decimal.Zero }

func (f FixedDeposit) validate() error {
	if f.TermMonths <= 0 {
		return fmt.Errorf("%w: fixed deposit term must be positive", ErrInvalidType)
	}
	if f.MaturityDate.IsZero() {
		return fmt.Errorf("%w: fixed deposit needs a maturity date", ErrInvalidType)
	}
	if f.InterestRate.IsNegative() {
		return fmt.Errorf("%w: interest rate must not be negative", ErrInvalidType)
	}
	return nil
}
