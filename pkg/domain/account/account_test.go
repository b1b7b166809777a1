package account

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newAccount(t *testing.T, id int64, typ Type, balance string) *Account {
	t.Helper()
	acc, err := New().
		WithID(id).
		WithHolder("Ada Lovelace").
		WithType(typ).
		WithBalance(d(balance)).
		WithCreatedAt(now).
		Build()
	require.NoError(t, err)
	return acc
}

func TestBuild(t *testing.T) {
	t.Parallel()
	type testCase struct {
		name    string
		holder  string
		typ     Type
		balance string
		wantErr error
	}
	tests := []testCase{
		{name: "savings", holder: "Ada", typ: NewSavings(), balance: "0"},
		{name: "blank holder", holder: "   ", typ: NewSavings(), balance: "0", wantErr: ErrInvalidHolder},
		{name: "missing type", holder: "Ada", balance: "0", wantErr: ErrInvalidType},
		{name: "below minimum", holder: "Ada", typ: Savings{MinimumBalance: d("100")}, balance: "50", wantErr: ErrInsufficientFunds},
		{name: "negative savings", holder: "Ada", typ: NewSavings(), balance: "-1", wantErr: ErrInsufficientFunds},
		{name: "negative overdraft limit", holder: "Ada", typ: Current{OverdraftLimit: d("-1")}, balance: "0", wantErr: ErrInvalidType},
		{name: "fixed deposit without term", holder: "Ada", typ: FixedDeposit{MaturityDate: now}, balance: "0", wantErr: ErrInvalidType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require := require.New(t)
			acc, err := New().WithID(MinID).WithHolder(tc.holder).WithType(tc.typ).WithBalance(d(tc.balance)).Build()
			if tc.wantErr != nil {
				require.ErrorIs(err, tc.wantErr)
				require.Nil(acc)
				return
			}
			require.NoError(err)
			require.Equal(MinID, acc.ID)
			require.Empty(acc.Transactions)
		})
	}
}

func TestBuildWithInitialDeposit(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	acc, err := New().WithID(MinID).WithHolder("Ada").
		WithType(Savings{MinimumBalance: d("100")}).
		WithInitialDeposit(d("150")).
		WithCreatedAt(now).
		Build()
	require.NoError(err)
	require.True(d("150").Equal(acc.Balance))
	require.Len(acc.Transactions, 1)
	require.Equal(TransactionDeposit, acc.Transactions[0].Kind)
	require.Equal(now, acc.Transactions[0].Timestamp)

	_, err = New().WithHolder("Ada").WithType(NewSavings()).WithInitialDeposit(d("-1")).Build()
	require.ErrorIs(err, ErrInvalidAmount)

	acc, err = New().WithHolder("Ada").WithType(NewSavings()).WithInitialDeposit(decimal.Zero).Build()
	require.NoError(err)
	require.Empty(acc.Transactions)
}

func TestDeposit(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	acc := newAccount(t, MinID, NewSavings(), "0")

	tx, err := acc.Deposit(d("200"), now)
	require.NoError(err)
	require.True(d("200").Equal(acc.Balance))
	require.Len(acc.Transactions, 1)
	require.Equal(TransactionDeposit, tx.Kind)
	require.NotEmpty(tx.ID)

	_, err = acc.Deposit(d("0"), now)
	require.ErrorIs(err, ErrInvalidAmount)
	_, err = acc.Deposit(d("-5"), now)
	require.ErrorIs(err, ErrInvalidAmount)
	require.Len(acc.Transactions, 1)
}

func TestWithdrawPolicies(t *testing.T) {
	t.Parallel()
	type testCase struct {
		name    string
		typ     Type
		balance string
		amount  string
		at      time.Time
		want    string
		wantErr error
	}
	fd := NewFixedDeposit(6, now)
	tests := []testCase{
		{name: "savings within balance", typ: NewSavings(), balance: "100", amount: "100", at: now, want: "0"},
		{name: "savings below minimum", typ: Savings{MinimumBalance: d("50")}, balance: "100", amount: "60", at: now, wantErr: ErrInsufficientFunds},
		{name: "current into overdraft", typ: Current{OverdraftLimit: d("500")}, balance: "100", amount: "600", at: now, want: "-500"},
		{name: "current beyond overdraft", typ: Current{OverdraftLimit: d("500")}, balance: "100", amount: "600.01", at: now, wantErr: ErrInsufficientFunds},
		{name: "fixed deposit before maturity", typ: fd, balance: "100", amount: "10", at: now.AddDate(0, 1, 0), wantErr: ErrNotMatured},
		{name: "fixed deposit after maturity", typ: fd, balance: "100", amount: "100", at: fd.MaturityDate, want: "0"},
		{name: "fixed deposit over balance", typ: fd, balance: "100", amount: "101", at: fd.MaturityDate, wantErr: ErrInsufficientFunds},
		{name: "zero amount", typ: NewSavings(), balance: "100", amount: "0", at: now, wantErr: ErrInvalidAmount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require := require.New(t)
			acc := newAccount(t, MinID, tc.typ, tc.balance)
			_, err := acc.Withdraw(d(tc.amount), tc.at)
			if tc.wantErr != nil {
				require.ErrorIs(err, tc.wantErr)
				require.True(d(tc.balance).Equal(acc.Balance), "balance must be untouched on failure")
				require.Empty(acc.Transactions)
				return
			}
			require.NoError(err)
			require.True(d(tc.want).Equal(acc.Balance), "got %s", acc.Balance)
			require.Len(acc.Transactions, 1)
			require.Equal(TransactionWithdrawal, acc.Transactions[0].Kind)
		})
	}
}

func TestTransferLegs(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	a := newAccount(t, 10_000_001, Current{OverdraftLimit: decimal.Zero}, "1000")
	b := newAccount(t, 10_000_002, NewSavings(), "0")

	txID := NewTransactionID()
	out, err := a.TransferOut(txID, b.ID, d("400"), now)
	require.NoError(err)
	in, err := b.TransferIn(txID, a.ID, d("400"), now)
	require.NoError(err)

	require.True(d("600").Equal(a.Balance))
	require.True(d("400").Equal(b.Balance))
	require.Equal(out.ID, in.ID)
	require.Equal(b.ID, out.Counterparty)
	require.Equal(a.ID, in.Counterparty)
	require.Equal(TransactionTransferOut, out.Kind)
	require.Equal(TransactionTransferIn, in.Kind)

	_, err = a.TransferOut(NewTransactionID(), a.ID, d("1"), now)
	require.ErrorIs(err, ErrSameAccount)
	_, err = a.TransferOut(NewTransactionID(), b.ID, d("601"), now)
	require.ErrorIs(err, ErrInsufficientFunds)
}

func TestApplyInterest(t *testing.T) {
	t.Parallel()
	t.Run("savings earns rounded interest", func(t *testing.T) {
		t.Parallel()
		acc := newAccount(t, MinID, Savings{InterestRate: d("0.025")}, "1000.10")
		got, ok := acc.ApplyInterest(now)
		require.True(t, ok)
		assert.Equal(t, "25", got.String())
		assert.Equal(t, "1025.1", acc.Balance.String())
		require.Len(t, acc.Transactions, 1)
		assert.Equal(t, TransactionInterest, acc.Transactions[0].Kind)
	})
	t.Run("current earns nothing", func(t *testing.T) {
		t.Parallel()
		acc := newAccount(t, MinID, Current{}, "1000")
		_, ok := acc.ApplyInterest(now)
		assert.False(t, ok)
		assert.Empty(t, acc.Transactions)
	})
	t.Run("rounded to zero is skipped", func(t *testing.T) {
		t.Parallel()
		acc := newAccount(t, MinID, Savings{InterestRate: d("0.001")}, "1")
		_, ok := acc.ApplyInterest(now)
		assert.False(t, ok)
		assert.True(t, d("1").Equal(acc.Balance))
	})
}

func TestRenameAndClone(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	acc := newAccount(t, MinID, NewSavings(), "10")
	require.ErrorIs(acc.Rename(" "), ErrInvalidHolder)
	require.NoError(acc.Rename(" Grace Hopper "))
	require.Equal("Grace Hopper", acc.Holder)

	cp := acc.Clone()
	_, err := cp.Deposit(d("5"), now)
	require.NoError(err)
	require.True(d("10").Equal(acc.Balance))
	require.Empty(acc.Transactions)
	require.Len(cp.Transactions, 1)
}
