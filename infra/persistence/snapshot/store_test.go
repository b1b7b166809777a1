package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/amirasaad/bankcore/pkg/persistence"
	"github.com/gofrs/flock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	dir   string
	store *Store
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.ctx = context.Background()
	store, err := New(filepath.Join(s.dir, "bank.properties"),
		WithLockTimeout(100*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.store = store
}

func (s *StoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreTestSuite) account(id int64, typ account.Type, balance string) *account.Account {
	acc, err := account.New().
		WithID(id).
		WithHolder("Holder " + strings.Repeat("x", int(id%3))).
		WithType(typ).
		WithBalance(decimal.RequireFromString(balance)).
		WithCreatedAt(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)).
		Build()
	s.Require().NoError(err)
	return acc
}

func (s *StoreTestSuite) TestLoadMissingFile() {
	accounts, err := s.store.LoadAccounts(s.ctx)
	s.Require().NoError(err)
	s.Empty(accounts)
	s.True(s.store.Status().Available)
}

func (s *StoreTestSuite) TestRoundTrip() {
	a := s.account(10_000_001, account.Current{OverdraftLimit: decimal.NewFromInt(100)}, "1000")
	b := s.account(10_000_002, account.NewSavings(), "0")
	c := s.account(10_000_003, account.NewFixedDeposit(6, a.CreatedAt), "300")
	txID := account.NewTransactionID()
	now := time.Date(2026, 2, 2, 8, 0, 0, 123, time.UTC)
	_, err := a.TransferOut(txID, b.ID, decimal.NewFromInt(400), now)
	s.Require().NoError(err)
	_, err = b.TransferIn(txID, a.ID, decimal.NewFromInt(400), now)
	s.Require().NoError(err)
	_, err = b.Deposit(decimal.RequireFromString("0.01"), now.Add(time.Second))
	s.Require().NoError(err)
	s.Require().NoError(b.Rename(`Zoë = "${HOME}" \ ü`))

	s.Require().NoError(s.store.SaveAccounts(s.ctx, []*account.Account{a, b, c}))

	got, err := s.store.LoadAccounts(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	for _, want := range []*account.Account{a, b, c} {
		g := got[want.ID]
		s.Require().NotNil(g)
		s.Equal(want.Holder, g.Holder)
		s.True(want.Balance.Equal(g.Balance))
		s.Equal(want.Kind(), g.Kind())
		s.Require().Len(g.Transactions, len(want.Transactions))
		for i, tx := range want.Transactions {
			s.Equal(tx.ID, g.Transactions[i].ID)
			s.Equal(tx.Kind, g.Transactions[i].Kind)
			s.True(tx.Timestamp.Equal(g.Transactions[i].Timestamp))
			s.Equal(tx.Counterparty, g.Transactions[i].Counterparty)
		}
	}
	s.Equal(got[a.ID].Transactions[0].ID, got[b.ID].Transactions[0].ID)
}

func (s *StoreTestSuite) TestDeleteAndClear() {
	a := s.account(10_000_001, account.NewSavings(), "10")
	b := s.account(10_000_002, account.NewSavings(), "20")
	s.Require().NoError(s.store.SaveAccount(s.ctx, a))
	s.Require().NoError(s.store.SaveAccount(s.ctx, b))

	ok, err := s.store.DeleteAccount(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.DeleteAccount(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(ok)

	got, err := s.store.LoadAccounts(s.ctx)
	s.Require().NoError(err)
	s.Len(got, 1)
	s.Contains(got, b.ID)

	s.Require().NoError(s.store.Clear(s.ctx))
	got, err = s.store.LoadAccounts(s.ctx)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *StoreTestSuite) TestCrashBeforeRenameKeepsPreviousFile() {
	a := s.account(10_000_001, account.NewSavings(), "10")
	s.Require().NoError(s.store.SaveAccount(s.ctx, a))
	before, err := os.ReadFile(s.store.Path())
	s.Require().NoError(err)

	crash := errors.New("simulated crash")
	s.store.beforeRename = func(string) error { return crash }
	b := s.account(10_000_002, account.NewSavings(), "99")
	err = s.store.SaveAccount(s.ctx, b)
	s.Require().ErrorIs(err, crash)
	s.True(persistence.IsInfrastructure(err))
	s.False(s.store.Status().Available)

	after, err := os.ReadFile(s.store.Path())
	s.Require().NoError(err)
	s.Equal(before, after)

	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	for _, e := range entries {
		s.False(strings.HasSuffix(e.Name(), ".tmp"), "temporary file %s left behind", e.Name())
	}

	s.store.beforeRename = nil
	got, err := s.store.LoadAccounts(s.ctx)
	s.Require().NoError(err)
	s.Len(got, 1)
	s.True(s.store.Status().Available)
}

func (s *StoreTestSuite) TestLockContention() {
	other := flock.New(s.store.Path() + ".lock")
	s.Require().NoError(other.Lock())
	defer func() { _ = other.Unlock() }()

	_, err := s.store.LoadAccounts(s.ctx)
	s.Require().ErrorIs(err, persistence.ErrLockContention)
	err = s.store.SaveAccount(s.ctx, s.account(10_000_001, account.NewSavings(), "1"))
	s.Require().ErrorIs(err, persistence.ErrLockContention)
}

func (s *StoreTestSuite) TestCorruptFile() {
	s.Require().NoError(os.WriteFile(s.store.Path(), []byte("account.count=2\n"), 0o600))
	_, err := s.store.LoadAccounts(s.ctx)
	s.Require().ErrorIs(err, persistence.ErrCorrupt)
}

func (s *StoreTestSuite) TestCorruptCounts() {
	acc := s.account(10_000_001, account.NewSavings(), "0")
	_, err := acc.Deposit(decimal.NewFromInt(5), time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveAccount(s.ctx, acc))
	valid, err := os.ReadFile(s.store.Path())
	s.Require().NoError(err)

	cases := []struct{ key, value string }{
		{keyCount, "-1"},
		{keyCount, "9000000000000000000"},
		{"account.0.tx.count", "-3"},
		{"account.0.tx.count", "9000000000000000000"},
	}
	for _, tc := range cases {
		s.Run(tc.key+"="+tc.value, func() {
			line := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(tc.key) + `\s*=\s*\d+$`)
			s.Require().True(line.Match(valid))
			body := line.ReplaceAllLiteral(valid, []byte(tc.key+" = "+tc.value))
			s.Require().NoError(os.WriteFile(s.store.Path(), body, 0o600))
			s.Require().NotPanics(func() {
				_, err := s.store.LoadAccounts(s.ctx)
				s.Require().ErrorIs(err, persistence.ErrCorrupt)
			})
		})
	}
}

func (s *StoreTestSuite) TestClosed() {
	s.Require().NoError(s.store.Close())
	_, err := s.store.LoadAccounts(s.ctx)
	s.Require().ErrorIs(err, persistence.ErrClosed)
	s.False(s.store.Status().Available)
}

func TestReplaceFallback(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dst := filepath.Join(dir, "bank.properties")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o600))
	require.NoError(t, replace(filepath.Join(dir, "missing.tmp"), dst, []byte("new")))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "new", string(got))
}
