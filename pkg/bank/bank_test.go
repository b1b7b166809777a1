package bank

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirasaad/bankcore/infra/cache"
	"github.com/amirasaad/bankcore/infra/eventbus"
	"github.com/amirasaad/bankcore/infra/persistence/snapshot"
	"github.com/amirasaad/bankcore/internal/fixtures/mockgateway"
	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/amirasaad/bankcore/pkg/observer"
	"github.com/amirasaad/bankcore/pkg/operation"
	"github.com/amirasaad/bankcore/pkg/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	errDisk  = errors.New("disk full")
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

type harness struct {
	bank     *Bank
	gateway  *mockgateway.MockGateway
	recorder *eventbus.Recorder
}

func newHarness(t *testing.T, cfg Config, mutate ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{gateway: mockgateway.New(), recorder: eventbus.NewRecorder()}
	deps := Deps{
		Gateway:   h.gateway,
		Observers: []observer.Observer{h.recorder},
		Clock:     func() time.Time { return fixedNow },
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	b, err := New(cfg, deps)
	require.NoError(t, err)
	require.NoError(t, b.Open(context.Background()))
	h.bank = b
	t.Cleanup(func() { _ = b.Shutdown(context.Background()) })
	return h
}

func (h *harness) create(t *testing.T, holder string, typ account.Type, deposit string) *account.Account {
	t.Helper()
	acc, err := h.bank.CreateAccount(context.Background(), holder, typ, decimal.RequireFromString(deposit))
	require.NoError(t, err)
	return acc
}

func await(t *testing.T, f *operation.Future) operation.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	require.NoError(t, err, "operation did not complete")
	return res
}

func (h *harness) balance(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	acc, err := h.bank.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func TestNewRequiresGateway(t *testing.T) {
	_, err := New(Config{}, Deps{})
	require.ErrorIs(t, err, ErrNoGateway)

	_, err = New(Config{MinID: 20, MaxID: 10}, Deps{Gateway: mockgateway.New()})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLedgerScenario(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	savings := h.create(t, "Ada", account.NewSavings(), "0")
	res := await(t, h.bank.Deposit(ctx, savings.ID, decimal.NewFromInt(200)))
	require.True(t, res.Success, res.Message)

	got, err := h.bank.GetAccount(ctx, savings.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(200)))
	assert.Len(t, got.Transactions, 1)

	a := h.create(t, "Grace", account.Current{OverdraftLimit: decimal.NewFromInt(100)}, "1000")
	b := h.create(t, "Linus", account.NewSavings(), "0")
	res = await(t, h.bank.Transfer(ctx, a.ID, b.ID, decimal.NewFromInt(400)))
	require.True(t, res.Success, res.Message)

	gotA, err := h.bank.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := h.bank.GetAccount(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, gotA.Balance.Equal(decimal.NewFromInt(600)))
	assert.True(t, gotB.Balance.Equal(decimal.NewFromInt(400)))

	out := gotA.Transactions[len(gotA.Transactions)-1]
	in := gotB.Transactions[len(gotB.Transactions)-1]
	assert.Equal(t, account.TransactionTransferOut, out.Kind)
	assert.Equal(t, account.TransactionTransferIn, in.Kind)
	assert.Equal(t, b.ID, out.Counterparty)
	assert.Equal(t, a.ID, in.Counterparty)
	assert.Equal(t, out.ID, in.ID)

	stored, ok := h.gateway.Stored(b.ID)
	require.True(t, ok)
	assert.True(t, stored.Balance.Equal(decimal.NewFromInt(400)))
}

func TestDepositAppendsOneTransaction(t *testing.T) {
	h := newHarness(t, Config{})
	for _, amount := range []string{"0.01", "10", "2500.75"} {
		acc := h.create(t, "Ada", account.NewSavings(), "100")
		before := len(acc.Transactions)
		res := await(t, h.bank.Deposit(context.Background(), acc.ID, decimal.RequireFromString(amount)))
		require.True(t, res.Success, res.Message)
		require.Len(t, res.Accounts, 1)

		got := res.Accounts[0]
		assert.True(t, got.Balance.Equal(acc.Balance.Add(decimal.RequireFromString(amount))))
		require.Len(t, got.Transactions, before+1)
		assert.Equal(t, account.TransactionDeposit, got.Transactions[before].Kind)
	}
}

func TestFailedOperationsLeaveStateUntouched(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	acc := h.create(t, "Ada", account.NewSavings(), "50")

	res := await(t, h.bank.Withdraw(ctx, acc.ID, decimal.NewFromInt(80)))
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, account.ErrInsufficientFunds)
	assert.Contains(t, res.Message, "failed")

	res = await(t, h.bank.Deposit(ctx, 99_999_999, decimal.NewFromInt(1)))
	assert.ErrorIs(t, res.Err, account.ErrAccountNotFound)

	res = await(t, h.bank.Transfer(ctx, acc.ID, acc.ID, decimal.NewFromInt(1)))
	assert.ErrorIs(t, res.Err, account.ErrSameAccount)

	assert.True(t, h.balance(t, acc.ID).Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 1, h.recorder.Count("Withdrawal of 80"))
}

func TestOperationPersistenceFailureAborts(t *testing.T) {
	h := newHarness(t, Config{})
	acc := h.create(t, "Ada", account.NewSavings(), "50")
	h.gateway.SaveAccountsFunc = func(context.Context, []*account.Account) error {
		return persistence.NewError("memory", "save", errDisk)
	}

	res := await(t, h.bank.Deposit(context.Background(), acc.ID, decimal.NewFromInt(10)))
	assert.False(t, res.Success)
	assert.True(t, persistence.IsInfrastructure(res.Err))
	assert.True(t, h.balance(t, acc.ID).Equal(decimal.NewFromInt(50)))
}

func TestTransferConservesTotal(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.create(t, "Ada", account.NewSavings(), "900")
	b := h.create(t, "Bob", account.Current{}, "100")

	res := await(t, h.bank.Transfer(context.Background(), a.ID, b.ID, decimal.RequireFromString("123.45")))
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Accounts, 2)

	total := h.balance(t, a.ID).Add(h.balance(t, b.ID))
	assert.True(t, total.Equal(decimal.NewFromInt(1000)))
	assert.True(t, h.balance(t, a.ID).Equal(decimal.RequireFromString("776.55")))
}

func TestConcurrentOppositeTransfersComplete(t *testing.T) {
	h := newHarness(t, Config{Workers: 8})
	a := h.create(t, "Ada", account.NewSavings(), "10000")
	b := h.create(t, "Bob", account.NewSavings(), "10000")
	ctx := context.Background()

	const pairs = 200
	futures := make([]*operation.Future, 0, 2*pairs)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f1 := h.bank.Transfer(ctx, a.ID, b.ID, decimal.NewFromInt(3))
			f2 := h.bank.Transfer(ctx, b.ID, a.ID, decimal.NewFromInt(2))
			mu.Lock()
			futures = append(futures, f1, f2)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, f := range futures {
		res := await(t, f)
		require.True(t, res.Success, res.Message)
	}
	assert.True(t, h.balance(t, a.ID).Equal(decimal.NewFromInt(10000-pairs)))
	assert.True(t, h.balance(t, b.ID).Equal(decimal.NewFromInt(10000+pairs)))
}

func TestCreateAccount(t *testing.T) {
	t.Run("initial deposit is recorded", func(t *testing.T) {
		h := newHarness(t, Config{})
		acc := h.create(t, "  Ada  ", account.NewSavings(), "250")
		assert.Equal(t, "Ada", acc.Holder)
		assert.GreaterOrEqual(t, acc.ID, account.MinID)
		assert.LessOrEqual(t, acc.ID, account.MaxID)
		require.Len(t, acc.Transactions, 1)
		assert.Equal(t, account.TransactionDeposit, acc.Transactions[0].Kind)
		assert.Equal(t, 1, h.recorder.Count("created for Ada"))
	})

	t.Run("persistence failure leaves no orphan", func(t *testing.T) {
		h := newHarness(t, Config{})
		h.gateway.SaveAccountFunc = func(context.Context, *account.Account) error { return errDisk }

		_, err := h.bank.CreateAccount(context.Background(), "Ada", account.NewSavings(), decimal.Zero)
		require.ErrorIs(t, err, errDisk)
		assert.Zero(t, h.bank.Count())
		assert.Empty(t, h.bank.reserved)
		assert.Zero(t, h.recorder.Count("created"))
	})

	t.Run("invalid input", func(t *testing.T) {
		h := newHarness(t, Config{})
		_, err := h.bank.CreateAccount(context.Background(), " ", account.NewSavings(), decimal.Zero)
		assert.ErrorIs(t, err, account.ErrInvalidHolder)
		_, err = h.bank.CreateAccount(context.Background(), "Ada", account.NewSavings(), decimal.NewFromInt(-1))
		assert.ErrorIs(t, err, account.ErrInvalidAmount)
		assert.Empty(t, h.bank.reserved)
	})

	t.Run("retries colliding ids", func(t *testing.T) {
		draws := []int64{10_000_005, 10_000_005, 10_000_006}
		h := newHarness(t, Config{}, func(d *Deps) {
			d.IDSource = func(lo, hi int64) int64 {
				id := draws[0]
				if len(draws) > 1 {
					draws = draws[1:]
				}
				return id
			}
		})
		first := h.create(t, "Ada", account.NewSavings(), "0")
		second := h.create(t, "Bob", account.NewSavings(), "0")
		assert.Equal(t, int64(10_000_005), first.ID)
		assert.Equal(t, int64(10_000_006), second.ID)
	})

	t.Run("exhausted range", func(t *testing.T) {
		h := newHarness(t, Config{MinID: 500, MaxID: 500})
		h.create(t, "Ada", account.NewSavings(), "0")
		_, err := h.bank.CreateAccount(context.Background(), "Bob", account.NewSavings(), decimal.Zero)
		assert.ErrorIs(t, err, ErrIDSpaceExhausted)
	})
}

func TestCloseAccount(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	acc := h.create(t, "Ada", account.NewSavings(), "10")

	h.gateway.DeleteAccountFunc = func(context.Context, int64) (bool, error) { return false, errDisk }
	ok, err := h.bank.CloseAccount(ctx, acc.ID)
	require.ErrorIs(t, err, errDisk)
	assert.False(t, ok)
	_, err = h.bank.GetAccount(ctx, acc.ID)
	require.NoError(t, err, "account must be restored after a failed delete")

	h.gateway.DeleteAccountFunc = nil
	ok, err = h.bank.CloseAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = h.bank.GetAccount(ctx, acc.ID)
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
	_, stored := h.gateway.Stored(acc.ID)
	assert.False(t, stored)

	ok, err = h.bank.CloseAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateHolder(t *testing.T) {
	h := newHarness(t, Config{})
	acc := h.create(t, "Ada", account.NewSavings(), "10")

	got, err := h.bank.UpdateHolder(context.Background(), acc.ID, "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Holder)
	stored, _ := h.gateway.Stored(acc.ID)
	assert.Equal(t, "Ada Lovelace", stored.Holder)

	_, err = h.bank.UpdateHolder(context.Background(), acc.ID, "")
	assert.ErrorIs(t, err, account.ErrInvalidHolder)
	_, err = h.bank.UpdateHolder(context.Background(), 1, "x")
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestListAndSearch(t *testing.T) {
	h := newHarness(t, Config{})
	ada := h.create(t, "Ada Lovelace", account.NewSavings(), "0")
	h.create(t, "Grace Hopper", account.Current{}, "0")
	h.create(t, "Adam Smith", account.NewSavings(), "0")

	all := h.bank.ListAccounts(context.Background())
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
	assert.Len(t, h.bank.SearchAccounts(context.Background(), "ADA"), 2)
	assert.Len(t, h.bank.SearchAccounts(context.Background(), ""), 3)
	byID := h.bank.SearchAccounts(context.Background(), strconv.FormatInt(ada.ID, 10))
	require.Len(t, byID, 1)
	assert.Equal(t, ada.ID, byID[0].ID)
}

func TestGetAccountReadsThroughCache(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = mem.Close() })
	h := newHarness(t, Config{}, func(d *Deps) { d.Cache = mem })
	acc := h.create(t, "Ada", account.NewSavings(), "10")

	require.NoError(t, mem.Delete(context.Background(), acc.ID))
	assert.Zero(t, mem.Len())
	_, err := h.bank.GetAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, mem.Len())

	res := await(t, h.bank.Deposit(context.Background(), acc.ID, decimal.NewFromInt(5)))
	require.True(t, res.Success)
	cached, ok, err := mem.Get(context.Background(), acc.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cached.Balance.Equal(decimal.NewFromInt(15)))
}

func TestAddInterest(t *testing.T) {
	h := newHarness(t, Config{})
	savings := h.create(t, "Ada", account.NewSavings(), "1000")
	current := h.create(t, "Bob", account.Current{}, "1000")
	fixed := h.create(t, "Cy", account.NewFixedDeposit(12, fixedNow), "2000")
	h.create(t, "Dee", account.NewSavings(), "0")

	n, err := h.bank.AddInterestToAllSavingsAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, h.balance(t, savings.ID).Equal(decimal.NewFromInt(1025)))
	assert.True(t, h.balance(t, current.ID).Equal(decimal.NewFromInt(1000)))
	assert.True(t, h.balance(t, fixed.ID).Equal(decimal.NewFromInt(2100)))
	assert.Equal(t, 1, h.recorder.Count("Interest of"))

	h.gateway.SaveAccountsFunc = func(context.Context, []*account.Account) error { return errDisk }
	_, err = h.bank.AddInterestToAllSavingsAccounts(context.Background())
	require.ErrorIs(t, err, errDisk)
	assert.True(t, h.balance(t, savings.ID).Equal(decimal.NewFromInt(1025)))
}

func TestGenerateReport(t *testing.T) {
	h := newHarness(t, Config{})
	h.create(t, "Ada", account.NewSavings(), "100")
	h.create(t, "Bob", account.Current{}, "300")

	res := await(t, h.bank.GenerateReport(context.Background()))
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.Report)
	assert.Equal(t, 2, res.Report.AccountCount)
	assert.True(t, res.Report.TotalBalance.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, "Bob", res.Report.Largest[0].Holder)
}

func TestShutdown(t *testing.T) {
	h := newHarness(t, Config{Workers: 2})
	ctx := context.Background()
	acc := h.create(t, "Ada", account.NewSavings(), "0")

	futures := make([]*operation.Future, 0, 50)
	for i := 0; i < 50; i++ {
		futures = append(futures, h.bank.Deposit(ctx, acc.ID, decimal.NewFromInt(1)))
	}
	report := h.bank.GenerateReport(ctx)

	closed := false
	h.gateway.CloseFunc = func() error { closed = true; return nil }
	require.NoError(t, h.bank.Shutdown(ctx))
	assert.True(t, closed)

	for _, f := range futures {
		res, done := f.Result()
		require.True(t, done, "shutdown returned before operations drained")
		assert.True(t, res.Success)
	}
	_, done := report.Result()
	assert.True(t, done)
	stored, _ := h.gateway.Stored(acc.ID)
	assert.True(t, stored.Balance.Equal(decimal.NewFromInt(50)))

	res := await(t, h.bank.Deposit(ctx, acc.ID, decimal.NewFromInt(1)))
	assert.ErrorIs(t, res.Err, ErrShuttingDown)
	_, err := h.bank.CreateAccount(ctx, "Bob", account.NewSavings(), decimal.Zero)
	assert.ErrorIs(t, err, ErrShuttingDown)
	_, err = h.bank.AddInterestToAllSavingsAccounts(ctx)
	assert.ErrorIs(t, err, ErrShuttingDown)
	assert.NoError(t, h.bank.Shutdown(ctx))
}

func TestRestartFromSnapshotStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.properties")
	ctx := context.Background()

	open := func() *Bank {
		store, err := snapshot.New(path)
		require.NoError(t, err)
		b, err := New(Config{}, Deps{Gateway: store})
		require.NoError(t, err)
		require.NoError(t, b.Open(ctx))
		return b
	}

	first := open()
	a, err := first.CreateAccount(ctx, "Ada", account.NewSavings(), decimal.NewFromInt(100))
	require.NoError(t, err)
	c, err := first.CreateAccount(ctx, "Bob", account.Current{OverdraftLimit: decimal.NewFromInt(50)}, decimal.Zero)
	require.NoError(t, err)
	res := await(t, first.Transfer(ctx, a.ID, c.ID, decimal.NewFromInt(40)))
	require.True(t, res.Success, res.Message)
	require.NoError(t, first.Shutdown(ctx))

	second := open()
	t.Cleanup(func() { _ = second.Shutdown(ctx) })
	assert.Equal(t, snapshot.Provider, second.PersistenceStatus().Provider)
	gotA, err := second.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	gotC, err := second.GetAccount(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, gotA.Balance.Equal(decimal.NewFromInt(60)))
	assert.True(t, gotC.Balance.Equal(decimal.NewFromInt(40)))
	assert.Len(t, gotA.Transactions, 2)
	assert.Equal(t, gotA.Transactions[1].ID, gotC.Transactions[0].ID)
}

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) Notify(event string) {
	m.Called(event)
}

func TestObserversNotified(t *testing.T) {
	obs := new(mockObserver)
	obs.On("Notify", mock.MatchedBy(func(e string) bool { return strings.Contains(e, "created for Ada") })).Once()
	obs.On("Notify", mock.MatchedBy(func(e string) bool { return strings.HasPrefix(e, "Deposit of 5 to account") })).Once()
	obs.On("Notify", mock.MatchedBy(func(e string) bool { return strings.HasSuffix(e, "closed") })).Once()

	panicky := observer.Func(func(string) { panic("observer bug") })
	h := newHarness(t, Config{}, func(d *Deps) {
		d.Observers = append(d.Observers, obs, panicky)
	})

	acc := h.create(t, "Ada", account.NewSavings(), "0")
	res := await(t, h.bank.Deposit(context.Background(), acc.ID, decimal.NewFromInt(5)))
	require.True(t, res.Success, res.Message)
	_, err := h.bank.CloseAccount(context.Background(), acc.ID)
	require.NoError(t, err)

	obs.AssertExpectations(t)
	assert.Equal(t, 3, len(h.recorder.Events()))
}
