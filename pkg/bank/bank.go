// Package bank is the ledger orchestrator. It owns the in-memory account
// registry, turns caller requests into operations, runs them on a worker pool
// under per-account locks and mirrors every committed change to a
// persistence.Gateway.
//
// Locking has two tiers. Tier 2 is the per-account lock.Coordinator, held for
// the whole of a mutation including the persistence write. Tier 1 is the
// registry RWMutex, held only while reading or swapping map entries. Tier 2 is
// always taken before tier 1. Registered accounts are never mutated in place:
// operations work on clones that replace the registry entry once persisted.
package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirasaad/bankcore/pkg/cache"
	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/amirasaad/bankcore/pkg/lock"
	"github.com/amirasaad/bankcore/pkg/observer"
	"github.com/amirasaad/bankcore/pkg/operation"
	"github.com/amirasaad/bankcore/pkg/persistence"
	"github.com/amirasaad/bankcore/pkg/worker"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrShuttingDown is returned once Shutdown has started.
	ErrShuttingDown = errors.New("bank is shutting down")

	// ErrNoGateway is returned by New when Deps.Gateway is nil.
	ErrNoGateway = errors.New("persistence gateway is required")

	// ErrIDSpaceExhausted is returned when every identifier in the range is taken.
	ErrIDSpaceExhausted = errors.New("account identifier space exhausted")

	// ErrInvalidConfig is returned by New for an empty identifier range.
	ErrInvalidConfig = errors.New("invalid bank configuration")
)

// DefaultShutdownGrace bounds how long Shutdown waits for in-flight tasks.
const DefaultShutdownGrace = 10 * time.Second

// Config holds the tunables of a Bank.
type Config struct {
	Workers       int
	ShutdownGrace time.Duration
	MinID         int64
	MaxID         int64
}

// Deps are the collaborators of a Bank. Only Gateway is required.
type Deps struct {
	Gateway persistence.Gateway
	// Pool runs queued operations. When nil a pool of Config.Workers is created.
	Pool      *worker.Pool
	Cache     cache.AccountCache
	Observers []observer.Observer
	Logger    *slog.Logger
	Clock     func() time.Time
	// IDSource draws a candidate identifier in [lo, hi].
	IDSource func(lo, hi int64) int64
}

// Bank is the ledger orchestrator. It is safe for concurrent use.
type Bank struct {
	cfg       Config
	gateway   persistence.Gateway
	pool      *worker.Pool
	cache     cache.AccountCache
	observers observer.Multi
	logger    *slog.Logger
	clock     func() time.Time
	ids       func(lo, hi int64) int64

	mu       sync.RWMutex
	accounts map[int64]*account.Account
	reserved map[int64]struct{}

	locks *lock.Coordinator
	queue worker.Queue[*queued]
	reads singleflight.Group

	trackMu    sync.Mutex
	pending    map[*operation.Future]struct{}
	background map[*operation.Future]struct{}
	closing    atomic.Bool
}

type queued struct {
	op     operation.Operation
	future *operation.Future
	bg     bool
}

// New wires a Bank. Call Open before serving requests.
func New(cfg Config, deps Deps) (*Bank, error) {
	if deps.Gateway == nil {
		return nil, ErrNoGateway
	}
	if cfg.MinID == 0 && cfg.MaxID == 0 {
		cfg.MinID, cfg.MaxID = account.MinID, account.MaxID
	}
	if cfg.MinID <= 0 || cfg.MaxID < cfg.MinID {
		return nil, fmt.Errorf("%w: id range [%d, %d]", ErrInvalidConfig, cfg.MinID, cfg.MaxID)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = worker.DefaultSize
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bank")
	b := &Bank{
		cfg:        cfg,
		gateway:    deps.Gateway,
		pool:       deps.Pool,
		cache:      deps.Cache,
		observers:  observer.Multi(deps.Observers),
		logger:     logger,
		clock:      deps.Clock,
		ids:        deps.IDSource,
		accounts:   make(map[int64]*account.Account),
		reserved:   make(map[int64]struct{}),
		locks:      lock.NewCoordinator(),
		pending:    make(map[*operation.Future]struct{}),
		background: make(map[*operation.Future]struct{}),
	}
	if b.pool == nil {
		b.pool = worker.New(cfg.Workers, logger)
	}
	if b.cache == nil {
		b.cache = cache.Noop{}
	}
	if b.clock == nil {
		b.clock = func() time.Time { return time.Now().UTC() }
	}
	if b.ids == nil {
		b.ids = func(lo, hi int64) int64 { return lo + rand.Int64N(hi-lo+1) }
	}
	return b, nil
}

// Open loads the registry from the gateway, replacing anything held in memory.
func (b *Bank) Open(ctx context.Context) error {
	accounts, err := b.gateway.LoadAccounts(ctx)
	if err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}
	b.mu.Lock()
	b.accounts = accounts
	b.mu.Unlock()
	b.logger.Info("ledger loaded", "accounts", len(accounts), "provider", b.gateway.Status().Provider)
	return nil
}

// PersistenceStatus reports the health of the gateway.
func (b *Bank) PersistenceStatus() persistence.Status {
	return b.gateway.Status()
}

// Count returns the number of registered accounts.
func (b *Bank) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.accounts)
}

func (b *Bank) exists(id int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.accounts[id]
	return ok
}

func (b *Bank) now() operation.Clock {
	return operation.Clock(b.clock)
}

// notify delivers event to every observer. Observer panics are logged and
// swallowed.
func (b *Bank) notify(event string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	b.observers.Notify(event)
}

func (b *Bank) cacheSet(ctx context.Context, acc *account.Account) {
	if err := b.cache.Set(ctx, acc); err != nil {
		b.logger.Warn("cache refresh failed", "id", acc.ID, "error", err)
	}
}

func (b *Bank) cacheDelete(ctx context.Context, id int64) {
	if err := b.cache.Delete(ctx, id); err != nil {
		b.logger.Warn("cache delete failed", "id", id, "error", err)
	}
}

func sortByID(accs []*account.Account) {
	sort.Slice(accs, func(i, j int) bool { return accs[i].ID < accs[j].ID })
}
