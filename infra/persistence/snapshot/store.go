// Package snapshot implements persistence.Gateway on a single file holding the
// whole ledger. Every write replaces the file through a temporary sibling and
// a rename, so readers see either the old or the new snapshot, never a mix.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/amirasaad/bankcore/pkg/persistence"
	snap "github.com/amirasaad/bankcore/pkg/snapshot"
	"github.com/gofrs/flock"
)

// Provider is the name reported in Status.
const Provider = "snapshot"

const (
	defaultLockTimeout = 5 * time.Second
	lockRetryDelay     = 10 * time.Millisecond
)

// Store is a file-backed persistence.Gateway.
type Store struct {
	path        string
	lockTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	fileLock *flock.Flock
	closed   bool

	*persistence.Health

	// beforeRename runs after the temporary file is synced and before it
	// replaces the snapshot. Tests use it to simulate a crash.
	beforeRename func(tmp string) error
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long a call waits for the file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a Store writing to path. The parent directory is created if needed.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, persistence.NewError(Provider, "open", errors.New("snapshot path is required"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, persistence.NewError(Provider, "open", err)
	}
	s := &Store{
		path:        path,
		lockTimeout: defaultLockTimeout,
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
		fileLock:    flock.New(path + ".lock"),
		Health:      persistence.NewHealth(Provider),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "snapshot_store", "path", path)
	return s, nil
}

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.path }

// LoadAccounts reads the snapshot under a shared lock. A missing file yields
// an empty ledger.
func (s *Store) LoadAccounts(ctx context.Context) (map[int64]*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts, err := s.load(ctx)
	return accounts, s.Observe(persistence.NewError(Provider, "load_accounts", err))
}

// SaveAccount inserts or replaces acc.
func (s *Store) SaveAccount(ctx context.Context, acc *account.Account) error {
	return s.SaveAccounts(ctx, []*account.Account{acc})
}

// SaveAccounts inserts or replaces every account in accs with one file write.
func (s *Store) SaveAccounts(ctx context.Context, accs []*account.Account) error {
	err := s.update(ctx, func(ledger map[int64]*account.Account) (bool, error) {
		for _, acc := range accs {
			ledger[acc.ID] = acc
		}
		return len(accs) > 0, nil
	})
	return s.Observe(persistence.NewError(Provider, "save_accounts", err))
}

// DeleteAccount removes id. It reports false without writing when id is absent.
func (s *Store) DeleteAccount(ctx context.Context, id int64) (bool, error) {
	var found bool
	err := s.update(ctx, func(ledger map[int64]*account.Account) (bool, error) {
		_, found = ledger[id]
		delete(ledger, id)
		return found, nil
	})
	return found, s.Observe(persistence.NewError(Provider, "delete_account", err))
}

// Clear replaces the snapshot with an empty ledger.
func (s *Store) Clear(ctx context.Context) error {
	err := s.update(ctx, func(ledger map[int64]*account.Account) (bool, error) {
		clear(ledger)
		return true, nil
	})
	return s.Observe(persistence.NewError(Provider, "clear", err))
}

// Close releases the file lock. Later calls fail with persistence.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.MarkClosed()
	if err := s.fileLock.Close(); err != nil {
		return persistence.NewError(Provider, "close", err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, mutate func(map[int64]*account.Account) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return persistence.ErrClosed
	}
	if err := s.lock(ctx, s.fileLock.TryLockContext); err != nil {
		return err
	}
	defer s.unlock()

	ledger, err := s.read()
	if err != nil {
		return err
	}
	changed, err := mutate(ledger)
	if err != nil || !changed {
		return err
	}
	b, err := snap.FromAccounts(Provider, ledger, s.now())
	if err != nil {
		return err
	}
	data, err := Encode(b)
	if err != nil {
		return err
	}
	if err := s.write(data); err != nil {
		return err
	}
	s.logger.Debug("snapshot written", "accounts", len(ledger), "bytes", len(data))
	return nil
}

func (s *Store) load(ctx context.Context) (map[int64]*account.Account, error) {
	if s.closed {
		return nil, persistence.ErrClosed
	}
	if err := s.lock(ctx, s.fileLock.TryRLockContext); err != nil {
		return nil, err
	}
	defer s.unlock()
	return s.read()
}

func (s *Store) lock(ctx context.Context, try func(context.Context, time.Duration) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	ok, err := try(ctx, lockRetryDelay)
	if ok {
		return nil
	}
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w on %s after %s", persistence.ErrLockContention, s.fileLock.Path(), s.lockTimeout)
	}
	return err
}

func (s *Store) unlock() {
	if err := s.fileLock.Unlock(); err != nil {
		s.logger.Warn("failed to release file lock", "error", err)
	}
}

// read must be called with the file lock held.
func (s *Store) read() (map[int64]*account.Account, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[int64]*account.Account), nil
	}
	if err != nil {
		return nil, err
	}
	b, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", persistence.ErrCorrupt, err)
	}
	accounts, err := b.ToAccounts()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", persistence.ErrCorrupt, err)
	}
	return accounts, nil
}

// write must be called with the exclusive file lock held.
func (s *Store) write(data []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove temporary snapshot", "tmp", tmpName, "error", err)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if s.beforeRename != nil {
		if err := s.beforeRename(tmpName); err != nil {
			return err
		}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		s.logger.Warn("atomic rename failed, replacing snapshot in place", "error", err)
		return replace(tmpName, s.path, data)
	}
	syncDir(dir)
	return nil
}

// replace is the non-atomic fallback for platforms where rename cannot
// overwrite an existing file.
func replace(tmp, dst string, data []byte) error {
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(tmp, dst); err == nil {
		return nil
	}
	return os.WriteFile(dst, data, 0o600)
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
