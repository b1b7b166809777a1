// Package relational implements persistence.Gateway on PostgreSQL through
// gorm. Every write borrows a dedicated connection from a pool.ConnPool and
// runs in its own transaction.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/bankcore/infra/persistence/pool"
	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/amirasaad/bankcore/pkg/persistence"
	"github.com/amirasaad/bankcore/pkg/snapshot"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "github.com/lib/pq"              // registers the "postgres" database/sql driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Provider is the name reported in Status.
const Provider = "relational"

// Supported database/sql driver names.
const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

const insertBatchSize = 100

// Config configures the relational store.
type Config struct {
	URL            string
	Driver         string
	PoolSize       int
	AcquireTimeout time.Duration
	AutoMigrate    bool
	// LogSQL enables gorm statement logging.
	LogSQL bool
}

// Store is a PostgreSQL-backed persistence.Gateway.
type Store struct {
	db      *sql.DB
	pool    *pool.ConnPool
	logger  *slog.Logger
	gormLog logger.Interface
	ownsDB  bool

	closeOnce sync.Once
	*persistence.Health
}

// Open connects to cfg.URL with the configured driver and returns a Store
// that owns the connection.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.URL == "" {
		return nil, persistence.NewError(Provider, "open", errors.New("DATABASE_URL is not set"))
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DriverPgx
	}
	if driver != DriverPgx && driver != DriverPq {
		return nil, persistence.NewError(Provider, "open", fmt.Errorf("unsupported driver %q", driver))
	}
	db, err := sql.Open(driver, cfg.URL)
	if err != nil {
		return nil, persistence.NewError(Provider, "open", err)
	}
	db.SetConnMaxLifetime(time.Hour)
	s, err := New(ctx, db, cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// New builds a Store over an existing *sql.DB. The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB, cfg Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "relational_store")
	p, err := pool.New(ctx, db, pool.Config{Size: cfg.PoolSize, AcquireTimeout: cfg.AcquireTimeout}, log)
	if err != nil {
		return nil, persistence.NewError(Provider, "open", err)
	}
	gormLog := logger.Discard
	if cfg.LogSQL {
		gormLog = logger.Default.LogMode(logger.Info)
	}
	s := &Store{
		db:      db,
		pool:    p,
		logger:  log,
		gormLog: gormLog,
		Health:  persistence.NewHealth(Provider),
	}
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = p.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate creates or updates the accounts and account_transactions tables.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.withSession(ctx, func(db *gorm.DB) error {
		return db.AutoMigrate(&accountModel{}, &transactionModel{})
	})
	return s.Observe(persistence.NewError(Provider, "migrate", err))
}

// Pool exposes the connection pool, mainly for stats.
func (s *Store) Pool() *pool.ConnPool { return s.pool }

// withSession borrows a connection and opens a gorm session on it. The
// connection is reported broken when fn fails with a driver-level error.
func (s *Store) withSession(ctx context.Context, fn func(db *gorm.DB) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	broken := false
	defer func() { s.pool.Release(conn, broken) }()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 s.gormLog,
	})
	if err != nil {
		return err
	}
	err = fn(db.WithContext(ctx))
	if errors.Is(err, sql.ErrConnDone) {
		broken = true
	}
	return err
}

// LoadAccounts reads every account and its transactions.
func (s *Store) LoadAccounts(ctx context.Context) (map[int64]*account.Account, error) {
	out := make(map[int64]*account.Account)
	err := s.withSession(ctx, func(db *gorm.DB) error {
		var rows []accountModel
		if err := db.Order("id").Find(&rows).Error; err != nil {
			return MapErrorToDomain(err)
		}
		var txRows []transactionModel
		if err := db.Order("account_id, seq").Find(&txRows).Error; err != nil {
			return MapErrorToDomain(err)
		}
		byAccount := make(map[int64][]transactionModel, len(rows))
		for _, t := range txRows {
			byAccount[t.AccountID] = append(byAccount[t.AccountID], t)
		}
		for _, row := range rows {
			acc, err := fromModels(row, byAccount[row.ID]).ToAccount()
			if err != nil {
				return fmt.Errorf("%w: %w", persistence.ErrCorrupt, err)
			}
			out[acc.ID] = acc
		}
		return nil
	})
	if err != nil {
		return nil, s.Observe(persistence.NewError(Provider, "load_accounts", err))
	}
	s.logger.Debug("accounts loaded", "count", len(out))
	return out, s.Observe(nil)
}

// SaveAccount upserts acc and rewrites its transaction rows.
func (s *Store) SaveAccount(ctx context.Context, acc *account.Account) error {
	return s.SaveAccounts(ctx, []*account.Account{acc})
}

// SaveAccounts upserts every account in one transaction.
func (s *Store) SaveAccounts(ctx context.Context, accs []*account.Account) error {
	if len(accs) == 0 {
		return nil
	}
	snaps := make([]snapshot.AccountSnapshot, 0, len(accs))
	for _, acc := range accs {
		snap, err := snapshot.FromAccount(acc)
		if err != nil {
			return s.Observe(persistence.NewError(Provider, "save_accounts", err))
		}
		snaps = append(snaps, snap)
	}
	err := s.withSession(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			for _, snap := range snaps {
				if err := saveAccount(tx, snap); err != nil {
					return fmt.Errorf("account %d: %w", snap.ID, MapErrorToDomain(err))
				}
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Error("failed to save accounts", "count", len(accs), "error", err)
	}
	return s.Observe(persistence.NewError(Provider, "save_accounts", err))
}

func saveAccount(tx *gorm.DB, snap snapshot.AccountSnapshot) error {
	row, txRows := toModels(snap)
	res := tx.Model(&accountModel{}).Where("id = ?", row.ID).Updates(map[string]any{
		"holder":          row.Holder,
		"balance":         row.Balance,
		"kind":            row.Kind,
		"minimum_balance": row.MinimumBalance,
		"overdraft_limit": row.OverdraftLimit,
		"interest_rate":   row.InterestRate,
		"term_months":     row.TermMonths,
		"maturity_date":   row.MaturityDate,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("account_id = ?", row.ID).Delete(&transactionModel{}).Error; err != nil {
		return err
	}
	if len(txRows) == 0 {
		return nil
	}
	return tx.CreateInBatches(txRows, insertBatchSize).Error
}

// DeleteAccount removes id and its transactions.
func (s *Store) DeleteAccount(ctx context.Context, id int64) (bool, error) {
	var found bool
	err := s.withSession(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("account_id = ?", id).Delete(&transactionModel{}).Error; err != nil {
				return err
			}
			res := tx.Where("id = ?", id).Delete(&accountModel{})
			if res.Error != nil {
				return res.Error
			}
			found = res.RowsAffected > 0
			return nil
		})
	})
	if err != nil {
		return false, s.Observe(persistence.NewError(Provider, "delete_account", MapErrorToDomain(err)))
	}
	return found, s.Observe(nil)
}

// Clear deletes every row from both tables.
func (s *Store) Clear(ctx context.Context) error {
	err := s.withSession(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
			if err := all.Delete(&transactionModel{}).Error; err != nil {
				return err
			}
			return all.Delete(&accountModel{}).Error
		})
	})
	return s.Observe(persistence.NewError(Provider, "clear", err))
}

// Close closes the pool and, when the store opened it, the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.MarkClosed()
		err = s.pool.Close()
		if s.ownsDB {
			err = errors.Join(err, s.db.Close())
		}
	})
	return persistence.NewError(Provider, "close", err)
}
