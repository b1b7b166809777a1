// Package pool keeps a fixed number of dedicated connections borrowed from a
// *sql.DB and lends them out one caller at a time.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirasaad/bankcore/pkg/persistence"
)

const (
	// DefaultSize is used when Config.Size is not positive.
	DefaultSize = 10
	// DefaultAcquireTimeout is used when Config.AcquireTimeout is not positive.
	DefaultAcquireTimeout = 5 * time.Second
)

// Config sizes a ConnPool.
type Config struct {
	Size           int
	AcquireTimeout time.Duration
}

// Stats is a point-in-time view of a ConnPool.
type Stats struct {
	Size     int
	Idle     int
	InUse    int
	Replaced int64
	Timeouts int64
}

// ConnPool is a bounded pool of pre-opened connections. An empty slot is
// represented by a nil entry and is filled on demand.
type ConnPool struct {
	db      *sql.DB
	size    int
	timeout time.Duration
	logger  *slog.Logger

	slots   chan *sql.Conn
	closing chan struct{}
	// mu orders returns to slots against Close's drain.
	mu     sync.Mutex
	closed bool

	inUse    atomic.Int64
	replaced atomic.Int64
	timeouts atomic.Int64
}

// New opens cfg.Size connections from db. The pool does not own db.
func New(ctx context.Context, db *sql.DB, cfg Config, logger *slog.Logger) (*ConnPool, error) {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	// Keep database/sql from closing the connections we hold.
	db.SetMaxOpenConns(cfg.Size)
	db.SetMaxIdleConns(cfg.Size)

	p := &ConnPool{
		db:      db,
		size:    cfg.Size,
		timeout: cfg.AcquireTimeout,
		logger:  logger.With("component", "conn_pool"),
		slots:   make(chan *sql.Conn, cfg.Size),
		closing: make(chan struct{}),
	}
	for i := 0; i < cfg.Size; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("%w: opening connection %d: %w", persistence.ErrUnavailable, i, err)
		}
		p.slots <- conn
	}
	p.logger.Debug("connection pool ready", "size", cfg.Size, "acquire_timeout", cfg.AcquireTimeout)
	return p, nil
}

// Acquire borrows a validated connection, waiting at most the configured
// timeout. Invalid connections are closed and replaced before being handed out.
func (p *ConnPool) Acquire(ctx context.Context) (*sql.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var conn *sql.Conn
	select {
	case <-p.closing:
		return nil, persistence.ErrPoolClosed
	case conn = <-p.slots:
	case <-ctx.Done():
		p.timeouts.Add(1)
		return nil, fmt.Errorf("%w after %s", persistence.ErrPoolTimeout, p.timeout)
	}

	if conn != nil {
		err := conn.PingContext(ctx)
		if err == nil {
			p.inUse.Add(1)
			return conn, nil
		}
		p.logger.Warn("discarding invalid connection", "error", err)
		_ = conn.Close()
		p.replaced.Add(1)
	}
	fresh, err := p.db.Conn(ctx)
	if err != nil {
		p.putBack(nil)
		return nil, fmt.Errorf("%w: %w", persistence.ErrUnavailable, err)
	}
	p.inUse.Add(1)
	return fresh, nil
}

// Release returns conn to the pool. A broken connection is closed and its
// slot left empty for the next Acquire to refill.
func (p *ConnPool) Release(conn *sql.Conn, broken bool) {
	if conn == nil {
		return
	}
	p.inUse.Add(-1)
	if broken {
		_ = conn.Close()
		p.replaced.Add(1)
		conn = nil
	}
	p.putBack(conn)
}

// putBack refills a slot, or closes conn once the pool is closed. Slots never
// outnumber borrowers, so the send does not block.
func (p *ConnPool) putBack(conn *sql.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	p.slots <- conn
}

// Close closes idle connections and makes Acquire fail with
// persistence.ErrPoolClosed. Borrowed connections are closed on Release.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.closing)

	var errs []error
	for {
		select {
		case conn := <-p.slots:
			if conn != nil {
				if err := conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
					errs = append(errs, err)
				}
			}
		default:
			return errors.Join(errs...)
		}
	}
}

// Stats reports pool usage.
func (p *ConnPool) Stats() Stats {
	return Stats{
		Size:     p.size,
		Idle:     len(p.slots),
		InUse:    int(p.inUse.Load()),
		Replaced: p.replaced.Load(),
		Timeouts: p.timeouts.Load(),
	}
}
