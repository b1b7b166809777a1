// Package initializer assembles a bank.Bank and its infrastructure from
// configuration.
package initializer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	infra_cache "github.com/amirasaad/bankcore/infra/cache"
	infra_eventbus "github.com/amirasaad/bankcore/infra/eventbus"
	"github.com/amirasaad/bankcore/infra/persistence/relational"
	"github.com/amirasaad/bankcore/infra/persistence/snapshot"
	"github.com/amirasaad/bankcore/pkg/bank"
	"github.com/amirasaad/bankcore/pkg/cache"
	"github.com/amirasaad/bankcore/pkg/config"
	"github.com/amirasaad/bankcore/pkg/observer"
	"github.com/amirasaad/bankcore/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

// Deps is the assembled application.
type Deps struct {
	Logger *slog.Logger
	Bank   *bank.Bank

	closers []func() error
}

// Shutdown drains the bank and then releases the cache and event publisher.
func (d *Deps) Shutdown(ctx context.Context) error {
	return errors.Join(d.Bank.Shutdown(ctx), d.release())
}

// release runs the closers in reverse registration order.
func (d *Deps) release() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	d.closers = nil
	return errors.Join(errs...)
}

// InitializeDependencies installs the process logger and builds an opened
// bank from cfg.
func InitializeDependencies(ctx context.Context, cfg *config.App) (*Deps, error) {
	return Build(ctx, cfg, setupLogger(cfg.Log))
}

// Build wires the bank with the given logger. The registry is loaded from the
// selected gateway before Build returns.
func Build(ctx context.Context, cfg *config.App, logger *slog.Logger) (*Deps, error) {
	deps := &Deps{Logger: logger}

	gateway, err := initGateway(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize persistence: %w", err)
	}

	accountCache, closeCache := initCache(cfg, logger)
	if closeCache != nil {
		deps.closers = append(deps.closers, closeCache)
	}
	observers, closeObservers := initObservers(cfg, logger)
	if closeObservers != nil {
		deps.closers = append(deps.closers, closeObservers)
	}

	b, err := bank.New(bank.Config{
		Workers:       cfg.Bank.Workers,
		ShutdownGrace: cfg.Bank.ShutdownGrace,
		MinID:         cfg.Bank.IDMin,
		MaxID:         cfg.Bank.IDMax,
	}, bank.Deps{
		Gateway:   gateway,
		Cache:     accountCache,
		Observers: observers,
		Logger:    logger,
	})
	if err != nil {
		_ = gateway.Close()
		_ = deps.release()
		return nil, err
	}
	if err := b.Open(ctx); err != nil {
		_ = b.Shutdown(ctx)
		_ = deps.release()
		return nil, err
	}
	deps.Bank = b
	logger.Info("Bank initialized",
		"provider", gateway.Status().Provider,
		"accounts", b.Count(),
		"cache", cfg.Cache.Provider,
	)
	return deps, nil
}

func initGateway(ctx context.Context, cfg *config.App, logger *slog.Logger) (persistence.Gateway, error) {
	switch cfg.Persistence.Provider {
	case config.ProviderRelational:
		store, err := relational.Open(ctx, relational.Config{
			URL:            cfg.DB.Url,
			Driver:         cfg.DB.Driver,
			PoolSize:       cfg.DB.PoolSize,
			AcquireTimeout: cfg.DB.AcquireTimeout,
			AutoMigrate:    cfg.DB.AutoMigrate,
			LogSQL:         cfg.DB.LogSQL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.ProviderSnapshot, "":
		store, err := snapshot.New(cfg.Snapshot.Path,
			snapshot.WithLockTimeout(cfg.Snapshot.LockTimeout),
			snapshot.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown persistence provider %q", config.ErrInvalid, cfg.Persistence.Provider)
	}
}

// initCache never fails: an unreachable Redis degrades to the in-memory cache.
func initCache(cfg *config.App, logger *slog.Logger) (cache.AccountCache, func() error) {
	switch cfg.Cache.Provider {
	case config.CacheRedis:
		client, err := newRedisClient(cfg.Redis)
		if err == nil {
			rc := infra_cache.NewRedisCache(client, cfg.Redis.KeyPrefix, cfg.Cache.TTL, logger)
			logger.Info("Using Redis account cache", "prefix", cfg.Redis.KeyPrefix, "ttl", cfg.Cache.TTL)
			return rc, rc.Close
		}
		logger.Warn("Redis cache unavailable, falling back to memory", "error", err)
		fallthrough
	case config.CacheMemory:
		mc := infra_cache.NewMemoryCache(cfg.Cache.TTL)
		return mc, mc.Close
	default:
		return cache.Noop{}, nil
	}
}

// initObservers always includes the log observer unless disabled. A Redis
// stream publisher is added when configured and reachable.
func initObservers(cfg *config.App, logger *slog.Logger) ([]observer.Observer, func() error) {
	var observers []observer.Observer
	if cfg.Notify.LogEvents {
		observers = append(observers, infra_eventbus.NewLogObserver(logger))
	}
	if cfg.Notify.RedisStream == "" {
		return observers, nil
	}
	client, err := newRedisClient(cfg.Redis)
	if err != nil {
		logger.Warn("Redis event publisher unavailable, events are logged only", "error", err)
		return observers, nil
	}
	pub, err := infra_eventbus.NewRedisPublisher(client, cfg.Notify.RedisStream, logger)
	if err != nil {
		_ = client.Close()
		logger.Warn("Redis event publisher misconfigured, events are logged only", "error", err)
		return observers, nil
	}
	logger.Info("Publishing bank events to Redis stream", "stream", cfg.Notify.RedisStream)
	return append(observers, pub), pub.Close
}

// newRedisClient applies the pool settings of cfg to its URL and checks the
// server is reachable.
func newRedisClient(cfg *config.Redis) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	opt.DialTimeout = defaultDialTimeout
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opt.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opt.WriteTimeout = cfg.WriteTimeout
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), opt.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
