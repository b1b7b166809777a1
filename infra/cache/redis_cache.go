package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/amirasaad/bankcore/pkg/snapshot"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements cache.AccountCache using Redis. Accounts are stored
// as JSON-encoded snapshot.AccountSnapshot values.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a RedisCache over an existing client.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, logger: logger.With("component", "redis_cache")}
}

func (r *RedisCache) key(id int64) string {
	return r.prefix + "account:" + strconv.FormatInt(id, 10)
}

// Get loads the account stored under id.
func (r *RedisCache) Get(ctx context.Context, id int64) (*account.Account, bool, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis cache miss", "id", id)
		return nil, false, nil
	}
	if err != nil {
		r.logger.Error("Redis cache get error", "id", id, "error", err)
		return nil, false, err
	}
	var s snapshot.AccountSnapshot
	if err := json.Unmarshal(val, &s); err != nil {
		r.logger.Error("Redis cache unmarshal error", "id", id, "error", err)
		return nil, false, err
	}
	acc, err := s.ToAccount()
	if err != nil {
		r.logger.Error("Redis cache decode error", "id", id, "error", err)
		return nil, false, err
	}
	r.logger.Debug("Redis cache hit", "id", id)
	return acc, true, nil
}

// Set stores acc with the configured TTL.
func (r *RedisCache) Set(ctx context.Context, acc *account.Account) error {
	s, err := snapshot.FromAccount(acc)
	if err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		r.logger.Error("Redis cache marshal error", "id", acc.ID, "error", err)
		return err
	}
	if err := r.client.Set(ctx, r.key(acc.ID), data, r.ttl).Err(); err != nil {
		r.logger.Error("Redis cache set error", "id", acc.ID, "error", err)
		return err
	}
	r.logger.Debug("Redis cache set", "id", acc.ID, "ttl", r.ttl)
	return nil
}

// Delete removes id.
func (r *RedisCache) Delete(ctx context.Context, id int64) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		r.logger.Error("Redis cache delete error", "id", id, "error", err)
		return err
	}
	r.logger.Debug("Redis cache delete", "id", id)
	return nil
}

// Close closes the underlying client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
