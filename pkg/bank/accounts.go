package bank

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/shopspring/decimal"
)

// CreateAccount opens an account and persists it before it becomes visible.
// If the gateway write fails nothing is registered and the error is returned.
//
// Identifiers are drawn at random until an unused one is found. The number of
// draws is not bounded; it only fails when the whole range is taken.
func (b *Bank) CreateAccount(ctx context.Context, holder string, typ account.Type, initialDeposit decimal.Decimal) (*account.Account, error) {
	if b.closing.Load() {
		return nil, ErrShuttingDown
	}
	id, err := b.reserveID()
	if err != nil {
		return nil, err
	}
	registered := false
	defer func() {
		if !registered {
			b.releaseID(id)
		}
	}()

	acc, err := account.New().
		WithID(id).
		WithHolder(holder).
		WithType(typ).
		WithInitialDeposit(initialDeposit).
		WithCreatedAt(b.clock()).
		Build()
	if err != nil {
		return nil, err
	}
	if err := b.gateway.SaveAccount(ctx, acc); err != nil {
		b.logger.Error("failed to persist new account", "id", id, "error", err)
		return nil, fmt.Errorf("creating account: %w", err)
	}

	b.mu.Lock()
	b.accounts[id] = acc
	delete(b.reserved, id)
	b.mu.Unlock()
	registered = true

	b.cacheSet(ctx, acc)
	b.logger.Info("account created", "id", id, "kind", acc.Kind().String())
	b.notify(fmt.Sprintf("Account %d created for %s (%s) with balance %s", id, acc.Holder, acc.Kind(), acc.Balance))
	return acc.Clone(), nil
}

func (b *Bank) reserveID() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int64(len(b.accounts)+len(b.reserved)) > b.cfg.MaxID-b.cfg.MinID {
		return 0, ErrIDSpaceExhausted
	}
	for {
		id := b.ids(b.cfg.MinID, b.cfg.MaxID)
		if id < b.cfg.MinID || id > b.cfg.MaxID {
			continue
		}
		if _, taken := b.accounts[id]; taken {
			continue
		}
		if _, taken := b.reserved[id]; taken {
			continue
		}
		b.reserved[id] = struct{}{}
		return id, nil
	}
}

func (b *Bank) releaseID(id int64) {
	b.mu.Lock()
	delete(b.reserved, id)
	b.mu.Unlock()
}

// CloseAccount removes id from the registry and the gateway. When the gateway
// delete fails the account is restored and the error returned. An unknown id
// yields (false, nil).
func (b *Bank) CloseAccount(ctx context.Context, id int64) (bool, error) {
	release := b.locks.Acquire([]int64{id})
	defer release()

	b.mu.Lock()
	acc, ok := b.accounts[id]
	if !ok {
		b.mu.Unlock()
		return false, nil
	}
	delete(b.accounts, id)
	b.mu.Unlock()

	if _, err := b.gateway.DeleteAccount(ctx, id); err != nil {
		b.mu.Lock()
		b.accounts[id] = acc
		b.mu.Unlock()
		b.logger.Error("failed to delete account, restored", "id", id, "error", err)
		return false, fmt.Errorf("closing account %d: %w", id, err)
	}

	b.cacheDelete(ctx, id)
	b.logger.Info("account closed", "id", id)
	b.notify(fmt.Sprintf("Account %d closed", id))
	return true, nil
}

// UpdateHolder renames the holder of id.
func (b *Bank) UpdateHolder(ctx context.Context, id int64, holder string) (*account.Account, error) {
	release := b.locks.Acquire([]int64{id})
	defer release()

	b.mu.RLock()
	live, ok := b.accounts[id]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, account.ErrAccountNotFound)
	}
	updated := live.Clone()
	if err := updated.Rename(holder); err != nil {
		return nil, err
	}
	if err := b.gateway.SaveAccount(ctx, updated); err != nil {
		return nil, fmt.Errorf("renaming account %d: %w", id, err)
	}
	b.mu.Lock()
	b.accounts[id] = updated
	b.mu.Unlock()

	b.cacheSet(ctx, updated)
	b.notify(fmt.Sprintf("Account %d renamed to %s", id, updated.Holder))
	return updated.Clone(), nil
}

// GetAccount returns a copy of id, reading through the cache. Concurrent
// misses for the same id share one registry lookup.
func (b *Bank) GetAccount(ctx context.Context, id int64) (*account.Account, error) {
	if acc, ok, err := b.cache.Get(ctx, id); err != nil {
		b.logger.Warn("cache read failed", "id", id, "error", err)
	} else if ok {
		return acc, nil
	}
	v, err, _ := b.reads.Do(strconv.FormatInt(id, 10), func() (any, error) {
		release := b.locks.Acquire([]int64{id})
		defer release()
		b.mu.RLock()
		acc, ok := b.accounts[id]
		b.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("account %d: %w", id, account.ErrAccountNotFound)
		}
		b.cacheSet(ctx, acc)
		return acc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*account.Account).Clone(), nil
}

// ListAccounts returns copies of every account ordered by id.
func (b *Bank) ListAccounts(_ context.Context) []*account.Account {
	b.mu.RLock()
	out := make([]*account.Account, 0, len(b.accounts))
	for _, acc := range b.accounts {
		out = append(out, acc.Clone())
	}
	b.mu.RUnlock()
	sortByID(out)
	return out
}

// SearchAccounts matches query case-insensitively against holder names, or
// exactly against account ids. An empty query matches everything.
func (b *Bank) SearchAccounts(ctx context.Context, query string) []*account.Account {
	query = strings.ToLower(strings.TrimSpace(query))
	all := b.ListAccounts(ctx)
	if query == "" {
		return all
	}
	id, idErr := strconv.ParseInt(query, 10, 64)
	out := all[:0]
	for _, acc := range all {
		if (idErr == nil && acc.ID == id) || strings.Contains(strings.ToLower(acc.Holder), query) {
			out = append(out, acc)
		}
	}
	return out
}
