package bank

import (
	"context"
	"fmt"

	"github.com/amirasaad/bankcore/pkg/domain/account"
	"github.com/amirasaad/bankcore/pkg/operation"
	"github.com/amirasaad/bankcore/pkg/worker"
	"github.com/shopspring/decimal"
)

// Deposit queues a deposit. Unknown accounts fail immediately.
func (b *Bank) Deposit(_ context.Context, id int64, amount decimal.Decimal) *operation.Future {
	op := operation.NewDeposit(id, amount, b.now())
	if f := b.precheck(op, id); f != nil {
		return f
	}
	return b.QueueOperation(op)
}

// Withdraw queues a withdrawal. Unknown accounts fail immediately.
func (b *Bank) Withdraw(_ context.Context, id int64, amount decimal.Decimal) *operation.Future {
	op := operation.NewWithdraw(id, amount, b.now())
	if f := b.precheck(op, id); f != nil {
		return f
	}
	return b.QueueOperation(op)
}

// Transfer queues a transfer from one account to another. Unknown accounts and
// self transfers fail immediately.
func (b *Bank) Transfer(_ context.Context, from, to int64, amount decimal.Decimal) *operation.Future {
	op := operation.NewTransfer(from, to, amount, b.now())
	if from == to {
		return operation.Completed(failed(op, account.ErrSameAccount))
	}
	if f := b.precheck(op, from, to); f != nil {
		return f
	}
	return b.QueueOperation(op)
}

func (b *Bank) precheck(op operation.Operation, ids ...int64) *operation.Future {
	if b.closing.Load() {
		return operation.Completed(failed(op, ErrShuttingDown))
	}
	for _, id := range ids {
		if !b.exists(id) {
			return operation.Completed(failed(op, fmt.Errorf("account %d: %w", id, account.ErrAccountNotFound)))
		}
	}
	return nil
}

func failed(op operation.Operation, err error) operation.Result {
	return operation.Failed(fmt.Sprintf("%s failed: %v", op.Description(), err), err)
}

// QueueOperation enqueues op and returns its future without blocking.
func (b *Bank) QueueOperation(op operation.Operation) *operation.Future {
	return b.enqueue(op, false)
}

// GenerateReport runs an analytics report over every account as a background
// task. Shutdown waits for it like any queued operation.
func (b *Bank) GenerateReport(_ context.Context) *operation.Future {
	b.mu.RLock()
	ids := make([]int64, 0, len(b.accounts))
	for id := range b.accounts {
		ids = append(ids, id)
	}
	b.mu.RUnlock()
	return b.enqueue(operation.NewAnalyticsReport(ids, b.now()), true)
}

func (b *Bank) enqueue(op operation.Operation, bg bool) *operation.Future {
	f := operation.NewFuture()
	b.trackMu.Lock()
	if b.closing.Load() {
		b.trackMu.Unlock()
		f.Resolve(failed(op, ErrShuttingDown))
		return f
	}
	if bg {
		b.background[f] = struct{}{}
	} else {
		b.pending[f] = struct{}{}
	}
	b.trackMu.Unlock()

	b.queue.Push(&queued{op: op, future: f, bg: bg})
	b.drain()
	return f
}

// drain hands every queued operation to the pool. Rejected submissions are
// resolved as failures without running.
func (b *Bank) drain() {
	for {
		item, ok := b.queue.Pop()
		if !ok {
			return
		}
		if err := b.pool.Submit(func(ctx context.Context) { b.execute(ctx, item) }); err != nil {
			b.logger.Warn("operation rejected", "operation", item.op.Description(), "error", err)
			b.finish(item, failed(item.op, err))
		}
	}
}

func (b *Bank) execute(ctx context.Context, item *queued) {
	if err := ctx.Err(); err != nil {
		b.finish(item, failed(item.op, err))
		return
	}
	release := b.locks.Acquire(item.op.InvolvedAccounts())
	defer func() {
		if r := recover(); r != nil {
			release()
			b.finish(item, failed(item.op, fmt.Errorf("%w: %v", worker.ErrPanicRecovered, r)))
			panic(r)
		}
	}()
	res := b.apply(ctx, item.op)
	release()
	b.finish(item, res)
}

// apply runs op on clones of the live accounts and, on success, persists and
// merges the result. Callers hold the locks of every involved account.
func (b *Bank) apply(ctx context.Context, op operation.Operation) operation.Result {
	ids := op.InvolvedAccounts()
	working := make(operation.Accounts, len(ids))
	b.mu.RLock()
	for _, id := range ids {
		if acc, ok := b.accounts[id]; ok {
			working[id] = acc.Clone()
		}
	}
	b.mu.RUnlock()

	res := op.Execute(ctx, working)
	if !res.Success || len(res.Accounts) == 0 {
		return res
	}
	if err := b.gateway.SaveAccounts(ctx, res.Accounts); err != nil {
		b.logger.Error("failed to persist operation", "operation", op.Description(), "error", err)
		return failed(op, err)
	}

	b.mu.Lock()
	for _, acc := range res.Accounts {
		if _, ok := b.accounts[acc.ID]; ok {
			b.accounts[acc.ID] = acc
		}
	}
	b.mu.Unlock()

	out := make([]*account.Account, 0, len(res.Accounts))
	for _, acc := range res.Accounts {
		b.cacheSet(ctx, acc)
		out = append(out, acc.Clone())
	}
	res.Accounts = out
	return res
}

func (b *Bank) finish(item *queued, res operation.Result) {
	item.future.Resolve(res)
	b.trackMu.Lock()
	if item.bg {
		delete(b.background, item.future)
	} else {
		delete(b.pending, item.future)
	}
	b.trackMu.Unlock()
	if res.Success {
		b.logger.Debug("operation completed", "operation", item.op.Description())
	} else {
		b.logger.Info("operation failed", "operation", item.op.Description(), "reason", res.Message)
	}
	b.notify(res.Message)
}

// AddInterestToAllSavingsAccounts applies one period of interest to every
// interest-bearing account, persists the batch in one gateway call and
// notifies observers once. It returns the number of accounts credited.
func (b *Bank) AddInterestToAllSavingsAccounts(ctx context.Context) (int, error) {
	if b.closing.Load() {
		return 0, ErrShuttingDown
	}
	b.mu.RLock()
	ids := make([]int64, 0, len(b.accounts))
	for id, acc := range b.accounts {
		if acc.Kind().EarnsInterest() {
			ids = append(ids, id)
		}
	}
	b.mu.RUnlock()

	release := b.locks.Acquire(ids)
	defer release()

	now := b.clock()
	changed := make([]*account.Account, 0, len(ids))
	total := decimal.Zero
	b.mu.RLock()
	for _, id := range ids {
		live, ok := b.accounts[id]
		if !ok {
			continue
		}
		acc := live.Clone()
		if interest, ok := acc.ApplyInterest(now); ok {
			total = total.Add(interest)
			changed = append(changed, acc)
		}
	}
	b.mu.RUnlock()

	if len(changed) > 0 {
		if err := b.gateway.SaveAccounts(ctx, changed); err != nil {
			b.logger.Error("failed to persist interest batch", "accounts", len(changed), "error", err)
			return 0, fmt.Errorf("applying interest: %w", err)
		}
		b.mu.Lock()
		for _, acc := range changed {
			if _, ok := b.accounts[acc.ID]; ok {
				b.accounts[acc.ID] = acc
			}
		}
		b.mu.Unlock()
		for _, acc := range changed {
			b.cacheSet(ctx, acc)
		}
	}
	b.logger.Info("interest batch applied", "accounts", len(changed), "total", total.String())
	b.notify(fmt.Sprintf("Interest of %s applied to %d accounts", total, len(changed)))
	return len(changed), nil
}
