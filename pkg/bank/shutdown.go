package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/bankcore/pkg/operation"
)

// Shutdown stops accepting work, waits until no operation or background task
// is queued or outstanding, stops the worker pool within the configured grace
// period and closes the gateway. If ctx ends first the pool is stopped anyway
// and ctx's error is returned along with any other failure.
func (b *Bank) Shutdown(ctx context.Context) error {
	b.trackMu.Lock()
	already := b.closing.Swap(true)
	b.trackMu.Unlock()
	if already {
		return nil
	}
	b.logger.Info("shutting down, draining operations")

	var errs []error
	if err := b.awaitOutstanding(ctx); err != nil {
		errs = append(errs, fmt.Errorf("draining operations: %w", err))
	}
	if err := b.pool.Stop(b.cfg.ShutdownGrace); err != nil {
		errs = append(errs, err)
	}
	// Anything still queued after the pool stopped can no longer run.
	b.drain()
	if err := b.gateway.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing gateway: %w", err))
	}
	b.logger.Info("shutdown complete", "errors", len(errs))
	return errors.Join(errs...)
}

func (b *Bank) awaitOutstanding(ctx context.Context) error {
	for {
		b.drain()
		futures := b.outstanding()
		if len(futures) == 0 && b.queue.Len() == 0 {
			return nil
		}
		for _, f := range futures {
			select {
			case <-f.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (b *Bank) outstanding() []*operation.Future {
	b.trackMu.Lock()
	defer b.trackMu.Unlock()
	out := make([]*operation.Future, 0, len(b.pending)+len(b.background))
	for f := range b.pending {
		out = append(out, f)
	}
	for f := range b.background {
		out = append(out, f)
	}
	return out
}
