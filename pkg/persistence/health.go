package persistence

import (
	"sync"
	"time"
)

// Health tracks the outcome of the most recent gateway call. Implementations
// embed it and report through Status.
type Health struct {
	mu          sync.RWMutex
	provider    string
	lastErr     error
	lastFailure time.Time
	lastSuccess time.Time
	closed      bool
}

// NewHealth returns a tracker for provider that starts out available.
func NewHealth(provider string) *Health {
	return &Health{provider: provider}
}

// Observe records err, or a success when err is nil, and returns err.
func (h *Health) Observe(err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.lastErr = err
		h.lastFailure = time.Now()
		return err
	}
	h.lastErr = nil
	h.lastSuccess = time.Now()
	return nil
}

// MarkClosed makes Status report the gateway as unavailable.
func (h *Health) MarkClosed() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// Status reports availability based on the last observed call.
func (h *Health) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	switch {
	case h.closed:
		return Status{Provider: h.provider, Message: "closed", Err: ErrClosed}
	case h.lastErr != nil:
		return Status{
			Provider: h.provider,
			Message:  "last operation failed at " + h.lastFailure.Format(time.RFC3339),
			Err:      h.lastErr,
		}
	case h.lastSuccess.IsZero():
		return Status{Provider: h.provider, Available: true, Message: "ready"}
	default:
		return Status{
			Provider:  h.provider,
			Available: true,
			Message:   "last operation succeeded at " + h.lastSuccess.Format(time.RFC3339),
		}
	}
}
