// Package lock serializes mutations per account.
//
// Multi-account callers must go through Acquire, which takes locks in
// ascending id order so that two operations over overlapping sets can never
// wait on each other in a cycle. The registry lock held by the bank is always
// taken after, never before, locks from this package.
package lock

import (
	"slices"
	"sync"
)

// Coordinator hands out one mutex per account id. Mutexes are created on
// first use and never removed.
type Coordinator struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewCoordinator returns an empty Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{locks: make(map[int64]*sync.Mutex)}
}

// Order returns ids deduplicated and sorted ascending.
func Order(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func (c *Coordinator) lockFor(id int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.locks[id]
	if !ok {
		m = &sync.Mutex{}
		c.locks[id] = m
	}
	return m
}

// Acquire blocks until every lock in ids is held. The returned release
// function unlocks them and is safe to call more than once.
func (c *Coordinator) Acquire(ids []int64) (release func()) {
	ordered := Order(ids)
	held := make([]*sync.Mutex, 0, len(ordered))
	for _, id := range ordered {
		m := c.lockFor(id)
		m.Lock()
		held = append(held, m)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].Unlock()
			}
		})
	}
}

// WithLocks runs fn while holding the locks for ids.
func (c *Coordinator) WithLocks(ids []int64, fn func() error) error {
	release := c.Acquire(ids)
	defer release()
	return fn()
}

// Len reports how many locks have been created.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}
