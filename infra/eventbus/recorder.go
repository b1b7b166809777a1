package eventbus

import (
	"slices"
	"strings"
	"sync"

	"github.com/amirasaad/bankcore/pkg/observer"
)

// Recorder keeps every event in memory. It is meant for tests.
type Recorder struct {
	mu     sync.RWMutex
	events []string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{events: make([]string, 0)}
}

// Notify records event.
func (r *Recorder) Notify(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.events)
}

// Count returns how many recorded events contain substr.
func (r *Recorder) Count(substr string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.events {
		if strings.Contains(e, substr) {
			n++
		}
	}
	return n
}

// Clear drops all recorded events.
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.events = make([]string, 0)
	r.mu.Unlock()
}

var _ observer.Observer = (*Recorder)(nil)
