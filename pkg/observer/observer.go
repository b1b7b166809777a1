// Package observer carries human-readable bank events to interested parties.
// The bank never reads anything back from an observer.
package observer

// Observer receives one message per completed operation, account lifecycle
// change and interest batch.
type Observer interface {
	Notify(event string)
}

// Func adapts a function to Observer.
type Func func(event string)

// Notify calls f(event).
func (f Func) Notify(event string) { f(event) }

// Multi fans an event out to every non-nil observer in order.
type Multi []Observer

// Notify forwards event to each observer.
func (m Multi) Notify(event string) {
	for _, o := range m {
		if o != nil {
			o.Notify(event)
		}
	}
}
