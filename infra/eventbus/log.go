// Package eventbus provides observer.Observer implementations: a structured
// log sink, an in-memory recorder for tests, and a Redis Streams publisher.
package eventbus

import (
	"log/slog"

	"github.com/amirasaad/bankcore/pkg/observer"
)

// LogObserver writes every event to a slog.Logger at info level.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns a LogObserver writing to logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger.With("component", "observer")}
}

// Notify logs event.
func (o *LogObserver) Notify(event string) {
	o.logger.Info(event)
}

var _ observer.Observer = (*LogObserver)(nil)
