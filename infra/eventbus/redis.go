package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/bankcore/pkg/observer"
	"github.com/redis/go-redis/v9"
)

// EventType is the envelope type of every published bank event.
const EventType = "bank.event"

const (
	publishBuffer  = 256
	publishTimeout = 2 * time.Second
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type payload struct {
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RedisPublisher appends events to a Redis stream. Notify never blocks: events
// are handed to a background goroutine and dropped with a warning when the
// buffer is full. Publish failures are logged.
type RedisPublisher struct {
	client *redis.Client
	stream string
	logger *slog.Logger

	events chan payload
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewRedisPublisher starts a publisher writing to stream.
func NewRedisPublisher(client *redis.Client, stream string, logger *slog.Logger) (*RedisPublisher, error) {
	if client == nil || stream == "" {
		return nil, fmt.Errorf("redis publisher: client and stream are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &RedisPublisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "redis-publisher", "stream", stream),
		events: make(chan payload, publishBuffer),
		done:   make(chan struct{}),
	}
	go p.process()
	return p, nil
}

// Notify queues event for publication.
func (p *RedisPublisher) Notify(event string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- payload{Message: event, OccurredAt: time.Now().UTC()}:
	default:
		p.logger.Warn("publish buffer full, dropping event", "event", event)
	}
}

func (p *RedisPublisher) process() {
	defer close(p.done)
	for ev := range p.events {
		if err := p.publish(ev); err != nil {
			p.logger.Error("failed to publish event", "error", err)
		}
	}
}

func (p *RedisPublisher) publish(ev payload) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	env, err := json.Marshal(envelope{Type: EventType, Payload: data})
	if err != nil {
		return fmt.Errorf("envelope marshal failed: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{"event": string(env)},
	}).Err(); err != nil {
		return fmt.Errorf("emit failed: %w", err)
	}
	p.logger.Debug("event published", "message", ev.Message)
	return nil
}

// Close flushes queued events and closes the client.
func (p *RedisPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	<-p.done
	return p.client.Close()
}

var _ observer.Observer = (*RedisPublisher)(nil)
