package events

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrNotConnected is returned by a producer whose transport went away. The
// publisher reconnects on the next call when it sees it.
var ErrNotConnected = errors.New("producer not connected")

// Message is a keyed broker message.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Producer is the broker primitive the publisher drives.
type Producer interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Emitter accepts domain events for best-effort delivery. Implementations
// never fail the caller.
type Emitter interface {
	Publish(ctx context.Context, key string, eventType EventType, payload any)
}

// NoopProducer logs messages instead of sending them.
type NoopProducer struct {
	logger *zap.Logger
}

// NewNoopProducer returns a producer for running without a broker.
func NewNoopProducer(logger *zap.Logger) *NoopProducer {
	return &NoopProducer{logger: logger}
}

func (p *NoopProducer) Connect(ctx context.Context) error { return nil }

func (p *NoopProducer) Send(ctx context.Context, msg Message) error {
	p.logger.Debug("event not sent; broker disabled",
		zap.String("topic", msg.Topic),
		zap.String("key", msg.Key),
		zap.ByteString("value", msg.Value))
	return nil
}

func (p *NoopProducer) Close() error { return nil }
