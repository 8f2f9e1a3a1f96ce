package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telecomx/user-service/internal/observability"
)

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Topic       string
	SendTimeout time.Duration
}

// Publisher turns domain events into keyed broker messages. The producer is
// connected on first use and the connection is reused afterwards. Every
// failure is logged and swallowed.
type Publisher struct {
	producer    Producer
	topic       string
	sendTimeout time.Duration
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time

	mu        sync.Mutex
	connected bool
}

// NewPublisher constructs a disconnected publisher.
func NewPublisher(producer Producer, cfg PublisherConfig, logger *zap.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		producer:    producer,
		topic:       cfg.Topic,
		sendTimeout: cfg.SendTimeout,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Publish sends one event, making a single attempt.
func (p *Publisher) Publish(ctx context.Context, key string, eventType EventType, payload any) {
	if p.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.sendTimeout)
		defer cancel()
	}

	msg, err := p.buildMessage(ctx, key, eventType, payload)
	if err == nil {
		err = p.send(ctx, msg)
	}
	if err != nil {
		p.metrics.RecordPublish(string(eventType), observability.PublishFailed)
		p.logger.Error("event publish failed",
			zap.String("event", string(eventType)),
			zap.String("key", key),
			zap.String("topic", p.topic),
			zap.Error(err))
		return
	}

	p.metrics.RecordPublish(string(eventType), observability.PublishSent)
	p.logger.Info("event published",
		zap.String("event", string(eventType)),
		zap.String("key", key),
		zap.String("topic", p.topic),
		zap.String("event_id", msg.Headers[HeaderEventID]))
}

// Connected reports whether the producer connection has been established.
func (p *Publisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Close releases the producer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return p.producer.Close()
}

func (p *Publisher) send(ctx context.Context, msg Message) error {
	if err := p.ensureConnected(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	err := p.producer.Send(ctx, msg)
	if errors.Is(err, ErrNotConnected) {
		p.markDisconnected()
	}
	return err
}

// ensureConnected serializes the connect transition; concurrent first
// callers wait for the in-flight attempt instead of starting their own.
func (p *Publisher) ensureConnected(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil
	}
	if err := p.producer.Connect(ctx); err != nil {
		return err
	}
	p.connected = true
	p.logger.Info("broker producer connected", zap.String("topic", p.topic))
	return nil
}

func (p *Publisher) markDisconnected() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
}

func (p *Publisher) buildMessage(ctx context.Context, key string, eventType EventType, payload any) (Message, error) {
	value, err := json.Marshal(NewEnvelope(eventType, payload, p.now()))
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", eventType, err)
	}

	headers := map[string]string{
		HeaderEventID:   uuid.NewString(),
		HeaderEventType: string(eventType),
	}
	if id := CorrelationIDFrom(ctx); id != "" {
		headers[HeaderCorrelationID] = id
	}

	return Message{
		Topic:   p.topic,
		Key:     key,
		Value:   value,
		Headers: headers,
	}, nil
}
