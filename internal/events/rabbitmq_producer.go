package events

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQConfig holds RabbitMQ producer values. The topic is declared as a
// durable topic exchange and message keys become routing keys.
type RabbitMQConfig struct {
	URL      string
	Exchange string
	ClientID string
}

// RabbitMQProducer publishes persistent JSON messages to a topic exchange.
type RabbitMQProducer struct {
	cfg    RabbitMQConfig
	logger *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQProducer constructs an unconnected producer.
func NewRabbitMQProducer(cfg RabbitMQConfig, logger *zap.Logger) *RabbitMQProducer {
	return &RabbitMQProducer{cfg: cfg, logger: logger}
}

// Connect dials the broker, opens a channel and declares the exchange.
func (r *RabbitMQProducer) Connect(ctx context.Context) error {
	conn, err := amqp.DialConfig(r.cfg.URL, amqp.Config{
		Properties: amqp.Table{"connection_name": r.cfg.ClientID},
		Dial:       amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	err = ch.ExchangeDeclare(
		r.cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	r.mu.Lock()
	r.closeLocked()
	r.conn = conn
	r.channel = ch
	r.mu.Unlock()

	r.logger.Info("rabbitmq producer connected", zap.String("exchange", r.cfg.Exchange))
	return nil
}

// Send publishes one message. A closed channel reports ErrNotConnected.
func (r *RabbitMQProducer) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel == nil || r.channel.IsClosed() {
		return ErrNotConnected
	}
	err := r.channel.PublishWithContext(ctx,
		msg.Topic,
		msg.Key,
		false, // mandatory
		false, // immediate
		toPublishing(msg, time.Now()),
	)
	if errors.Is(err, amqp.ErrClosed) {
		return ErrNotConnected
	}
	return err
}

// Close closes the channel and connection.
func (r *RabbitMQProducer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *RabbitMQProducer) closeLocked() error {
	var err error
	if r.channel != nil {
		err = errors.Join(err, ignoreClosed(r.channel.Close()))
		r.channel = nil
	}
	if r.conn != nil {
		err = errors.Join(err, ignoreClosed(r.conn.Close()))
		r.conn = nil
	}
	return err
}

func ignoreClosed(err error) error {
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

func toPublishing(msg Message, now time.Time) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.Headers[HeaderEventID],
		CorrelationId: msg.Headers[HeaderCorrelationID],
		Type:          msg.Headers[HeaderEventType],
		Timestamp:     now,
		Headers:       headers,
		Body:          msg.Value,
	}
}
