package events

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig holds Kafka producer values.
type KafkaConfig struct {
	Brokers  []string
	ClientID string
}

// KafkaProducer writes messages to Kafka. Messages with the same key land on
// the same partition.
type KafkaProducer struct {
	cfg    KafkaConfig
	logger *zap.Logger

	mu     sync.RWMutex
	writer *kafka.Writer
}

// NewKafkaProducer constructs an unconnected producer.
func NewKafkaProducer(cfg KafkaConfig, logger *zap.Logger) *KafkaProducer {
	return &KafkaProducer{cfg: cfg, logger: logger}
}

// Connect dials the first reachable broker to fail fast, then prepares the writer.
func (k *KafkaProducer) Connect(ctx context.Context) error {
	dialer := &kafka.Dialer{ClientID: k.cfg.ClientID, Timeout: 10 * time.Second}

	var dialErr error
	reachable := false
	for _, broker := range k.cfg.Brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			dialErr = errors.Join(dialErr, err)
			continue
		}
		_ = conn.Close()
		reachable = true
		break
	}
	if !reachable {
		if dialErr == nil {
			dialErr = errors.New("no kafka brokers configured")
		}
		return dialErr
	}

	writer := newKafkaWriter(k.cfg)

	k.mu.Lock()
	old := k.writer
	k.writer = writer
	k.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	k.logger.Info("kafka producer connected", zap.Strings("brokers", k.cfg.Brokers))
	return nil
}

// Send writes one message synchronously.
func (k *KafkaProducer) Send(ctx context.Context, msg Message) error {
	k.mu.RLock()
	writer := k.writer
	k.mu.RUnlock()
	if writer == nil {
		return ErrNotConnected
	}
	return writer.WriteMessages(ctx, toKafkaMessage(msg))
}

// Close flushes and closes the writer.
func (k *KafkaProducer) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.writer == nil {
		return nil
	}
	err := k.writer.Close()
	k.writer = nil
	return err
}

// newKafkaWriter builds a writer that flushes each message on its own; Send
// blocks until the broker acknowledges it.
func newKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID},
	}
}

func toKafkaMessage(msg Message) kafka.Message {
	keys := make([]string, 0, len(msg.Headers))
	for key := range msg.Headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	headers := make([]kafka.Header, 0, len(keys))
	for _, key := range keys {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(msg.Headers[key])})
	}

	return kafka.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: headers,
	}
}
