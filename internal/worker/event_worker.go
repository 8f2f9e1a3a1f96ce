package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/telecomx/user-service/internal/events"
	"github.com/telecomx/user-service/internal/observability"
)

// Sink delivers a single event. *events.Publisher satisfies it.
type Sink interface {
	Publish(ctx context.Context, key string, eventType events.EventType, payload any)
}

type job struct {
	key           string
	eventType     events.EventType
	payload       any
	correlationID string
}

// EventWorker decouples event delivery from request handling. Publish only
// enqueues; a fixed set of goroutines drains the queue into the sink. A full
// queue drops the event instead of blocking the caller.
type EventWorker struct {
	sink    Sink
	logger  *zap.Logger
	metrics *observability.Metrics
	queue   chan job

	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// Config sizes the worker.
type Config struct {
	QueueSize int
	Workers   int
}

// NewEventWorker starts the drain goroutines.
func NewEventWorker(sink Sink, cfg Config, logger *zap.Logger, metrics *observability.Metrics) *EventWorker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	w := &EventWorker{
		sink:    sink,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan job, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	return w
}

// Publish implements events.Emitter.
func (w *EventWorker) Publish(ctx context.Context, key string, eventType events.EventType, payload any) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		w.drop(key, eventType, "worker stopped")
		return
	}

	select {
	case w.queue <- job{key: key, eventType: eventType, payload: payload, correlationID: events.CorrelationIDFrom(ctx)}:
	default:
		w.drop(key, eventType, "queue full")
	}
}

// Stop refuses new events and waits for queued ones to be delivered, or for
// ctx to expire.
func (w *EventWorker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		close(w.queue)
		w.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *EventWorker) run() {
	defer w.wg.Done()
	for j := range w.queue {
		ctx := context.Background()
		if j.correlationID != "" {
			ctx = events.WithCorrelationID(ctx, j.correlationID)
		}
		w.sink.Publish(ctx, j.key, j.eventType, j.payload)
	}
}

func (w *EventWorker) drop(key string, eventType events.EventType, reason string) {
	w.metrics.RecordPublish(string(eventType), observability.PublishDropped)
	w.logger.Error("event dropped",
		zap.String("event", string(eventType)),
		zap.String("key", key),
		zap.String("reason", reason))
}
