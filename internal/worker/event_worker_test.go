package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telecomx/user-service/internal/events"
	"github.com/telecomx/user-service/internal/observability"
)

type delivered struct {
	key           string
	eventType     events.EventType
	correlationID string
}

type recordingSink struct {
	mu      sync.Mutex
	block   chan struct{}
	records []delivered
}

func (s *recordingSink) Publish(ctx context.Context, key string, eventType events.EventType, payload any) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, delivered{key: key, eventType: eventType, correlationID: events.CorrelationIDFrom(ctx)})
}

func (s *recordingSink) all() []delivered {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivered(nil), s.records...)
}

func TestEventWorker_DeliversInOrderAndDrainsOnStop(t *testing.T) {
	sink := &recordingSink{}
	w := NewEventWorker(sink, Config{QueueSize: 16, Workers: 1}, zap.NewNop(), nil)

	ctx := events.WithCorrelationID(context.Background(), "corr-1")
	w.Publish(ctx, "1", events.EventCustomerCreated, nil)
	w.Publish(ctx, "1", events.EventCustomerSuspended, nil)
	w.Publish(ctx, "1", events.EventCustomerReactivated, nil)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))

	got := sink.all()
	require.Len(t, got, 3)
	assert.Equal(t, events.EventCustomerCreated, got[0].eventType)
	assert.Equal(t, events.EventCustomerSuspended, got[1].eventType)
	assert.Equal(t, events.EventCustomerReactivated, got[2].eventType)
	assert.Equal(t, "corr-1", got[0].correlationID)
}

func TestEventWorker_FullQueueDropsWithoutBlocking(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	metrics := observability.NewMetrics()
	w := NewEventWorker(sink, Config{QueueSize: 1, Workers: 1}, zap.NewNop(), metrics)

	// The first event occupies the worker, the second fills the queue.
	w.Publish(context.Background(), "1", events.EventCustomerCreated, nil)
	require.Eventually(t, func() bool { return len(w.queue) == 0 }, time.Second, time.Millisecond)
	w.Publish(context.Background(), "2", events.EventCustomerCreated, nil)

	returned := make(chan struct{})
	go func() {
		w.Publish(context.Background(), "3", events.EventCustomerCreated, nil)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	assert.Equal(t, int64(1), metrics.PublishCount(string(events.EventCustomerCreated), observability.PublishDropped))

	close(sink.block)
	require.NoError(t, w.Stop(context.Background()))
	assert.Len(t, sink.all(), 2)
}

func TestEventWorker_PublishAfterStopIsDropped(t *testing.T) {
	sink := &recordingSink{}
	w := NewEventWorker(sink, Config{}, zap.NewNop(), nil)
	require.NoError(t, w.Stop(context.Background()))
	require.NoError(t, w.Stop(context.Background()))

	assert.NotPanics(t, func() {
		w.Publish(context.Background(), "1", events.EventCustomerDeleted, nil)
	})
	assert.Empty(t, sink.all())
}

func TestEventWorker_StopHonoursDeadline(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	w := NewEventWorker(sink, Config{QueueSize: 4, Workers: 1}, zap.NewNop(), nil)
	w.Publish(context.Background(), "1", events.EventCustomerCreated, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Stop(ctx), context.DeadlineExceeded)

	close(sink.block)
}
