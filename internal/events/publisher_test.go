package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/telecomx/user-service/internal/domain"
	"github.com/telecomx/user-service/internal/observability"
)

type fakeProducer struct {
	mu          sync.Mutex
	connectErr  error
	sendErr     error
	connectCall atomic.Int32
	connectWait time.Duration
	sent        []Message
	closed      bool
}

func (f *fakeProducer) Connect(ctx context.Context) error {
	f.connectCall.Add(1)
	if f.connectWait > 0 {
		time.Sleep(f.connectWait)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectErr
}

func (f *fakeProducer) Send(ctx context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeProducer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeProducer) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

func newTestPublisher(producer Producer) (*Publisher, *observer.ObservedLogs, *observability.Metrics) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := observability.NewMetrics()
	p := NewPublisher(producer, PublisherConfig{Topic: "Customer", SendTimeout: time.Second}, zap.New(core), metrics)
	return p, logs, metrics
}

func TestPublisher_BuildsEnvelope(t *testing.T) {
	producer := &fakeProducer{}
	p, _, metrics := newTestPublisher(producer)
	p.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.FixedZone("X", 3600)) }

	ctx := WithCorrelationID(context.Background(), "corr-9")
	p.Publish(ctx, "42", EventCustomerSuspended, UserRefPayload{UserID: "42"})

	sent := producer.messages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "Customer", msg.Topic)
	assert.Equal(t, "42", msg.Key)
	assert.Equal(t, "Customer.Suspended", msg.Headers[HeaderEventType])
	assert.Equal(t, "corr-9", msg.Headers[HeaderCorrelationID])
	assert.NotEmpty(t, msg.Headers[HeaderEventID])

	assert.JSONEq(t, `{
		"event": "Customer.Suspended",
		"data": {"userId": "42"},
		"timestamp": "2024-05-06T06:08:09.123Z"
	}`, string(msg.Value))
	assert.Equal(t, int64(1), metrics.PublishCount("Customer.Suspended", observability.PublishSent))
}

func TestPublisher_UpdatedPayloadFlattensPatch(t *testing.T) {
	producer := &fakeProducer{}
	p, _, _ := newTestPublisher(producer)

	city := "Shelbyville"
	p.Publish(context.Background(), "7", EventCustomerUpdated, UserUpdatedPayload{
		UserID:    "7",
		UserPatch: domain.UserPatch{Address: &domain.AddressPatch{City: &city}},
	})

	sent := producer.messages()
	require.Len(t, sent, 1)
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(sent[0].Value, &env))
	assert.Equal(t, "7", env.Data["userId"])
	assert.Equal(t, map[string]any{"city": "Shelbyville"}, env.Data["address"])
	assert.NotContains(t, env.Data, "name")
}

func TestPublisher_ConnectsLazilyOnce(t *testing.T) {
	producer := &fakeProducer{}
	p, _, _ := newTestPublisher(producer)
	assert.False(t, p.Connected())
	assert.Zero(t, producer.connectCall.Load())

	p.Publish(context.Background(), "1", EventCustomerCreated, UserRefPayload{UserID: "1"})
	p.Publish(context.Background(), "1", EventCustomerDeleted, UserRefPayload{UserID: "1"})

	assert.True(t, p.Connected())
	assert.Equal(t, int32(1), producer.connectCall.Load())
	assert.Len(t, producer.messages(), 2)
}

func TestPublisher_ConcurrentFirstUseConnectsOnce(t *testing.T) {
	producer := &fakeProducer{connectWait: 20 * time.Millisecond}
	p, _, _ := newTestPublisher(producer)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Publish(context.Background(), "1", EventCustomerUpdated, UserRefPayload{UserID: "1"})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), producer.connectCall.Load())
	assert.Len(t, producer.messages(), 16)
}

func TestPublisher_ConnectFailureIsSwallowedAndRetried(t *testing.T) {
	producer := &fakeProducer{connectErr: errors.New("dial tcp: connection refused")}
	p, logs, metrics := newTestPublisher(producer)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), "1", EventCustomerCreated, UserRefPayload{UserID: "1"})
	})
	assert.False(t, p.Connected())
	assert.Equal(t, 1, logs.FilterMessage("event publish failed").Len())
	assert.Equal(t, int64(1), metrics.PublishCount("Customer.Created", observability.PublishFailed))

	producer.mu.Lock()
	producer.connectErr = nil
	producer.mu.Unlock()

	p.Publish(context.Background(), "1", EventCustomerCreated, UserRefPayload{UserID: "1"})
	assert.True(t, p.Connected())
	assert.Equal(t, int32(2), producer.connectCall.Load())
	assert.Len(t, producer.messages(), 1)
}

func TestPublisher_SendFailureIsSwallowed(t *testing.T) {
	producer := &fakeProducer{sendErr: errors.New("leader not available")}
	p, logs, _ := newTestPublisher(producer)

	p.Publish(context.Background(), "1", EventCustomerCreated, UserRefPayload{UserID: "1"})

	assert.True(t, p.Connected(), "a send failure keeps the connection")
	entries := logs.FilterMessage("event publish failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Customer.Created", entries[0].ContextMap()["event"])
}

func TestPublisher_NotConnectedForcesReconnect(t *testing.T) {
	producer := &fakeProducer{sendErr: ErrNotConnected}
	p, _, _ := newTestPublisher(producer)

	p.Publish(context.Background(), "1", EventCustomerCreated, UserRefPayload{UserID: "1"})
	assert.False(t, p.Connected())

	producer.mu.Lock()
	producer.sendErr = nil
	producer.mu.Unlock()

	p.Publish(context.Background(), "1", EventCustomerCreated, UserRefPayload{UserID: "1"})
	assert.Equal(t, int32(2), producer.connectCall.Load())
}

func TestPublisher_UnencodablePayload(t *testing.T) {
	producer := &fakeProducer{}
	p, logs, _ := newTestPublisher(producer)

	p.Publish(context.Background(), "1", EventCustomerCreated, make(chan int))

	assert.Empty(t, producer.messages())
	assert.Zero(t, producer.connectCall.Load())
	assert.Equal(t, 1, logs.FilterMessage("event publish failed").Len())
}

func TestPublisher_Close(t *testing.T) {
	producer := &fakeProducer{}
	p, _, _ := newTestPublisher(producer)
	p.Publish(context.Background(), "1", EventCustomerCreated, UserRefPayload{UserID: "1"})

	require.NoError(t, p.Close())
	assert.False(t, p.Connected())
	assert.True(t, producer.closed)
}
