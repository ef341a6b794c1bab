package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"commerce/navigation/internal/domain/event"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu        sync.Mutex
	messages  chan redis.XMessage
	acked     []string
	published []event.Event
	ackErr    error
	readErr   error
	reads     atomic.Int32
}

func newFakeQueue(msgs ...redis.XMessage) *fakeQueue {
	q := &fakeQueue{messages: make(chan redis.XMessage, len(msgs))}
	for _, m := range msgs {
		q.messages <- m
	}
	return q
}

func (q *fakeQueue) Publish(_ context.Context, e event.Event) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, e)
	return "1-0", nil
}

func (q *fakeQueue) Read(ctx context.Context, _ string) (*redis.XMessage, error) {
	q.reads.Add(1)
	if q.readErr != nil {
		return nil, q.readErr
	}
	select {
	case msg := <-q.messages:
		return &msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *fakeQueue) Ack(_ context.Context, msgID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ackErr != nil {
		return q.ackErr
	}
	q.acked = append(q.acked, msgID)
	return nil
}

func (q *fakeQueue) AutoClaim(context.Context, string, time.Duration) ([]redis.XMessage, error) {
	return nil, nil
}

func (q *fakeQueue) EnsureStream(context.Context) error { return nil }

func (q *fakeQueue) Acked() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.acked...)
}

type countingCache struct {
	calls atomic.Int32
	err   error
}

func (c *countingCache) Invalidate(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func message(id, eventType, data string) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]interface{}{"event_type": eventType, "event_data": data}}
}

func TestProcessMessage_InvalidatesAndAcks(t *testing.T) {
	q := newFakeQueue()
	cache := &countingCache{}
	svc := NewService(q, cache, 1, 0)
	msg := message("1-0", "CategoryChanged", `{"category_id":12,"operation":"update"}`)

	require.NoError(t, svc.processMessage(context.Background(), &msg))

	assert.Equal(t, int32(1), cache.calls.Load())
	assert.Equal(t, []string{"1-0"}, q.Acked())
}

func TestProcessMessage_DropsMalformed(t *testing.T) {
	tests := []struct {
		name string
		msg  redis.XMessage
	}{
		{name: "no type", msg: redis.XMessage{ID: "1-0", Values: map[string]interface{}{"event_data": "{}"}}},
		{name: "no data", msg: redis.XMessage{ID: "1-0", Values: map[string]interface{}{"event_type": "CategoryChanged"}}},
		{name: "unknown type", msg: message("1-0", "PriceChanged", `{}`)},
		{name: "invalid event", msg: message("1-0", "ProductChanged", `{"product_id":0,"operation":"create"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newFakeQueue()
			cache := &countingCache{}
			svc := NewService(q, cache, 1, 0)

			require.NoError(t, svc.processMessage(context.Background(), &tt.msg))

			assert.Zero(t, cache.calls.Load())
			assert.Equal(t, []string{"1-0"}, q.Acked())
		})
	}
}

func TestProcessMessage_InvalidationFailureLeavesPending(t *testing.T) {
	q := newFakeQueue()
	cache := &countingCache{err: errors.New("redis down")}
	svc := NewService(q, cache, 1, 0)
	msg := message("1-0", "ProductChanged", `{"product_id":3,"operation":"delete"}`)

	err := svc.processMessage(context.Background(), &msg)

	assert.ErrorIs(t, err, cache.err)
	assert.Empty(t, q.Acked())
}

func TestProcessMessage_AckFailure(t *testing.T) {
	q := newFakeQueue()
	q.ackErr = errors.New("connection reset")
	svc := NewService(q, &countingCache{}, 1, 0)
	msg := message("1-0", "ProductChanged", `{"product_id":3,"operation":"delete"}`)

	assert.ErrorIs(t, svc.processMessage(context.Background(), &msg), q.ackErr)
}

func TestDecodeMessage_MarksMalformed(t *testing.T) {
	msg := message("1-0", "CategoryChanged", `not json`)

	_, err := decodeMessage(&msg)

	assert.ErrorIs(t, err, errMalformed)
}

func TestPublish_ValidatesFirst(t *testing.T) {
	q := newFakeQueue()
	svc := NewService(q, &countingCache{}, 1, 0)

	_, err := svc.Publish(context.Background(), &event.CategoryChanged{Operation: event.OpCreate})
	assert.Error(t, err)
	assert.Empty(t, q.published)

	id, err := svc.Publish(context.Background(), &event.CategoryChanged{CategoryID: 4, Operation: event.OpCreate})
	require.NoError(t, err)
	assert.Equal(t, "1-0", id)
	assert.Len(t, q.published, 1)
}

func TestRunWorkers_ConsumesUntilCancelled(t *testing.T) {
	q := newFakeQueue(
		message("1-0", "CategoryChanged", `{"category_id":12,"operation":"update"}`),
		message("2-0", "ProductChanged", `{"product_id":100,"operation":"move"}`),
		message("3-0", "CategoryChanged", `garbage`),
	)
	cache := &countingCache{}
	svc := NewService(q, cache, 2, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunWorkers(ctx) }()

	require.Eventually(t, func() bool { return len(q.Acked()) == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}
	assert.Equal(t, int32(2), cache.calls.Load())
	assert.ElementsMatch(t, []string{"1-0", "2-0", "3-0"}, q.Acked())
}

func TestWork_BacksOffOnReadError(t *testing.T) {
	q := newFakeQueue()
	q.readErr = errors.New("connection refused")
	svc := NewService(q, &countingCache{}, 1, 0)
	svc.readBackoff = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	svc.work(ctx, 1)

	assert.GreaterOrEqual(t, q.reads.Load(), int32(2))
	assert.LessOrEqual(t, q.reads.Load(), int32(4))
}
