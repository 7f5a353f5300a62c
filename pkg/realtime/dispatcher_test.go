package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newTestDispatcher(t *testing.T, cfg DispatcherConfig) (*Dispatcher, *Registry, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	registry := NewRegistry(metrics)
	d := NewDispatcher(registry, cfg, metrics, zaptest.NewLogger(t))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})
	return d, registry, metrics
}

func TestDispatcher_BroadcastEmptyRoomIsNoop(t *testing.T) {
	d, _, metrics := newTestDispatcher(t, DispatcherConfig{})

	assert.NotPanics(t, func() {
		d.Broadcast(context.Background(), uuid.New(), seqEnvelope(1))
	})
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.events.WithLabelValues(string(EventStatusChanged))))
}

func TestDispatcher_BroadcastRemovesFailingSubscriber(t *testing.T) {
	d, registry, metrics := newTestDispatcher(t, DispatcherConfig{})
	room := uuid.New()

	good1, good2 := newFakeSubscriber(), newFakeSubscriber()
	bad := newFakeSubscriber()
	bad.sendErr = errors.New("connection reset")

	registry.Add(room, good1)
	registry.Add(room, bad)
	registry.Add(room, good2)

	d.Broadcast(context.Background(), room, seqEnvelope(1))

	assert.Equal(t, 1, good1.count())
	assert.Equal(t, 1, good2.count())
	assert.Equal(t, 0, bad.count())
	assert.True(t, bad.closed())
	assert.False(t, good1.closed())

	snap := registry.Snapshot(room)
	assert.Len(t, snap, 2)
	assert.NotContains(t, snap, Subscriber(bad))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.deliveries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.deliveries.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.subscribers))

	// The next event only goes to the survivors and is not retried for bad.
	d.Broadcast(context.Background(), room, seqEnvelope(2))
	assert.Equal(t, 2, good1.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.deliveries.WithLabelValues("failed")))
}

func TestDispatcher_SlowSubscriberTimesOut(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, DispatcherConfig{SendTimeout: 50 * time.Millisecond})
	room := uuid.New()

	fast := newFakeSubscriber()
	stalled := newFakeSubscriber()
	stalled.block = make(chan struct{}) // never released

	registry.Add(room, fast)
	registry.Add(room, stalled)

	start := time.Now()
	d.Broadcast(context.Background(), room, seqEnvelope(1))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, fast.count())
	assert.True(t, stalled.closed())
	assert.Equal(t, 1, registry.Len(room))
}

func TestDispatcher_NotifyPreservesOrder(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, DispatcherConfig{})
	room := uuid.New()
	sub := newFakeSubscriber()
	registry.Add(room, sub)

	const n = 100
	for i := 0; i < n; i++ {
		d.Notify(room, seqEnvelope(i))
	}

	require.Eventually(t, func() bool { return sub.count() == n }, 5*time.Second, 5*time.Millisecond)

	for i, env := range sub.envelopes() {
		assert.Equal(t, float64(i), env.Data["seq"], "event %d out of order", i)
	}

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.queues) == 0
	}, time.Second, 5*time.Millisecond, "idle room must not keep a queue")
}

func TestDispatcher_NotifyDropsWhenBacklogFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	metrics := NewMetrics(prometheus.NewRegistry())
	registry := NewRegistry(metrics)
	d := NewDispatcher(registry, DispatcherConfig{SendTimeout: 10 * time.Second, MaxPending: 2}, metrics, zap.New(core))

	room := uuid.New()
	sub := newFakeSubscriber()
	sub.block = make(chan struct{})
	registry.Add(room, sub)

	d.Notify(room, seqEnvelope(0))
	// Wait until the drain goroutine has taken event 0 and is blocked sending it.
	require.Eventually(t, func() bool { return d.Pending(room) == 0 }, time.Second, time.Millisecond)

	d.Notify(room, seqEnvelope(1))
	d.Notify(room, seqEnvelope(2))
	d.Notify(room, seqEnvelope(3)) // backlog full

	assert.Equal(t, 2, d.Pending(room))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.dropped))
	assert.Equal(t, 1, logs.FilterMessage("Room backlog full, dropping event").Len())

	close(sub.block)
	require.Eventually(t, func() bool { return sub.count() == 3 }, time.Second, 5*time.Millisecond)

	seqs := make([]float64, 0, 3)
	for _, env := range sub.envelopes() {
		seqs = append(seqs, env.Data["seq"].(float64))
	}
	assert.Equal(t, []float64{0, 1, 2}, seqs)

	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_RoomsAreIndependent(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, DispatcherConfig{SendTimeout: 10 * time.Second})
	slowRoom, fastRoom := uuid.New(), uuid.New()

	stalled := newFakeSubscriber()
	stalled.block = make(chan struct{})
	defer close(stalled.block)
	registry.Add(slowRoom, stalled)

	fast := newFakeSubscriber()
	registry.Add(fastRoom, fast)

	d.Notify(slowRoom, seqEnvelope(1))
	d.Notify(fastRoom, seqEnvelope(1))

	require.Eventually(t, func() bool { return fast.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_CloseStopsAccepting(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, DispatcherConfig{})
	room := uuid.New()
	sub := newFakeSubscriber()
	registry.Add(room, sub)

	d.Notify(room, seqEnvelope(1))
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, sub.count(), "queued events drain before Close returns")

	d.Notify(room, seqEnvelope(2))
	assert.Equal(t, 0, d.Pending(room))
	assert.Equal(t, 1, sub.count())
}

func TestDispatcher_CloseCancelsStalledSends(t *testing.T) {
	d, registry, _ := newTestDispatcher(t, DispatcherConfig{SendTimeout: time.Minute})
	room := uuid.New()
	stalled := newFakeSubscriber()
	stalled.block = make(chan struct{})
	registry.Add(room, stalled)

	d.Notify(room, seqEnvelope(1))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, stalled.closed())
	assert.Equal(t, 0, registry.Len(room))
}
