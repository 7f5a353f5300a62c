package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Defaults for DispatcherConfig zero values.
const (
	DefaultSendTimeout = 5 * time.Second
	DefaultMaxPending  = 256
)

// DispatcherConfig bounds delivery.
type DispatcherConfig struct {
	// SendTimeout bounds a single write to one subscriber.
	SendTimeout time.Duration
	// MaxPending bounds the per-room backlog of notified but undelivered events.
	MaxPending int
}

// Notifier is the one-way trigger used by the mutation path after commit.
type Notifier interface {
	Notify(projectID uuid.UUID, env Envelope)
}

// Dispatcher delivers envelopes to every subscriber of a room.
//
// Broadcast sends synchronously; Notify queues the envelope and returns at
// once. Each room has at most one drain goroutine, so events notified for a
// room reach each subscriber in the order they were notified.
type Dispatcher struct {
	registry *Registry
	metrics  *Metrics
	logger   *zap.Logger

	sendTimeout time.Duration
	maxPending  int

	// ctx is the parent of drain sends; cancelled when Close gives up waiting.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queues map[uuid.UUID]*roomQueue
	closed bool
	wg     sync.WaitGroup
}

type roomQueue struct {
	pending []Envelope
}

// NewDispatcher creates a Dispatcher over registry. metrics may be nil.
func NewDispatcher(registry *Registry, cfg DispatcherConfig, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		registry:    registry,
		metrics:     metrics,
		logger:      logger.Named("dispatcher"),
		sendTimeout: cfg.SendTimeout,
		maxPending:  cfg.MaxPending,
		ctx:         ctx,
		cancel:      cancel,
		queues:      make(map[uuid.UUID]*roomQueue),
	}
}

// Broadcast sends env to every current subscriber of projectID and waits for
// all sends to finish. A subscriber whose send fails or times out is removed
// from the registry and closed; it is not retried. An empty room is a no-op.
// Broadcast never reports failure to its caller.
func (d *Dispatcher) Broadcast(ctx context.Context, projectID uuid.UUID, env Envelope) {
	subs := d.registry.Snapshot(projectID)
	if len(subs) == 0 {
		return
	}

	payload, err := env.Marshal()
	if err != nil {
		d.logger.Error("Failed to serialize event",
			zap.String("event", string(env.Event)),
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		return
	}
	d.metrics.eventDispatched(env.Event)

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub Subscriber) {
			defer wg.Done()
			d.send(ctx, projectID, sub, payload)
		}(sub)
	}
	wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, projectID uuid.UUID, sub Subscriber, payload []byte) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	err := sub.Send(sendCtx, payload)
	if err == nil {
		d.metrics.delivery(true)
		return
	}

	d.metrics.delivery(false)
	removed := d.registry.Remove(projectID, sub)
	sub.Close("send failed")

	d.logger.Debug("Removed unreachable subscriber",
		zap.String("project_id", projectID.String()),
		zap.String("subscriber_id", sub.ID().String()),
		zap.Bool("was_registered", removed),
		zap.Error(err))
}

// Notify queues env for delivery to projectID's room and returns immediately.
// Call it only after the mutation that produced env has committed.
// When the room backlog is full the event is dropped and logged.
func (d *Dispatcher) Notify(projectID uuid.UUID, env Envelope) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Debug("Dispatcher closed, dropping event",
			zap.String("event", string(env.Event)),
			zap.String("project_id", projectID.String()))
		return
	}

	q, running := d.queues[projectID]
	if !running {
		q = &roomQueue{}
		d.queues[projectID] = q
	}
	if len(q.pending) >= d.maxPending {
		d.mu.Unlock()
		d.metrics.eventDropped()
		d.logger.Warn("Room backlog full, dropping event",
			zap.String("event", string(env.Event)),
			zap.String("project_id", projectID.String()),
			zap.Int("max_pending", d.maxPending))
		return
	}
	q.pending = append(q.pending, env)
	if !running {
		d.wg.Add(1)
		go d.drain(projectID, q)
	}
	d.mu.Unlock()
}

// drain delivers q's events in order and exits once q is empty,
// deleting the queue so idle rooms hold no goroutine.
func (d *Dispatcher) drain(projectID uuid.UUID, q *roomQueue) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		if len(q.pending) == 0 {
			delete(d.queues, projectID)
			d.mu.Unlock()
			return
		}
		env := q.pending[0]
		q.pending[0] = Envelope{}
		q.pending = q.pending[1:]
		d.mu.Unlock()

		d.Broadcast(d.ctx, projectID, env)
	}
}

// Pending returns the number of queued, undelivered events for projectID.
func (d *Dispatcher) Pending(projectID uuid.UUID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q, ok := d.queues[projectID]; ok {
		return len(q.pending)
	}
	return 0
}

// Close stops accepting events and waits for queued events to drain.
// If ctx ends first, in-flight sends are cancelled and ctx's error returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

var _ Notifier = (*Dispatcher)(nil)
