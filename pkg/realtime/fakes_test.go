package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// fakeSubscriber records payloads. sendErr makes every Send fail; block makes
// Send wait until block is closed or ctx ends.
type fakeSubscriber struct {
	id      uuid.UUID
	sendErr error
	block   chan struct{}

	mu         sync.Mutex
	received   [][]byte
	closeCount int
	closeMsg   string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{id: uuid.New()}
}

func (f *fakeSubscriber) ID() uuid.UUID { return f.id }

func (f *fakeSubscriber) Send(ctx context.Context, payload []byte) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, append([]byte(nil), payload...))
	return nil
}

func (f *fakeSubscriber) Close(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	f.closeMsg = reason
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func (f *fakeSubscriber) closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount > 0
}

func (f *fakeSubscriber) envelopes() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, 0, len(f.received))
	for _, raw := range f.received {
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			panic(err)
		}
		out = append(out, env)
	}
	return out
}

// seqEnvelope is a test event carrying a sequence number.
func seqEnvelope(n int) Envelope {
	return Envelope{Event: EventStatusChanged, Data: map[string]any{"seq": n}}
}
