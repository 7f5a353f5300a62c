package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one admitted live channel.
// Implementations must be comparable (pointer types) and safe for concurrent use.
type Subscriber interface {
	ID() uuid.UUID
	// Send writes one serialized envelope, honoring ctx's deadline.
	Send(ctx context.Context, payload []byte) error
	// Close terminates the channel. It must be idempotent and must not block.
	Close(reason string)
}

// Registry maps project IDs to the set of subscribers watching them.
// A subscriber is in at most one room; empty rooms are deleted immediately.
// All methods are safe for concurrent use and do no I/O under the lock.
type Registry struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]map[Subscriber]struct{}
	byClient map[Subscriber]uuid.UUID
	metrics  *Metrics
}

// NewRegistry creates an empty Registry. metrics may be nil.
func NewRegistry(metrics *Metrics) *Registry {
	return &Registry{
		rooms:    make(map[uuid.UUID]map[Subscriber]struct{}),
		byClient: make(map[Subscriber]uuid.UUID),
		metrics:  metrics,
	}
}

// Add puts sub into the room for projectID, creating the room if needed.
// If sub is already in another room it is moved.
func (r *Registry) Add(projectID uuid.UUID, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.byClient[sub]; ok {
		if current == projectID {
			return
		}
		r.removeLocked(current, sub)
	}

	room, ok := r.rooms[projectID]
	if !ok {
		room = make(map[Subscriber]struct{})
		r.rooms[projectID] = room
	}
	room[sub] = struct{}{}
	r.byClient[sub] = projectID

	r.metrics.setOccupancy(len(r.byClient), len(r.rooms))
}

// Remove takes sub out of the room for projectID. Removing a subscriber that
// is not in that room is a no-op. Reports whether anything was removed.
func (r *Registry) Remove(projectID uuid.UUID, sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byClient[sub]
	if !ok || current != projectID {
		return false
	}
	r.removeLocked(projectID, sub)

	r.metrics.setOccupancy(len(r.byClient), len(r.rooms))
	return true
}

// removeLocked requires byClient[sub] == projectID.
func (r *Registry) removeLocked(projectID uuid.UUID, sub Subscriber) {
	room, ok := r.rooms[projectID]
	if !ok {
		panic(fmt.Errorf("%w: subscriber %s indexed in missing room %s", ErrRegistryCorruption, sub.ID(), projectID))
	}
	if _, ok := room[sub]; !ok {
		panic(fmt.Errorf("%w: subscriber %s absent from room %s", ErrRegistryCorruption, sub.ID(), projectID))
	}

	delete(room, sub)
	delete(r.byClient, sub)
	if len(room) == 0 {
		delete(r.rooms, projectID)
	}
}

// Snapshot returns a copy of the room's subscribers. The copy is safe to
// iterate while the registry keeps changing. Unknown rooms yield nil.
func (r *Registry) Snapshot(projectID uuid.UUID) []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[projectID]
	if len(room) == 0 {
		return nil
	}
	subs := make([]Subscriber, 0, len(room))
	for sub := range room {
		subs = append(subs, sub)
	}
	return subs
}

// Len returns the number of subscribers in the room for projectID.
func (r *Registry) Len(projectID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[projectID])
}

// RoomCount returns the number of non-empty rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Total returns the number of subscribers across all rooms.
func (r *Registry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byClient)
}

// Rooms returns the IDs of all non-empty rooms in no particular order.
func (r *Registry) Rooms() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}
