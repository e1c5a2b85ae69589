package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// busCapacity bounds each subscriber's buffered channel. A slow subscriber
// loses messages past this point rather than stalling publishers.
const busCapacity = 1024

// Bus is a workspace-scoped, multi-producer multi-consumer broadcast fan-out.
// Each workspace gets its own set of subscriber channels, created lazily on
// first subscribe.
type Bus struct {
	mu     sync.RWMutex
	topics map[uuid.UUID]*topic
	log    zerolog.Logger
}

type topic struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan Envelope
}

// NewBus constructs an empty Bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		topics: make(map[uuid.UUID]*topic),
		log:    logger.With().Str("component", "realtime.bus").Logger(),
	}
}

// Subscription is a live subscriber handle. A read from C blocks until the
// next event or until the bus closes the channel (Unsubscribe was called, or
// never: topics are never force-closed while the process is up).
type Subscription struct {
	C chan Envelope

	bus         *Bus
	workspaceID uuid.UUID
	id          uint64
}

// Subscribe registers a new subscriber for workspaceID and returns a handle
// whose C channel receives every event Publish()ed for that workspace from
// this point on.
func (b *Bus) Subscribe(workspaceID uuid.UUID) *Subscription {
	b.mu.Lock()
	t, ok := b.topics[workspaceID]
	if !ok {
		t = &topic{subs: make(map[uint64]chan Envelope)}
		b.topics[workspaceID] = t
	}
	b.mu.Unlock()

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	ch := make(chan Envelope, busCapacity)
	t.subs[id] = ch
	t.mu.Unlock()

	return &Subscription{C: ch, bus: b, workspaceID: workspaceID, id: id}
}

// Unsubscribe removes the subscription. The channel is closed so a reader
// blocked on it terminates.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.RLock()
	t, ok := s.bus.topics[s.workspaceID]
	s.bus.mu.RUnlock()
	if !ok {
		return
	}

	t.mu.Lock()
	if ch, ok := t.subs[s.id]; ok {
		delete(t.subs, s.id)
		close(ch)
	}
	t.mu.Unlock()
}

// Publish delivers env to every current subscriber of workspaceID. A
// subscriber whose buffer is full is skipped rather than blocked; the event
// is dropped for that subscriber and a warning is logged, but it remains
// attached to receive future events.
func (b *Bus) Publish(workspaceID uuid.UUID, env Envelope) {
	b.mu.RLock()
	t, ok := b.topics[workspaceID]
	b.mu.RUnlock()
	if !ok {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for id, ch := range t.subs {
		select {
		case ch <- env:
		default:
			b.log.Warn().Uint64("subscriber_id", id).Str("event_type", string(env.EventType)).Msg("subscriber lagging, event dropped")
		}
	}
}
