// README: Room-based fan-out bus; best-effort at-most-once delivery per subscriber.
package events

import (
	"sync"
	"time"

	"swiftcab/internal/types"
)

const subscriberBuffer = 32

type Handler func(Event)

// Subscriber is one connected client's view of the bus. Events land on a
// buffered channel; a full buffer drops the event rather than blocking the
// publisher.
type Subscriber struct {
	mu       sync.RWMutex
	handlers map[Type]Handler
	ch       chan Event
}

func NewSubscriber() *Subscriber {
	return &Subscriber{
		handlers: make(map[Type]Handler),
		ch:       make(chan Event, subscriberBuffer),
	}
}

// On registers a handler for an event type. Registering again for the same
// type replaces the previous handler, so a reconnect never stacks duplicates.
func (s *Subscriber) On(t Type, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[t] = h
}

// Off removes the handler for an event type.
func (s *Subscriber) Off(t Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, t)
}

// Events exposes the raw delivery channel for transports that pump events to
// a socket instead of dispatching handlers.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Dispatch invokes the registered handler for the event, if any.
func (s *Subscriber) Dispatch(ev Event) {
	s.mu.RLock()
	h := s.handlers[ev.Type]
	s.mu.RUnlock()
	if h != nil {
		h(ev)
	}
}

func (s *Subscriber) offer(ev Event) {
	select {
	case s.ch <- ev:
	default:
	}
}

// Bridge mirrors published events to an external broker.
type Bridge interface {
	Publish(Event) error
}

// Bus routes events to per-user, per-driver, and admin rooms.
type Bus struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Subscriber]struct{}
	bridge Bridge
}

func NewBus(bridge Bridge) *Bus {
	return &Bus{
		rooms:  make(map[string]map[*Subscriber]struct{}),
		bridge: bridge,
	}
}

func UserRoom(id types.ID) string   { return "user:" + string(id) }
func DriverRoom(id types.ID) string { return "driver:" + string(id) }

const AdminRoom = "admin"

// JoinUserRoom subscribes sub to a user's room. Joining twice is a no-op.
func (b *Bus) JoinUserRoom(id types.ID, sub *Subscriber) { b.join(UserRoom(id), sub) }

// JoinDriverRoom subscribes sub to a driver's room. Joining twice is a no-op.
func (b *Bus) JoinDriverRoom(id types.ID, sub *Subscriber) { b.join(DriverRoom(id), sub) }

// JoinAdminRoom subscribes sub to the admin broadcast room.
func (b *Bus) JoinAdminRoom(sub *Subscriber) { b.join(AdminRoom, sub) }

func (b *Bus) join(room string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.rooms[room]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		b.rooms[room] = subs
	}
	subs[sub] = struct{}{}
}

// Leave removes sub from every room it joined.
func (b *Bus) Leave(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for room, subs := range b.rooms {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.rooms, room)
		}
	}
}

// Publish fans the event out to the affected user's room, the bound driver's
// room, and always the admin room. A subscriber in several target rooms
// receives the event once. Delivery never blocks the caller.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	targets := make(map[*Subscriber]struct{})
	b.mu.RLock()
	b.collect(UserRoom(ev.UserID), targets)
	if ev.DriverID != nil && *ev.DriverID != "" {
		b.collect(DriverRoom(*ev.DriverID), targets)
	}
	b.collect(AdminRoom, targets)
	b.mu.RUnlock()

	for sub := range targets {
		sub.offer(ev)
	}

	if b.bridge != nil {
		go func() { _ = b.bridge.Publish(ev) }()
	}
}

func (b *Bus) collect(room string, into map[*Subscriber]struct{}) {
	for sub := range b.rooms[room] {
		into[sub] = struct{}{}
	}
}
