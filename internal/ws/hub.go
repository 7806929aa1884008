package ws

import (
	"slices"
	"sync"

	"github.com/sujalbistaa/blurtbox/internal/events"
)

// delivery is either a decoded event for the subscribers or a callback
// (an acknowledgement) to run on the hub goroutine.
type delivery struct {
	event events.Event
	fn    func()
}

// Hub fans inbound events out to subscribers from a single goroutine, so
// handlers see events one at a time and in arrival order.
type Hub struct {
	inbound chan delivery
	done    chan struct{}
	stop    sync.Once

	mu   sync.RWMutex
	subs map[uint64]events.Handler
	next uint64
}

func NewHub() *Hub {
	return &Hub{
		inbound: make(chan delivery, 256),
		done:    make(chan struct{}),
		subs:    make(map[uint64]events.Handler),
	}
}

// Run dispatches until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case d := <-h.inbound:
			h.dispatch(d)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) dispatch(d delivery) {
	if d.fn != nil {
		d.fn()
		return
	}
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]events.Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, h.subs[id])
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(d.event)
	}
}

// Publish queues ev for delivery. It returns false once the hub stopped.
func (h *Hub) Publish(ev events.Event) bool {
	return h.enqueue(delivery{event: ev})
}

// Do runs fn on the hub goroutine, ordered with events.
func (h *Hub) Do(fn func()) bool {
	return h.enqueue(delivery{fn: fn})
}

func (h *Hub) enqueue(d delivery) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.inbound <- d:
		return true
	case <-h.done:
		return false
	}
}

// Subscribe registers fn. Handlers run in registration order.
func (h *Hub) Subscribe(fn events.Handler) events.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.subs[id] = fn
	return &subscription{hub: h, id: id}
}

// Subscribers is the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stop ends Run. Queued deliveries are dropped.
func (h *Hub) Stop() {
	h.stop.Do(func() { close(h.done) })
}

type subscription struct {
	hub  *Hub
	id   uint64
	once sync.Once
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
	})
}
