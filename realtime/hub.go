// Package realtime fans domain events out to live listeners such as
// WebSocket clients of the game UI.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"wastewise/core"
)

type subscriber struct {
	ch    chan core.Event
	types map[core.EventType]struct{} // empty means all
}

// Hub is a simple pub/sub for broadcasting events to channels. Slow
// listeners lose events rather than blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	dropped atomic.Int64
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe returns a channel receiving events of the given types, or of
// every type when none are given.
func (h *Hub) Subscribe(buffer int, types ...core.EventType) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	sub := subscriber{ch: make(chan core.Event, buffer)}
	if len(types) > 0 {
		sub.types = make(map[core.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	h.subs[id] = sub
	return id, sub.ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Close ends every subscription. Listeners see their channel closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Broadcast never blocks.
func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	// sends happen under the read lock so Unsubscribe cannot close a
	// channel mid-send
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.types != nil {
			if _, ok := sub.types[ev.Type]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Len is the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts events discarded because a listener was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Source is anything that can deliver every domain event to a handler,
// such as engine.EventBus or engine.Service.
type Source interface {
	SubscribeAll(handler func(context.Context, core.Event)) func()
}

// Attach forwards every event from src to the hub. The returned func
// detaches it.
func (h *Hub) Attach(src Source) func() {
	return src.SubscribeAll(h.Broadcast)
}

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
