// Package events defines the driftwatch event model and the in-memory
// publish/subscribe bus that every monitor and detector communicates over.
package events

import (
	"fmt"
	"os"
	"sync"
)

// Handler is a subscriber callback. Handlers run synchronously on the
// publisher's goroutine, in subscription order. A handler that panics is
// contained at the bus and never affects the publisher or other handlers.
type Handler func(*Event)

// Subscription identifies a registered handler so it can be removed later.
type Subscription struct {
	id        int
	eventType EventType // empty means all events
}

type subscriber struct {
	id      int
	handler Handler
}

// Bus is the central event bus. Publish appends to a bounded history buffer
// under the lock, then fans out to the subscribers registered at that moment.
// Handlers run on the publisher's goroutine with the lock released, so a
// handler may itself publish follow-up events.
//
// The bus is constructed once by the daemon and injected into every
// component; there is no package-level singleton.
type Bus struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[EventType][]subscriber
	wildcard    []subscriber
	history     []*Event
	maxHistory  int
}

// DefaultMaxHistory is the event history bound used when NewBus is given a
// non-positive value.
const DefaultMaxHistory = 1000

// NewBus creates an event bus retaining up to maxHistory events.
func NewBus(maxHistory int) *Bus {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Bus{
		subscribers: make(map[EventType][]subscriber),
		maxHistory:  maxHistory,
	}
}

// Publish records the event in history and delivers it to every subscriber
// registered for its type plus every wildcard subscriber, in subscription
// order. Handler panics are reported to stderr and swallowed.
func (b *Bus) Publish(event *Event) {
	if event == nil {
		return
	}

	b.mu.Lock()
	b.history = append(b.history, event)
	if len(b.history) > b.maxHistory {
		// Copy rather than reslice so evicted events can be collected.
		trimmed := make([]*Event, b.maxHistory)
		copy(trimmed, b.history[len(b.history)-b.maxHistory:])
		b.history = trimmed
	}

	typed := b.subscribers[event.Type]
	targets := make([]subscriber, 0, len(typed)+len(b.wildcard))
	targets = append(targets, typed...)
	targets = append(targets, b.wildcard...)
	b.mu.Unlock()

	for _, sub := range targets {
		b.invoke(sub, event)
	}
}

// invoke runs a single handler, containing panics at the call site.
func (b *Bus) invoke(sub subscriber, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "driftwatch: event subscriber panic on %s: %v\n", event.Type, r)
		}
	}()
	sub.handler(event)
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscriber{id: b.nextID, handler: handler}
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
	return Subscription{id: sub.id, eventType: eventType}
}

// SubscribeAll registers a handler for every event regardless of type.
func (b *Bus) SubscribeAll(handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscriber{id: b.nextID, handler: handler}
	b.wildcard = append(b.wildcard, sub)
	return Subscription{id: sub.id}
}

// Unsubscribe removes a previously registered handler. Unknown subscriptions
// are a no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.eventType == "" {
		b.wildcard = removeSubscriber(b.wildcard, sub.id)
		return
	}
	b.subscribers[sub.eventType] = removeSubscriber(b.subscribers[sub.eventType], sub.id)
}

func removeSubscriber(subs []subscriber, id int) []subscriber {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// Recent returns the most recent events, newest first. A zero or negative
// limit means "all retained events". An empty typeFilter matches every type.
func (b *Bus) Recent(limit int, typeFilter EventType) []*Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	matched := b.history
	if typeFilter != "" {
		matched = make([]*Event, 0, len(b.history))
		for _, e := range b.history {
			if e.Type == typeFilter {
				matched = append(matched, e)
			}
		}
	}

	if limit <= 0 || limit > len(matched) {
		limit = len(matched)
	}

	out := make([]*Event, limit)
	for i := 0; i < limit; i++ {
		out[i] = matched[len(matched)-1-i]
	}
	return out
}

// Count returns the number of retained events, optionally filtered by type.
func (b *Bus) Count(typeFilter EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if typeFilter == "" {
		return len(b.history)
	}
	n := 0
	for _, e := range b.history {
		if e.Type == typeFilter {
			n++
		}
	}
	return n
}

// ClearHistory drops all retained events. Subscriptions are unaffected.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}
