package bus

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Bus is an in-process publish/subscribe event bus. Fan-out is
// synchronous in publish order and non-blocking: a subscriber whose
// buffer is full misses the event rather than stalling the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	next   int
	closed bool
	logger *zap.Logger
}

// Filter selects which events a subscription receives.
type Filter func(Event) bool

type subscription struct {
	filter Filter
	ch     chan Event
}

// New creates a new event bus.
func New(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]*subscription),
		logger: logger,
	}
}

// Publish sends the payload to all subscribers whose filter matches.
// Publishing on a closed bus is a logged no-op.
func (b *Bus) Publish(p Payload) {
	evt := Event{Kind: p.Kind(), Timestamp: time.Now(), Payload: p}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		if b.logger != nil {
			b.logger.Warn("publish on closed bus", zap.String("kind", string(evt.Kind)))
		}
		return
	}
	for _, sub := range b.subs {
		if sub.filter(evt) {
			select {
			case sub.ch <- evt:
			default:
				// Drop event if subscriber is full (non-blocking).
			}
		}
	}
}

// Subscribe returns a channel that receives events matching the filter.
// bufSize controls the channel buffer. Returns the channel and an
// unsubscribe function. A nil filter matches everything.
func (b *Bus) Subscribe(filter Filter, bufSize int) (<-chan Event, func()) {
	if filter == nil {
		filter = func(Event) bool { return true }
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = &subscription{filter: filter, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
		b.mu.Unlock()
	}
}

// Close terminates all subscriptions and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// KindIn builds a filter matching any of the given kinds.
func KindIn(kinds ...Kind) Filter {
	return func(evt Event) bool {
		for _, k := range kinds {
			if evt.Kind == k {
				return true
			}
		}
		return false
	}
}

// ForOwner builds a filter matching events whose payload carries the
// given owner id. Payloads without one (status, balances) never match.
func ForOwner(ownerID string) Filter {
	return func(evt Event) bool {
		switch p := evt.Payload.(type) {
		case EntityMutated:
			return p.OwnerID == ownerID
		case UploadSucceeded:
			return p.OwnerID == ownerID
		case UploadFailed:
			return p.OwnerID == ownerID
		case ReconcilePulled:
			return p.OwnerID == ownerID
		}
		return false
	}
}
