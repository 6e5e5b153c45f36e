// Package bus carries the daemon's in-process events: status transitions of
// the daemon and sync notifications (dialog lists refreshed, message pages
// cached, topic lists resolved, topic scans that could not isolate a topic).
// The WatchEvents stream and the TUI status bar subscribe to it by kind prefix.
package bus

import (
	"strings"
	"sync"
)

// Bus fans events out to subscribers by kind prefix. A slow subscriber loses
// events rather than stalling the sync component that published them.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	namespace string
	ch        chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends evt to every subscriber whose namespace is a prefix of its
// kind. Publishing on a nil Bus is a no-op, so sync components built without
// a bus need no guard.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
				// Subscriber is full; drop.
			}
		}
	}
}

// Subscribe returns a channel receiving events whose kind starts with
// namespace ("sync.", "daemon.", or "" for everything) and a function that
// cancels the subscription. bufSize is the channel buffer.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
