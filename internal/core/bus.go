package core

import (
	"sync"
	"sync/atomic"
)

// Bus is the single-producer, many-consumer fan-out channel. Only the relay
// publishes; every session holds one Subscription.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

// Subscription is an independent cursor on the bus. It observes only messages
// published after it was created.
type Subscription struct {
	bus    *Bus
	ch     chan ChatMessage
	lagged atomic.Bool
}

// NewBus creates a bus whose subscriptions buffer up to buffer messages.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new subscription. Subscribing to a closed bus returns
// an already closed subscription.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{bus: b, ch: make(chan ChatMessage, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers msg to every subscription without blocking. A subscription
// whose buffer is full is evicted and its channel closed, so its owner sees
// the end of the stream instead of a silent gap.
func (b *Bus) Publish(msg ChatMessage) (delivered, evicted int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			sub.lagged.Store(true)
			delete(b.subs, sub)
			close(sub.ch)
			evicted++
		}
	}
	return delivered, evicted
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan ChatMessage {
	return s.ch
}

// Lagged reports whether the subscription was evicted for falling behind.
func (s *Subscription) Lagged() bool {
	return s.lagged.Load()
}

// Close removes the subscription from the bus. It is safe to call repeatedly.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}
