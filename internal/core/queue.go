package core

import (
	"context"
	"sync"
)

// IngestQueue is the bounded many-producer, single-consumer channel that
// carries chat messages from sessions to the relay.
type IngestQueue struct {
	ch        chan ChatMessage
	closed    chan struct{}
	closeOnce sync.Once
}

// NewIngestQueue creates a queue holding up to size pending messages.
func NewIngestQueue(size int) *IngestQueue {
	if size <= 0 {
		size = 256
	}
	return &IngestQueue{
		ch:     make(chan ChatMessage, size),
		closed: make(chan struct{}),
	}
}

// Send enqueues msg, suspending while the queue is full.
func (q *IngestQueue) Send(ctx context.Context, msg ChatMessage) error {
	select {
	case <-q.closed:
		return ErrHubClosed
	default:
	}

	select {
	case q.ch <- msg:
		return nil
	case <-q.closed:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive dequeues the next message, suspending while the queue is empty.
func (q *IngestQueue) Receive(ctx context.Context) (ChatMessage, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-q.closed:
		return ChatMessage{}, ErrHubClosed
	case <-ctx.Done():
		return ChatMessage{}, ctx.Err()
	}
}

// Len reports the number of pending messages.
func (q *IngestQueue) Len() int {
	return len(q.ch)
}

// Close stops the queue. Pending messages are discarded.
func (q *IngestQueue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}
