package core

import (
	"context"
	"sync"
)

// Client is a registered chat participant as seen by the core layer. It
// bundles the registry record with the session's bus subscription and its
// send-handle into the ingestion queue.
type Client struct {
	ClientRecord

	sub       *Subscription
	queue     *IngestQueue
	registry  *Registry
	leaveOnce sync.Once
}

// Publish enqueues a chat message on behalf of this client. The sender id is
// always overwritten with the client's own id.
func (c *Client) Publish(ctx context.Context, msg ChatMessage) error {
	msg.SenderID = c.ID
	msg.origin = c.sub
	return c.queue.Send(ctx, msg)
}

// Sent reports whether msg was published by this client. A later client that
// inherits the same id does not count as the sender.
func (c *Client) Sent(msg ChatMessage) bool {
	return msg.origin == c.sub
}

// Messages delivers relayed messages. The channel is closed when the client
// leaves, lags behind, or the hub stops.
func (c *Client) Messages() <-chan ChatMessage {
	return c.sub.C()
}

// Lagged reports whether the client was dropped from the bus for falling behind.
func (c *Client) Lagged() bool {
	return c.sub.Lagged()
}

// Leave releases the bus subscription and the registry entry. Only the first
// call has any effect.
func (c *Client) Leave() {
	c.leaveOnce.Do(func() {
		c.sub.Close()
		// Deregister only fails when the registry has already stopped and
		// dropped its table.
		_ = c.registry.Deregister(context.Background(), c.ID)
	})
}
