// Package client is a small relay client used by the command-line chat tool
// and by end-to-end tests.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ODCA117/ratchat/internal/proto"
)

var (
	// ErrServerClosed is returned by Receive after the server said goodbye.
	ErrServerClosed = errors.New("server closed the session")
	// ErrUnexpectedPacket is returned when the server breaks the protocol.
	ErrUnexpectedPacket = errors.New("unexpected packet")
)

// Client speaks the framed protocol over a single connection. Send and
// Receive may be used from different goroutines.
type Client struct {
	conn net.Conn
	r    *proto.Reader

	wmu sync.Mutex
	w   *proto.Writer

	id uint32
}

// Dial connects to addr. Addresses starting with ws:// or wss:// go through a
// WebSocket upgrade; anything else is a TCP host:port.
func Dial(ctx context.Context, addr string) (*Client, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		ws, _, err := websocket.Dial(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return New(websocket.NetConn(context.Background(), ws, websocket.MessageBinary)), nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		r:    proto.NewReader(conn, 0),
		w:    proto.NewWriter(conn, 0),
	}
}

// Join performs the handshake and returns the assigned client id.
func (c *Client) Join(ctx context.Context, name string) (uint32, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	if err := c.write(proto.Connect{Name: name}); err != nil {
		return 0, fmt.Errorf("send connect: %w", err)
	}

	pkt, err := c.r.ReadPacket()
	if err != nil {
		return 0, fmt.Errorf("read welcome: %w", err)
	}
	switch p := pkt.(type) {
	case proto.Welcome:
		c.id = p.ClientID
		return p.ClientID, nil
	case proto.Disconnect:
		return 0, ErrServerClosed
	default:
		return 0, fmt.Errorf("%w: %s during handshake", ErrUnexpectedPacket, pkt.Type())
	}
}

// ID returns the id assigned by Join.
func (c *Client) ID() uint32 {
	return c.id
}

// Send publishes text to every other client.
func (c *Client) Send(text string) error {
	return c.write(proto.Message{SenderID: c.id, Text: text})
}

// Receive blocks until the next relayed message.
func (c *Client) Receive() (proto.Message, error) {
	pkt, err := c.r.ReadPacket()
	if err != nil {
		return proto.Message{}, err
	}
	switch p := pkt.(type) {
	case proto.Message:
		return p, nil
	case proto.Disconnect:
		return proto.Message{}, ErrServerClosed
	default:
		return proto.Message{}, fmt.Errorf("%w: %s", ErrUnexpectedPacket, pkt.Type())
	}
}

// Disconnect says goodbye and closes the connection.
func (c *Client) Disconnect() error {
	err := c.write(proto.Disconnect{})
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close closes the connection without a goodbye.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) write(p proto.Packet) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.w.WritePacket(p)
}
