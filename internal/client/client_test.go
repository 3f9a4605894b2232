package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ODCA117/ratchat/internal/core"
	"github.com/ODCA117/ratchat/internal/proto"
	"github.com/ODCA117/ratchat/internal/session"
	"github.com/ODCA117/ratchat/internal/transport/tcp"
)

func startRelay(t *testing.T) (string, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := core.NewHub(core.Options{}, nil)
	sessions := session.NewServer(hub, session.Config{}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{}, 2)
	go func() {
		_ = hub.Run(ctx)
		done <- struct{}{}
	}()
	go func() {
		_ = tcp.NewListener("", sessions, nil).Serve(ctx, ln)
		done <- struct{}{}
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		<-done
	})
	return ln.Addr().String(), cancel
}

func join(t *testing.T, addr, name string) *Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Join(ctx, name)
	require.NoError(t, err)
	return c
}

func TestClientsExchangeMessages(t *testing.T) {
	addr, _ := startRelay(t)

	alice := join(t, addr, "alice")
	bob := join(t, addr, "bob")
	require.Equal(t, uint32(0), alice.ID())
	require.Equal(t, uint32(1), bob.ID())

	require.NoError(t, bob.Send("hey alice"))

	msg, err := alice.Receive()
	require.NoError(t, err)
	require.Equal(t, proto.Message{SenderID: 1, Text: "hey alice"}, msg)
}

func TestReceiveReportsServerGoodbye(t *testing.T) {
	addr, stop := startRelay(t)

	alice := join(t, addr, "alice")
	stop()

	_, err := alice.Receive()
	require.ErrorIs(t, err, ErrServerClosed)
}

func TestDisconnectFreesID(t *testing.T) {
	addr, _ := startRelay(t)

	alice := join(t, addr, "alice")
	require.NoError(t, alice.Disconnect())

	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		c, err := Dial(ctx, addr)
		if err != nil {
			return false
		}
		defer c.Close()
		id, err := c.Join(ctx, "bob")
		return err == nil && id == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestJoinRejectsUnexpectedPacket(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	go func() {
		r := proto.NewReader(serverConn, 0)
		w := proto.NewWriter(serverConn, 0)
		if _, err := r.ReadPacket(); err != nil {
			return
		}
		_ = w.WritePacket(proto.Message{Text: "not a welcome"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(clientConn).Join(ctx, "alice")
	require.ErrorIs(t, err, ErrUnexpectedPacket)
}
