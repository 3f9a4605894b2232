package tcp

import (
	"context"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ODCA117/ratchat/internal/core"
	"github.com/ODCA117/ratchat/internal/proto"
	"github.com/ODCA117/ratchat/internal/session"
)

func startServer(t *testing.T) (addr string, sessions *session.Server, stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := core.NewHub(core.Options{}, nil)
	sessions = session.NewServer(hub, session.Config{}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	listener := NewListener("", sessions, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = hub.Run(ctx)
	}()
	serveErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		serveErr <- listener.Serve(ctx, ln)
	}()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			cancel()
			require.NoError(t, <-serveErr)
			wg.Wait()
		})
	}
	t.Cleanup(stop)
	return ln.Addr().String(), sessions, stop
}

type tcpPeer struct {
	conn net.Conn
	r    *proto.Reader
	w    *proto.Writer
}

func dial(t *testing.T, addr, name string) (*tcpPeer, uint32) {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	p := &tcpPeer{conn: conn, r: proto.NewReader(conn, 0), w: proto.NewWriter(conn, 0)}
	require.NoError(t, p.w.WritePacket(proto.Connect{Name: name}))

	pkt, err := p.r.ReadPacket()
	require.NoError(t, err)
	welcome, ok := pkt.(proto.Welcome)
	require.True(t, ok)
	return p, welcome.ClientID
}

func TestListenerRelaysBetweenClients(t *testing.T) {
	addr, _, _ := startServer(t)

	alice, aliceID := dial(t, addr, "alice")
	bob, bobID := dial(t, addr, "bob")
	require.Equal(t, uint32(0), aliceID)
	require.Equal(t, uint32(1), bobID)

	require.NoError(t, alice.w.WritePacket(proto.Message{Text: "hello over tcp"}))

	pkt, err := bob.r.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, proto.Message{SenderID: aliceID, Text: "hello over tcp"}, pkt)
}

func TestListenerStopSendsDisconnect(t *testing.T) {
	addr, sessions, stop := startServer(t)

	alice, _ := dial(t, addr, "alice")
	stop()

	pkt, err := alice.r.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, proto.Disconnect{}, pkt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sessions.Wait(ctx))

	_, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
	require.Error(t, err)
}

func TestListenerRunReportsBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	l := NewListener(ln.Addr().String(), nil, nil)
	require.Error(t, l.Run(context.Background()))
	require.Nil(t, l.Addr())
}

// flakyListener fails its first Accept with EMFILE, then hands out one pipe
// connection and blocks until closed.
type flakyListener struct {
	mu     sync.Mutex
	calls  int
	conn   net.Conn
	closed chan struct{}
	once   sync.Once
}

func (l *flakyListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	l.calls++
	call := l.calls
	l.mu.Unlock()

	switch call {
	case 1:
		return nil, &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.EMFILE)}
	case 2:
		return l.conn, nil
	default:
		<-l.closed
		return nil, net.ErrClosed
	}
}

func (l *flakyListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *flakyListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

type acceptRecorder struct {
	conns chan net.Conn
}

func (a *acceptRecorder) Accept(_ context.Context, conn net.Conn, transport string) {
	if transport == Transport {
		a.conns <- conn
	}
}

func TestListenerSurvivesTransientAcceptError(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	ln := &flakyListener{conn: server, closed: make(chan struct{})}
	rec := &acceptRecorder{conns: make(chan net.Conn, 1)}
	l := NewListener("", rec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- l.Serve(ctx, ln) }()

	select {
	case got := <-rec.conns:
		require.Equal(t, server, got)
	case err := <-serveErr:
		t.Fatalf("serve returned after a transient error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("connection after the failed accept was never handed over")
	}

	cancel()
	select {
	case err := <-serveErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
}
