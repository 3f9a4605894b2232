package http

import (
	"context"
	"encoding/json"
	"net"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/ODCA117/ratchat/internal/core"
	"github.com/ODCA117/ratchat/internal/metrics"
	"github.com/ODCA117/ratchat/internal/proto"
	"github.com/ODCA117/ratchat/internal/session"
	"github.com/ODCA117/ratchat/internal/store"
	"github.com/ODCA117/ratchat/internal/store/sqlite"
)

type testEnv struct {
	ts      *httptest.Server
	hub     *core.Hub
	journal store.Journal
	metrics *metrics.Metrics
	cancel  context.CancelFunc
}

func startTestServer(t *testing.T, withJournal bool) *testEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	m := metrics.New()
	hub := core.NewHub(core.Options{}, nil, m)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = hub.Run(ctx)
	}()

	hooks := []session.Hook{m}
	var journal store.Journal
	if withJournal {
		st, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		journal = st
		hooks = append(hooks, session.NewJournalHook(st, nil))
	}
	sessions := session.NewServer(hub, session.Config{}, nil, hooks...)

	router := NewRouter(Deps{
		Hub:      hub,
		Sessions: sessions,
		Journal:  journal,
		Metrics:  m.Handler(),
	}, nil)

	ts := httptest.NewUnstartedServer(router)
	ts.Config.BaseContext = func(net.Listener) context.Context { return ctx }
	ts.Start()

	t.Cleanup(func() {
		cancel()
		ts.Close()
		<-hubDone
	})
	return &testEnv{ts: ts, hub: hub, journal: journal, metrics: m, cancel: cancel}
}

type wsPeer struct {
	conn net.Conn
	r    *proto.Reader
	w    *proto.Writer
}

func dialWS(t *testing.T, env *testEnv, name string) (*wsPeer, uint32) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws"
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)

	conn := websocket.NetConn(context.Background(), c, websocket.MessageBinary)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	p := &wsPeer{conn: conn, r: proto.NewReader(conn, 0), w: proto.NewWriter(conn, 0)}
	require.NoError(t, p.w.WritePacket(proto.Connect{Name: name}))

	pkt, err := p.r.ReadPacket()
	require.NoError(t, err)
	welcome, ok := pkt.(proto.Welcome)
	require.True(t, ok, "expected welcome, got %+v", pkt)
	return p, welcome.ClientID
}

func getJSON(t *testing.T, env *testEnv, path string, out any) int {
	t.Helper()

	resp, err := env.ts.Client().Get(env.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == stdhttp.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestWebSocketRelay(t *testing.T) {
	env := startTestServer(t, false)

	alice, aliceID := dialWS(t, env, "alice")
	bob, bobID := dialWS(t, env, "bob")
	require.Equal(t, uint32(0), aliceID)
	require.Equal(t, uint32(1), bobID)

	require.NoError(t, alice.w.WritePacket(proto.Message{Text: "hi there"}))

	pkt, err := bob.r.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, proto.Message{SenderID: aliceID, Text: "hi there"}, pkt)
}

func TestWebSocketDisconnectIsJournaled(t *testing.T) {
	env := startTestServer(t, true)

	alice, _ := dialWS(t, env, "alice")
	require.NoError(t, alice.w.WritePacket(proto.Disconnect{}))

	require.Eventually(t, func() bool {
		var rows []SessionResponse
		if getJSON(t, env, "/api/sessions?limit=5", &rows) != stdhttp.StatusOK || len(rows) != 1 {
			return false
		}
		return rows[0].Reason == "disconnect" && rows[0].Transport == WSTransport
	}, 2*time.Second, 20*time.Millisecond)

	var clients []ClientResponse
	require.Equal(t, stdhttp.StatusOK, getJSON(t, env, "/api/clients", &clients))
	require.Empty(t, clients)
}

func TestWebSocketShutdownSendsDisconnect(t *testing.T) {
	env := startTestServer(t, false)

	alice, _ := dialWS(t, env, "alice")
	env.cancel()

	pkt, err := alice.r.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, proto.Disconnect{}, pkt)
}
