package session

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ODCA117/ratchat/internal/core"
	"github.com/ODCA117/ratchat/internal/proto"
	"github.com/ODCA117/ratchat/internal/utils"
)

// Config controls per-connection behaviour.
type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MaxFrameSize     int
	// EchoSelf delivers a client's own messages back to it.
	EchoSelf bool
	// RateLimit caps messages accepted per client per minute. Zero disables it.
	RateLimit int
}

// Info describes a session for hooks.
type Info struct {
	ConnID     string
	Transport  string
	RemoteAddr string
	StartedAt  time.Time

	// Set once the handshake succeeded.
	Joined   bool
	ClientID core.ClientID
	Name     string
	JoinedAt time.Time
}

// Hook observes session lifecycle. Hooks run on the session goroutine and
// must not block for long.
type Hook interface {
	SessionJoined(info Info)
	SessionClosed(info Info, err error)
}

// Joiner admits clients into the relay.
type Joiner interface {
	Join(ctx context.Context, name string) (*core.Client, error)
}

// Server runs sessions for connections handed over by listeners.
type Server struct {
	hub   Joiner
	cfg   Config
	hooks []Hook
	log   *zerolog.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// NewServer creates a session server bound to hub.
func NewServer(hub Joiner, cfg Config, logger *zerolog.Logger, hooks ...Hook) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = proto.DefaultMaxFrameSize
	}
	return &Server{hub: hub, cfg: cfg, hooks: hooks, log: logger}
}

// Accept spawns a session for conn and returns immediately.
func (s *Server) Accept(ctx context.Context, conn net.Conn, transport string) {
	if !s.track(conn, transport) {
		return
	}
	go func() {
		defer s.wg.Done()
		_ = s.serve(ctx, conn, transport)
	}()
}

// Serve runs a session for conn until it ends and returns the reason it ended.
// The connection is always closed on return. After Wait was called it returns
// ErrShutdown without starting a session.
func (s *Server) Serve(ctx context.Context, conn net.Conn, transport string) error {
	if !s.track(conn, transport) {
		return ErrShutdown
	}
	defer s.wg.Done()
	return s.serve(ctx, conn, transport)
}

// track registers a session with the wait group, or closes conn when the
// server is draining.
func (s *Server) track(conn net.Conn, transport string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		_ = conn.Close()
		s.log.Debug().Str("transport", transport).Str("remote", remoteAddr(conn)).Msg("connection refused while draining")
		return false
	}
	s.wg.Add(1)
	return true
}

// Wait stops admitting sessions and blocks until every running session has
// ended or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn, transport string) error {
	info := Info{
		ConnID:     utils.NewID(),
		Transport:  transport,
		RemoteAddr: remoteAddr(conn),
		StartedAt:  time.Now(),
	}
	connLog := s.log.With().
		Str("conn_id", info.ConnID).
		Str("transport", transport).
		Str("remote", info.RemoteAddr).
		Logger()

	sess := &session{
		srv:     s,
		conn:    conn,
		reader:  proto.NewReader(conn, s.cfg.MaxFrameSize),
		writer:  proto.NewWriter(conn, s.cfg.MaxFrameSize),
		info:    info,
		log:     connLog,
		limiter: newRateLimiter(s.cfg.RateLimit, time.Minute),
	}
	connLog.Debug().Msg("connection accepted")

	err := sess.run(ctx)

	for _, h := range s.hooks {
		h.SessionClosed(sess.info, err)
	}

	ev := sess.log.Info()
	if !Clean(err) {
		ev = sess.log.Warn()
	}
	ev.Err(err).Str("reason", Reason(err)).Msg("session closed")
	return err
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
