package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Transport is the label sessions accepted here carry in logs and metrics.
const Transport = "tcp"

// Acceptor takes ownership of an accepted connection.
type Acceptor interface {
	Accept(ctx context.Context, conn net.Conn, transport string)
}

// Listener is the TCP accept loop.
type Listener struct {
	addr     string
	sessions Acceptor
	log      *zerolog.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewListener creates a listener for addr that hands connections to sessions.
func NewListener(addr string, sessions Acceptor, logger *zerolog.Logger) *Listener {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	child := logger.With().Str("component", "tcp").Logger()
	return &Listener{addr: addr, sessions: sessions, log: &child}
}

// Run listens on the configured address and serves until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.addr, err)
	}
	return l.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. ln is closed on return.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer ln.Close()

	l.log.Info().Str("addr", ln.Addr().String()).Msg("tcp listener started")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.log.Info().Msg("tcp listener stopped")
				return nil
			}
			// Anything else (EMFILE, ECONNABORTED, timeouts) may clear up, and
			// live sessions must not be torn down because of it.
			backoff = nextBackoff(backoff)
			l.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept")
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				l.log.Info().Msg("tcp listener stopped")
				return nil
			}
		}
		backoff = 0

		l.sessions.Accept(ctx, conn, Transport)
	}
}

// Addr returns the bound address, or nil before Serve started.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
