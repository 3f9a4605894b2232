package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ODCA117/ratchat/internal/config"
	"github.com/ODCA117/ratchat/internal/core"
	"github.com/ODCA117/ratchat/internal/metrics"
	"github.com/ODCA117/ratchat/internal/session"
	"github.com/ODCA117/ratchat/internal/store"
	"github.com/ODCA117/ratchat/internal/store/sqlite"
	"github.com/ODCA117/ratchat/internal/transport/tcp"
	transporthttp "github.com/ODCA117/ratchat/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	cfg      config.Config
	hub      *core.Hub
	sessions *session.Server
	tcp      *tcp.Listener
	metrics  *metrics.Metrics
	journal  store.Journal
	log      *zerolog.Logger

	ready    chan struct{}
	mu       sync.Mutex
	tcpAddr  net.Addr
	httpAddr net.Addr
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var journal store.Journal
	if cfg.DatabasePath != "" {
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init journal: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		n, err := st.CloseOpenSessions(ctx, time.Now(), "server_restart")
		cancel()
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("settle journal: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Int64("settled", n).Msg("session journal initialized")
		journal = st
	}

	m := metrics.New()
	hub := core.NewHub(core.Options{
		IngestBuffer:     cfg.IngestBuffer,
		SubscriberBuffer: cfg.SubscriberBuffer,
	}, logger, m)

	hooks := []session.Hook{m}
	if journal != nil {
		hooks = append(hooks, session.NewJournalHook(journal, logger))
	}
	sessions := session.NewServer(hub, session.Config{
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		MaxFrameSize:     cfg.MaxFrameSize,
		EchoSelf:         cfg.EchoSelf,
		RateLimit:        cfg.RateLimit,
	}, logger, hooks...)

	return &App{
		cfg:      *cfg,
		hub:      hub,
		sessions: sessions,
		tcp:      tcp.NewListener(cfg.TCPAddr, sessions, logger),
		metrics:  m,
		journal:  journal,
		log:      logger,
		ready:    make(chan struct{}),
	}, nil
}

// Run binds the listeners and serves until ctx is cancelled or a component
// fails. Sessions are given shutdown_timeout to say goodbye.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	tcpLn, err := net.Listen("tcp", a.cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", a.cfg.TCPAddr, err)
	}
	var httpLn net.Listener
	if a.cfg.HTTPAddr != "" {
		httpLn, err = net.Listen("tcp", a.cfg.HTTPAddr)
		if err != nil {
			_ = tcpLn.Close()
			return fmt.Errorf("listen http %s: %w", a.cfg.HTTPAddr, err)
		}
	}

	a.mu.Lock()
	a.tcpAddr = tcpLn.Addr()
	if httpLn != nil {
		a.httpAddr = httpLn.Addr()
	}
	a.mu.Unlock()
	close(a.ready)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.hub.Run(gctx)
	})
	g.Go(func() error {
		return a.tcp.Serve(gctx, tcpLn)
	})

	if httpLn != nil {
		server := transporthttp.NewServer(transporthttp.Options{
			Addr:              a.cfg.HTTPAddr,
			ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
			BaseContext:       gctx,
		}, transporthttp.Deps{
			Hub:          a.hub,
			Sessions:     a.sessions,
			Journal:      a.journal,
			Metrics:      a.metrics.Handler(),
			MaxFrameSize: a.cfg.MaxFrameSize,
		}, a.log)

		g.Go(func() error {
			a.log.Info().Str("addr", httpLn.Addr().String()).Msg("http server started")
			if err := server.Serve(httpLn); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()

			a.log.Info().Msg("shutting down http server")
			return server.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()

	waitCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if werr := a.sessions.Wait(waitCtx); werr != nil {
		a.log.Warn().Err(werr).Msg("sessions still running at shutdown")
	}
	return err
}

// Ready is closed once the listeners are bound.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// TCPAddr returns the bound TCP address, or nil before Ready.
func (a *App) TCPAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tcpAddr
}

// HTTPAddr returns the bound HTTP address, or nil when disabled or before Ready.
func (a *App) HTTPAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.httpAddr
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close journal")
		} else {
			a.log.Info().Msg("journal closed")
		}
	}
}
