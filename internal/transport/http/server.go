package http

import (
	"context"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ODCA117/ratchat/internal/core"
	"github.com/ODCA117/ratchat/internal/store"
)

// ClientLister reports the live registry.
type ClientLister interface {
	Clients(ctx context.Context) ([]core.ClientRecord, error)
	Lookup(ctx context.Context, id core.ClientID) (core.ClientRecord, bool, error)
}

// SessionServer runs a session over an adapted connection.
type SessionServer interface {
	Serve(ctx context.Context, conn net.Conn, transport string) error
}

// Deps are the collaborators behind the admin routes. Journal and Metrics are
// optional; their routes answer 404 when unset.
type Deps struct {
	Hub          ClientLister
	Sessions     SessionServer
	Journal      store.Journal
	Metrics      stdhttp.Handler
	MaxFrameSize int
}

// Options configures the HTTP server.
type Options struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	// BaseContext is the parent of every request context. WebSocket sessions
	// end when it is cancelled.
	BaseContext context.Context
}

// NewRouter builds the gin engine with all routes.
func NewRouter(deps Deps, logger *zerolog.Logger) *gin.Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	api := NewAPIHandlers(deps.Hub, deps.Journal, logger)
	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/clients", api.Clients)
		apiGroup.GET("/clients/:id", api.Client)
		apiGroup.GET("/sessions", api.Sessions)
	}

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	router.GET("/ws", gin.WrapH(NewWSHandler(deps.Sessions, deps.MaxFrameSize, logger)))

	return router
}

// NewServer builds an HTTP server serving NewRouter.
func NewServer(opts Options, deps Deps, logger *zerolog.Logger) *stdhttp.Server {
	srv := &stdhttp.Server{
		Addr:              opts.Addr,
		Handler:           NewRouter(deps, logger),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	if opts.BaseContext != nil {
		base := opts.BaseContext
		srv.BaseContext = func(net.Listener) context.Context { return base }
	}
	return srv
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
