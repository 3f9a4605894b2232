package http

import (
	"context"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/ODCA117/ratchat/internal/proto"
)

// WSTransport is the label sessions accepted over WebSocket carry.
const WSTransport = "websocket"

// WSHandler upgrades HTTP connections and runs a session over the framed byte
// stream carried in binary messages.
type WSHandler struct {
	sessions  SessionServer
	readLimit int64
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(sessions SessionServer, maxFrameSize int, logger *zerolog.Logger) stdhttp.Handler {
	if maxFrameSize <= 0 {
		maxFrameSize = proto.DefaultMaxFrameSize
	}
	return &WSHandler{
		sessions:  sessions,
		readLimit: int64(maxFrameSize) + 4,
		log:       logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if h.sessions == nil {
		stdhttp.Error(w, "websocket disabled", stdhttp.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	conn.SetReadLimit(h.readLimit)

	// The session closes the adapted conn itself, so the adapter must outlive
	// request cancellation long enough to send the goodbye.
	ctx := r.Context()
	netConn := websocket.NetConn(context.WithoutCancel(ctx), conn, websocket.MessageBinary)

	_ = h.sessions.Serve(ctx, netConn, WSTransport)
}
