package session

import (
	"errors"

	"github.com/ODCA117/ratchat/internal/core"
	"github.com/ODCA117/ratchat/internal/proto"
)

var (
	// ErrPeerClosed is returned when the peer closed the stream.
	ErrPeerClosed = errors.New("peer closed connection")
	// ErrPeerDisconnected is returned when the peer sent a Disconnect packet.
	ErrPeerDisconnected = errors.New("peer disconnected")
	// ErrShutdown is returned when the session was cancelled from the server side.
	ErrShutdown = errors.New("server shutting down")
	// ErrHandshakeTimeout is returned when no Connect packet arrived in time.
	ErrHandshakeTimeout = errors.New("handshake timeout")
)

// Reason maps the error a session ended with to a short label used in logs,
// metrics and the session journal.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPeerClosed):
		return "eof"
	case errors.Is(err, ErrPeerDisconnected):
		return "disconnect"
	case errors.Is(err, ErrShutdown), errors.Is(err, core.ErrHubClosed):
		return "shutdown"
	case errors.Is(err, ErrHandshakeTimeout):
		return "handshake_timeout"
	case errors.Is(err, core.ErrLagged):
		return "lagged"
	case errors.Is(err, core.ErrProtocol):
		return "protocol_error"
	case errors.Is(err, proto.ErrDecode):
		return "decode_error"
	case errors.Is(err, proto.ErrEncode):
		return "encode_error"
	default:
		return "transport_error"
	}
}

// Clean reports whether err is an orderly end of a session.
func Clean(err error) bool {
	switch Reason(err) {
	case "ok", "eof", "disconnect", "shutdown":
		return true
	default:
		return false
	}
}
