package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/ODCA117/ratchat/internal/core"
	"github.com/ODCA117/ratchat/internal/proto"
)

// session is the per-connection state machine: Connecting, Active, Closed.
type session struct {
	srv     *Server
	conn    net.Conn
	reader  *proto.Reader
	writer  *proto.Writer
	info    Info
	log     zerolog.Logger
	limiter *rateLimiter
}

type inbound struct {
	pkt proto.Packet
	err error
}

// run drives the session to its Closed state. All socket reads happen on a
// separate goroutine; closing the connection on the way out unblocks it.
func (s *session) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	packets := make(chan inbound)
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		s.readLoop(ctx, packets)
	}()
	defer func() {
		cancel()
		_ = s.conn.Close()
		<-readerDone
	}()

	client, err := s.handshake(ctx, packets)
	if err != nil {
		return err
	}
	defer client.Leave()

	s.info.Joined = true
	s.info.ClientID = client.ID
	s.info.Name = client.Name
	s.info.JoinedAt = client.ConnectedAt
	s.log = s.log.With().Uint32("client_id", uint32(client.ID)).Str("name", client.Name).Logger()
	s.log.Info().Msg("client joined")

	for _, h := range s.srv.hooks {
		h.SessionJoined(s.info)
	}

	return s.active(ctx, packets, client)
}

func (s *session) readLoop(ctx context.Context, packets chan<- inbound) {
	for {
		pkt, err := s.reader.ReadPacket()
		select {
		case packets <- inbound{pkt: pkt, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// handshake waits for Connect, joins the hub and answers with Welcome. When it
// fails no registration is left behind.
func (s *session) handshake(ctx context.Context, packets <-chan inbound) (*core.Client, error) {
	timer := time.NewTimer(s.srv.cfg.HandshakeTimeout)
	defer timer.Stop()

	var in inbound
	select {
	case <-ctx.Done():
		return nil, ErrShutdown
	case <-timer.C:
		return nil, ErrHandshakeTimeout
	case in = <-packets:
	}
	if in.err != nil {
		return nil, readError(in.err)
	}

	connect, ok := in.pkt.(proto.Connect)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s, got %s", core.ErrProtocol, proto.TypeConnect, in.pkt.Type())
	}

	client, err := s.srv.hub.Join(ctx, connect.Name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrShutdown
		}
		return nil, err
	}

	if err := s.write(proto.Welcome{ClientID: uint32(client.ID)}); err != nil {
		client.Leave()
		return nil, err
	}
	return client, nil
}

// active multiplexes inbound packets against bus deliveries until either side
// ends the session.
func (s *session) active(ctx context.Context, packets <-chan inbound, client *core.Client) error {
	for {
		select {
		case <-ctx.Done():
			s.goodbye()
			return ErrShutdown

		case in := <-packets:
			if err := s.handleInbound(ctx, client, in); err != nil {
				return err
			}

		case msg, ok := <-client.Messages():
			if !ok {
				s.goodbye()
				if client.Lagged() {
					return core.ErrLagged
				}
				return core.ErrHubClosed
			}
			if !s.srv.cfg.EchoSelf && client.Sent(msg) {
				continue
			}
			if err := s.write(proto.Message{
				ChatID:   msg.ChatID,
				SenderID: uint32(msg.SenderID),
				Text:     msg.Text,
			}); err != nil {
				return err
			}
		}
	}
}

func (s *session) handleInbound(ctx context.Context, client *core.Client, in inbound) error {
	if in.err != nil {
		return readError(in.err)
	}

	switch p := in.pkt.(type) {
	case proto.Message:
		if !s.limiter.allow() {
			s.log.Warn().Msg("rate limit exceeded, message dropped")
			return nil
		}
		err := client.Publish(ctx, core.ChatMessage{ChatID: p.ChatID, Text: p.Text})
		if err != nil {
			if ctx.Err() != nil {
				return ErrShutdown
			}
			return err
		}
		s.log.Trace().Int("len", len(p.Text)).Msg("message enqueued")
		return nil
	case proto.Disconnect:
		return ErrPeerDisconnected
	case proto.Connect, proto.Welcome:
		return fmt.Errorf("%w: unexpected %s packet", core.ErrProtocol, p.Type())
	default:
		return fmt.Errorf("%w: unexpected packet %T", core.ErrProtocol, p)
	}
}

func (s *session) write(p proto.Packet) error {
	if s.srv.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.srv.cfg.WriteTimeout))
	}
	if err := s.writer.WritePacket(p); err != nil {
		if errors.Is(err, proto.ErrEncode) {
			return err
		}
		return fmt.Errorf("%w: write %s: %w", core.ErrTransport, p.Type(), err)
	}
	return nil
}

// goodbye tells the peer the server is closing. Failures are ignored since
// the connection is about to be closed anyway.
func (s *session) goodbye() {
	if err := s.write(proto.Disconnect{}); err != nil {
		s.log.Debug().Err(err).Msg("send disconnect")
	}
}

func readError(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return ErrPeerClosed
	case errors.Is(err, proto.ErrDecode):
		return err
	default:
		return fmt.Errorf("%w: read: %w", core.ErrTransport, err)
	}
}
