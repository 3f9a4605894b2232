package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Options tunes hub buffers.
type Options struct {
	IngestBuffer     int
	SubscriberBuffer int
}

// Hub wires the registry, the ingestion queue, the bus and the relay.
type Hub struct {
	registry *Registry
	queue    *IngestQueue
	bus      *Bus
	relay    *Relay
	log      *zerolog.Logger
}

// NewHub creates a chat hub instance. Observers are notified of every relayed message.
func NewHub(opts Options, logger *zerolog.Logger, observers ...RelayObserver) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	hubLog := logger.With().Str("component", "hub").Logger()

	queue := NewIngestQueue(opts.IngestBuffer)
	bus := NewBus(opts.SubscriberBuffer)
	return &Hub{
		registry: NewRegistry(&hubLog),
		queue:    queue,
		bus:      bus,
		relay:    NewRelay(queue, bus, &hubLog, observers...),
		log:      &hubLog,
	}
}

// Run drives the registry and the relay until ctx is cancelled. On return the
// queue and the bus are closed, which ends every client's message stream.
func (h *Hub) Run(ctx context.Context) error {
	regDone := make(chan struct{})
	go func() {
		defer close(regDone)
		h.registry.Run(ctx)
	}()

	h.log.Info().Msg("hub started")
	err := h.relay.Run(ctx)

	h.queue.Close()
	h.bus.Close()
	<-regDone
	h.log.Info().Msg("hub stopped")
	return err
}

// Join registers a client under name and subscribes it to the bus. The
// returned client must be released with Leave.
func (h *Hub) Join(ctx context.Context, name string) (*Client, error) {
	rec, err := h.registry.Register(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	return &Client{
		ClientRecord: rec,
		sub:          h.bus.Subscribe(),
		queue:        h.queue,
		registry:     h.registry,
	}, nil
}

// Clients returns the live client records ordered by id.
func (h *Hub) Clients(ctx context.Context) ([]ClientRecord, error) {
	return h.registry.Snapshot(ctx)
}

// Lookup returns a live client record.
func (h *Hub) Lookup(ctx context.Context, id ClientID) (ClientRecord, bool, error) {
	return h.registry.Lookup(ctx, id)
}

// Subscribers reports the number of live bus subscriptions.
func (h *Hub) Subscribers() int {
	return h.bus.Len()
}

// Pending reports the number of messages waiting in the ingestion queue.
func (h *Hub) Pending() int {
	return h.queue.Len()
}
