package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// RelayObserver is notified after each message is published on the bus.
type RelayObserver interface {
	Relayed(msg ChatMessage, delivered, evicted int)
}

// Relay is the only component that moves messages from the ingestion queue
// to the bus. Filtering or routing belongs here, not in sessions.
type Relay struct {
	queue     *IngestQueue
	bus       *Bus
	observers []RelayObserver
	log       *zerolog.Logger
}

// NewRelay connects queue to bus.
func NewRelay(queue *IngestQueue, bus *Bus, logger *zerolog.Logger, observers ...RelayObserver) *Relay {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Relay{queue: queue, bus: bus, observers: observers, log: logger}
}

// Run pumps messages until ctx is cancelled or the queue is closed.
func (r *Relay) Run(ctx context.Context) error {
	for {
		msg, err := r.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrHubClosed) {
				return nil
			}
			return err
		}

		delivered, evicted := r.bus.Publish(msg)
		if evicted > 0 {
			r.log.Warn().Int("evicted", evicted).Msg("evicted lagging subscribers")
		}
		r.log.Trace().
			Uint32("sender_id", uint32(msg.SenderID)).
			Int("delivered", delivered).
			Msg("message relayed")

		for _, obs := range r.observers {
			obs.Relayed(msg, delivered, evicted)
		}
	}
}
