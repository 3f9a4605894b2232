package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type registryOp int

const (
	opRegister registryOp = iota
	opDeregister
	opLookup
	opSnapshot
)

type registryRequest struct {
	op    registryOp
	id    ClientID
	name  string
	reply chan registryReply
}

type registryReply struct {
	record  ClientRecord
	found   bool
	records []ClientRecord
}

// Registry owns the table of connected clients. The table lives inside the
// Run goroutine and is reached only through request/response messages.
type Registry struct {
	requests chan registryRequest
	done     chan struct{}
	now      func() time.Time
	log      *zerolog.Logger
}

// NewRegistry creates a registry. Run must be called before use.
func NewRegistry(logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		requests: make(chan registryRequest),
		done:     make(chan struct{}),
		now:      time.Now,
		log:      logger,
	}
}

// Run serves requests until ctx is cancelled. It must be called once.
func (r *Registry) Run(ctx context.Context) {
	defer close(r.done)

	clients := make(map[ClientID]ClientRecord)
	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Int("clients", len(clients)).Msg("registry stopped")
			return
		case req := <-r.requests:
			req.reply <- r.handle(clients, req)
		}
	}
}

func (r *Registry) handle(clients map[ClientID]ClientRecord, req registryRequest) registryReply {
	switch req.op {
	case opRegister:
		id := smallestFreeID(clients)
		name := strings.TrimSpace(req.name)
		if name == "" {
			name = fmt.Sprintf("client-%d", id)
		}
		rec := ClientRecord{ID: id, Name: name, ConnectedAt: r.now()}
		clients[id] = rec
		r.log.Debug().Uint32("client_id", uint32(id)).Str("name", name).Msg("client registered")
		return registryReply{record: rec, found: true}
	case opDeregister:
		rec, ok := clients[req.id]
		if ok {
			delete(clients, req.id)
			r.log.Debug().Uint32("client_id", uint32(req.id)).Str("name", rec.Name).Msg("client deregistered")
		}
		return registryReply{record: rec, found: ok}
	case opLookup:
		rec, ok := clients[req.id]
		return registryReply{record: rec, found: ok}
	case opSnapshot:
		records := make([]ClientRecord, 0, len(clients))
		for _, rec := range clients {
			records = append(records, rec)
		}
		sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
		return registryReply{records: records}
	default:
		return registryReply{}
	}
}

// smallestFreeID scans the live set from 0 and returns the first unused id.
func smallestFreeID(clients map[ClientID]ClientRecord) ClientID {
	var id ClientID
	for {
		if _, taken := clients[id]; !taken {
			return id
		}
		id++
	}
}

// call hands a request to the Run goroutine. Once the request is accepted the
// reply is always awaited, so an accepted registration is never lost to a
// cancelled caller.
func (r *Registry) call(ctx context.Context, req registryRequest) (registryReply, error) {
	req.reply = make(chan registryReply, 1)

	select {
	case r.requests <- req:
	case <-r.done:
		return registryReply{}, ErrHubClosed
	case <-ctx.Done():
		return registryReply{}, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep, nil
	case <-r.done:
		return registryReply{}, ErrHubClosed
	}
}

// Register assigns the smallest free id to a new client.
func (r *Registry) Register(ctx context.Context, name string) (ClientRecord, error) {
	rep, err := r.call(ctx, registryRequest{op: opRegister, name: name})
	if err != nil {
		return ClientRecord{}, fmt.Errorf("register client: %w", err)
	}
	return rep.record, nil
}

// Deregister removes a client. Unknown ids are ignored.
func (r *Registry) Deregister(ctx context.Context, id ClientID) error {
	if _, err := r.call(ctx, registryRequest{op: opDeregister, id: id}); err != nil {
		return fmt.Errorf("deregister client %d: %w", id, err)
	}
	return nil
}

// Lookup returns the record for id, if present.
func (r *Registry) Lookup(ctx context.Context, id ClientID) (ClientRecord, bool, error) {
	rep, err := r.call(ctx, registryRequest{op: opLookup, id: id})
	if err != nil {
		return ClientRecord{}, false, fmt.Errorf("lookup client %d: %w", id, err)
	}
	return rep.record, rep.found, nil
}

// Snapshot returns all live records ordered by id.
func (r *Registry) Snapshot(ctx context.Context) ([]ClientRecord, error) {
	rep, err := r.call(ctx, registryRequest{op: opSnapshot})
	if err != nil {
		return nil, fmt.Errorf("snapshot clients: %w", err)
	}
	return rep.records, nil
}
