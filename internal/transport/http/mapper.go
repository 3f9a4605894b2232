package http

import (
	"time"

	"github.com/samber/lo"

	"github.com/ODCA117/ratchat/internal/core"
	"github.com/ODCA117/ratchat/internal/store"
)

// ClientResponse is one live client.
type ClientResponse struct {
	ID          uint32    `json:"id"`
	Name        string    `json:"name"`
	ConnectedAt time.Time `json:"connected_at"`
}

// SessionResponse is one journal row.
type SessionResponse struct {
	ConnID         string     `json:"conn_id"`
	ClientID       uint32     `json:"client_id"`
	Name           string     `json:"name"`
	Transport      string     `json:"transport"`
	RemoteAddr     string     `json:"remote_addr,omitempty"`
	ConnectedAt    time.Time  `json:"connected_at"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func clientToResponse(r core.ClientRecord) ClientResponse {
	return ClientResponse{
		ID:          uint32(r.ID),
		Name:        r.Name,
		ConnectedAt: r.ConnectedAt,
	}
}

func clientsToResponse(records []core.ClientRecord) []ClientResponse {
	return lo.Map(records, func(r core.ClientRecord, _ int) ClientResponse {
		return clientToResponse(r)
	})
}

func sessionsToResponse(rows []*store.SessionRecord) []SessionResponse {
	return lo.Map(rows, func(r *store.SessionRecord, _ int) SessionResponse {
		return SessionResponse{
			ConnID:         r.ConnID,
			ClientID:       r.ClientID,
			Name:           r.Name,
			Transport:      r.Transport,
			RemoteAddr:     r.RemoteAddr,
			ConnectedAt:    r.ConnectedAt,
			DisconnectedAt: r.DisconnectedAt,
			Reason:         r.Reason,
		}
	})
}
