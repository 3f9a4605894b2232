package core

import "time"

// ClientID identifies a live client. Ids are reused after a client leaves.
type ClientID uint32

// ClientRecord is the registry entry for a connected client.
type ClientRecord struct {
	ID          ClientID
	Name        string
	ConnectedAt time.Time
}

// ChatMessage is the unit that flows through the ingestion queue and the bus.
type ChatMessage struct {
	ChatID   uint32
	SenderID ClientID
	Text     string

	// origin is the subscription of the publishing client. Unlike SenderID it
	// is never reused by a later client.
	origin *Subscription
}
