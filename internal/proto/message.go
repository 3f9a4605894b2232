package proto

import "encoding/json"

// Envelope is the JSON body of every frame.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	TypeConnect    = "connect"
	TypeWelcome    = "welcome"
	TypeMessage    = "message"
	TypeDisconnect = "disconnect"
)

// ConnectData is sent by the client to introduce itself.
type ConnectData struct {
	Name string `json:"name"`
}

// WelcomeData carries the id the server assigned to the client.
type WelcomeData struct {
	ClientID uint32 `json:"client_id"`
}

// MessageData is a chat message in either direction.
type MessageData struct {
	ChatID   uint32 `json:"chat_id"`
	SenderID uint32 `json:"sender_id"`
	Text     string `json:"text"`
}

// Packet is one logical exchange on the wire. The set of implementations is
// closed: Connect, Welcome, Message and Disconnect.
type Packet interface {
	Type() string
	isPacket()
}

// Connect is the first packet a client sends.
type Connect struct {
	Name string
}

// Welcome answers a valid Connect.
type Welcome struct {
	ClientID uint32
}

// Message is a chat message.
type Message struct {
	ChatID   uint32
	SenderID uint32
	Text     string
}

// Disconnect signals intent to close.
type Disconnect struct{}

func (Connect) Type() string    { return TypeConnect }
func (Welcome) Type() string    { return TypeWelcome }
func (Message) Type() string    { return TypeMessage }
func (Disconnect) Type() string { return TypeDisconnect }

func (Connect) isPacket()    {}
func (Welcome) isPacket()    {}
func (Message) isPacket()    {}
func (Disconnect) isPacket() {}
