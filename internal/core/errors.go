package core

import "errors"

var (
	// ErrHubClosed is returned once the hub has stopped running.
	ErrHubClosed = errors.New("hub closed")
	// ErrProtocol marks a well-formed packet that is not valid in the current state.
	ErrProtocol = errors.New("protocol error")
	// ErrTransport marks a read or write failure on the client connection.
	ErrTransport = errors.New("transport error")
	// ErrLagged is reported when a subscriber fell behind and was evicted from the bus.
	ErrLagged = errors.New("subscriber lagged behind")
)
