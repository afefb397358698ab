package neonplex

import "io"

// Transport is the ordered, reliable, message-framed duplex the caller
// hands in. Each call to ReadMessage returns exactly one complete message
// written by the peer's corresponding WriteMessage call; neonplex never
// assumes anything about how the transport frames bytes on the wire.
//
// Implementations must allow one concurrent reader and one concurrent
// writer (ReadMessage and WriteMessage may be called concurrently with each
// other, but not with themselves).
type Transport interface {
	io.Closer

	// ReadMessage blocks until the next complete message is available.
	// It returns io.EOF once the remote side has cleanly closed the
	// transport, and any other error on failure.
	ReadMessage() ([]byte, error)

	// WriteMessage sends p as a single message. Implementations must not
	// retain p after WriteMessage returns.
	WriteMessage(p []byte) error
}
