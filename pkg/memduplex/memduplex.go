// Package memduplex provides an in-memory Transport pair for tests and
// for the bundled examples, grounded on net.Pipe and framed the same
// way a real TCP socket would be (see pkg/lenframe).
package memduplex

import "net"

// Endpoint is the message-framed transport handed to neonplex.NewPeer
// for one side of an in-memory pair.
type Endpoint interface {
	ReadMessage() ([]byte, error)
	WriteMessage([]byte) error
	Close() error
}

// Pair returns two linked, in-process transports: writes on one side
// are observable as reads on the other. Each direction is independently
// framed with a 4-byte length prefix, so either endpoint can be handed
// straight to neonplex.NewPeer exactly as a framed TCP connection would
// be.
func Pair() (a, b Endpoint) {
	c1, c2 := net.Pipe()
	return wrap(c1), wrap(c2)
}
