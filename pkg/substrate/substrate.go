// Package substrate binds the "multiplex substrate" neonplex's channel
// layer assumes as an external primitive (see spec §2 item 2) to
// github.com/hashicorp/yamux. It does not invent a wire mux format: it
// orchestrates a yamux.Session's lifecycle and exposes the narrow surface
// the channel helper needs — open a stream, accept a stream, close.
package substrate

import (
	"context"
	"io"
)

// Stream is one multiplexed byte stream. It is a plain, ordered,
// reliable io.ReadWriteCloser — message framing on top of it is the
// channel helper's job, not the substrate's.
type Stream interface {
	io.ReadWriteCloser
}

// Substrate maps one transport to many Streams.
type Substrate interface {
	// OpenStream allocates a new outbound stream. It blocks until the
	// stream is established or ctx is done.
	OpenStream(ctx context.Context) (Stream, error)

	// AcceptStream blocks until a remotely-opened stream is available or
	// ctx is done.
	AcceptStream(ctx context.Context) (Stream, error)

	// NumStreams reports the number of currently open streams.
	NumStreams() int

	Close() error
}
