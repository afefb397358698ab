package substrate

import (
	"bytes"
	"io"
	"sync"
)

// MessageTransport is the narrow slice of neonplex.Transport that
// streamify needs: a message-framed duplex. It is declared locally (not
// imported from the root package) so this package stays a leaf — any
// value satisfying neonplex.Transport already satisfies this interface.
type MessageTransport interface {
	io.Closer
	ReadMessage() ([]byte, error)
	WriteMessage([]byte) error
}

// streamify adapts a message-framed MessageTransport into a plain
// io.ReadWriteCloser byte stream, which is what yamux.Client/yamux.Server
// require. Message boundaries from the underlying transport need not
// align with yamux's own frame boundaries: Read simply serves bytes out
// of the most recently received message until it is exhausted, then
// blocks for the next one.
type streamify struct {
	t MessageTransport

	mu  sync.Mutex
	buf bytes.Buffer
}

// Stream2RW wraps t so it can be handed to yamux as the underlying
// connection.
func Stream2RW(t MessageTransport) io.ReadWriteCloser {
	return &streamify{t: t}
}

func (s *streamify) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.buf.Len() > 0 {
		n, _ := s.buf.Read(p)
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()

	msg, err := s.t.ReadMessage()
	if err != nil {
		return 0, err
	}
	if len(msg) == 0 {
		return 0, nil
	}

	n := copy(p, msg)
	if n < len(msg) {
		s.mu.Lock()
		s.buf.Write(msg[n:])
		s.mu.Unlock()
	}
	return n, nil
}

func (s *streamify) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := s.t.WriteMessage(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *streamify) Close() error {
	return s.t.Close()
}
