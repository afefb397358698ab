package substrate

import (
	"context"

	"github.com/hashicorp/yamux"
)

// yamuxSubstrate implements Substrate over a *yamux.Session.
type yamuxSubstrate struct {
	sess *yamux.Session
}

// NewClient opens a yamux client session over t — the side that will call
// OpenStream to initiate channels should usually be the dialer, matching
// yamux's own client/server stream-id parity convention, though neonplex
// itself does not require either side to play a fixed role.
func NewClient(t MessageTransport) (Substrate, error) {
	sess, err := yamux.Client(Stream2RW(t), yamux.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return &yamuxSubstrate{sess: sess}, nil
}

// NewServer is the Accept-side counterpart of NewClient.
func NewServer(t MessageTransport) (Substrate, error) {
	sess, err := yamux.Server(Stream2RW(t), yamux.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return &yamuxSubstrate{sess: sess}, nil
}

func (y *yamuxSubstrate) OpenStream(ctx context.Context) (Stream, error) {
	type result struct {
		s   *yamux.Stream
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := y.sess.OpenStream()
		done <- result{s, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.s, nil
	}
}

func (y *yamuxSubstrate) AcceptStream(ctx context.Context) (Stream, error) {
	type result struct {
		s   *yamux.Stream
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := y.sess.AcceptStream()
		done <- result{s, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.s, nil
	}
}

func (y *yamuxSubstrate) NumStreams() int {
	return y.sess.NumStreams()
}

func (y *yamuxSubstrate) Close() error {
	return y.sess.Close()
}
