package neonplex

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/zacharygriffee/neonplex/pkg/lenframe"
	"github.com/zacharygriffee/neonplex/pkg/substrate"
)

// frame kinds multiplexed over each underlying substrate stream, on top
// of the raw byte stream the multiplex substrate itself provides. The
// substrate maps (id, protocol) to a stream; everything above that —
// the handshake exchange and the close/destroy signalling — is this
// package's concern.
const (
	frameHandshake byte = 0
	frameData      byte = 1
	frameClose     byte = 2
	frameDestroy   byte = 3
)

// channel is the live binding between a (id, protocol) pair and one
// substrate.Stream, plus the callbacks wired to it by ensure().
type channel struct {
	id       ChannelID
	stream   substrate.Stream
	framer   *lenframe.Framer
	cfg      *ChannelConfig

	mu            sync.Mutex
	handshakeSent bool
	opened        bool
	closed        bool
	destroyed     bool

	closeOnce   sync.Once
	destroyOnce sync.Once
}

func newChannel(id ChannelID, stream substrate.Stream, cfg *ChannelConfig) *channel {
	return &channel{
		id:     id,
		stream: stream,
		framer: lenframe.Wrap(stream),
		cfg:    cfg,
	}
}

// sendHandshake writes the handshake frame exactly once per channel.
// The frame carries the full (id, protocol) header even though, for an
// opener, the remote can usually infer it from stream order — the
// acceptor cannot, since AcceptStream hands back an anonymous stream,
// so every handshake is self-describing regardless of which side sent
// it first.
func (ch *channel) sendHandshake(payload []byte) error {
	ch.mu.Lock()
	if ch.handshakeSent {
		ch.mu.Unlock()
		return nil
	}
	ch.handshakeSent = true
	ch.mu.Unlock()
	encoded := encodeHandshakeHeader(ch.id, ch.cfg.Protocol, payload)
	return ch.framer.WriteMessage(append([]byte{frameHandshake}, encoded...))
}

func (ch *channel) sendData(p []byte) error {
	return ch.framer.WriteMessage(append([]byte{frameData}, p...))
}

// close sends a graceful close frame and runs the local close path.
// destroy still follows, matching the spec's invariant that
// channel-close always precedes channel-destroy.
func (ch *channel) close() {
	ch.closeOnce.Do(func() {
		_ = ch.framer.WriteMessage([]byte{frameClose})
		ch.localClose()
	})
}

// destroy tears the channel down immediately, notifying the remote with
// a best-effort destroy frame.
func (ch *channel) destroy(err error) {
	ch.close()
	ch.localDestroy(err)
	msg := []byte(errMessage(err))
	_ = ch.framer.WriteMessage(append([]byte{frameDestroy}, msg...))
	_ = ch.stream.Close()
}

func (ch *channel) localClose() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	ch.mu.Unlock()
	ch.cfg.fireClose()
}

func (ch *channel) localDestroy(err error) {
	ch.mu.Lock()
	if ch.destroyed {
		ch.mu.Unlock()
		return
	}
	ch.destroyed = true
	ch.mu.Unlock()
	ch.cfg.fireDestroy(err)
}

// teardown is the single idempotent funnel every termination path
// (local close, local destroy, remote close frame, remote destroy
// frame, or a transport read error) runs through, guaranteeing close
// always fires before destroy regardless of which path triggered it.
func (ch *channel) teardown(err error) {
	ch.destroyOnce.Do(func() {
		ch.localClose()
		ch.localDestroy(err)
		_ = ch.stream.Close()
	})
}

func (ch *channel) isOpened() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.opened
}

// readLoop runs for the lifetime of the stream, decoding control frames
// and dispatching them. It is started once per channel by the owning
// registry, regardless of whether the stream was locally opened or
// accepted.
func (ch *channel) readLoop() {
	for {
		msg, err := ch.framer.ReadMessage()
		if err != nil {
			ch.teardown(err)
			return
		}
		if len(msg) == 0 {
			continue
		}
		kind, payload := msg[0], msg[1:]
		switch kind {
		case frameHandshake:
			_, hs, err := decodeHandshakeHeader(payload)
			if err != nil {
				ch.cfg.reportErr(err)
				continue
			}
			ch.mu.Lock()
			already := ch.opened
			ch.opened = true
			ch.mu.Unlock()
			if !already {
				ch.cfg.fireOpen(ch.cfg.decodedHandshake(hs))
			}
		case frameData:
			ch.cfg.fireMessage(payload)
		case frameClose:
			ch.localClose()
		case frameDestroy:
			ch.teardown(destroyErrorFromPayload(payload))
			return
		default:
			ch.cfg.reportErr(fmt.Errorf("neonplex: unknown control frame kind %d", kind))
		}
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func destroyErrorFromPayload(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	return fmt.Errorf("neonplex: remote destroyed channel: %s", string(payload))
}

// handshakeHeader encodes the handshake's addressing info (id, protocol)
// ahead of the caller's handshake payload so the accepting side can
// match the incoming stream to a pending pair() registration without
// any out-of-band signalling.
func encodeHandshakeHeader(id ChannelID, protocol string, payload []byte) []byte {
	buf := make([]byte, 0, 4+len(id.Data)+2+len(protocol)+len(payload))
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(id.Data)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, id.Data...)
	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], uint16(len(protocol)))
	buf = append(buf, tmp2[:]...)
	buf = append(buf, protocol...)
	buf = append(buf, payload...)
	return buf
}

func decodeHandshakeHeader(b []byte) (ChannelID, []byte, error) {
	if len(b) < 4 {
		return ChannelID{}, nil, ErrHandshakeTruncated
	}
	idLen := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < idLen {
		return ChannelID{}, nil, ErrHandshakeTruncated
	}
	idData := b[:idLen]
	b = b[idLen:]
	if len(b) < 2 {
		return ChannelID{}, nil, ErrHandshakeTruncated
	}
	protoLen := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	if uint16(len(b)) < protoLen {
		return ChannelID{}, nil, ErrHandshakeTruncated
	}
	protocol := string(b[:protoLen])
	rest := b[protoLen:]
	id := ChannelID{Data: append([]byte(nil), idData...), Protocol: protocol}
	return id, rest, nil
}
