// Package lenframe frames an arbitrary io.ReadWriteCloser byte stream
// (a raw TCP connection, a yamux stream, anything ordered and reliable)
// into discrete messages using a 4-byte little-endian length prefix. It
// is the "external length-prefix framer" the core assumes callers wrap
// their TCP sockets with (see spec §6), and doubles as the internal
// per-channel framer the channel helper layers on top of a multiplex
// stream.
package lenframe

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// DefaultMaxMessageSize bounds a single frame so a corrupt or hostile
// peer cannot make a reader allocate unbounded memory from a forged
// length prefix.
const DefaultMaxMessageSize = 16 << 20

// Framer adapts rwc into message semantics: each WriteMessage call
// produces exactly one length-prefixed frame on the wire, and each
// ReadMessage call returns exactly one frame's payload.
type Framer struct {
	rwc io.ReadWriteCloser
	max uint32

	rmu sync.Mutex
	wmu sync.Mutex

	hdr [4]byte
}

// Wrap returns a Framer over rwc using DefaultMaxMessageSize.
func Wrap(rwc io.ReadWriteCloser) *Framer {
	return WrapSize(rwc, DefaultMaxMessageSize)
}

// WrapSize returns a Framer over rwc that rejects frames larger than
// maxSize bytes.
func WrapSize(rwc io.ReadWriteCloser, maxSize uint32) *Framer {
	return &Framer{rwc: rwc, max: maxSize}
}

// ReadMessage blocks for the next complete frame.
func (f *Framer) ReadMessage() ([]byte, error) {
	f.rmu.Lock()
	defer f.rmu.Unlock()

	if _, err := io.ReadFull(f.rwc, f.hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(f.hdr[:])
	if n > f.max {
		return nil, fmt.Errorf("lenframe: frame of %d bytes exceeds max %d", n, f.max)
	}
	if n == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(f.rwc, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteMessage sends p as a single frame.
func (f *Framer) WriteMessage(p []byte) error {
	if uint32(len(p)) > f.max {
		return fmt.Errorf("lenframe: message of %d bytes exceeds max %d", len(p), f.max)
	}

	f.wmu.Lock()
	defer f.wmu.Unlock()

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(p)))
	if _, err := f.rwc.Write(hdr[:]); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	_, err := f.rwc.Write(p)
	return err
}

func (f *Framer) Close() error {
	return f.rwc.Close()
}
