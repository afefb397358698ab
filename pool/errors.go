package pool

import "errors"

var (
	// ErrNoPeer is returned when a call is attempted against an empty
	// pool or one where every entry is in cooldown.
	ErrNoPeer = errors.New("PeerPool: no peers available")
)
