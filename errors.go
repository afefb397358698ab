package neonplex

import "errors"

var (
	ErrChannelIDInvalid   = errors.New("neonplex: channel id must be non-empty")
	ErrProtocolInvalid    = errors.New("neonplex: protocol must be non-empty")
	ErrChannelExists      = errors.New("neonplex: channel already ensured for this (id, protocol)")
	ErrChannelNotOpen     = errors.New("neonplex: channel is not open")
	ErrChannelDestroyed   = errors.New("neonplex: channel was destroyed")
	ErrPairCancelled      = errors.New("neonplex: pair registration was cancelled")
	ErrPeerClosed         = errors.New("neonplex: peer is closed")
	ErrHandshakeTruncated = errors.New("neonplex: truncated handshake frame")
	ErrFrameTruncated     = errors.New("neonplex: truncated channel frame")
	ErrNotWebSocketLike   = errors.New("neonplex: transport does not look like a websocket")
	ErrBadMode            = errors.New("neonplex: unknown duplex mode")
)
