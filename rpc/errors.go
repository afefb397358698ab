package rpc

import "errors"

var (
	ErrPayloadTooLarge  = errors.New("rpc: payload exceeds configured max request bytes")
	ErrRouteLimit       = errors.New("rpc: client route limit reached")
	ErrServerRouteLimit = errors.New("rpc: server in-flight limit reached")
	ErrConnectionLost   = errors.New("rpc: transport closed with routes outstanding")
	ErrBadFrame         = errors.New("rpc: malformed frame")
	ErrUnknownMethod    = errors.New("rpc: unknown method id")
	ErrRouteClosed      = errors.New("rpc: route already closed")
)
