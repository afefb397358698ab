package rpc

import "context"

// Handler is any type implementing a subset of the per-method
// sub-interfaces below. The server type-asserts to each on dispatch;
// an unimplemented method produces a {Unknown, "Unknown method"}
// envelope ({Unknown, "Scan not supported"} for scan) rather than a panic, matching spec §4.5's "dynamic handler
// table" policy.
type Handler interface{}

type GetHandler interface {
	Get(ctx context.Context, req GetPayload) (Envelope, error)
}

type PutHandler interface {
	Put(ctx context.Context, req PutPayload) (Envelope, error)
}

type DelHandler interface {
	Del(ctx context.Context, req DelPayload) (Envelope, error)
}

type AppendHandler interface {
	Append(ctx context.Context, req AppendPayload) (Envelope, error)
}

type ScanHandler interface {
	Scan(ctx context.Context, req ScanPayload) (ScanIterator, error)
}

// ScanIterator is the producer side of a streaming scan call: Next
// yields rows one at a time, Return asks the producer to stop early
// (invoked by the server when a cancel frame arrives for this rid).
type ScanIterator interface {
	// Next blocks until the next row is available, the scan is
	// exhausted (done=true, err=nil), or it fails (err != nil).
	Next(ctx context.Context) (env Envelope, done bool, err error)
	Return() error
}
