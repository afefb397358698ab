package rpc

import "context"

// Iterator is the client-side pull consumer for a scan call: Next
// yields rows, Return asks the server to stop early, Throw aborts with
// a caller-supplied error. Both Return and Throw send a cancel frame at
// most once per route.
type Iterator struct {
	c *Client
	r *route

	finalErr error
	done     bool
}

// Next blocks until the next row is available, the stream ends
// cleanly, or it fails. Once it has returned the stream's first error,
// every subsequent call returns done=true, err=nil — the first error is
// surfaced exactly once.
func (it *Iterator) Next(ctx context.Context) (Envelope, bool, error) {
	if it.done {
		return Envelope{}, true, nil
	}
	select {
	case <-ctx.Done():
		return Envelope{}, false, ctx.Err()
	case item, ok := <-it.r.streamCh:
		if !ok {
			it.r.mu.Lock()
			connErr := it.r.connErr
			it.r.mu.Unlock()
			it.done = true
			if connErr != nil {
				it.finalErr = connErr
				return Envelope{}, false, connErr
			}
			return Envelope{}, true, nil
		}
		if !item.terminal {
			return item.env, false, nil
		}
		it.done = true
		if item.env.OK || item.env.Code == "" {
			return Envelope{}, true, nil
		}
		it.finalErr = envelopeError{item.env}
		return Envelope{}, false, it.finalErr
	}
}

// Return sends a cancel frame and closes the route; no further
// envelopes are yielded afterward.
func (it *Iterator) Return() error {
	if it.done {
		return nil
	}
	it.done = true
	it.c.cancelRoute(it.r, it.r.method, Fail(CodeClosed, "iterator returned"))
	return nil
}

// Throw sends a cancel frame and closes the route with err as the
// terminal error observed by any concurrent Next caller.
func (it *Iterator) Throw(err error) error {
	if it.done {
		return nil
	}
	it.done = true
	it.c.cancelRoute(it.r, it.r.method, Fail(CodeUnknown, err.Error()))
	return nil
}

// envelopeError adapts a failure Envelope to the error interface so it
// can be returned from Next.
type envelopeError struct {
	Envelope
}

func (e envelopeError) Error() string {
	return string(e.Code) + ": " + e.Message
}
