package rpc

import (
	"sync"
	"time"
)

type routeType int

const (
	routeUnary routeType = iota
	routeStream
)

type routeState int

const (
	routeActive routeState = iota
	routeCancelled
	routeClosed
)

// streamItem is one element flowing through a stream route's channel:
// either a row envelope, or the single terminal marker that ends the
// stream (failed if env is a failure envelope, clean otherwise).
type streamItem struct {
	env      Envelope
	terminal bool
}

// route is the client-side pending-call state for one request id.
// Exactly one terminal outcome is produced for every route that is
// started, matching spec §8's invariant.
type route struct {
	rid    uint32
	method MethodID
	typ    routeType

	mu         sync.Mutex
	state      routeState
	cancelSent bool
	startedAt  time.Time

	unaryResult chan Envelope
	connErr     error // set on transport teardown; takes priority over any envelope

	streamCh chan streamItem

	timers  []*time.Timer
	cleanup []func()
}

func newUnaryRoute(rid uint32, method MethodID) *route {
	return &route{
		rid:         rid,
		method:      method,
		typ:         routeUnary,
		unaryResult: make(chan Envelope, 1),
		startedAt:   time.Now(),
	}
}

func newStreamRoute(rid uint32, method MethodID) *route {
	return &route{
		rid:       rid,
		method:    method,
		typ:       routeStream,
		streamCh:  make(chan streamItem, 64),
		startedAt: time.Now(),
	}
}

func (r *route) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == routeCancelled
}

func (r *route) markCancelled() {
	r.mu.Lock()
	r.state = routeCancelled
	r.mu.Unlock()
}

// deliverEnvelope pushes a non-terminal stream row. Routes that are
// already cancelled drop the payload silently, per spec §4.6. The
// state check and the send share r.mu with closeStream/failConnection's
// own channel close, so a route can never be delivered to after it has
// been (or is concurrently being) closed out from under it.
func (r *route) deliverEnvelope(env Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != routeActive {
		return
	}
	select {
	case r.streamCh <- streamItem{env: env}:
	default:
		// Consumer is far enough behind that the buffer is full;
		// block until it catches up — this is the back-pressure the
		// concurrency model assumes for streaming calls.
		r.streamCh <- streamItem{env: env}
	}
}

// closeUnary stores env (defaulting to an ok envelope if none was ever
// observed) and marks the route closed.
func (r *route) closeUnary(env *Envelope) {
	r.mu.Lock()
	if r.state == routeClosed {
		r.mu.Unlock()
		return
	}
	r.state = routeClosed
	r.mu.Unlock()
	if env == nil {
		r.unaryResult <- OKEnvelope(nil, nil)
	} else {
		r.unaryResult <- *env
	}
	r.runCleanup()
}

// closeStream delivers the single terminal item and closes the
// channel, after which every further read observes done. The terminal
// send and the close both run under r.mu, the same lock
// deliverEnvelope takes to check r.state before its own send — so a
// concurrent deliverEnvelope can never observe routeActive and then
// send into a channel this call has already closed.
func (r *route) closeStream(terminal streamItem) {
	r.mu.Lock()
	if r.state == routeClosed {
		r.mu.Unlock()
		return
	}
	r.state = routeClosed
	terminal.terminal = true
	r.streamCh <- terminal
	close(r.streamCh)
	timers, fns := r.takeCleanup()
	r.mu.Unlock()
	execCleanup(timers, fns)
}

// failConnection terminates the route with a thrown connection-lost
// error rather than an envelope, used on transport teardown. Closing
// the channel under r.mu, same as closeStream, is what makes this safe
// to call concurrently with a duplex read-loop goroutine still
// delivering envelopes for this route.
func (r *route) failConnection(err error) {
	r.mu.Lock()
	if r.state == routeClosed {
		r.mu.Unlock()
		return
	}
	r.state = routeClosed
	r.connErr = err

	switch r.typ {
	case routeUnary:
		close(r.unaryResult)
	case routeStream:
		close(r.streamCh)
	}
	timers, fns := r.takeCleanup()
	r.mu.Unlock()
	execCleanup(timers, fns)
}

func (r *route) addCleanup(fn func()) {
	r.mu.Lock()
	r.cleanup = append(r.cleanup, fn)
	r.mu.Unlock()
}

func (r *route) runCleanup() {
	r.mu.Lock()
	timers, fns := r.takeCleanup()
	r.mu.Unlock()
	execCleanup(timers, fns)
}

// takeCleanup clears and returns the pending timers and cleanup funcs.
// Callers must already hold r.mu.
func (r *route) takeCleanup() ([]*time.Timer, []func()) {
	timers := r.timers
	fns := r.cleanup
	r.timers = nil
	r.cleanup = nil
	return timers, fns
}

func execCleanup(timers []*time.Timer, fns []func()) {
	for _, t := range timers {
		t.Stop()
	}
	for _, fn := range fns {
		fn()
	}
}
