package pool

import (
	"context"
	"sync"
	"time"

	"github.com/zacharygriffee/neonplex/rpc"
)

// Iterator wraps the rpc.Iterator a balanced Scan call returns, deferring
// that call's pool bookkeeping until the stream actually terminates
// instead of recording it at dispatch time: ok is derived from the last
// envelope observed, and reaching done or a thrown error is what finally
// reports the outcome, in a finally run exactly once.
type Iterator struct {
	it    *rpc.Iterator
	pool  *Pool
	entry *Entry
	start time.Time

	mu       sync.Mutex
	lastEnv  rpc.Envelope
	finished bool
}

func newIterator(it *rpc.Iterator, p *Pool, e *Entry, start time.Time) *Iterator {
	return &Iterator{it: it, pool: p, entry: e, start: start, lastEnv: rpc.Envelope{OK: true}}
}

// Next delegates to the underlying rpc.Iterator, recording pool
// bookkeeping exactly once the stream reaches a terminal state.
func (si *Iterator) Next(ctx context.Context) (rpc.Envelope, bool, error) {
	env, done, err := si.it.Next(ctx)
	if !done && err == nil {
		si.mu.Lock()
		si.lastEnv = env
		si.mu.Unlock()
	}
	if done || err != nil {
		si.finish(err)
	}
	return env, done, err
}

// Return asks the server to stop the stream early and records
// bookkeeping from whatever envelope was last observed.
func (si *Iterator) Return() error {
	err := si.it.Return()
	si.finish(nil)
	return err
}

// Throw aborts the stream with err and records bookkeeping with err as
// the call's terminal error, which always triggers the entry's cooldown.
func (si *Iterator) Throw(err error) error {
	thrown := si.it.Throw(err)
	si.finish(err)
	return thrown
}

func (si *Iterator) finish(callErr error) {
	si.mu.Lock()
	if si.finished {
		si.mu.Unlock()
		return
	}
	si.finished = true
	env := si.lastEnv
	si.mu.Unlock()
	si.pool.finishCall(si.entry, si.start, "scan", env, callErr)
}
