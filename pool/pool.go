package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"

	"github.com/zacharygriffee/neonplex"
	"github.com/zacharygriffee/neonplex/rpc"
)

// AddOpts configures one Add call.
type AddOpts struct {
	Weight float64
	Meta   Meta
}

// CallOpts configures one balanced call: which channel/lane to route
// it to, the usual rpc.CallOpts knobs, and the selection hints a Policy
// may consult.
type CallOpts struct {
	ID   neonplex.ChannelID
	Lane string // defaults to neonplex.LaneRPC

	TimeoutMs int
	Caps      []byte

	PreferLocal bool
	StickyKey   []byte
}

func (o CallOpts) rpcOpts() rpc.CallOpts {
	return rpc.CallOpts{TimeoutMs: o.TimeoutMs, Caps: o.Caps}
}

func (o CallOpts) selectOpts() SelectOpts {
	return SelectOpts{PreferLocal: o.PreferLocal, StickyKey: o.StickyKey}
}

func (o CallOpts) lane() string {
	if o.Lane == "" {
		return neonplex.LaneRPC
	}
	return o.Lane
}

// Pool balances RPC calls across a weighted set of neonplex peers. It
// holds no persistence and performs no discovery; entries are added
// and removed explicitly.
type Pool struct {
	mu      sync.Mutex
	entries map[uint64]*Entry
	nextID  uint64
	closed  bool

	policy      Policy
	preferLocal bool
	logger      *slog.Logger
	msink       metrics.MetricSink
	labels      []metrics.Label
	observers   observerList
}

// New builds an empty Pool.
func New(opts ...Option) *Pool {
	cfg := defaultPoolConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	logger := slog.Default()
	if cfg.logHandler != nil {
		logger = slog.New(cfg.logHandler)
	}
	msink := cfg.msink
	if msink == nil {
		msink = metrics.Default()
	}
	return &Pool{
		entries:     make(map[uint64]*Entry),
		policy:      cfg.policy,
		preferLocal: cfg.preferLocal,
		logger:      logger,
		msink:       msink,
		labels:      cfg.labels,
	}
}

// On registers an observer for every Pool lifecycle event.
func (p *Pool) On(fn Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers.add(fn)
}

// Add inserts peer into the pool and returns a disposer that removes it.
func (p *Pool) Add(peer *neonplex.Peer, opts AddOpts) (id uint64, disposer func()) {
	weight := opts.Weight
	if weight <= 0 {
		weight = 1
	}

	p.mu.Lock()
	p.nextID++
	id = p.nextID
	p.entries[id] = newEntry(id, peer, weight, opts.Meta)
	n := len(p.entries)
	p.mu.Unlock()

	p.msink.SetGaugeWithLabels(MetricEntryCount, float32(n), p.labels)
	return id, func() { p.Remove(id) }
}

// Remove destroys every cached RPC client for id's entry and drops it
// from the pool.
func (p *Pool) Remove(id uint64) {
	p.mu.Lock()
	e, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	n := len(p.entries)
	p.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	clients := make([]*rpc.Client, 0, len(e.clients))
	for _, c := range e.clients {
		clients = append(clients, c)
	}
	e.clients = make(map[clientKey]*rpc.Client)
	e.mu.Unlock()
	for _, c := range clients {
		c.Destroy(nil)
	}
	p.msink.SetGaugeWithLabels(MetricEntryCount, float32(n), p.labels)
}

// Close gracefully closes every cached RPC client across every entry.
func (p *Pool) Close() error {
	return p.teardown(false, nil)
}

// Destroy immediately tears down every cached RPC client with err.
func (p *Pool) Destroy(err error) {
	_ = p.teardown(true, err)
}

func (p *Pool) teardown(hard bool, cause error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	entries := make([]*Entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.entries = make(map[uint64]*Entry)
	p.mu.Unlock()

	var firstErr error
	for _, e := range entries {
		e.mu.Lock()
		clients := make([]*rpc.Client, 0, len(e.clients))
		for _, c := range e.clients {
			clients = append(clients, c)
		}
		e.mu.Unlock()
		for _, c := range clients {
			if hard {
				c.Destroy(cause)
				continue
			}
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Stats returns a point-in-time snapshot of every entry.
func (p *Pool) Stats() []Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Stats, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.snapshot())
	}
	return out
}

// pick selects an eligible entry, firing EventNoPeer and ErrNoPeer when
// the pool is empty or every entry is in cooldown.
func (p *Pool) pick(opts CallOpts) (*Entry, error) {
	now := time.Now()

	p.mu.Lock()
	eligible := make([]*Entry, 0, len(p.entries))
	for _, e := range p.entries {
		if e.eligible(now) {
			eligible = append(eligible, e)
		}
	}
	policy := p.policy
	preferLocal := opts.PreferLocal || p.preferLocal
	p.mu.Unlock()

	sel := opts.selectOpts()
	sel.PreferLocal = preferLocal
	e := policy.Select(eligible, sel)
	if e == nil {
		p.msink.IncrCounterWithLabels(MetricNoPeerCount, 1, p.labels)
		p.mu.Lock()
		p.observers.fireCall(CallEvent{Kind: EventNoPeer, Err: ErrNoPeer})
		p.mu.Unlock()
		return nil, ErrNoPeer
	}
	return e, nil
}

func (p *Pool) clientFor(e *Entry, opts CallOpts) (*rpc.Client, error) {
	return e.clientFor(opts.ID, opts.lane(), func() (*rpc.Client, error) {
		d, err := e.Peer.ConnectLane(opts.ID, opts.lane())
		if err != nil {
			return nil, err
		}
		return rpc.NewClient(d, rpc.DefaultConfig(), p.logger, p.labels), nil
	})
}

func (p *Pool) finishCall(e *Entry, start time.Time, method string, env rpc.Envelope, callErr error) {
	e.recordOutcome(start, &env, callErr)
	p.msink.AddSampleWithLabels(MetricCallDuration, float32(time.Since(start).Milliseconds()), p.labels)
	p.msink.IncrCounterWithLabels(MetricCallCount, 1, p.labels)

	kind := EventComplete
	if callErr != nil {
		kind = EventError
		p.msink.IncrCounterWithLabels(MetricCallErrorCount, 1, p.labels)
	} else if !env.OK {
		p.msink.IncrCounterWithLabels(MetricCallErrorCount, 1, p.labels)
	}

	p.mu.Lock()
	p.observers.fireCall(CallEvent{Kind: kind, EntryID: e.ID, Method: method, Err: callErr})
	p.observers.fireStats(PeerStatsEvent{Stats: e.snapshot()})
	p.mu.Unlock()
}

// Get balances a unary get call across the pool.
func (p *Pool) Get(ctx context.Context, key []byte, opts CallOpts) (rpc.Envelope, error) {
	e, err := p.pick(opts)
	if err != nil {
		return rpc.Envelope{}, err
	}
	c, err := p.clientFor(e, opts)
	if err != nil {
		return rpc.Envelope{}, err
	}
	start := e.recordStart()
	env, err := c.Get(ctx, key, opts.rpcOpts())
	p.finishCall(e, start, "get", env, err)
	return env, err
}

// Put balances a unary put call across the pool.
func (p *Pool) Put(ctx context.Context, key, value []byte, opts CallOpts) (rpc.Envelope, error) {
	e, err := p.pick(opts)
	if err != nil {
		return rpc.Envelope{}, err
	}
	c, err := p.clientFor(e, opts)
	if err != nil {
		return rpc.Envelope{}, err
	}
	start := e.recordStart()
	env, err := c.Put(ctx, key, value, opts.rpcOpts())
	p.finishCall(e, start, "put", env, err)
	return env, err
}

// Del balances a unary delete call across the pool.
func (p *Pool) Del(ctx context.Context, key []byte, opts CallOpts) (rpc.Envelope, error) {
	e, err := p.pick(opts)
	if err != nil {
		return rpc.Envelope{}, err
	}
	c, err := p.clientFor(e, opts)
	if err != nil {
		return rpc.Envelope{}, err
	}
	start := e.recordStart()
	env, err := c.Del(ctx, key, opts.rpcOpts())
	p.finishCall(e, start, "del", env, err)
	return env, err
}

// Append balances a unary append call across the pool.
func (p *Pool) Append(ctx context.Context, value []byte, opts CallOpts) (rpc.Envelope, error) {
	e, err := p.pick(opts)
	if err != nil {
		return rpc.Envelope{}, err
	}
	c, err := p.clientFor(e, opts)
	if err != nil {
		return rpc.Envelope{}, err
	}
	start := e.recordStart()
	env, err := c.Append(ctx, value, opts.rpcOpts())
	p.finishCall(e, start, "append", env, err)
	return env, err
}

// Scan balances a streaming scan call across the pool. Unlike the unary
// calls above, bookkeeping for this call is not recorded here: it fires
// in a finally once the returned Iterator's stream actually terminates,
// with ok derived from the last envelope the caller observed.
func (p *Pool) Scan(ctx context.Context, query rpc.ScanPayload, opts CallOpts) (*Iterator, error) {
	e, err := p.pick(opts)
	if err != nil {
		return nil, err
	}
	c, err := p.clientFor(e, opts)
	if err != nil {
		return nil, err
	}
	start := e.recordStart()
	it, err := c.Scan(ctx, query, opts.rpcOpts())
	if err != nil {
		p.finishCall(e, start, "scan", rpc.Envelope{}, err)
		return nil, err
	}
	return newIterator(it, p, e, start), nil
}
