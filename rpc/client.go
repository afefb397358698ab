package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-metrics"
)

// CallOpts carries the transport-only, per-call knobs extracted out of
// a method's own payload fields: a timeout distinct from ctx's own
// deadline, and an optional capability token. Passing ctx with its own
// deadline or cancellation is this port's rendering of the spec's
// "abort signal" — cancelling ctx aborts the call exactly as an
// AbortSignal firing would.
type CallOpts struct {
	TimeoutMs int
	Caps      []byte
}

// Client is the RPC client proxy: it assigns request ids, tracks
// pending routes, decodes responses, and resolves unary calls or feeds
// streaming iterators.
type Client struct {
	d      Duplex
	cfg    Config
	logger *slog.Logger
	msink  metrics.MetricSink
	labels []metrics.Label

	nextRID atomic.Uint32

	mu             sync.Mutex
	routes         map[uint32]*route
	recentlyClosed map[uint32]time.Time
	closed         bool
}

// NewClient builds an RPC client proxy over d.
func NewClient(d Duplex, cfg Config, logger *slog.Logger, labels []metrics.Label) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		d:              d,
		cfg:            cfg,
		logger:         logger,
		msink:          metrics.Default(),
		labels:         labels,
		routes:         make(map[uint32]*route),
		recentlyClosed: make(map[uint32]time.Time),
	}
	d.OnMessage(c.handleMessage)
	d.OnChannelDestroy(func(err error) { c.teardown(err) })
	return c
}

func (c *Client) nextRequestID() uint32 {
	// Wraps past zero deliberately: a same-session collision before the
	// counter has cycled through 2^32 ids is treated as a bug elsewhere,
	// not guarded against here.
	for {
		v := c.nextRID.Add(1)
		if v != 0 {
			return v
		}
	}
}

// Get issues a unary get call.
func (c *Client) Get(ctx context.Context, key []byte, opts CallOpts) (Envelope, error) {
	payload := GetPayload{Key: key, Caps: opts.Caps}.Encode()
	return c.callUnary(ctx, MethodGet, payload, opts)
}

// Put issues a unary put call.
func (c *Client) Put(ctx context.Context, key, value []byte, opts CallOpts) (Envelope, error) {
	payload := PutPayload{Key: key, Value: value, Caps: opts.Caps}.Encode()
	return c.callUnary(ctx, MethodPut, payload, opts)
}

// Del issues a unary delete call.
func (c *Client) Del(ctx context.Context, key []byte, opts CallOpts) (Envelope, error) {
	payload := DelPayload{Key: key, Caps: opts.Caps}.Encode()
	return c.callUnary(ctx, MethodDel, payload, opts)
}

// Append issues a unary append call.
func (c *Client) Append(ctx context.Context, value []byte, opts CallOpts) (Envelope, error) {
	payload := AppendPayload{Value: value, Caps: opts.Caps}.Encode()
	return c.callUnary(ctx, MethodAppend, payload, opts)
}

// Scan issues a streaming scan call and returns an Iterator over the
// resulting rows.
func (c *Client) Scan(ctx context.Context, query ScanPayload, opts CallOpts) (*Iterator, error) {
	query.Caps = opts.Caps
	payload := query.Encode()

	rt, err := c.startCall(routeStream, MethodScan, payload, opts)
	if err != nil {
		return nil, err
	}
	c.wireAbort(ctx, rt, MethodScan)
	c.wireTimeout(rt, MethodScan, opts)
	return &Iterator{c: c, r: rt}, nil
}

func (c *Client) callUnary(ctx context.Context, method MethodID, payload []byte, opts CallOpts) (Envelope, error) {
	rt, err := c.startCall(routeUnary, method, payload, opts)
	if err != nil {
		return Envelope{}, err
	}
	c.wireAbort(ctx, rt, method)
	timer := c.wireTimeout(rt, method, opts)
	start := time.Now()

	env, ok := <-rt.unaryResult
	if timer != nil {
		timer.Stop()
	}
	c.msink.AddSampleWithLabels(MetricClientCallDuration, float32(time.Since(start).Milliseconds()), c.labels)

	if !ok {
		rt.mu.Lock()
		connErr := rt.connErr
		rt.mu.Unlock()
		if connErr != nil {
			return Envelope{}, connErr
		}
		return Envelope{}, ErrConnectionLost
	}
	c.countOutcome(env)
	return env, nil
}

func (c *Client) countOutcome(env Envelope) {
	c.msink.IncrCounterWithLabels(MetricClientCallCount, 1, c.labels)
	if !env.OK {
		c.msink.IncrCounterWithLabels(MetricClientCallErrorCount, 1, c.labels)
	}
}

// startCall performs the pre-send checks (route limit, payload size),
// assigns an rid, registers the route, and writes the request frame.
func (c *Client) startCall(typ routeType, method MethodID, payload []byte, opts CallOpts) (*route, error) {
	c.mu.Lock()
	if c.cfg.MaxClientRoutes > 0 && len(c.routes) >= c.cfg.MaxClientRoutes {
		c.mu.Unlock()
		c.d.Destroy(ErrRouteLimit)
		return nil, ErrRouteLimit
	}
	c.mu.Unlock()

	if c.cfg.MaxRequestBytes > 0 && uint32(len(payload)) > c.cfg.MaxRequestBytes {
		return nil, ErrPayloadTooLarge
	}

	rid := c.nextRequestID()
	var rt *route
	if typ == routeUnary {
		rt = newUnaryRoute(rid, method)
	} else {
		rt = newStreamRoute(rid, method)
	}

	c.mu.Lock()
	c.routes[rid] = rt
	c.mu.Unlock()

	if err := c.d.Write(EncodeRequest(rid, method, payload)); err != nil {
		c.removeRoute(rid)
		return nil, err
	}
	return rt, nil
}

func (c *Client) wireTimeout(rt *route, method MethodID, opts CallOpts) *time.Timer {
	ms := opts.TimeoutMs
	if ms == 0 {
		ms = int(c.cfg.ClientTimeout / time.Millisecond)
	}
	if ms <= 0 {
		return nil
	}
	timer := time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
		c.cancelRoute(rt, method, Fail(CodeTimeout, fmt.Sprintf("Request timed out after %dms", ms)))
	})
	rt.mu.Lock()
	rt.timers = append(rt.timers, timer)
	rt.mu.Unlock()
	return timer
}

func (c *Client) wireAbort(ctx context.Context, rt *route, method MethodID) {
	if ctx == nil || ctx.Done() == nil {
		return
	}
	stop := make(chan struct{})
	rt.addCleanup(func() { close(stop) })
	go func() {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			cause := context.Cause(ctx)
			code := CodeDestroyed
			msg := "stop"
			if cause != nil {
				msg = cause.Error()
				var ce CodedError
				if asCodedError(cause, &ce) {
					code = ce.Code
					msg = ce.Message
				}
			}
			c.cancelRoute(rt, method, Fail(code, msg))
		}
	}()
}

// cancelRoute sends a cancel frame at most once and completes rt
// locally with a synthetic terminal envelope.
func (c *Client) cancelRoute(rt *route, method MethodID, synthetic Envelope) {
	rt.mu.Lock()
	alreadySent := rt.cancelSent
	rt.cancelSent = true
	alreadyClosed := rt.state == routeClosed
	rt.mu.Unlock()

	if !alreadySent {
		_ = c.d.Write(EncodeCancel(rt.rid, method))
	}
	if alreadyClosed {
		return
	}

	rt.markCancelled()
	switch rt.typ {
	case routeUnary:
		rt.closeUnary(&synthetic)
	case routeStream:
		rt.closeStream(streamItem{env: synthetic})
	}
	c.removeRoute(rt.rid)
}

func (c *Client) removeRoute(rid uint32) {
	now := time.Now()
	c.mu.Lock()
	delete(c.routes, rid)
	c.recentlyClosed[rid] = now.Add(c.orphanTTL())
	c.sweepRecentlyClosed(now)
	c.mu.Unlock()
}

// sweepRecentlyClosed drops every recentlyClosed entry whose TTL has
// already expired. Called with c.mu held, on every removeRoute, so the
// map never grows past roughly one TTL-window's worth of closed routes
// for a long-lived client — a lazily-swept two-generation map rather
// than a timer goroutine.
func (c *Client) sweepRecentlyClosed(now time.Time) {
	for rid, expiry := range c.recentlyClosed {
		if now.After(expiry) {
			delete(c.recentlyClosed, rid)
		}
	}
}

func (c *Client) orphanTTL() time.Duration {
	if c.cfg.OrphanTTL > 0 {
		return c.cfg.OrphanTTL
	}
	return 2 * time.Second
}

func (c *Client) handleMessage(raw []byte) {
	f, err := Decode(raw)
	if err != nil || f.Type != FrameResponse {
		return
	}

	c.mu.Lock()
	rt, ok := c.routes[f.RID]
	var withinTTL bool
	if !ok {
		expiry, seen := c.recentlyClosed[f.RID]
		withinTTL = seen && time.Now().Before(expiry)
	}
	c.mu.Unlock()

	if !ok {
		if withinTTL {
			c.logger.Debug("rpc: orphan response within TTL", LabelRID.L(f.RID))
		} else {
			c.logger.Warn("rpc: orphan response", LabelRID.L(f.RID))
			c.msink.IncrCounterWithLabels(MetricOrphanResponseCount, 1, c.labels)
		}
		return
	}

	if rt.isCancelled() {
		if !f.More {
			c.removeRoute(f.RID)
		}
		return
	}

	switch rt.typ {
	case routeUnary:
		var env *Envelope
		if len(f.Payload) > 0 {
			e, err := DecodeEnvelope(f.Payload)
			if err == nil {
				env = &e
			}
		}
		rt.closeUnary(env)
		c.removeRoute(f.RID)
		c.countOutcome(derefEnvelope(env))

	case routeStream:
		if f.More {
			e, err := DecodeEnvelope(f.Payload)
			if err == nil {
				rt.deliverEnvelope(e)
			}
			return
		}
		var terminal streamItem
		if len(f.Payload) > 0 {
			if e, err := DecodeEnvelope(f.Payload); err == nil {
				terminal = streamItem{env: e}
			}
		}
		rt.closeStream(terminal)
		c.removeRoute(f.RID)
	}
}

func derefEnvelope(e *Envelope) Envelope {
	if e == nil {
		return OKEnvelope(nil, nil)
	}
	return *e
}

// teardown fails every outstanding route with a connection-lost error,
// run once when the underlying duplex closes, ends, or errors.
func (c *Client) teardown(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	routes := make([]*route, 0, len(c.routes))
	for _, rt := range c.routes {
		routes = append(routes, rt)
	}
	c.routes = make(map[uint32]*route)
	c.mu.Unlock()

	err := ErrConnectionLost
	if cause != nil {
		err = cause
	}
	for _, rt := range routes {
		rt.failConnection(err)
	}
}

// Close gracefully closes the underlying duplex.
func (c *Client) Close() error {
	return c.d.Close()
}

// Destroy immediately tears down the underlying duplex.
func (c *Client) Destroy(err error) {
	c.d.Destroy(err)
}

// Unwrap returns the underlying Duplex.
func (c *Client) Unwrap() Duplex {
	return c.d
}
