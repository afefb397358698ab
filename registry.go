package neonplex

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-metrics"

	"github.com/zacharygriffee/neonplex/pkg/lenframe"
	"github.com/zacharygriffee/neonplex/pkg/substrate"
)

// pairWaiter is a pending listen() registration: when a remotely-opened
// stream's handshake matches cfg.ID, onPair fires before the local open
// callback and before the local side echoes its own handshake.
type pairWaiter struct {
	cfg    *ChannelConfig
	onPair func(*channel)
}

// registry is the channel helper's state for one multiplex substrate:
// it locates, creates, and pairs channels, and runs the accept loop
// that demultiplexes inbound streams by their handshake header.
type registry struct {
	sub    substrate.Substrate
	logger *slog.Logger
	msink  metrics.MetricSink
	labels []metrics.Label

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	channels map[channelKey]*channel
	waiters  map[channelKey]*pairWaiter
	closed   bool
}

func newRegistry(sub substrate.Substrate, logger *slog.Logger, msink metrics.MetricSink, labels []metrics.Label) *registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &registry{
		sub:      sub,
		logger:   logger,
		msink:    msink,
		labels:   labels,
		ctx:      ctx,
		cancel:   cancel,
		channels: make(map[channelKey]*channel),
		waiters:  make(map[channelKey]*pairWaiter),
	}
	go r.acceptLoop()
	return r
}

// incrChannelMetric fires one of the channel lifecycle counters, labeled
// by the channel id the event belongs to.
func (r *registry) incrChannelMetric(name []string, id ChannelID) {
	r.msink.IncrCounterWithLabels(name, 1, append(append([]metrics.Label{}, r.labels...), LabelChannelID.M(string(id.Data))))
}

// setChannelGauge reports the current size of a per-channel gauge, such
// as the number of writes still buffered ahead of open.
func (r *registry) setChannelGauge(name []string, id ChannelID, v float32) {
	r.msink.SetGaugeWithLabels(name, v, append(append([]metrics.Label{}, r.labels...), LabelChannelID.M(string(id.Data))))
}

func (r *registry) acceptLoop() {
	for {
		stream, err := r.sub.AcceptStream(r.ctx)
		if err != nil {
			return
		}
		go r.handleAccepted(stream)
	}
}

func (r *registry) handleAccepted(stream substrate.Stream) {
	framer := lenframe.Wrap(stream)
	msg, err := framer.ReadMessage()
	if err != nil || len(msg) == 0 || msg[0] != frameHandshake {
		_ = stream.Close()
		return
	}

	id, hs, err := decodeHandshakeHeader(msg[1:])
	if err != nil {
		_ = stream.Close()
		return
	}

	r.mu.Lock()
	waiter, ok := r.waiters[id.key()]
	if ok {
		delete(r.waiters, id.key())
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("neonplex: inbound stream for unpaired channel",
			LabelChannelID.L(string(id.Data)), LabelProtocol.L(id.Protocol))
		_ = stream.Close()
		return
	}

	cfg := waiter.cfg
	ch := newChannel(id, stream, cfg)
	ch.mu.Lock()
	ch.opened = true
	ch.mu.Unlock()
	cfg.sendFn = ch.sendData

	r.mu.Lock()
	r.channels[id.key()] = ch
	r.mu.Unlock()

	go ch.readLoop()

	// onPair must run first: it's what sets the owning Duplex's d.ch on
	// the listen side, and fireOpen's onOpen callback flushes buffered
	// pending writes by way of that field. Firing open before pairing
	// would have onOpen observe a nil channel and drop them.
	waiter.onPair(ch)
	cfg.fireOpen(cfg.decodedHandshake(hs))
	hsOut, err := cfg.encodedHandshake()
	if err != nil {
		cfg.reportErr(err)
		return
	}
	_ = ch.sendHandshake(hsOut)
}

// getChannel locates an already-open channel for id.
func (r *registry) getChannel(id ChannelID) (*channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id.key()]
	return ch, ok
}

// isOpen reports whether the substrate has an established channel for
// id whose handshake has completed.
func (r *registry) isOpen(id ChannelID) bool {
	ch, ok := r.getChannel(id)
	return ok && ch.isOpened()
}

// ensure locates or creates the channel for cfg.ID, wiring cfg's
// callbacks and installing its send function.
func (r *registry) ensure(cfg *ChannelConfig) (*channel, error) {
	cfg.normalize(r)

	key := cfg.ID.key()
	r.mu.Lock()
	if ch, ok := r.channels[key]; ok {
		r.mu.Unlock()
		return ch, nil
	}
	r.mu.Unlock()

	if cfg.ID.Data == nil {
		return nil, ErrChannelIDInvalid
	}
	if cfg.Protocol == "" {
		return nil, ErrProtocolInvalid
	}

	stream, err := r.sub.OpenStream(r.ctx)
	if err != nil {
		return nil, err
	}

	ch := newChannel(cfg.ID, stream, cfg)
	cfg.sendFn = ch.sendData

	r.mu.Lock()
	if existing, ok := r.channels[key]; ok {
		r.mu.Unlock()
		_ = stream.Close()
		return existing, nil
	}
	r.channels[key] = ch
	r.mu.Unlock()

	go ch.readLoop()
	return ch, nil
}

// open ensures the channel exists, then sends the local handshake if it
// has not already been sent (e.g. by the accept-side echo).
func (r *registry) open(cfg *ChannelConfig) (*channel, error) {
	ch, err := r.ensure(cfg)
	if err != nil {
		return nil, err
	}
	hs, err := cfg.encodedHandshake()
	if err != nil {
		return nil, err
	}
	if err := ch.sendHandshake(hs); err != nil {
		return nil, err
	}
	return ch, nil
}

// pair registers onPair to fire once the remote opens a stream matching
// cfg.ID.
func (r *registry) pair(cfg *ChannelConfig, onPair func(*channel)) {
	cfg.normalize(r)
	r.mu.Lock()
	r.waiters[cfg.ID.key()] = &pairWaiter{cfg: cfg, onPair: onPair}
	r.mu.Unlock()
}

// unpair cancels any outstanding pair registration for cfg.ID.
func (r *registry) unpair(cfg *ChannelConfig) {
	r.mu.Lock()
	delete(r.waiters, cfg.ID.key())
	r.mu.Unlock()
}

func (r *registry) close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	chans := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chans = append(chans, ch)
	}
	r.mu.Unlock()

	r.cancel()
	for _, ch := range chans {
		ch.destroy(ErrPeerClosed)
	}
	return r.sub.Close()
}
