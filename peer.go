package neonplex

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-metrics"

	"github.com/zacharygriffee/neonplex/pkg/substrate"
	"github.com/zacharygriffee/neonplex/pkg/wsconn"
)

// substrateCache is the process-local cache mapping one transport to
// the single multiplex substrate bound to it, so concurrent Peers built
// over the same transport share a substrate rather than layering a
// second yamux session on top of the same bytes. Entries are evicted
// explicitly by Peer.Close — see pkg/substrate.Cache's doc comment for
// why this is not a true GC weak reference.
var substrateCache = substrate.NewCache()

// PeerOption configures a Peer at construction time.
type PeerOption func(*peerConfig)

type peerConfig struct {
	serverRole bool
	protocol   string
	logHandler slog.Handler
	labels     []metrics.Label
	msink      metrics.MetricSink
}

// WithServerRole marks this Peer as the accept-side of the transport
// for the purpose of binding the multiplex substrate: exactly one side
// of a transport pair must be the server.
func WithServerRole() PeerOption {
	return func(c *peerConfig) { c.serverRole = true }
}

// WithProtocolBase overrides the default protocol namespace used when
// deriving lane protocol strings.
func WithProtocolBase(base string) PeerOption {
	return func(c *peerConfig) { c.protocol = base }
}

// WithPeerLog sets the slog.Handler used for this Peer's logger.
func WithPeerLog(handler slog.Handler) PeerOption {
	return func(c *peerConfig) { c.logHandler = handler }
}

// WithPeerMetricLabels attaches static labels to every metric this Peer
// emits.
func WithPeerMetricLabels(labels []metrics.Label) PeerOption {
	return func(c *peerConfig) { c.labels = labels }
}

// WithPeerMetricSink overrides the metrics.MetricSink used by this
// Peer; defaults to metrics.Default().
func WithPeerMetricSink(sink metrics.MetricSink) PeerOption {
	return func(c *peerConfig) { c.msink = sink }
}

// Peer owns exactly one transport and the multiplex substrate bound to
// it, exposing helpers that open typed lanes over that substrate.
type Peer struct {
	transport    Transport
	sub          substrate.Substrate
	reg          *registry
	protocolBase string
	serverRole   bool
	ws           *websocket.Conn
	logger       *slog.Logger
	labels       []metrics.Label
	msink        metrics.MetricSink

	mu     sync.Mutex
	closed bool
}

// PeerConfig is the point-in-time snapshot of a Peer's identity
// returned by GetConfig: the protocol namespace lane strings are
// derived under, and which side of the transport pair this Peer bound
// the multiplex substrate as.
type PeerConfig struct {
	ProtocolBase string
	ServerRole   bool
}

// NewPeer binds a Peer to t. If t is recognised as WebSocket-backed
// (see pkg/wsconn), the original *websocket.Conn is retained for
// introspection via WebSocket().
func NewPeer(t Transport, opts ...PeerOption) (*Peer, error) {
	cfg := &peerConfig{protocol: DefaultProtocol}
	for _, opt := range opts {
		opt(cfg)
	}

	sub, err := substrateCache.GetOrCreate(t, func() (substrate.Substrate, error) {
		if cfg.serverRole {
			return substrate.NewServer(t)
		}
		return substrate.NewClient(t)
	})
	if err != nil {
		return nil, err
	}

	msink := cfg.msink
	if msink == nil {
		msink = metrics.Default()
	}

	p := &Peer{
		transport:    t,
		sub:          sub,
		protocolBase: cfg.protocol,
		serverRole:   cfg.serverRole,
		logger:       newLogger(cfg.logHandler),
		labels:       cfg.labels,
		msink:        msink,
	}
	p.reg = newRegistry(sub, p.logger, msink, cfg.labels)

	if ws, ok := wsconn.Detect(t); ok {
		p.ws = ws
	}

	return p, nil
}

// ConnectRPC opens a Connect-mode duplex bound to lane "rpc" for id.
func (p *Peer) ConnectRPC(id ChannelID) (*Duplex, error) {
	return p.connectLane(id, LaneRPC)
}

// ListenRPC opens a Listen-mode duplex bound to lane "rpc" for id.
func (p *Peer) ListenRPC(id ChannelID) (*Duplex, error) {
	return p.listenLane(id, LaneRPC)
}

// ConnectStream opens a Connect-mode duplex bound to lane "events" for id.
func (p *Peer) ConnectStream(id ChannelID) (*Duplex, error) {
	return p.connectLane(id, LaneEvents)
}

// ListenStream opens a Listen-mode duplex bound to lane "events" for id.
func (p *Peer) ListenStream(id ChannelID) (*Duplex, error) {
	return p.listenLane(id, LaneEvents)
}

// ConnectLane opens a Connect-mode duplex bound to a custom lane suffix.
func (p *Peer) ConnectLane(id ChannelID, lane string) (*Duplex, error) {
	return p.connectLane(id, lane)
}

// ListenLane opens a Listen-mode duplex bound to a custom lane suffix.
func (p *Peer) ListenLane(id ChannelID, lane string) (*Duplex, error) {
	return p.listenLane(id, lane)
}

func (p *Peer) connectLane(id ChannelID, lane string) (*Duplex, error) {
	d := newDuplex(p.reg, id, LaneProtocol(p.protocolBase, lane))
	if err := d.open(ModeConnect); err != nil {
		return nil, err
	}
	p.msink.IncrCounterWithLabels(MetricPeerLaneOpenCount, 1, append(p.labels, LabelLane.M(lane)))
	return d, nil
}

func (p *Peer) listenLane(id ChannelID, lane string) (*Duplex, error) {
	d := newDuplex(p.reg, id, LaneProtocol(p.protocolBase, lane))
	if err := d.open(ModeListen); err != nil {
		return nil, err
	}
	p.msink.IncrCounterWithLabels(MetricPeerLaneOpenCount, 1, append(p.labels, LabelLane.M(lane)))
	return d, nil
}

// GetTransport returns the transport this Peer was built over.
func (p *Peer) GetTransport() Transport {
	return p.transport
}

// GetConfig returns this Peer's protocol base and substrate role.
func (p *Peer) GetConfig() PeerConfig {
	return PeerConfig{ProtocolBase: p.protocolBase, ServerRole: p.serverRole}
}

// WebSocket returns the underlying *websocket.Conn and true if this
// Peer's transport was recognised as WebSocket-backed.
func (p *Peer) WebSocket() (*websocket.Conn, bool) {
	return p.ws, p.ws != nil
}

// Close tears down the Peer's substrate and evicts it from the process
// substrate cache.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	substrateCache.Release(p.transport)
	return p.reg.close()
}
