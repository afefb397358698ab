package neonplex

import "sync"

// duplexMode selects how a Duplex establishes its underlying channel.
type duplexMode int

const (
	// ModeConnect calls open() immediately.
	ModeConnect duplexMode = iota
	// ModeListen calls pair() and waits for the remote to initiate.
	ModeListen
)

// Duplex presents one sub-channel as a stream-style bidirectional byte
// duplex: writes issued before the channel opens are buffered in order
// and flushed once it does, lifecycle events are observable via On, and
// destruction — from either side — is always symmetric.
type Duplex struct {
	cfg *ChannelConfig
	reg *registry
	ch  *channel

	mu        sync.Mutex
	connected bool
	alive     bool
	pending   [][]byte

	observers   map[EventKind]*observerList
	scratch     map[string]any
	userMessage func([]byte)
}

func newDuplex(reg *registry, id ChannelID, protocol string) *Duplex {
	d := &Duplex{
		reg:       reg,
		alive:     true,
		observers: make(map[EventKind]*observerList),
		scratch:   make(map[string]any),
	}
	d.cfg = &ChannelConfig{
		ID:       id,
		Protocol: protocol,
		OnOpen:    d.onOpen,
		OnClose:   d.onClose,
		OnDestroy: d.onDestroy,
		OnMessage: d.onMessage,
	}
	return d
}

// open binds the duplex per mode. Connect opens immediately; Listen
// registers a pair waiter and returns without blocking, firing On
// listeners once the remote initiates.
func (d *Duplex) open(mode duplexMode) error {
	switch mode {
	case ModeConnect:
		ch, err := d.reg.open(d.cfg)
		if err != nil {
			return err
		}
		d.ch = ch
		return nil
	case ModeListen:
		d.reg.pair(d.cfg, func(ch *channel) {
			d.mu.Lock()
			d.ch = ch
			d.mu.Unlock()
		})
		return nil
	default:
		return ErrBadMode
	}
}

// On registers fn to observe events of kind. Registration order is
// delivery order.
func (d *Duplex) On(kind EventKind, fn Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ol, ok := d.observers[kind]
	if !ok {
		ol = &observerList{}
		d.observers[kind] = ol
	}
	ol.add(fn)
}

func (d *Duplex) fire(kind EventKind, handshake []byte, cause error) {
	d.mu.Lock()
	ol, ok := d.observers[kind]
	d.mu.Unlock()
	if ok {
		ol.fire(handshake, cause)
	}
}

func (d *Duplex) onOpen(handshake []byte) {
	d.mu.Lock()
	d.connected = true
	pending := d.pending
	d.pending = nil
	ch := d.ch
	d.mu.Unlock()

	if ch != nil {
		for _, p := range pending {
			_ = ch.sendData(p)
		}
		d.reg.setChannelGauge(MetricChannelBufferedMsgs, d.cfg.ID, 0)
	}

	d.fire(EventRemoteOpen, handshake, nil)
	d.fire(EventConnection, handshake, nil)
}

func (d *Duplex) onClose() {
	d.mu.Lock()
	d.connected = false
	d.mu.Unlock()
	d.fire(EventChannelClose, nil, nil)
}

func (d *Duplex) onDestroy(err error) {
	d.mu.Lock()
	d.alive = false
	d.connected = false
	d.mu.Unlock()
	d.fire(EventChannelDestroy, nil, err)
}

func (d *Duplex) onMessage(p []byte) {
	d.mu.Lock()
	onMsg := d.userMessage
	d.mu.Unlock()
	if onMsg != nil {
		onMsg(p)
	}
}

// OnMessage registers the single handler invoked for every inbound
// payload on this duplex.
func (d *Duplex) OnMessage(fn func([]byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.userMessage = fn
}

// OnRemoteOpen registers fn for EventRemoteOpen, as a typed convenience
// over On.
func (d *Duplex) OnRemoteOpen(fn func(handshake []byte)) {
	d.On(EventRemoteOpen, func(hs []byte, _ error) { fn(hs) })
}

// OnChannelClose registers fn for EventChannelClose.
func (d *Duplex) OnChannelClose(fn func()) {
	d.On(EventChannelClose, func(_ []byte, _ error) { fn() })
}

// OnChannelDestroy registers fn for EventChannelDestroy.
func (d *Duplex) OnChannelDestroy(fn func(cause error)) {
	d.On(EventChannelDestroy, func(_ []byte, cause error) { fn(cause) })
}

// Write sends p if the channel is open, or buffers it in order to be
// flushed once open fires. Writes after destroy are silently dropped,
// matching the spec's "no write ever re-opens a destroyed channel"
// policy.
func (d *Duplex) Write(p []byte) error {
	d.mu.Lock()
	if !d.alive {
		d.mu.Unlock()
		return nil
	}
	if !d.connected || d.ch == nil {
		cp := append([]byte(nil), p...)
		d.pending = append(d.pending, cp)
		n := len(d.pending)
		d.mu.Unlock()
		d.reg.setChannelGauge(MetricChannelBufferedMsgs, d.cfg.ID, float32(n))
		return nil
	}
	ch := d.ch
	d.mu.Unlock()
	return ch.sendData(p)
}

// IsConnected reports alive ∧ channel-open.
func (d *Duplex) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive && d.connected
}

// Close gracefully closes the underlying channel. channel-close then
// channel-destroy follow on both sides.
func (d *Duplex) Close() error {
	d.mu.Lock()
	ch := d.ch
	d.mu.Unlock()
	d.reg.unpair(d.cfg)
	if ch == nil {
		return nil
	}
	ch.destroy(nil)
	return nil
}

// Destroy tears the channel down immediately with err as the reported
// cause.
func (d *Duplex) Destroy(err error) {
	d.mu.Lock()
	ch := d.ch
	d.mu.Unlock()
	d.reg.unpair(d.cfg)
	if ch != nil {
		ch.destroy(err)
	} else {
		d.onClose()
		d.onDestroy(err)
	}
}

// Scratch returns the duplex's free-form user-data area, for caller
// bookkeeping scoped to this duplex's lifetime.
func (d *Duplex) Scratch() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scratch
}
