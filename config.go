package neonplex

import (
	"sync"
)

// HandshakeEncoding is an optional codec applied to a channel's
// handshake payload. A nil encoding means the handshake payload is
// carried as raw bytes.
type HandshakeEncoding interface {
	EncodeHandshake(v any) ([]byte, error)
	DecodeHandshake(b []byte) (any, error)
}

// ChannelConfig is the caller-provided, internally-normalized
// description of one sub-channel. Callers populate the exported fields
// and hand the config to the channel helper (ensure/open/pair) or,
// indirectly, to a Duplex.
type ChannelConfig struct {
	// Transport is not consulted by the channel helper: the substrate is
	// reached through the registry, which normalize records from the Peer
	// that opened this config. Callers building a ChannelConfig by hand
	// should leave it zero.
	Transport Transport

	ID       ChannelID
	Protocol string

	HandshakeEncoding HandshakeEncoding
	HandshakeMessage  []byte

	OnOpen    func(handshake []byte)
	OnClose   func()
	OnDestroy func(err error)
	OnMessage func(p []byte)

	ErrSink func(err error)

	once       sync.Once
	registry   *registry
	sendFn     func([]byte) error
	normalized bool
}

// normalize fills in defaults and resolves the registry this config's
// transport is bound to. ID.Protocol is set to Protocol, so the
// registry key and the protocol carried in the handshake header agree.
// It is idempotent: re-entering it after the first call is a no-op,
// matching the spec's requirement that normalization be safely
// re-runnable.
func (c *ChannelConfig) normalize(reg *registry) {
	c.once.Do(func() {
		if c.Protocol == "" {
			c.Protocol = DefaultProtocol
		}
		c.ID.Protocol = c.Protocol
		c.registry = reg
		c.normalized = true
	})
}

// send transmits p over the channel's underlying stream. It is installed
// by ensure() the first time a channel is created for this config and
// is nil beforehand.
func (c *ChannelConfig) send(p []byte) error {
	if c.sendFn == nil {
		return ErrChannelNotOpen
	}
	return c.sendFn(p)
}

func (c *ChannelConfig) fireOpen(handshake []byte) {
	if c.registry != nil {
		c.registry.incrChannelMetric(MetricChannelOpenCount, c.ID)
	}
	if c.OnOpen != nil {
		c.OnOpen(handshake)
	}
}

func (c *ChannelConfig) fireClose() {
	if c.registry != nil {
		c.registry.incrChannelMetric(MetricChannelCloseCount, c.ID)
	}
	if c.OnClose != nil {
		c.OnClose()
	}
}

func (c *ChannelConfig) fireDestroy(err error) {
	if c.registry != nil {
		c.registry.incrChannelMetric(MetricChannelDestroyCount, c.ID)
	}
	if c.OnDestroy != nil {
		c.OnDestroy(err)
	}
}

func (c *ChannelConfig) fireMessage(p []byte) {
	if c.OnMessage != nil {
		c.OnMessage(p)
	}
}

// encodedHandshake returns the bytes to actually put on the wire for this
// config's handshake: HandshakeMessage as-is, or run through
// HandshakeEncoding.EncodeHandshake when one is installed.
func (c *ChannelConfig) encodedHandshake() ([]byte, error) {
	if c.HandshakeEncoding == nil {
		return c.HandshakeMessage, nil
	}
	return c.HandshakeEncoding.EncodeHandshake(c.HandshakeMessage)
}

// decodedHandshake runs an inbound handshake payload through
// HandshakeEncoding.DecodeHandshake when one is installed. OnOpen's
// signature only carries raw bytes, so a decode that fails, or succeeds
// with something other than []byte, falls back to the raw payload.
func (c *ChannelConfig) decodedHandshake(raw []byte) []byte {
	if c.HandshakeEncoding == nil {
		return raw
	}
	v, err := c.HandshakeEncoding.DecodeHandshake(raw)
	if err != nil {
		return raw
	}
	if b, ok := v.([]byte); ok {
		return b
	}
	return raw
}

func (c *ChannelConfig) reportErr(err error) {
	if err == nil {
		return
	}
	if c.ErrSink != nil {
		c.ErrSink(err)
	}
}
