package pool

import (
	"sync"
	"time"

	"github.com/zacharygriffee/neonplex"
	"github.com/zacharygriffee/neonplex/rpc"
)

// Locality classifies how close a peer is, feeding the weighted
// policy's locality multiplier.
type Locality string

const (
	LocalityLocal Locality = "local"
	LocalityLAN   Locality = "lan"
	LocalityWAN   Locality = "wan"
)

func (l Locality) weight() float64 {
	switch l {
	case LocalityLocal:
		return 8
	case LocalityLAN:
		return 4
	default:
		return 1
	}
}

// Meta is caller-supplied peer metadata.
type Meta struct {
	Source   string
	Locality Locality
}

type clientKey struct {
	id   string
	lane string
}

// Entry is one pool member: its Peer, static weight, health counters,
// and a lazily-populated cache of RPC client proxies keyed by
// (channel id, lane).
type Entry struct {
	ID     uint64
	Peer   *neonplex.Peer
	Weight float64
	Meta   Meta

	mu            sync.Mutex
	inFlight      int
	failures      int
	successes     int
	latencyMs     float64
	cooldownUntil time.Time
	clients       map[clientKey]*rpc.Client
}

func newEntry(id uint64, peer *neonplex.Peer, weight float64, meta Meta) *Entry {
	if weight <= 0 {
		weight = 1
	}
	return &Entry{
		ID:      id,
		Peer:    peer,
		Weight:  weight,
		Meta:    meta,
		clients: make(map[clientKey]*rpc.Client),
	}
}

// eligible reports whether now is past this entry's cooldown.
func (e *Entry) eligible(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !now.Before(e.cooldownUntil)
}

// effectiveWeight computes the weighted policy's selection weight:
// static weight × locality weight, doubled if the caller preferred
// "local" and this peer is local, then decayed by failures and
// latency, clamped to a small positive floor.
func (e *Entry) effectiveWeight(preferLocal bool) float64 {
	e.mu.Lock()
	failures := e.failures
	latency := e.latencyMs
	e.mu.Unlock()

	w := e.Weight * e.Meta.Locality.weight()
	if preferLocal && e.Meta.Locality == LocalityLocal {
		w *= 2
	}
	w /= float64(1 + failures)
	w /= 1 + latency/20
	if w < 1e-4 {
		w = 1e-4
	}
	return w
}

// clientFor returns the cached RPC client for (id, lane), creating one
// lazily via connect on first use.
func (e *Entry) clientFor(id neonplex.ChannelID, lane string, connect func() (*rpc.Client, error)) (*rpc.Client, error) {
	key := clientKey{id: string(id.Data) + "\x00" + id.Protocol, lane: lane}

	e.mu.Lock()
	if c, ok := e.clients[key]; ok {
		e.mu.Unlock()
		return c, nil
	}
	e.mu.Unlock()

	c, err := connect()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if existing, ok := e.clients[key]; ok {
		e.mu.Unlock()
		_ = c.Close()
		return existing, nil
	}
	e.clients[key] = c
	e.mu.Unlock()
	return c, nil
}

// recordStart increments in_flight and returns the call start time.
func (e *Entry) recordStart() time.Time {
	e.mu.Lock()
	e.inFlight++
	e.mu.Unlock()
	return time.Now()
}

// recordOutcome updates EWMA latency and success/failure/cooldown
// state after a call completes, per spec §4.7's per-call bookkeeping.
func (e *Entry) recordOutcome(start time.Time, env *rpc.Envelope, callErr error) {
	const alpha = 0.2
	dur := float64(time.Since(start).Milliseconds())

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight--
	e.latencyMs = e.latencyMs*(1-alpha) + dur*alpha

	switch {
	case callErr != nil:
		e.failures++
		e.cooldownUntil = time.Now().Add(2 * time.Second)
	case env != nil && env.OK:
		e.successes++
	case env != nil && !env.OK:
		e.failures++
	}
}

// Stats is a point-in-time snapshot of an Entry, without the Peer
// reference.
type Stats struct {
	ID            uint64
	Weight        float64
	Meta          Meta
	InFlight      int
	Failures      int
	Successes     int
	LatencyMs     float64
	CooldownUntil time.Time
}

func (e *Entry) snapshot() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		ID:            e.ID,
		Weight:        e.Weight,
		Meta:          e.Meta,
		InFlight:      e.inFlight,
		Failures:      e.failures,
		Successes:     e.successes,
		LatencyMs:     e.latencyMs,
		CooldownUntil: e.cooldownUntil,
	}
}
