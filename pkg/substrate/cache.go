package substrate

import "sync"

// Cache remembers one Substrate per transport identity so repeated calls
// to bind the same transport (e.g. two Peers built over one transport)
// reuse the existing yamux session instead of
// layering a second one on top of the same bytes.
//
// Keys are the MessageTransport value itself, which for every transport
// implementation in this module is a pointer — Go map identity on an
// interface holding a pointer is exactly transport identity. There is no
// true garbage-collected weak reference here: entries are dropped
// explicitly by Release, normally called from Peer.Close.
type Cache struct {
	mu sync.Mutex
	m  map[MessageTransport]Substrate
}

// NewCache returns an empty substrate cache.
func NewCache() *Cache {
	return &Cache{m: make(map[MessageTransport]Substrate)}
}

// GetOrCreate returns the cached Substrate for t if present, otherwise
// calls create, stores, and returns its result.
func (c *Cache) GetOrCreate(t MessageTransport, create func() (Substrate, error)) (Substrate, error) {
	c.mu.Lock()
	if s, ok := c.m[t]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	s, err := create()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.m[t]; ok {
		// Lost the race with a concurrent GetOrCreate for the same
		// transport; discard the one we just built and keep the winner.
		_ = s.Close()
		return existing, nil
	}
	c.m[t] = s
	return s, nil
}

// Release evicts the cached Substrate for t, if any, without closing it —
// callers that want the underlying session closed too should close it
// themselves first or rely on Transport.Close propagating.
func (c *Cache) Release(t MessageTransport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, t)
}
