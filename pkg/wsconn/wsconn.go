// Package wsconn adapts a github.com/gorilla/websocket connection into
// the message-framed Transport shape the rest of neonplex expects,
// fulfilling the "built-in WebSocket adapter" named in the spec's
// external interfaces: binary frames in, binary frames out, close and
// error propagate as read/write errors.
package wsconn

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn wraps a *websocket.Conn as a neonplex Transport. Reads and
// writes are binary-framed messages; gorilla/websocket already
// serializes concurrent writers internally is NOT guaranteed, so Conn
// adds its own write lock.
type Conn struct {
	ws *websocket.Conn

	wmu sync.Mutex
}

// Wrap returns a Transport-shaped adapter over ws.
func Wrap(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Underlying exposes the raw *websocket.Conn for callers that need it —
// this is the hook Peer's introspection uses to recognise a
// WebSocket-backed transport and retain the original reference.
func (c *Conn) Underlying() *websocket.Conn {
	return c.ws
}

func (c *Conn) ReadMessage() ([]byte, error) {
	_, p, err := c.ws.ReadMessage()
	return p, err
}

func (c *Conn) WriteMessage(p []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, p)
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// websocketLike is satisfied by any transport this package recognises
// as WebSocket-backed.
type websocketLike interface {
	Underlying() *websocket.Conn
}

// Detect reports whether t is a WebSocket-backed transport and, if so,
// returns the underlying *websocket.Conn for introspection.
func Detect(t any) (*websocket.Conn, bool) {
	wl, ok := t.(websocketLike)
	if !ok {
		return nil, false
	}
	return wl.Underlying(), true
}
