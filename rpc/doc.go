// Package rpc implements the request/reply layer carried over a
// neonplex Duplex: a bit-exact wire codec (frame.go, envelope.go,
// payload.go), a dispatching Server (server.go), and a Client proxy
// with unary and server-streaming calls (client.go, iterator.go).
//
// None of this re-invents the multiplex substrate or the duplex
// wrapper underneath it — rpc only ever Writes to and reads messages
// from a *neonplex.Duplex, exactly as any other application-level
// protocol layered on a channel would.
package rpc
