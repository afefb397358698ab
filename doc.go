// Package neonplex is a transport-agnostic toolkit for carrying
// bidirectional, application-level conversations over a single
// connection-oriented byte stream.
//
// Given any framed duplex byte channel — a length-prefixed TCP socket, a
// WebSocket, an in-memory pipe, or even another neonplex Duplex nested
// inside itself — neonplex presents the application a family of
// independent, lane-labelled duplex byte streams multiplexed over that one
// transport ([Peer], [Duplex]), plus a request/reply RPC layer with unary
// and server-streaming semantics built on top (package rpc), and a
// client-side load balancer across multiple such peers (package pool).
//
// # How it fits together
//
// A [Transport] is the raw ordered, reliable, message-framed duplex the
// caller hands in. A [Peer] owns exactly one Transport and the multiplex
// substrate layered over it (package pkg/substrate wraps
// github.com/hashicorp/yamux for this). From a Peer, the application opens
// named lanes — "rpc", "events", or a custom suffix — each yielding a
// [Duplex]: a stream-style byte duplex bound to one (id, protocol) channel.
//
// Writes issued before the remote side opens its end are buffered and
// flushed once the handshake completes; destruction is symmetric, so
// closing either end is observed by the other as channel-close followed by
// channel-destroy.
//
// # Dependencies
//
// Dependencies are kept to what each concern actually needs:
//
//   - github.com/hashicorp/yamux, for the stream-multiplexing primitive
//     underneath named channels.
//   - github.com/gorilla/websocket, to adapt a WebSocket connection into
//     the Transport contract.
//   - github.com/hashicorp/go-metrics, for every counter, gauge and rate
//     this module emits.
//
// [Transport]: see transport.go.
package neonplex
