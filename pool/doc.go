// Package pool balances RPC calls across a set of weighted neonplex
// peers: round-robin, weighted (locality + health), and sticky-by-key
// selection, with EWMA latency tracking and failure cooldowns. It is
// pure process-local state — no persistence, no discovery.
package pool
