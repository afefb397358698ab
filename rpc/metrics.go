package rpc

// Metric names emitted by the client proxy and server, following the
// teacher's convention of a package-level []string per metric.
var (
	MetricClientCallCount      = []string{"neonplex", "rpc", "client", "call", "count"}
	MetricClientCallErrorCount = []string{"neonplex", "rpc", "client", "call", "error", "count"}
	MetricClientCallDuration   = []string{"neonplex", "rpc", "client", "call", "duration"}
	MetricServerInflightCount  = []string{"neonplex", "rpc", "server", "inflight", "count"}
	MetricServerRouteLimitHits = []string{"neonplex", "rpc", "server", "route", "limit", "hits"}
	MetricOrphanResponseCount  = []string{"neonplex", "rpc", "orphan", "response", "count"}
)
