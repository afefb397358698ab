package pool

// Metric names emitted by the pool, following the teacher's convention
// of a package-level []string per metric.
var (
	MetricCallCount      = []string{"neonplex", "pool", "call", "count"}
	MetricCallErrorCount = []string{"neonplex", "pool", "call", "error", "count"}
	MetricNoPeerCount    = []string{"neonplex", "pool", "no_peer", "count"}
	MetricCallDuration   = []string{"neonplex", "pool", "call", "duration"}
	MetricEntryCount     = []string{"neonplex", "pool", "entry", "count"}
)
