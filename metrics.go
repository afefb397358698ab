package neonplex

// Metric names emitted by the channel/duplex/peer layer, following the
// teacher's metrics.go convention of a package-level []string per metric.
var (
	MetricChannelOpenCount    = []string{"neonplex", "channel", "open", "count"}
	MetricChannelCloseCount   = []string{"neonplex", "channel", "close", "count"}
	MetricChannelDestroyCount = []string{"neonplex", "channel", "destroy", "count"}
	MetricChannelBufferedMsgs = []string{"neonplex", "channel", "buffered", "messages"}
	MetricPeerLaneOpenCount   = []string{"neonplex", "peer", "lane", "open", "count"}
)
