package pool

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/hashicorp/go-metrics"
)

// Option configures a Pool at construction time.
type Option func(*poolConfig)

type poolConfig struct {
	policy      Policy
	preferLocal bool
	logHandler  slog.Handler
	labels      []metrics.Label
	msink       metrics.MetricSink
	trace       bool
	tracePath   string
}

// WithPolicy sets the selection Policy; defaults to NewRoundRobin().
func WithPolicy(p Policy) Option {
	return func(c *poolConfig) { c.policy = p }
}

// WithPreferLocal biases the weighted policy toward LocalityLocal entries.
func WithPreferLocal() Option {
	return func(c *poolConfig) { c.preferLocal = true }
}

// WithLog sets the slog.Handler used for this Pool's logger.
func WithLog(handler slog.Handler) Option {
	return func(c *poolConfig) { c.logHandler = handler }
}

// WithMetricLabels attaches static labels to every metric this Pool emits.
func WithMetricLabels(labels []metrics.Label) Option {
	return func(c *poolConfig) { c.labels = labels }
}

// WithMetricSink overrides the metrics.MetricSink used by this Pool;
// defaults to metrics.Default().
func WithMetricSink(sink metrics.MetricSink) Option {
	return func(c *poolConfig) { c.msink = sink }
}

func defaultPoolConfig() *poolConfig {
	return &poolConfig{
		policy:    NewRoundRobin(),
		trace:     envBool("PLEX_POOL_TRACE"),
		tracePath: os.Getenv("PLEX_POOL_TRACE_PATH"),
	}
}

func envBool(key string) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
