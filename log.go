package neonplex

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"
)

// TelemetryLabel names a structured-log attribute and a metrics label that
// are reused across emission sites, mirroring the teacher's own
// metrics.go: the same token doubles as a slog.Attr key and a
// metrics.Label name so logs and metrics stay consistent.
type TelemetryLabel string

const (
	LabelChannelID   TelemetryLabel = "channel_id"
	LabelProtocol    TelemetryLabel = "protocol"
	LabelLane        TelemetryLabel = "lane"
	LabelError       TelemetryLabel = "error"
	LabelDuration    TelemetryLabel = "duration"
	LabelRequestID   TelemetryLabel = "rid"
	LabelMethod      TelemetryLabel = "method"
	LabelPeerID      TelemetryLabel = "peer_id"
	LabelPolicy      TelemetryLabel = "policy"
)

// M returns lab as a metrics.Label with the given value.
func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

// L returns lab as a slog.Attr with the given value.
func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{Key: string(lab), Value: slog.AnyValue(val)}
}

func newLogger(handler slog.Handler) *slog.Logger {
	if handler == nil {
		return slog.Default()
	}
	return slog.New(handler)
}
