package rpc

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"
)

// TelemetryLabel mirrors the root package's convention: the same
// token names both a slog attribute and a metrics label, but each
// package in this module keeps its own copy rather than sharing one
// across a package boundary that would otherwise have to import it.
type TelemetryLabel string

const (
	LabelError  TelemetryLabel = "error"
	LabelMethod TelemetryLabel = "method"
	LabelRID    TelemetryLabel = "rid"
	LabelPeerID TelemetryLabel = "peer_id"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{Key: string(lab), Value: slog.AnyValue(val)}
}
