package neonplex

import "bytes"

// DefaultProtocol is the protocol namespace used when a ChannelConfig does
// not specify one.
const DefaultProtocol = "neonloom/protocol/v1"

// LaneRPC and LaneEvents are the two well-known lane suffixes a Peer
// exposes helpers for; any other non-empty string is a valid custom lane.
const (
	LaneRPC    = "rpc"
	LaneEvents = "events"
)

// ChannelID identifies a sub-channel by the tuple (Data, Protocol).
// Data is opaque, typically a short byte string chosen by the caller;
// Protocol defaults to DefaultProtocol, optionally suffixed with a lane
// name. Equality is bytewise on Data and string equality on Protocol.
type ChannelID struct {
	Data     []byte
	Protocol string
}

// Equal reports whether id and other identify the same channel.
func (id ChannelID) Equal(other ChannelID) bool {
	return id.Protocol == other.Protocol && bytes.Equal(id.Data, other.Data)
}

// key returns a value usable as a Go map key for id.
func (id ChannelID) key() channelKey {
	return channelKey{data: string(id.Data), protocol: id.Protocol}
}

type channelKey struct {
	data     string
	protocol string
}

// LaneProtocol returns the protocol string for base suffixed with lane,
// e.g. LaneProtocol("neonloom/protocol/v1", "rpc") -> ".../rpc".
func LaneProtocol(base, lane string) string {
	if lane == "" {
		return base
	}
	return base + "/" + lane
}
