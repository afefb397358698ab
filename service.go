package neonplex

import "github.com/zacharygriffee/neonplex/rpc"

// ExposeOpts configures ExposeStorePort.
type ExposeOpts struct {
	ID   ChannelID
	Lane string // defaults to LaneRPC
}

// ConnectOpts configures ConnectStorePort.
type ConnectOpts struct {
	ID   ChannelID
	Lane string // defaults to LaneRPC
}

// ExposeStorePort opens a Listen-mode lane on peer and serves handler
// over it. The returned disposer tears the duplex down; the server has
// no resources of its own beyond the duplex it reads from.
func ExposeStorePort(peer *Peer, opts ExposeOpts, handler rpc.Handler) (func() error, error) {
	lane := opts.Lane
	if lane == "" {
		lane = LaneRPC
	}
	d, err := peer.ListenLane(opts.ID, lane)
	if err != nil {
		return nil, err
	}
	rpc.NewServer(d, handler, rpc.DefaultConfig(), peer.logger, peer.labels)
	return func() error {
		d.Destroy(nil)
		return nil
	}, nil
}

// ConnectStorePort opens a Connect-mode lane on peer and returns an RPC
// client proxy bound to it.
func ConnectStorePort(peer *Peer, opts ConnectOpts) (*rpc.Client, error) {
	lane := opts.Lane
	if lane == "" {
		lane = LaneRPC
	}
	d, err := peer.ConnectLane(opts.ID, lane)
	if err != nil {
		return nil, err
	}
	return rpc.NewClient(d, rpc.DefaultConfig(), peer.logger, peer.labels), nil
}

// WithCaps returns a proxy over client that injects token into every
// call, overriding any caller-supplied capability token.
func WithCaps(client *rpc.Client, token []byte) *rpc.CapsClient {
	return rpc.WithCaps(client, token)
}
