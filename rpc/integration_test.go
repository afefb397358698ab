package rpc_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zacharygriffee/neonplex"
	"github.com/zacharygriffee/neonplex/pkg/memduplex"
	"github.com/zacharygriffee/neonplex/rpc"
)

// echoHandler implements enough of rpc.Handler to drive every call
// shape exercised below.
type echoHandler struct {
	mu       sync.Mutex
	store    map[string][]byte
	scanHold chan struct{} // if non-nil, dispatchScan blocks here until closed
}

func newEchoHandler() *echoHandler {
	return &echoHandler{store: make(map[string][]byte)}
}

func (h *echoHandler) Get(_ context.Context, req rpc.GetPayload) (rpc.Envelope, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.store[string(req.Key)]
	if !ok {
		return rpc.Fail(rpc.CodeNotAvailable, "missing"), nil
	}
	return rpc.OKEnvelope(v, nil), nil
}

func (h *echoHandler) Put(_ context.Context, req rpc.PutPayload) (rpc.Envelope, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.store[string(req.Key)] = req.Value
	return rpc.OKEnvelope(nil, nil), nil
}

func (h *echoHandler) Del(_ context.Context, req rpc.DelPayload) (rpc.Envelope, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.store, string(req.Key))
	return rpc.OKEnvelope(nil, nil), nil
}

// blockIterator never yields a row; used to exercise client-initiated
// cancellation of a still-open stream.
type blockIterator struct {
	ctx      context.Context
	returned chan struct{}
}

func (it *blockIterator) Next(ctx context.Context) (rpc.Envelope, bool, error) {
	select {
	case <-it.returned:
		return rpc.Envelope{}, true, nil
	case <-ctx.Done():
		return rpc.Envelope{}, false, ctx.Err()
	}
}

func (it *blockIterator) Return() error {
	close(it.returned)
	return nil
}

func (h *echoHandler) Scan(ctx context.Context, _ rpc.ScanPayload) (rpc.ScanIterator, error) {
	return &blockIterator{ctx: ctx, returned: make(chan struct{})}, nil
}

func newWiredPair(t *testing.T, cfg rpc.Config, handler rpc.Handler) (*rpc.Client, *rpc.Server) {
	t.Helper()
	a, b := memduplex.Pair()

	server, err := neonplex.NewPeer(a, neonplex.WithServerRole())
	require.NoError(t, err)
	client, err := neonplex.NewPeer(b)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})

	id := neonplex.ChannelID{Data: []byte("port")}
	srvDuplex, err := server.ListenRPC(id)
	require.NoError(t, err)
	cliDuplex, err := client.ConnectRPC(id)
	require.NoError(t, err)

	s := rpc.NewServer(srvDuplex, handler, cfg, nil, nil)
	c := rpc.NewClient(cliDuplex, cfg, nil, nil)
	require.Eventually(t, cliDuplex.IsConnected, time.Second, 5*time.Millisecond)
	return c, s
}

func TestUnaryPutGetDelRoundTrip(t *testing.T) {
	c, _ := newWiredPair(t, rpc.DefaultConfig(), newEchoHandler())
	ctx := context.Background()

	env, err := c.Put(ctx, []byte("k"), []byte("v"), rpc.CallOpts{})
	require.NoError(t, err)
	require.True(t, env.OK)

	env, err = c.Get(ctx, []byte("k"), rpc.CallOpts{})
	require.NoError(t, err)
	require.True(t, env.OK)
	require.Equal(t, []byte("v"), env.Value)

	env, err = c.Del(ctx, []byte("k"), rpc.CallOpts{})
	require.NoError(t, err)
	require.True(t, env.OK)

	env, err = c.Get(ctx, []byte("k"), rpc.CallOpts{})
	require.NoError(t, err)
	require.False(t, env.OK)
	require.Equal(t, rpc.CodeNotAvailable, env.Code)
}

func TestScanIteratorReturnEndsTheStream(t *testing.T) {
	c, _ := newWiredPair(t, rpc.DefaultConfig(), newEchoHandler())
	ctx := context.Background()

	it, err := c.Scan(ctx, rpc.ScanPayload{}, rpc.CallOpts{})
	require.NoError(t, err)

	require.NoError(t, it.Return())
	_, done, err := it.Next(ctx)
	require.NoError(t, err)
	require.True(t, done)
}

func TestOversizedPayloadIsRejectedClientSide(t *testing.T) {
	cfg := rpc.DefaultConfig()
	cfg.MaxRequestBytes = 4
	c, _ := newWiredPair(t, cfg, newEchoHandler())

	_, err := c.Put(context.Background(), []byte("k"), []byte("way too big for four bytes"), rpc.CallOpts{})
	require.ErrorIs(t, err, rpc.ErrPayloadTooLarge)
}

func TestClientTimeoutProducesTimeoutEnvelope(t *testing.T) {
	c, _ := newWiredPair(t, rpc.DefaultConfig(), newEchoHandler())

	// Scan never responds (blockIterator), so a short client timeout
	// must fire and resolve the call locally with a Timeout envelope
	// surfaced as the iterator's terminal error.
	it, err := c.Scan(context.Background(), rpc.ScanPayload{}, rpc.CallOpts{TimeoutMs: 20})
	require.NoError(t, err)

	_, done, err := it.Next(context.Background())
	require.False(t, done)
	require.Error(t, err)
	require.Contains(t, err.Error(), string(rpc.CodeTimeout))
}

func TestAbortContextCancelsInFlightCall(t *testing.T) {
	c, _ := newWiredPair(t, rpc.DefaultConfig(), newEchoHandler())

	ctx, cancel := context.WithCancel(context.Background())
	it, err := c.Scan(ctx, rpc.ScanPayload{}, rpc.CallOpts{})
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, done, err := it.Next(context.Background())
	require.False(t, done)
	require.Error(t, err)
}

func TestClientRouteLimitDestroysDuplex(t *testing.T) {
	cfg := rpc.DefaultConfig()
	cfg.MaxClientRoutes = 1
	c, _ := newWiredPair(t, cfg, newEchoHandler())

	ctx := context.Background()
	_, err := c.Scan(ctx, rpc.ScanPayload{}, rpc.CallOpts{})
	require.NoError(t, err)

	_, err = c.Scan(ctx, rpc.ScanPayload{}, rpc.CallOpts{})
	require.ErrorIs(t, err, rpc.ErrRouteLimit)

	d, ok := c.Unwrap().(*neonplex.Duplex)
	require.True(t, ok)
	require.False(t, d.IsConnected())
}
