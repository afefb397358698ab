package rpc

import "context"

// CapsClient wraps a Client so every call carries a fixed capability
// token, overriding whatever the caller passed in CallOpts.Caps.
type CapsClient struct {
	inner *Client
	token []byte
}

// WithCaps returns a proxy over c that injects token into every call.
func WithCaps(c *Client, token []byte) *CapsClient {
	return &CapsClient{inner: c, token: token}
}

func (w *CapsClient) withToken(opts CallOpts) CallOpts {
	opts.Caps = w.token
	return opts
}

func (w *CapsClient) Get(ctx context.Context, key []byte, opts CallOpts) (Envelope, error) {
	return w.inner.Get(ctx, key, w.withToken(opts))
}

func (w *CapsClient) Put(ctx context.Context, key, value []byte, opts CallOpts) (Envelope, error) {
	return w.inner.Put(ctx, key, value, w.withToken(opts))
}

func (w *CapsClient) Del(ctx context.Context, key []byte, opts CallOpts) (Envelope, error) {
	return w.inner.Del(ctx, key, w.withToken(opts))
}

func (w *CapsClient) Append(ctx context.Context, value []byte, opts CallOpts) (Envelope, error) {
	return w.inner.Append(ctx, value, w.withToken(opts))
}

func (w *CapsClient) Scan(ctx context.Context, query ScanPayload, opts CallOpts) (*Iterator, error) {
	return w.inner.Scan(ctx, query, w.withToken(opts))
}

func (w *CapsClient) Close() error       { return w.inner.Close() }
func (w *CapsClient) Destroy(err error)  { w.inner.Destroy(err) }
func (w *CapsClient) Unwrap() Duplex     { return w.inner.Unwrap() }
