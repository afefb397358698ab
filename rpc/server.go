package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-metrics"
)

// Duplex is the narrow slice of neonplex.Duplex the server needs. It is
// declared locally so this package never imports the root package —
// any *neonplex.Duplex already satisfies it structurally.
type Duplex interface {
	Write(p []byte) error
	OnMessage(fn func([]byte))
	OnChannelDestroy(fn func(cause error))
	Close() error
	Destroy(err error)
}

type serverEntry struct {
	method    MethodID
	cancelled bool
	cancel    func()
}

// Server decodes incoming Request/Cancel frames off d, dispatches to
// handler, and writes Response frames back.
type Server struct {
	d       Duplex
	handler Handler
	cfg     Config
	logger  *slog.Logger
	msink   metrics.MetricSink
	labels  []metrics.Label

	mu       sync.Mutex
	inflight map[uint32]*serverEntry
	closed   bool
}

// NewServer starts serving handler over d. The returned *Server begins
// reading immediately; callers should not also call d.OnMessage.
func NewServer(d Duplex, handler Handler, cfg Config, logger *slog.Logger, labels []metrics.Label) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		d:        d,
		handler:  handler,
		cfg:      cfg,
		logger:   logger,
		msink:    metrics.Default(),
		labels:   labels,
		inflight: make(map[uint32]*serverEntry),
	}
	d.OnMessage(s.handleMessage)
	d.OnChannelDestroy(func(err error) { s.teardown() })
	return s
}

func (s *Server) handleMessage(raw []byte) {
	f, err := Decode(raw)
	if err != nil {
		s.logger.Warn("rpc: malformed frame", LabelError.L(err))
		return
	}

	switch f.Type {
	case FrameCancel:
		s.handleCancel(f.RID)
	case FrameRequest:
		s.handleRequest(f)
	default:
		s.logger.Warn("rpc: server received unexpected frame type", LabelMethod.L(f.Method))
	}
}

func (s *Server) handleCancel(rid uint32) {
	s.mu.Lock()
	e, ok := s.inflight[rid]
	if ok {
		e.cancelled = true
	}
	s.mu.Unlock()
	if ok && e.cancel != nil {
		e.cancel()
	}
}

func (s *Server) handleRequest(f Frame) {
	if s.cfg.MaxRequestBytes > 0 && uint32(len(f.Payload)) > s.cfg.MaxRequestBytes {
		s.reply(f.RID, f.Method, Fail(CodePayloadTooLarge, "request payload too large"))
		return
	}

	s.mu.Lock()
	if s.cfg.MaxServerRoutes > 0 && len(s.inflight) >= s.cfg.MaxServerRoutes {
		s.mu.Unlock()
		s.msink.IncrCounterWithLabels(MetricServerRouteLimitHits, 1, s.labels)
		s.reply(f.RID, f.Method, Fail(CodeNotReady, "Too many in-flight requests"))
		s.d.Destroy(ErrServerRouteLimit)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	entry := &serverEntry{method: f.Method, cancel: cancel}
	s.inflight[f.RID] = entry
	n := len(s.inflight)
	s.mu.Unlock()
	s.msink.SetGaugeWithLabels(MetricServerInflightCount, float32(n), s.labels)

	go s.dispatch(ctx, f, entry)
}

func (s *Server) dispatch(ctx context.Context, f Frame, entry *serverEntry) {
	defer s.finish(f.RID)

	switch f.Method {
	case MethodGet:
		h, ok := s.handler.(GetHandler)
		if !ok {
			s.replyIfLive(f.RID, f.Method, entry, Fail(CodeUnknown, "Unknown method"))
			return
		}
		req, err := DecodeGetPayload(f.Payload)
		if err != nil {
			s.replyIfLive(f.RID, f.Method, entry, Fail(CodeUnknown, "Bad request payload"))
			return
		}
		env, err := safeCall(func() (Envelope, error) { return h.Get(ctx, req) })
		if err != nil {
			env = envelopeFromError(err)
		}
		s.replyIfLive(f.RID, f.Method, entry, env)

	case MethodPut:
		h, ok := s.handler.(PutHandler)
		if !ok {
			s.replyIfLive(f.RID, f.Method, entry, Fail(CodeUnknown, "Unknown method"))
			return
		}
		req, err := DecodePutPayload(f.Payload)
		if err != nil {
			s.replyIfLive(f.RID, f.Method, entry, Fail(CodeUnknown, "Bad request payload"))
			return
		}
		env, err := safeCall(func() (Envelope, error) { return h.Put(ctx, req) })
		if err != nil {
			env = envelopeFromError(err)
		}
		s.replyIfLive(f.RID, f.Method, entry, env)

	case MethodDel:
		h, ok := s.handler.(DelHandler)
		if !ok {
			s.replyIfLive(f.RID, f.Method, entry, Fail(CodeUnknown, "Unknown method"))
			return
		}
		req, err := DecodeDelPayload(f.Payload)
		if err != nil {
			s.replyIfLive(f.RID, f.Method, entry, Fail(CodeUnknown, "Bad request payload"))
			return
		}
		env, err := safeCall(func() (Envelope, error) { return h.Del(ctx, req) })
		if err != nil {
			env = envelopeFromError(err)
		}
		s.replyIfLive(f.RID, f.Method, entry, env)

	case MethodAppend:
		h, ok := s.handler.(AppendHandler)
		if !ok {
			s.replyIfLive(f.RID, f.Method, entry, Fail(CodeUnknown, "Unknown method"))
			return
		}
		req, err := DecodeAppendPayload(f.Payload)
		if err != nil {
			s.replyIfLive(f.RID, f.Method, entry, Fail(CodeUnknown, "Bad request payload"))
			return
		}
		env, err := safeCall(func() (Envelope, error) { return h.Append(ctx, req) })
		if err != nil {
			env = envelopeFromError(err)
		}
		s.replyIfLive(f.RID, f.Method, entry, env)

	case MethodScan:
		s.dispatchScan(ctx, f, entry)

	default:
		s.replyIfLive(f.RID, f.Method, entry, Fail(CodeUnknown, "Unknown method"))
	}
}

func (s *Server) dispatchScan(ctx context.Context, f Frame, entry *serverEntry) {
	h, ok := s.handler.(ScanHandler)
	if !ok {
		s.replyIfLive(f.RID, f.Method, entry, Fail(CodeUnknown, "Scan not supported"))
		return
	}
	req, err := DecodeScanPayload(f.Payload)
	if err != nil {
		s.replyIfLive(f.RID, f.Method, entry, Fail(CodeUnknown, "Bad request payload"))
		return
	}

	it, err := h.Scan(ctx, req)
	if err != nil {
		s.replyTerminal(f.RID, f.Method, entry, envelopeFromError(err))
		return
	}

	s.mu.Lock()
	entry.cancel = wrapCancel(entry.cancel, func() { _ = it.Return() })
	s.mu.Unlock()

	for {
		s.mu.Lock()
		cancelled := entry.cancelled
		s.mu.Unlock()
		if cancelled {
			return
		}

		env, done, err := it.Next(ctx)
		if err != nil {
			s.replyTerminal(f.RID, f.Method, entry, envelopeFromError(err))
			return
		}
		if done {
			s.replyTerminal(f.RID, f.Method, entry, Envelope{})
			return
		}

		s.mu.Lock()
		live := !entry.cancelled
		s.mu.Unlock()
		if !live {
			return
		}
		s.replyMore(f.RID, f.Method, env)
	}
}

func wrapCancel(outer func(), inner func()) func() {
	return func() {
		if outer != nil {
			outer()
		}
		inner()
	}
}

// replyIfLive sends a single terminal response unless the route was
// already cancelled, matching "no further response is sent" once
// cancellation is observed.
func (s *Server) replyIfLive(rid uint32, method MethodID, entry *serverEntry, env Envelope) {
	s.mu.Lock()
	cancelled := entry.cancelled
	s.mu.Unlock()
	if cancelled {
		return
	}
	s.reply(rid, method, env)
}

func (s *Server) replyTerminal(rid uint32, method MethodID, entry *serverEntry, env Envelope) {
	s.replyIfLive(rid, method, entry, env)
}

func (s *Server) reply(rid uint32, method MethodID, env Envelope) {
	var payload []byte
	if env.OK || env.Code != "" || env.Message != "" {
		payload = EncodeEnvelope(env)
	}
	_ = s.d.Write(EncodeResponse(rid, method, false, payload))
}

func (s *Server) replyMore(rid uint32, method MethodID, env Envelope) {
	_ = s.d.Write(EncodeResponse(rid, method, true, EncodeEnvelope(env)))
}

func (s *Server) finish(rid uint32) {
	s.mu.Lock()
	delete(s.inflight, rid)
	n := len(s.inflight)
	s.mu.Unlock()
	s.msink.SetGaugeWithLabels(MetricServerInflightCount, float32(n), s.labels)
}

// teardown cancels every inflight entry and clears the table, run once
// on transport close/end/error.
func (s *Server) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	entries := make([]*serverEntry, 0, len(s.inflight))
	for _, e := range s.inflight {
		entries = append(entries, e)
	}
	s.inflight = make(map[uint32]*serverEntry)
	s.mu.Unlock()

	for _, e := range entries {
		if e.cancel != nil {
			e.cancel()
		}
	}
}

func safeCall(fn func() (Envelope, error)) (env Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rpc: handler panicked: %v", r)
		}
	}()
	return fn()
}

// envelopeFromError converts a handler error into a failure envelope.
// If err carries a recognised code via CodedError, that code is used;
// otherwise the code is Unknown.
func envelopeFromError(err error) Envelope {
	if err == nil {
		return Envelope{}
	}
	var ce CodedError
	if asCodedError(err, &ce) {
		return Fail(ce.Code, ce.Message)
	}
	return Fail(CodeUnknown, err.Error())
}

// CodedError lets a handler attach a specific wire error code to an
// error instead of falling back to Unknown.
type CodedError struct {
	Code    ErrorCode
	Message string
}

func (e CodedError) Error() string { return string(e.Code) + ": " + e.Message }

func asCodedError(err error, out *CodedError) bool {
	if ce, ok := err.(CodedError); ok {
		*out = ce
		return true
	}
	return false
}
