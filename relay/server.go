package relay

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/floegence/chatrelay/crypto/e2ee"
	"github.com/floegence/chatrelay/framing"
	"github.com/floegence/chatrelay/fserrors"
	"github.com/floegence/chatrelay/internal/contextutil"
	"github.com/floegence/chatrelay/internal/defaults"
	"github.com/floegence/chatrelay/observability"
	"github.com/floegence/chatrelay/realtime/ws"
)

// Config controls Server construction. Identity is required; the rest have
// workable defaults.
type Config struct {
	Identity         *e2ee.ServerIdentity
	Observer         observability.Observer
	MaxFrameBytes    int
	HandshakeTimeout time.Duration
	WSOptions        ws.UpgraderOptions
}

// Server owns the process-wide session registry and accepts connections
// from any number of listeners (a plain TCP socket, an upgraded websocket,
// or both) that all feed the same handshake and dispatch pipeline.
type Server struct {
	identity   *e2ee.ServerIdentity
	registry   *Registry
	dispatcher *Dispatcher
	obs        observability.Observer
	maxFrame   int
	hsTimeout  time.Duration
	wsOpts     ws.UpgraderOptions

	nextClientID uint64 // atomic; first AddUint64 yields 1, leaving 0 reserved

	wg sync.WaitGroup
}

// New builds a Server ready to accept connections.
func New(cfg Config) *Server {
	obs := cfg.Observer
	if obs == nil {
		obs = observability.Noop
	}
	maxFrame := cfg.MaxFrameBytes
	if maxFrame <= 0 {
		maxFrame = framing.DefaultMaxFrameBytes
	}
	hsTimeout := cfg.HandshakeTimeout
	if hsTimeout <= 0 {
		hsTimeout = defaults.HandshakeTimeout
	}
	registry := NewRegistry()
	return &Server{
		identity:   cfg.Identity,
		registry:   registry,
		dispatcher: NewDispatcher(registry, obs),
		obs:        obs,
		maxFrame:   maxFrame,
		hsTimeout:  hsTimeout,
		wsOpts:     cfg.WSOptions,
	}
}

// Registry exposes the live session directory, e.g. for a startup metrics
// snapshot.
func (s *Server) Registry() *Registry { return s.registry }

func (s *Server) allocateClientID() uint64 {
	return atomic.AddUint64(&s.nextClientID, 1)
}

// ServeTCP runs the accept loop for a plain TCP listener until ctx is
// canceled, at which point it stops accepting new connections and returns
// nil; connections already in flight keep running independently.
func (s *Server) ServeTCP(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fserrors.Wrap(fserrors.StageStartup, fserrors.KindTransport, err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	hsCtx, cancel := contextutil.WithTimeout(ctx, s.hsTimeout)
	defer cancel()
	if dl, ok := hsCtx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	start := time.Now()
	clientID := s.allocateClientID()
	result, err := e2ee.ServerHandshake(conn, s.identity, clientID, s.maxFrame)
	_ = conn.SetDeadline(time.Time{})
	if err != nil {
		s.obs.Handshake(observability.HandshakeFailed)
		return
	}
	s.obs.Handshake(observability.HandshakeOK)
	s.obs.HandshakeLatency(time.Since(start))

	sess := NewSession(clientID, result.DisplayName, conn, result.Keys)
	readFrame := func() ([]byte, error) {
		return framing.ReadFrame(conn, s.maxFrame)
	}
	_ = s.dispatcher.RunSession(sess, readFrame)
}

// ServeHTTP upgrades an incoming request to a websocket connection and runs
// it through the same handshake and dispatch pipeline as ServeTCP, over the
// wsByteConn adapter. Register it on whatever path the caller chooses.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := ws.Upgrade(w, r, s.wsOpts)
	if err != nil {
		return
	}
	// Reject oversized websocket messages at the gorilla layer, ahead of our
	// own framing.ReadFrame size check, so a peer cannot force a large buffer
	// allocation with a single over-limit binary message.
	wsConn.SetReadLimit(int64(s.maxFrame) + 64)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer wsConn.Close()
		// net/http cancels r.Context() as soon as ServeHTTP returns, so the
		// session keeps its values but not its cancellation.
		s.handleWS(context.WithoutCancel(r.Context()), wsConn)
	}()
}

func (s *Server) handleWS(ctx context.Context, wsConn *ws.Conn) {
	conn := newWSByteConn(ctx, wsConn)

	hsCtx, cancel := contextutil.WithTimeout(ctx, s.hsTimeout)
	defer cancel()

	start := time.Now()
	clientID := s.allocateClientID()
	result, err := e2ee.ServerHandshake(wsConnWithDeadline{conn: conn, ctx: hsCtx}, s.identity, clientID, s.maxFrame)
	if err != nil {
		s.obs.Handshake(observability.HandshakeFailed)
		return
	}
	s.obs.Handshake(observability.HandshakeOK)
	s.obs.HandshakeLatency(time.Since(start))

	sess := NewSession(clientID, result.DisplayName, conn, result.Keys)
	readFrame := func() ([]byte, error) {
		return framing.ReadFrame(conn, s.maxFrame)
	}
	_ = s.dispatcher.RunSession(sess, readFrame)
}

// wsConnWithDeadline re-binds a wsByteConn's read/write context for the
// duration of the handshake only, so a slow or silent peer cannot hang a
// handshake goroutine forever while the session's steady-state reads keep
// the connection's original (unbounded) context.
type wsConnWithDeadline struct {
	conn *wsByteConn
	ctx  context.Context
}

func (c wsConnWithDeadline) Read(p []byte) (int, error) {
	prev := c.conn.ctx
	c.conn.ctx = c.ctx
	defer func() { c.conn.ctx = prev }()
	return c.conn.Read(p)
}

func (c wsConnWithDeadline) Write(p []byte) (int, error) {
	prev := c.conn.ctx
	c.conn.ctx = c.ctx
	defer func() { c.conn.ctx = prev }()
	return c.conn.Write(p)
}

// Wait blocks until every in-flight connection goroutine has returned, or
// ctx is done, whichever comes first.
func (s *Server) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
