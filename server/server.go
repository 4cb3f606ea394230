// Package server exposes the conversational gateway over WebSocket. Each
// accepted connection gets a Conn that runs the streaming protocol: the
// server emits ready on connect, then start/delta/end/error frames
// correlated by request id, with at most one request generating per
// connection at a time.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wirechat/wirechat/memory"
	"github.com/wirechat/wirechat/model"
	"github.com/wirechat/wirechat/observability"
)

// Server binds inbound connections to Conn sessions and wires them to the
// memory store and model invoker. Create with New, mount as the handler for
// the WebSocket endpoint, and stop with Shutdown.
type Server struct {
	store      *memory.Store
	invoker    model.Invoker
	observer   observability.Observer
	metrics    *metrics
	timeouts   timeouts
	limitBytes int64
	upgrader   websocket.Upgrader

	baseCtx  context.Context
	baseStop context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	shutdown bool
}

// Option configures a Server after config-driven initialization.
type Option func(*Server)

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithRegisterer overrides the metrics registerer. The default is a private
// registry, which keeps tests isolated; the entrypoint passes the global
// Prometheus registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) { s.metrics = newMetrics(reg) }
}

// New creates a Server from configuration and injected collaborators.
func New(cfg *Config, store *memory.Store, invoker model.Invoker, opts ...Option) (*Server, error) {
	parsed, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	limit := cfg.MaxMessageBytes
	if limit <= 0 {
		limit = defaultMaxMessageBytes
	}

	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		store:      store,
		invoker:    invoker,
		observer:   observability.NewSlogObserver(slog.Default()),
		timeouts:   parsed,
		limitBytes: limit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin policy is the deployment's concern; the gateway sits
			// behind a proxy that enforces it.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		baseCtx:  ctx,
		baseStop: stop,
		conns:    make(map[*websocket.Conn]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newMetrics(prometheus.NewRegistry())
	}
	return s, nil
}

// ServeHTTP upgrades the request and runs the connection until the peer
// disconnects. The session identifier comes from the "session" query
// parameter; without one the connection gets a fresh session that lives
// only as long as its memory entry.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s.track(ws)
	conn := newConn(ws, sessionID, s)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.untrack(ws)
		conn.run(s.baseCtx)
	}()
}

// Shutdown stops accepting connections, closes the open ones, and waits for
// their read loops to drain or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	for ws := range s.conns {
		ws.Close()
	}
	s.mu.Unlock()

	s.baseStop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(ws *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[ws] = struct{}{}
}

func (s *Server) untrack(ws *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, ws)
}
