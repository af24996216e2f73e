// Package gateway serves the synthesized fleet over HTTP and streams
// synthesis, routing and snapshot events over WebSocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/hooks"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/store"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/synth"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/version"
)

const (
	maxRequestBody = 1 << 20
	maxFrameSize   = 1 << 20
	shutdownGrace  = 10 * time.Second
	hookName       = "gateway.ws"
)

// DecisionLister reads the routing audit trail.
type DecisionLister interface {
	Recent(ctx context.Context, limit int) ([]store.DecisionRecord, error)
}

// Server is the swarmintel HTTP + WebSocket API.
type Server struct {
	cfg       config.GatewayConfig
	synth     *synth.Synthesizer
	decisions DecisionLister
	hooks     *hooks.Manager
	log       *logging.Logger
	clients   *ClientRegistry
	rpc       map[string]RequestHandler
	token     string
	eventSeq  atomic.Int64

	unsubscribe func()

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks streams hook events to WebSocket clients.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithDecisions exposes the routing audit trail.
func WithDecisions(d DecisionLister) ServerOption {
	return func(s *Server) {
		s.decisions = d
	}
}

// New creates a new gateway server.
func New(cfg config.GatewayConfig, sy *synth.Synthesizer, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		synth:       sy,
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		rpc:         make(map[string]RequestHandler),
		token:       cfg.Token,
		startedAt:   time.Now(),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	s.unsubscribe = func() {}
	if s.hooks != nil {
		s.unsubscribe = s.hooks.On(hookName, s.broadcastHook)
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// If no origins are configured, only same-origin (no Origin header) or non-browser
// clients are allowed. If origins are configured, the Origin must match one of them.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return originAllowed(origin, allowed)
	}
}

// Handle registers a WebSocket RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.rpc[method] = handler
}

// Methods returns the sorted WebSocket RPC method names.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.rpc))
	for m := range s.rpc {
		methods = append(methods, m)
	}
	slices.Sort(methods)
	return methods
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return chain(mux, s.middlewares()...)
}

// Addr computes the listen address from config.
func Addr(cfg config.GatewayConfig) string {
	host := cfg.Bind
	switch host {
	case "", "loopback":
		host = "127.0.0.1"
	case "lan", "all":
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
}

// Start serves until ctx is canceled, then closes every WebSocket client
// and drains in-flight requests for up to shutdownGrace.
func (s *Server) Start(ctx context.Context) error {
	addr := Addr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.startedAt = time.Now()

	if s.token == "" {
		s.log.Warn().Msg("no gateway token configured; every endpoint is open")
	}
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Bool("auth", s.token != "").
		Strs("rpc", s.Methods()).
		Msg("gateway listening")
	s.emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": ln.Addr().String()})

	drained := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		s.shutdown()
		close(drained)
	})

	err := s.httpServer.Serve(ln)
	if !stop() {
		<-drained
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) shutdown() {
	s.log.Info().Int("clients", s.clients.Count()).Msg("gateway shutting down")
	s.emit(context.Background(), hooks.EventGatewayStop, nil)
	s.unsubscribe()
	s.clients.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("gateway shutdown incomplete")
	}
}

// broadcastHook forwards a hook event to every WebSocket client.
func (s *Server) broadcastHook(_ context.Context, p hooks.Payload) error {
	if s.clients.Count() == 0 {
		return nil
	}
	s.clients.Broadcast(p.Event, p, s.eventSeq.Add(1))
	return nil
}

func (s *Server) emit(ctx context.Context, event string, data map[string]any) {
	s.hooks.Emit(ctx, event, data)
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := NewClient(conn, r.RemoteAddr, s.log.Sub("ws"))
	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()
	go client.writeLoop()

	hello := Hello{
		Protocol:   ProtocolVersion,
		Version:    version.Version,
		ConnID:     client.ConnID,
		Generation: s.synth.Current().Seq,
		Methods:    s.Methods(),
		Events:     hooks.AllEvents,
	}
	if err := client.SendEvent("hello", hello, s.eventSeq.Add(1)); err != nil {
		return
	}

	s.readLoop(r.Context(), client)
}

// readLoop processes incoming frames until the client disconnects.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		frame, err := client.ReadFrame()
		if errors.Is(err, ErrBadFrame) {
			client.RespondError(frame.ID, ErrorShape{Code: "bad_frame", Message: err.Error()})
			continue
		}
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}
		s.dispatch(ctx, client, frame)
	}
}

// dispatch routes a request frame to the appropriate handler.
func (s *Server) dispatch(ctx context.Context, client *Client, frame Frame) {
	handler, ok := s.rpc[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    "method_not_found",
			Message: "unknown method: " + frame.Method,
		})
		return
	}
	handler(&RequestContext{Ctx: ctx, Client: client, Frame: frame, Server: s})
}
