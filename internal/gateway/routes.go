package gateway

import (
	"net/http"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("GET /status", s.authed(s.handleStatus))
	mux.Handle("GET /agents", s.authed(s.handleAgents))
	mux.Handle("GET /agents/{id}", s.authed(s.handleAgent))
	mux.Handle("GET /report", s.authed(s.handleReport))
	mux.Handle("GET /report.txt", s.authed(s.handleReportText))
	mux.Handle("POST /route", s.authed(s.handleRoute))
	mux.Handle("POST /synthesize", s.authed(s.handleSynthesize))
	mux.Handle("GET /snapshots/latest", s.authed(s.handleSnapshotLatest))
	mux.Handle("GET /decisions", s.authed(s.handleDecisions))
	mux.Handle("GET /ws", s.authed(s.handleWebSocket))

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up the WebSocket RPC methods.
func (s *Server) registerRPCHandlers() {
	s.Handle("status", s.rpcStatus)
	s.Handle("agents", s.rpcAgents)
	s.Handle("report", s.rpcReport)
	s.Handle("route", s.rpcRoute)
}

func (s *Server) rpcStatus(rc *RequestContext) {
	rc.Respond(s.status())
}

func (s *Server) rpcAgents(rc *RequestContext) {
	rc.Respond(map[string]any{"agents": s.agentList()})
}

func (s *Server) rpcReport(rc *RequestContext) {
	rc.Respond(s.report())
}

func (s *Server) rpcRoute(rc *RequestContext) {
	var raw map[string]any
	if err := rc.Params(&raw); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	req, err := domain.NewTaskRoutingRequest(raw)
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	rc.Respond(s.synth.Route(rc.Ctx, req))
}
