package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/routing"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/version"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/workspace"
)

// HealthResponse is returned by /health. Only Status is public.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse describes the running service and its current generation.
type StatusResponse struct {
	Status      string            `json:"status"`
	Build       version.BuildInfo `json:"build"`
	Generation  uint64            `json:"generation"`
	Restored    bool              `json:"restored,omitempty"`
	GeneratedAt *time.Time        `json:"generated_at,omitempty"`
	Agents      int               `json:"agents"`
	Healthy     int               `json:"healthy"`
	Skipped     int               `json:"skipped"`
	Clients     int               `json:"clients"`
	UptimeSec   int64             `json:"uptime_sec"`
}

// ReportResponse is the current report plus the agents left out of it.
type ReportResponse struct {
	Generation uint64                         `json:"generation"`
	Report     domain.SwarmIntelligenceReport `json:"report"`
	Skipped    []workspace.SkippedAgent       `json:"skipped,omitempty"`
	Warnings   []string                       `json:"warnings,omitempty"`
}

// SynthesizeResponse summarizes a cycle triggered over the API.
type SynthesizeResponse struct {
	Generation  uint64  `json:"generation"`
	Agents      int     `json:"agents"`
	Healthy     int     `json:"healthy"`
	Skipped     int     `json:"skipped"`
	Health      float64 `json:"swarm_health_score"`
	SnapshotID  string  `json:"snapshot_id,omitempty"`
	SnapshotErr string  `json:"snapshot_error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth returns the server health status without auth.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func (s *Server) status() StatusResponse {
	gen := s.synth.Current()
	resp := StatusResponse{
		Status:     "ok",
		Build:      version.Get(),
		Generation: gen.Seq,
		Restored:   gen.Restored,
		Agents:     len(gen.Agents),
		Healthy:    gen.Report.HealthyAgents,
		Skipped:    len(gen.Skipped),
		Clients:    s.clients.Count(),
		UptimeSec:  int64(time.Since(s.startedAt).Seconds()),
	}
	if !gen.GeneratedAt.IsZero() {
		at := gen.GeneratedAt
		resp.GeneratedAt = &at
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// agentList returns the current profiles sorted by agent id.
func (s *Server) agentList() []domain.AgentIntelligence {
	agents := s.synth.Current().Agents
	out := make([]domain.AgentIntelligence, 0, len(agents))
	for _, a := range agents {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b domain.AgentIntelligence) int {
		return strings.Compare(a.AgentID, b.AgentID)
	})
	return out
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.agentList()})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, ok := s.synth.Agent(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown agent: "+id)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) report() ReportResponse {
	gen := s.synth.Current()
	return ReportResponse{
		Generation: gen.Seq,
		Report:     gen.Report,
		Skipped:    gen.Skipped,
		Warnings:   gen.Warnings,
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.report())
}

func (s *Server) handleReportText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.synth.FormatReport())
}

// routeOptions reads exclude and min_fitness from the query string.
func routeOptions(r *http.Request) ([]routing.RouteOption, error) {
	var opts []routing.RouteOption
	q := r.URL.Query()
	if ex := q.Get("exclude"); ex != "" {
		opts = append(opts, routing.WithExclude(strings.Split(ex, ",")...))
	}
	if mf := q.Get("min_fitness"); mf != "" {
		f, err := strconv.ParseFloat(mf, 64)
		if err != nil {
			return nil, errors.New("min_fitness must be a number")
		}
		opts = append(opts, routing.WithMinFitness(f))
	}
	return opts, nil
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	if len(body) > maxRequestBody {
		writeError(w, http.StatusRequestEntityTooLarge, "task payload too large")
		return
	}
	req, err := domain.ParseTaskRoutingRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := routeOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.synth.Route(r.Context(), req, opts...))
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	gen, err := s.synth.Synthesize(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	resp := SynthesizeResponse{
		Generation: gen.Seq,
		Agents:     len(gen.Agents),
		Healthy:    gen.Report.HealthyAgents,
		Skipped:    len(gen.Skipped),
		Health:     gen.Report.SwarmHealthScore,
	}
	if r.URL.Query().Get("snapshot") == "true" {
		if id, err := s.synth.SaveSnapshot(r.Context()); err != nil {
			resp.SnapshotErr = err.Error()
		} else {
			resp.SnapshotID = id
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshotLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := s.synth.LoadLatestSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.decisions == nil {
		writeError(w, http.StatusNotFound, "decision log not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs, err := s.decisions.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": recs})
}

// RequestHandler processes a WebSocket RPC request frame.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything a WebSocket RPC handler needs.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{
		Code:    code,
		Message: message,
	})
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}
