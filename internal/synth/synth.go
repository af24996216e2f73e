// Package synth runs synthesis cycles and publishes each result as an
// immutable generation that routing and reporting read without locks.
package synth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/hooks"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/report"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/routing"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/scoring"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/snapshot"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/workspace"
)

var (
	// ErrNoStore is returned by snapshot operations when no store is configured.
	ErrNoStore = errors.New("no snapshot store configured")

	// ErrNotSynthesized is returned by SaveSnapshot before the first cycle.
	ErrNotSynthesized = errors.New("nothing synthesized yet")
)

// Generation is one published synthesis result. It is never modified after
// it has been published.
type Generation struct {
	Seq         uint64
	Agents      map[string]domain.AgentIntelligence
	Skipped     []workspace.SkippedAgent
	Warnings    []string
	Report      domain.SwarmIntelligenceReport
	GeneratedAt time.Time
	Restored    bool // built from a stored snapshot rather than a cycle
}

// DecisionRecorder keeps an audit trail of routing decisions.
type DecisionRecorder interface {
	Record(ctx context.Context, req domain.TaskRoutingRequest, d domain.RoutingDecision) (string, error)
}

// Synthesizer loads agent records, scores them in parallel and swaps the
// result in as the current generation.
type Synthesizer struct {
	source  workspace.Source
	scorer  *scoring.Scorer
	router  *routing.Router
	store   snapshot.Store
	audit   DecisionRecorder
	hooks   *hooks.Manager
	workers int
	log     *logging.Logger
	now     func() time.Time

	writeMu sync.Mutex // one Synthesize at a time
	seq     uint64
	current atomic.Pointer[Generation]
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithStore sets the snapshot store.
func WithStore(st snapshot.Store) Option {
	return func(s *Synthesizer) { s.store = st }
}

// WithDecisionLog records every routing decision.
func WithDecisionLog(r DecisionRecorder) Option {
	return func(s *Synthesizer) { s.audit = r }
}

// WithHooks sets the hook manager that receives synthesis events.
func WithHooks(m *hooks.Manager) Option {
	return func(s *Synthesizer) { s.hooks = m }
}

// WithWorkers bounds the number of agents scored concurrently.
func WithWorkers(n int) Option {
	return func(s *Synthesizer) { s.workers = n }
}

// WithClock overrides the time source used for generation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// New creates a Synthesizer. The initial generation is empty.
func New(source workspace.Source, scorer *scoring.Scorer, router *routing.Router, log *logging.Logger, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		source:  source,
		scorer:  scorer,
		router:  router,
		workers: 8,
		log:     log.Sub("synth"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	s.current.Store(&Generation{Agents: map[string]domain.AgentIntelligence{}})
	return s
}

// Current returns the published generation.
func (s *Synthesizer) Current() *Generation {
	return s.current.Load()
}

// Synthesize runs one cycle and publishes its result. Per-agent failures
// are recorded in the generation's Skipped list; only a failure to load the
// fleet as a whole is returned, and then the previous generation stays.
func (s *Synthesizer) Synthesize(ctx context.Context) (*Generation, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := s.now()
	res, err := s.source.Load(ctx)
	if err != nil {
		s.emit(ctx, hooks.EventSynthesisFailed, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("loading workspaces: %w", err)
	}

	profiles := make([]domain.AgentIntelligence, len(res.Records))
	failures := make([]error, len(res.Records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, rec := range res.Records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			profiles[i], failures[i] = s.scorer.Score(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring agents: %w", err)
	}

	agents := make(map[string]domain.AgentIntelligence, len(res.Records))
	skipped := slices.Clone(res.Skipped)
	for i, rec := range res.Records {
		if failures[i] != nil {
			skipped = append(skipped, workspace.SkippedAgent{AgentID: rec.AgentID, Reason: failures[i].Error()})
			continue
		}
		agents[rec.AgentID] = profiles[i]
	}
	slices.SortFunc(skipped, func(a, b workspace.SkippedAgent) int {
		return strings.Compare(a.AgentID, b.AgentID)
	})

	now := s.now().UTC()
	s.seq++
	gen := &Generation{
		Seq:         s.seq,
		Agents:      agents,
		Skipped:     skipped,
		Warnings:    slices.Clone(res.Warnings),
		Report:      report.Generate(agents, len(skipped), now),
		GeneratedAt: now,
	}
	s.current.Store(gen)

	for _, sk := range skipped {
		s.log.Agent(sk.AgentID).Warn().Str("reason", sk.Reason).Msg("agent skipped")
		s.emit(ctx, hooks.EventAgentSkipped, map[string]any{"agent": sk.AgentID, "reason": sk.Reason})
	}
	s.log.Info().
		Uint64("generation", gen.Seq).
		Int("agents", len(agents)).
		Int("healthy", gen.Report.HealthyAgents).
		Int("skipped", len(skipped)).
		Dur("took", s.now().Sub(start)).
		Msg("synthesis complete")
	s.emit(ctx, hooks.EventSynthesisComplete, map[string]any{
		"generation": gen.Seq,
		"agents":     len(agents),
		"healthy":    gen.Report.HealthyAgents,
		"skipped":    len(skipped),
		"health":     gen.Report.SwarmHealthScore,
	})
	return gen, nil
}

// Route picks an agent for req from the current generation. The decision
// is audited when a decision log is configured; audit failures are logged
// and do not change the decision.
func (s *Synthesizer) Route(ctx context.Context, req domain.TaskRoutingRequest, opts ...routing.RouteOption) domain.RoutingDecision {
	gen := s.Current()
	d := s.router.Route(gen.Agents, req, opts...)

	if s.audit != nil {
		if _, err := s.audit.Record(ctx, req, d); err != nil {
			s.log.Warn().Err(err).Str("task", req.TaskID).Msg("recording routing decision")
		}
	}
	s.emit(ctx, hooks.EventTaskRouted, map[string]any{
		"task":       d.TaskID,
		"category":   req.Category,
		"selected":   d.SelectedAgent,
		"confidence": d.Confidence,
		"generation": gen.Seq,
	})
	return d
}

// Agent returns the current profile of one agent.
func (s *Synthesizer) Agent(id string) (domain.AgentIntelligence, bool) {
	a, ok := s.Current().Agents[id]
	return a, ok
}

// Report returns the report of the current generation.
func (s *Synthesizer) Report() domain.SwarmIntelligenceReport {
	return s.Current().Report
}

// FormatReport renders the current generation as text.
func (s *Synthesizer) FormatReport() string {
	gen := s.Current()
	return report.Format(gen.Report, gen.Agents)
}

// SaveSnapshot persists the current generation. A failure leaves both the
// previously stored snapshot and routing untouched.
func (s *Synthesizer) SaveSnapshot(ctx context.Context) (string, error) {
	if s.store == nil {
		return "", ErrNoStore
	}
	gen := s.Current()
	if gen.Seq == 0 && !gen.Restored {
		return "", ErrNotSynthesized
	}

	id, err := s.store.Save(ctx, domain.Snapshot{
		Agents:      gen.Agents,
		Report:      gen.Report,
		GeneratedAt: gen.GeneratedAt,
	})
	if err != nil {
		s.log.Error().Err(err).Uint64("generation", gen.Seq).Msg("snapshot failed")
		s.emit(ctx, hooks.EventSnapshotFailed, map[string]any{"generation": gen.Seq, "error": err.Error()})
		return "", err
	}
	s.emit(ctx, hooks.EventSnapshotSaved, map[string]any{"generation": gen.Seq, "id": id})
	return id, nil
}

// LoadLatestSnapshot returns the most recently stored snapshot.
func (s *Synthesizer) LoadLatestSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.LoadLatest(ctx)
}

// Restore publishes snap as the current generation so routing can serve
// before the first cycle completes. It does nothing once a cycle has run.
func (s *Synthesizer) Restore(snap *domain.Snapshot) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.seq > 0 || snap == nil {
		return false
	}
	agents := snap.Agents
	if agents == nil {
		agents = map[string]domain.AgentIntelligence{}
	}
	s.current.Store(&Generation{
		Agents:      agents,
		Report:      snap.Report,
		GeneratedAt: snap.GeneratedAt,
		Restored:    true,
	})
	s.log.Info().Str("snapshot", snap.ID).Int("agents", len(agents)).Msg("restored generation from snapshot")
	return true
}

func (s *Synthesizer) emit(ctx context.Context, event string, data map[string]any) {
	s.hooks.Emit(ctx, event, data)
}
