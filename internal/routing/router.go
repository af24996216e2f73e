// Package routing matches incoming tasks to the best eligible agent.
package routing

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
)

const (
	winnerConfidenceWeight = 0.6
	marginConfidenceWeight = 0.4

	// Fitness margin over the runner-up at which the margin half of decision
	// confidence saturates.
	fullMargin = 20.0
)

// Router ranks agents for a task. It keeps no state between calls and only
// reads the agent map it is given.
type Router struct {
	categoryBoost float64
	minFitness    float64
	caps          CapabilityProvider
	log           *logging.Logger
}

// NewRouter creates a task router. A nil provider treats every agent as
// digital-only.
func NewRouter(cfg config.RoutingConfig, caps CapabilityProvider, log *logging.Logger) *Router {
	if caps == nil {
		caps = StaticCapabilities{}
	}
	return &Router{
		categoryBoost: cfg.CategoryBoost,
		minFitness:    cfg.MinFitness,
		caps:          caps,
		log:           log.Sub("routing"),
	}
}

type routeOptions struct {
	exclude    map[string]bool
	minFitness float64
}

// RouteOption adjusts a single routing call.
type RouteOption func(*routeOptions)

// WithExclude removes the given agents from consideration.
func WithExclude(ids ...string) RouteOption {
	return func(o *routeOptions) {
		for _, id := range ids {
			o.exclude[id] = true
		}
	}
}

// WithMinFitness drops candidates whose fitness is below f.
func WithMinFitness(f float64) RouteOption {
	return func(o *routeOptions) { o.minFitness = f }
}

// exclusions counts why agents were not candidates.
type exclusions struct {
	unhealthy    int
	excluded     int
	incapable    int
	belowMinimum int
}

// Route selects the best eligible agent for req. When no agent qualifies the
// decision has an empty SelectedAgent and explains why.
func (r *Router) Route(agents map[string]domain.AgentIntelligence, req domain.TaskRoutingRequest, opts ...RouteOption) domain.RoutingDecision {
	o := routeOptions{exclude: map[string]bool{}, minFitness: r.minFitness}
	for _, opt := range opts {
		opt(&o)
	}

	category := req.Category
	if category == "" {
		category = domain.DefaultCategory
	}

	var (
		candidates []domain.CandidateScore
		ex         exclusions
	)
	for _, id := range sortedIDs(agents) {
		intel := agents[id]
		switch {
		case o.exclude[id]:
			ex.excluded++
			continue
		case !intel.Healthy:
			ex.unhealthy++
			continue
		case !r.caps.Capabilities(id).canServe(req.RequiresPhysical):
			ex.incapable++
			continue
		}

		c := r.candidate(intel, category)
		c.AgentID = id
		c.EconomicViability = EconomicViability(req.BountyUSD, intel.AvgCostUSD)
		if c.Fitness < o.minFitness {
			ex.belowMinimum++
			continue
		}
		candidates = append(candidates, c)
	}

	slices.SortFunc(candidates, compareCandidates)

	decision := domain.RoutingDecision{
		TaskID:          req.TaskID,
		CandidateScores: candidates,
	}
	if decision.CandidateScores == nil {
		decision.CandidateScores = []domain.CandidateScore{}
	}

	if len(candidates) == 0 {
		decision.Reasoning = noCandidateReason(len(agents), req, ex, o.minFitness)
		decision.Warnings = append(decision.Warnings, "no eligible agent for task")
		r.log.Warn().Str("task", req.TaskID).Str("reason", decision.Reasoning).Msg("task not routed")
		return decision
	}

	winner := candidates[0]
	margin := fullMargin
	if len(candidates) > 1 {
		margin = winner.Fitness - candidates[1].Fitness
	}
	decision.SelectedAgent = winner.AgentID
	decision.Confidence = DecisionConfidence(winner.Confidence, margin)
	decision.Reasoning = r.reasoning(agents[winner.AgentID], winner, candidates, category, req.BountyUSD, ex)
	decision.Warnings = r.warnings(agents[winner.AgentID], winner, category, req.BountyUSD)

	r.log.Debug().
		Str("task", req.TaskID).
		Str("agent", winner.AgentID).
		Float64("fitness", winner.Fitness).
		Float64("confidence", decision.Confidence).
		Int("candidates", len(candidates)).
		Msg("task routed")
	return decision
}

// Fitness returns the task-specific fitness of an agent: its compound score
// plus the category boost when it has a trusted track record there.
func (r *Router) Fitness(intel domain.AgentIntelligence, category string) float64 {
	return r.candidate(intel, category).Fitness
}

func (r *Router) candidate(intel domain.AgentIntelligence, category string) domain.CandidateScore {
	var boost float64
	if cs, ok := intel.CategoryScores[category]; ok && !cs.LowConfidence {
		boost = r.categoryBoost * cs.Score
	}
	return domain.CandidateScore{
		AgentID:             intel.AgentID,
		Fitness:             intel.CompoundScore + boost,
		CompoundScore:       intel.CompoundScore,
		CategoryBoost:       boost,
		Confidence:          intel.Confidence,
		ConsecutiveFailures: intel.ConsecutiveFailures,
	}
}

// compareCandidates orders by fitness, then confidence (both descending),
// then fewer consecutive failures, then agent id.
func compareCandidates(a, b domain.CandidateScore) int {
	switch {
	case a.Fitness != b.Fitness:
		if a.Fitness > b.Fitness {
			return -1
		}
		return 1
	case a.Confidence != b.Confidence:
		if a.Confidence > b.Confidence {
			return -1
		}
		return 1
	case a.ConsecutiveFailures != b.ConsecutiveFailures:
		return a.ConsecutiveFailures - b.ConsecutiveFailures
	default:
		return strings.Compare(a.AgentID, b.AgentID)
	}
}

// DecisionConfidence combines the winner's profile confidence with its
// fitness margin over the runner-up.
func DecisionConfidence(winnerConfidence, margin float64) float64 {
	marginPart := math.Max(0, math.Min(1, margin/fullMargin))
	return winnerConfidenceWeight*winnerConfidence + marginConfidenceWeight*marginPart
}

func (r *Router) reasoning(intel domain.AgentIntelligence, winner domain.CandidateScore, candidates []domain.CandidateScore, category string, bounty float64, ex exclusions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "selected %s (fitness %.1f = compound %.1f + %s boost %.1f; top factor %s)",
		winner.AgentID, winner.Fitness, winner.CompoundScore, category, winner.CategoryBoost, intel.TopFactor())
	if len(candidates) > 1 {
		runnerUp := candidates[1]
		fmt.Fprintf(&b, "; ahead of %s by %.1f", runnerUp.AgentID, winner.Fitness-runnerUp.Fitness)
	} else {
		b.WriteString("; only eligible candidate")
	}
	if intel.ColdStartBonus > 0 {
		fmt.Fprintf(&b, "; cold-start bonus +%.1f", intel.ColdStartBonus)
	}
	if intel.Trajectory != "" {
		fmt.Fprintf(&b, "; trajectory %s", intel.Trajectory)
	}
	if unprofitable(bounty, intel.AvgCostUSD) {
		fmt.Fprintf(&b, "; negative margin (avg cost $%.2f, bounty $%.2f)", intel.AvgCostUSD, bounty)
	}
	if s := ex.String(); s != "" {
		fmt.Fprintf(&b, "; not considered: %s", s)
	}
	return b.String()
}

func (r *Router) warnings(intel domain.AgentIntelligence, winner domain.CandidateScore, category string, bounty float64) []string {
	var out []string
	if winner.CategoryBoost == 0 {
		out = append(out, fmt.Sprintf("%s has no established track record in %s", winner.AgentID, category))
	}
	if intel.Trajectory == "declining" {
		out = append(out, fmt.Sprintf("%s approval rate is declining", winner.AgentID))
	}
	if intel.Layers.AvailableCount() == 0 {
		out = append(out, fmt.Sprintf("%s has no trust layer available", winner.AgentID))
	}
	if unprofitable(bounty, intel.AvgCostUSD) {
		out = append(out, fmt.Sprintf("%s average cost $%.2f exceeds bounty $%.2f", winner.AgentID, intel.AvgCostUSD, bounty))
	}
	if intel.BurnoutRisk >= domain.HighBurnoutRisk {
		out = append(out, fmt.Sprintf("%s burnout risk %.2f", winner.AgentID, intel.BurnoutRisk))
	}
	return out
}

func noCandidateReason(total int, req domain.TaskRoutingRequest, ex exclusions, minFitness float64) string {
	if total == 0 {
		return "no eligible agent: no agents have been synthesized"
	}
	reason := "no eligible agent among " + fmt.Sprint(total) + ": " + ex.String()
	if ex.incapable > 0 && req.RequiresPhysical {
		reason += "; task requires physical presence"
	}
	if ex.belowMinimum > 0 {
		reason += fmt.Sprintf("; minimum fitness %.1f", minFitness)
	}
	return reason
}

func (e exclusions) String() string {
	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(e.unhealthy, "unhealthy")
	add(e.excluded, "excluded")
	add(e.incapable, "lacking capability")
	add(e.belowMinimum, "below minimum fitness")
	return strings.Join(parts, ", ")
}

func sortedIDs(agents map[string]domain.AgentIntelligence) []string {
	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
