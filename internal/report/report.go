// Package report summarizes a generation of agent profiles for operators.
package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

// Thresholds for fleet-level patterns.
const (
	decliningRiskShare   = 0.3
	coldStartOpportunity = 0.5
	lowCoverageShare     = 0.5
)

// Generate builds the fleet report for agents. skipped is the number of
// agents left out of the generation.
//
// The swarm health score is mean(compound of healthy agents) scaled by the
// healthy share of the fleet, so it falls both when healthy agents score
// lower and when fewer agents are healthy.
func Generate(agents map[string]domain.AgentIntelligence, skipped int, now time.Time) domain.SwarmIntelligenceReport {
	r := domain.SwarmIntelligenceReport{
		TotalAgents:   len(agents),
		SkippedAgents: skipped,
		TierCounts:    map[domain.Tier]int{},
		GeneratedAt:   now.UTC(),
	}

	var (
		compoundSum float64
		healthySum  float64
		fullLayers  int
		declining   int
		burnout     int
	)
	for _, a := range agents {
		compoundSum += a.CompoundScore
		if a.Healthy {
			r.HealthyAgents++
			healthySum += a.CompoundScore
		}
		if a.Layers.AvailableCount() == len(domain.LayerNames) {
			fullLayers++
		}
		if a.ColdStartBonus > 0 {
			r.ColdStartAgents++
		}
		if a.Trajectory == "declining" {
			declining++
		}
		if a.Healthy && a.BurnoutRisk >= domain.HighBurnoutRisk {
			burnout++
		}
		r.TierCounts[a.Tier]++
	}

	if r.TotalAgents > 0 {
		total := float64(r.TotalAgents)
		r.AvgCompoundScore = compoundSum / total
		r.Coverage = float64(fullLayers) / total
		if r.HealthyAgents > 0 {
			meanHealthy := healthySum / float64(r.HealthyAgents)
			r.SwarmHealthScore = meanHealthy * float64(r.HealthyAgents) / total
		}
	}

	r.Risks, r.Opportunities = patterns(r, declining, burnout)
	return r
}

func patterns(r domain.SwarmIntelligenceReport, declining, burnout int) (risks, opportunities []string) {
	total := float64(r.TotalAgents)
	if r.TotalAgents > 0 && r.HealthyAgents == 0 {
		risks = append(risks, "no healthy agents; tasks cannot be routed")
	}
	if unhealthy := r.TotalAgents - r.HealthyAgents; unhealthy > 0 && r.HealthyAgents > 0 {
		risks = append(risks, fmt.Sprintf("%d agents unhealthy and excluded from routing", unhealthy))
	}
	if declining > 0 && float64(declining) > total*decliningRiskShare {
		risks = append(risks, fmt.Sprintf("%d agents declining; possible systemic issue", declining))
	}
	if burnout > 0 {
		risks = append(risks, fmt.Sprintf("%d healthy agents at high burnout risk", burnout))
	}
	if r.SkippedAgents > 0 {
		risks = append(risks, fmt.Sprintf("%d agents skipped due to unreadable records", r.SkippedAgents))
	}

	if r.ColdStartAgents > 0 && float64(r.ColdStartAgents) > total*coldStartOpportunity {
		opportunities = append(opportunities,
			fmt.Sprintf("%d agents in cold-start; fleet is underutilized", r.ColdStartAgents))
	}
	if r.TotalAgents > 0 && r.Coverage < lowCoverageShare {
		opportunities = append(opportunities,
			fmt.Sprintf("only %.0f%% of agents have all trust layers; attestations would raise confidence", r.Coverage*100))
	}
	return risks, opportunities
}

// Format renders the report and one line per agent, ordered by agent id.
// The layout is stable so it can be diffed between runs.
func Format(r domain.SwarmIntelligenceReport, agents map[string]domain.AgentIntelligence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "swarm intelligence report generated=%s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "agents=%d healthy=%d skipped=%d health=%.1f avg_compound=%.1f coverage=%.2f cold_start=%d\n",
		r.TotalAgents, r.HealthyAgents, r.SkippedAgents, r.SwarmHealthScore, r.AvgCompoundScore, r.Coverage, r.ColdStartAgents)
	fmt.Fprintf(&b, "tiers Diamante=%d Oro=%d Plata=%d\n",
		r.TierCounts[domain.TierDiamante], r.TierCounts[domain.TierOro], r.TierCounts[domain.TierPlata])
	for _, risk := range r.Risks {
		fmt.Fprintf(&b, "risk: %s\n", risk)
	}
	for _, o := range r.Opportunities {
		fmt.Fprintf(&b, "opportunity: %s\n", o)
	}

	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		b.WriteString(FormatAgent(agents[id]))
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatAgent renders one agent line.
func FormatAgent(a domain.AgentIntelligence) string {
	return fmt.Sprintf("agent=%s tier=%s compound=%.1f confidence=%.2f healthy=%t top=%s",
		a.AgentID, a.Tier, a.CompoundScore, a.Confidence, a.Healthy, a.TopFactor())
}
