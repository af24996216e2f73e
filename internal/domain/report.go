package domain

import "time"

// SwarmIntelligenceReport summarizes one published generation of profiles.
type SwarmIntelligenceReport struct {
	TotalAgents      int          `json:"total_agents"`
	HealthyAgents    int          `json:"healthy_agents"`
	SkippedAgents    int          `json:"skipped_agents"`
	SwarmHealthScore float64      `json:"swarm_health_score"`
	AvgCompoundScore float64      `json:"avg_compound_score"`
	Coverage         float64      `json:"intelligence_coverage"`
	TierCounts       map[Tier]int `json:"tier_counts,omitempty"`
	ColdStartAgents  int          `json:"cold_start_agents"`
	Risks            []string     `json:"risks,omitempty"`
	Opportunities    []string     `json:"opportunities,omitempty"`
	GeneratedAt      time.Time    `json:"generated_at"`
}

// Snapshot is the persisted form of a synthesized generation.
type Snapshot struct {
	ID          string                       `json:"id,omitempty"`
	Agents      map[string]AgentIntelligence `json:"agents"`
	Report      SwarmIntelligenceReport      `json:"report"`
	GeneratedAt time.Time                    `json:"generated_at"`
}
