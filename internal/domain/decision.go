package domain

// CandidateScore is the ranking of one eligible agent for a task.
type CandidateScore struct {
	AgentID             string  `json:"agent_id"`
	Fitness             float64 `json:"fitness"`
	CompoundScore       float64 `json:"compound_score"`
	CategoryBoost       float64 `json:"category_boost"`
	Confidence          float64 `json:"confidence"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	// EconomicViability rates the bounty against the agent's average task
	// cost, 0.1-1. It does not affect Fitness.
	EconomicViability float64 `json:"economic_viability"`
}

// RoutingDecision is the outcome of matching one task to at most one agent.
// An empty SelectedAgent means no agent was eligible.
type RoutingDecision struct {
	TaskID          string           `json:"task_id"`
	SelectedAgent   string           `json:"selected_agent,omitempty"`
	Confidence      float64          `json:"confidence"`
	CandidateScores []CandidateScore `json:"candidate_scores"`
	Reasoning       string           `json:"reasoning"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// Selected reports whether an agent was chosen.
func (d RoutingDecision) Selected() bool {
	return d.SelectedAgent != ""
}
