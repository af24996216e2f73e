package domain

// Tier is a coarse reputation bracket derived from the compound score.
type Tier string

const (
	TierPlata    Tier = "Plata"
	TierOro      Tier = "Oro"
	TierDiamante Tier = "Diamante"
)

// Rank orders tiers: Plata < Oro < Diamante. Unknown tiers rank below Plata.
func (t Tier) Rank() int {
	switch t {
	case TierPlata:
		return 1
	case TierOro:
		return 2
	case TierDiamante:
		return 3
	default:
		return 0
	}
}

// Factor is one named contribution to an agent's compound score.
type Factor struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// CategoryScore is the track record of an agent in one task category.
type CategoryScore struct {
	Samples        int     `json:"samples"`
	Approved       int     `json:"approved"`
	ApprovalRate   float64 `json:"approval_rate"`
	CostEfficiency float64 `json:"cost_efficiency"`
	Score          float64 `json:"score"` // 0.7*approval + 0.3*efficiency, 0-1
	LowConfidence  bool    `json:"low_confidence,omitempty"`
	Trend          string  `json:"trend,omitempty"`
}

// HighBurnoutRisk is the burnout risk at which an agent is flagged to
// operators. Burnout never changes the compound score.
const HighBurnoutRisk = 0.7

// AgentIntelligence is the fused profile of one agent.
//
// A value is built once per synthesis cycle and never modified afterwards;
// the maps and slices it holds are shared by every reader of the generation.
type AgentIntelligence struct {
	AgentID             string                   `json:"agent_id"`
	ReliabilityScore    float64                  `json:"reliability_score"`
	EfficiencyScore     float64                  `json:"efficiency_score"`
	CategoryScores      map[string]CategoryScore `json:"category_scores,omitempty"`
	Layers              TrustLayers              `json:"layers"`
	AggregatedTrust     float64                  `json:"aggregated_trust"`
	ColdStartBonus      float64                  `json:"cold_start_bonus"`
	FailurePenalty      float64                  `json:"failure_penalty"`
	CompoundScore       float64                  `json:"compound_score"`
	Confidence          float64                  `json:"confidence"`
	SourcesAvailable    []string                 `json:"sources_available"`
	Tier                Tier                     `json:"tier"`
	Healthy             bool                     `json:"healthy"`
	LifecycleState      AgentState               `json:"lifecycle_state"`
	ConsecutiveFailures int                      `json:"consecutive_failures"`
	SampleCount         int                      `json:"sample_count"`
	Trajectory          string                   `json:"trajectory,omitempty"`
	BurnoutRisk         float64                  `json:"burnout_risk"`
	AvgCostUSD          float64                  `json:"avg_cost_usd,omitempty"`
	Factors             []Factor                 `json:"factors,omitempty"`
	Warnings            []string                 `json:"warnings,omitempty"`
}

// TopFactor returns the name of the largest positive contribution, or "none".
func (a AgentIntelligence) TopFactor() string {
	best := "none"
	bestPoints := 0.0
	for _, f := range a.Factors {
		if f.Points > bestPoints {
			best = f.Name
			bestPoints = f.Points
		}
	}
	return best
}

// HasSource reports whether the named trust layer was available.
func (a AgentIntelligence) HasSource(name string) bool {
	for _, s := range a.SourcesAvailable {
		if s == name {
			return true
		}
	}
	return false
}
