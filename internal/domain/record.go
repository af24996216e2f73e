package domain

import (
	"encoding/json"
	"time"
)

// AgentState is the lifecycle state reported by the lifecycle manager.
type AgentState string

const (
	StateUnknown   AgentState = ""
	StateOffline   AgentState = "offline"
	StateStarting  AgentState = "starting"
	StateIdle      AgentState = "idle"
	StateWorking   AgentState = "working"
	StateStopping  AgentState = "stopping"
	StateCooldown  AgentState = "cooldown"
	StateError     AgentState = "error"
	StateDraining  AgentState = "draining"
	StateSuspended AgentState = "suspended"
)

// Trust layer names.
const (
	LayerRegistry      = "registry"
	LayerPerformance   = "performance"
	LayerTransactional = "transactional"
)

// LayerNames lists the trust layers in their fixed order.
var LayerNames = []string{LayerRegistry, LayerPerformance, LayerTransactional}

// layerAliases maps legacy layer names onto the current ones.
var layerAliases = map[string]string{
	"on_chain":  LayerRegistry,
	"off_chain": LayerPerformance,
}

// CanonicalLayer resolves a layer name or legacy alias.
// It returns "" for names that are not trust layers.
func CanonicalLayer(name string) string {
	if alias, ok := layerAliases[name]; ok {
		return alias
	}
	switch name {
	case LayerRegistry, LayerPerformance, LayerTransactional:
		return name
	}
	return ""
}

// PerformanceLedger is the locally tracked performance record of an agent.
// Sub-scores are pointers because a ledger may predate them.
type PerformanceLedger struct {
	TotalTasks       int      `json:"total_tasks"`
	TotalApproved    int      `json:"total_approved"`
	TotalCostUSD     float64  `json:"total_cost_usd"`
	TotalRevenueUSD  float64  `json:"total_revenue_usd"`
	OverallScore     *float64 `json:"overall_score,omitempty"`
	ReliabilityScore *float64 `json:"reliability_score,omitempty"`
	EfficiencyScore  *float64 `json:"efficiency_score,omitempty"`
}

// EvidenceEntry is one judged work outcome.
type EvidenceEntry struct {
	Category    string     `json:"category"`
	Approved    bool       `json:"approved"`
	BountyUSD   float64    `json:"bounty_usd"`
	CostUSD     float64    `json:"cost_usd"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// LifecycleRecord is the operational state of an agent.
type LifecycleRecord struct {
	AgentID             string     `json:"agent_id"`
	State               AgentState `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalSuccesses      int        `json:"total_successes"`
	TotalFailures       int        `json:"total_failures,omitempty"`
	CooldownUntil       *time.Time `json:"cooldown_until,omitempty"`
}

// LayerScore is a single raw layer score inside a trust snapshot.
type LayerScore struct {
	Score float64 `json:"score"`
}

// SnapshotLayers holds the raw layer scores of a trust snapshot.
type SnapshotLayers struct {
	Registry      *LayerScore `json:"registry,omitempty"`
	Performance   *LayerScore `json:"performance,omitempty"`
	Transactional *LayerScore `json:"transactional,omitempty"`
}

// UnmarshalJSON accepts current and legacy layer names.
func (s *SnapshotLayers) UnmarshalJSON(data []byte) error {
	var raw map[string]LayerScore
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SnapshotLayers{}
	for name, score := range raw {
		switch CanonicalLayer(name) {
		case LayerRegistry:
			s.Registry = &score
		case LayerPerformance:
			s.Performance = &score
		case LayerTransactional:
			s.Transactional = &score
		}
	}
	return nil
}

// Get returns the raw score for a named layer.
func (s SnapshotLayers) Get(name string) (*LayerScore, bool) {
	var ls *LayerScore
	switch name {
	case LayerRegistry:
		ls = s.Registry
	case LayerPerformance:
		ls = s.Performance
	case LayerTransactional:
		ls = s.Transactional
	}
	return ls, ls != nil
}

// TrustSnapshot is the externally computed reputation view of an agent.
type TrustSnapshot struct {
	CompositeScore   float64        `json:"composite_score"`
	Tier             string         `json:"tier,omitempty"`
	Confidence       float64        `json:"confidence"`
	SourcesAvailable []string       `json:"sources_available"`
	Layers           SnapshotLayers `json:"layers"`
}

// Lists reports whether the snapshot declares the named layer as available.
func (t TrustSnapshot) Lists(layer string) bool {
	for _, s := range t.SourcesAvailable {
		if CanonicalLayer(s) == layer {
			return true
		}
	}
	return false
}

// TrustLayer is one normalized trust channel.
type TrustLayer struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Available bool    `json:"available"`
}

// TrustLayers is the fixed set of trust channels. Consumers must check
// Available on each layer before using its score.
type TrustLayers struct {
	Registry      TrustLayer `json:"registry"`
	Performance   TrustLayer `json:"performance"`
	Transactional TrustLayer `json:"transactional"`
}

// All returns the layers in their fixed order.
func (t TrustLayers) All() []TrustLayer {
	return []TrustLayer{t.Registry, t.Performance, t.Transactional}
}

// AvailableCount returns the number of available layers.
func (t TrustLayers) AvailableCount() int {
	n := 0
	for _, l := range t.All() {
		if l.Available {
			n++
		}
	}
	return n
}

// AgentRecord is the raw per-agent input for one synthesis cycle.
// Nil fields mean the source was absent.
type AgentRecord struct {
	AgentID   string
	Ledger    *PerformanceLedger
	Evidence  []EvidenceEntry
	Lifecycle *LifecycleRecord
	Trust     *TrustSnapshot
	Missing   []string // names of sources that were absent
}
