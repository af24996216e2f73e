package config

import "time"

// Config is the root configuration for swarmintel.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace,omitempty"`
	Scoring   ScoringConfig   `yaml:"scoring,omitempty"`
	Routing   RoutingConfig   `yaml:"routing,omitempty"`
	Synth     SynthConfig     `yaml:"synth,omitempty"`
	Snapshot  SnapshotConfig  `yaml:"snapshot,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Agents    []AgentEntry    `yaml:"agents,omitempty"`
}

// WorkspaceConfig locates the per-agent records.
type WorkspaceConfig struct {
	Dir         string        `yaml:"dir,omitempty"`     // one sub-directory per agent
	DataDir     string        `yaml:"dataDir,omitempty"` // fleet-level lifecycle and reputation files
	LoadTimeout time.Duration `yaml:"loadTimeout,omitempty"`
}

// ScoringConfig holds every tunable of the compound scorer.
type ScoringConfig struct {
	TrustWeight        float64         `yaml:"trustWeight"`       // w1
	ReliabilityWeight  float64         `yaml:"reliabilityWeight"` // w2
	EfficiencyWeight   float64         `yaml:"efficiencyWeight"`  // w3
	LayerWeights       LayerWeights    `yaml:"layerWeights,omitempty"`
	PenaltyPerFailure  float64         `yaml:"penaltyPerFailure"`
	MaxPenalty         float64         `yaml:"maxPenalty"`
	FailureCeiling     int             `yaml:"failureCeiling"`
	MinCategorySamples int             `yaml:"minCategorySamples"`
	ColdStart          ColdStartConfig `yaml:"coldStart,omitempty"`
	Tiers              TierThresholds  `yaml:"tiers,omitempty"`
	Admission          AdmissionConfig `yaml:"admission,omitempty"`
}

// LayerWeights weights the trust layers inside the aggregated trust score.
type LayerWeights struct {
	Registry      float64 `yaml:"registry"`
	Performance   float64 `yaml:"performance"`
	Transactional float64 `yaml:"transactional"`
}

// ColdStartConfig shapes the cold-start bonus decay.
type ColdStartConfig struct {
	BaseBonus  float64 `yaml:"baseBonus"`
	Saturation int     `yaml:"saturation"` // completed tasks at which the bonus reaches 0
}

// TierThresholds maps compound scores to tiers.
// Scores below Oro are Plata; scores above Diamante are Diamante.
type TierThresholds struct {
	Oro      float64 `yaml:"oro"`
	Diamante float64 `yaml:"diamante"`
}

// AdmissionConfig selects the policy deciding whether a lifecycle state is routable.
type AdmissionConfig struct {
	Policy string `yaml:"policy,omitempty"` // "strict" | "cooldown"
}

// RoutingConfig tunes the task router.
type RoutingConfig struct {
	CategoryBoost  float64 `yaml:"categoryBoost"`
	MinFitness     float64 `yaml:"minFitness"`
	AuditDecisions bool    `yaml:"auditDecisions,omitempty"`
}

// SynthConfig controls synthesis cycles.
type SynthConfig struct {
	Workers  int           `yaml:"workers"`
	Schedule string        `yaml:"schedule,omitempty"` // cron expression; empty uses Interval
	Interval time.Duration `yaml:"interval,omitempty"`
	Watch    bool          `yaml:"watch,omitempty"` // re-synthesize on workspace changes
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// SnapshotConfig selects where synthesized generations are persisted.
type SnapshotConfig struct {
	Backend  string `yaml:"backend,omitempty"` // "file" | "sqlite"
	Dir      string `yaml:"dir,omitempty"`
	DBPath   string `yaml:"dbPath,omitempty"`
	Compress bool   `yaml:"compress,omitempty"`
	Retain   int    `yaml:"retain"`
}

// GatewayConfig controls the HTTP/WebSocket API.
type GatewayConfig struct {
	Port           int      `yaml:"port"`
	Bind           string   `yaml:"bind,omitempty"`
	Token          string   `yaml:"token,omitempty"` // empty disables auth
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// AgentEntry declares capabilities of an agent. Agents not listed are digital-only.
type AgentEntry struct {
	ID       string `yaml:"id"`
	Physical bool   `yaml:"physical,omitempty"`
	Digital  *bool  `yaml:"digital,omitempty"` // defaults to true
}
