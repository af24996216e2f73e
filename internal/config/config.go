package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config: %s: %s", e.Path, e.Message)
	}
	return "config: " + e.Message
}

// Admission policy names.
const (
	AdmissionStrict   = "strict"
	AdmissionCooldown = "cooldown"
)

// Snapshot backends.
const (
	SnapshotBackendFile   = "file"
	SnapshotBackendSQLite = "sqlite"
)

// Defaults returns a Config with sensible defaults applied.
// Directory fields stay empty until Paths.Fill resolves them.
func Defaults() Config {
	return Config{
		Workspace: WorkspaceConfig{
			LoadTimeout: 30 * time.Second,
		},
		Scoring: ScoringConfig{
			TrustWeight:       0.40,
			ReliabilityWeight: 0.35,
			EfficiencyWeight:  0.25,
			LayerWeights: LayerWeights{
				Registry:      1,
				Performance:   1,
				Transactional: 1,
			},
			PenaltyPerFailure:  5,
			MaxPenalty:         25,
			FailureCeiling:     5,
			MinCategorySamples: 3,
			ColdStart: ColdStartConfig{
				BaseBonus:  15,
				Saturation: 10,
			},
			Tiers: TierThresholds{
				Oro:      50,
				Diamante: 80,
			},
			Admission: AdmissionConfig{
				Policy: AdmissionStrict,
			},
		},
		Routing: RoutingConfig{
			CategoryBoost: 20,
		},
		Synth: SynthConfig{
			Workers:  8,
			Interval: 5 * time.Minute,
			Debounce: 2 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Backend: SnapshotBackendFile,
			Retain:  20,
		},
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "127.0.0.1",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
