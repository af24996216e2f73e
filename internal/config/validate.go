package config

import (
	"fmt"
	"slices"

	"github.com/adhocore/gronx"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Scoring validation
	s := cfg.Scoring
	for path, w := range map[string]float64{
		"scoring.trustWeight":                s.TrustWeight,
		"scoring.reliabilityWeight":          s.ReliabilityWeight,
		"scoring.efficiencyWeight":           s.EfficiencyWeight,
		"scoring.layerWeights.registry":      s.LayerWeights.Registry,
		"scoring.layerWeights.performance":   s.LayerWeights.Performance,
		"scoring.layerWeights.transactional": s.LayerWeights.Transactional,
		"scoring.penaltyPerFailure":          s.PenaltyPerFailure,
		"scoring.maxPenalty":                 s.MaxPenalty,
		"scoring.coldStart.baseBonus":        s.ColdStart.BaseBonus,
		"routing.categoryBoost":              cfg.Routing.CategoryBoost,
	} {
		if w < 0 {
			add(path, "must not be negative, got %v", w)
		}
	}
	if s.TrustWeight+s.ReliabilityWeight+s.EfficiencyWeight <= 0 {
		add("scoring", "at least one of trustWeight, reliabilityWeight, efficiencyWeight must be positive")
	}
	if s.LayerWeights.Registry+s.LayerWeights.Performance+s.LayerWeights.Transactional <= 0 {
		add("scoring.layerWeights", "at least one layer weight must be positive")
	}
	if s.FailureCeiling < 0 {
		add("scoring.failureCeiling", "must not be negative, got %d", s.FailureCeiling)
	}
	if s.MinCategorySamples < 1 {
		add("scoring.minCategorySamples", "must be at least 1, got %d", s.MinCategorySamples)
	}
	if s.ColdStart.Saturation < 1 {
		add("scoring.coldStart.saturation", "must be at least 1, got %d", s.ColdStart.Saturation)
	}
	if s.Tiers.Oro <= 0 || s.Tiers.Diamante > 100 || s.Tiers.Oro >= s.Tiers.Diamante {
		add("scoring.tiers", "need 0 < oro < diamante <= 100, got oro=%v diamante=%v", s.Tiers.Oro, s.Tiers.Diamante)
	}
	validPolicies := []string{AdmissionStrict, AdmissionCooldown}
	if !slices.Contains(validPolicies, s.Admission.Policy) {
		add("scoring.admission.policy", "must be one of %v, got %q", validPolicies, s.Admission.Policy)
	}

	// Synthesis validation
	if cfg.Synth.Workers < 1 {
		add("synth.workers", "must be at least 1, got %d", cfg.Synth.Workers)
	}
	if cfg.Synth.Schedule != "" && !gronx.New().IsValid(cfg.Synth.Schedule) {
		add("synth.schedule", "invalid cron expression %q", cfg.Synth.Schedule)
	}
	if cfg.Synth.Schedule == "" && cfg.Synth.Interval <= 0 {
		add("synth.interval", "must be positive when no schedule is set")
	}

	// Snapshot validation
	validBackends := []string{SnapshotBackendFile, SnapshotBackendSQLite}
	if !slices.Contains(validBackends, cfg.Snapshot.Backend) {
		add("snapshot.backend", "must be one of %v, got %q", validBackends, cfg.Snapshot.Backend)
	}
	if cfg.Snapshot.Retain < 0 {
		add("snapshot.retain", "must not be negative, got %d", cfg.Snapshot.Retain)
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// Agent capability validation
	seen := make(map[string]bool)
	for i, a := range cfg.Agents {
		if a.ID == "" {
			add(fmt.Sprintf("agents[%d].id", i), "id is required")
			continue
		}
		if seen[a.ID] {
			add(fmt.Sprintf("agents[%d].id", i), "duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
	}

	slices.SortStableFunc(issues, func(a, b ValidationIssue) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return issues
}
