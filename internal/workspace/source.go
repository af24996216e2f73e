// Package workspace reads per-agent data files into raw agent records.
package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

// Source names recorded in domain.AgentRecord.Missing.
const (
	SourcePerformance = "performance"
	SourceEvidence    = "evidence"
	SourceLifecycle   = "lifecycle"
	SourceTrust       = "trust"
)

// File names inside an agent workspace directory.
const (
	PerformanceFile = "performance.json"
	EvidenceFile    = "evidence_history.json"
	LifecycleFile   = "lifecycle.json"
	TrustFile       = "trust.json"
)

// ErrWorkspaceUnavailable means the workspaces root could not be listed.
var ErrWorkspaceUnavailable = errors.New("workspace unavailable")

// Source supplies the raw agent records for one synthesis cycle.
type Source interface {
	Load(ctx context.Context) (*LoadResult, error)
}

// SkippedAgent names an agent left out of a cycle and why.
type SkippedAgent struct {
	AgentID string `json:"agent_id"`
	Reason  string `json:"reason"`
}

// LoadResult is the outcome of one load pass.
type LoadResult struct {
	Records  []domain.AgentRecord // sorted by agent id
	Skipped  []SkippedAgent
	Warnings []string // fleet-level problems that did not skip any agent
}

// CorruptError reports an agent data file that exists but cannot be parsed.
type CorruptError struct {
	AgentID string
	File    string
	Err     error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("agent %s: corrupt %s: %v", e.AgentID, e.File, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// StaticSource serves a fixed set of records. Useful for tests and for
// callers that already hold the records in memory.
type StaticSource struct {
	Result LoadResult
}

// Load returns a copy of the configured result.
func (s *StaticSource) Load(ctx context.Context) (*LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := LoadResult{
		Records:  append([]domain.AgentRecord(nil), s.Result.Records...),
		Skipped:  append([]SkippedAgent(nil), s.Result.Skipped...),
		Warnings: append([]string(nil), s.Result.Warnings...),
	}
	return &res, nil
}
