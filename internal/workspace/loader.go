package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
)

// Loader reads agent records from a workspaces directory tree:
//
//	<dir>/<agent_id>/performance.json
//	<dir>/<agent_id>/evidence_history.json
//	<dir>/<agent_id>/lifecycle.json
//	<dir>/<agent_id>/trust.json
//
// Fleet-wide fallbacks are read from the data directory. The loader never
// writes to either tree.
type Loader struct {
	dir     string
	dataDir string
	timeout time.Duration
	log     *logging.Logger
}

// NewLoader creates a loader for the configured workspace locations.
// An empty DataDir resolves next to the workspaces directory.
func NewLoader(cfg config.WorkspaceConfig, log *logging.Logger) *Loader {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = defaultDataDir(cfg.Dir)
	}
	return &Loader{
		dir:     cfg.Dir,
		dataDir: dataDir,
		timeout: cfg.LoadTimeout,
		log:     log.Sub("workspace"),
	}
}

func defaultDataDir(dir string) string {
	if filepath.Base(dir) == "workspaces" {
		return filepath.Dir(dir)
	}
	return filepath.Join(dir, "data")
}

// Dir returns the workspaces root.
func (l *Loader) Dir() string { return l.dir }

// Load reads every agent directory. A missing file leaves the matching
// record field nil and names the source in Missing. A file that cannot be
// parsed skips that agent only. An unreadable root is an error.
func (l *Loader) Load(ctx context.Context) (*LoadResult, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkspaceUnavailable, err)
	}

	res := &LoadResult{}
	fleet := l.loadFleet(res)

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("loading workspaces: %w", err)
		}

		rec, err := l.loadAgent(id, fleet)
		if err != nil {
			l.log.Agent(id).Warn().Err(err).Msg("skipping agent")
			res.Skipped = append(res.Skipped, SkippedAgent{AgentID: id, Reason: err.Error()})
			continue
		}
		res.Records = append(res.Records, rec)
	}

	l.log.Debug().
		Int("agents", len(res.Records)).
		Int("skipped", len(res.Skipped)).
		Msg("workspaces loaded")
	return res, nil
}

func (l *Loader) loadAgent(id string, fleet fleetData) (domain.AgentRecord, error) {
	agentDir := filepath.Join(l.dir, id)
	rec := domain.AgentRecord{AgentID: id}

	var ledger domain.PerformanceLedger
	found, err := readJSON(id, filepath.Join(agentDir, PerformanceFile), &ledger)
	if err != nil {
		return rec, err
	}
	if found {
		rec.Ledger = &ledger
	} else {
		rec.Missing = append(rec.Missing, SourcePerformance)
	}

	evidence, found, err := readEvidence(id, filepath.Join(agentDir, EvidenceFile))
	if err != nil {
		return rec, err
	}
	if found {
		rec.Evidence = evidence
	} else {
		rec.Missing = append(rec.Missing, SourceEvidence)
	}

	var lc domain.LifecycleRecord
	found, err = readJSON(id, filepath.Join(agentDir, LifecycleFile), &lc)
	if err != nil {
		return rec, err
	}
	switch {
	case found:
		rec.Lifecycle = &lc
	case fleet.lifecycle[id] != nil:
		rec.Lifecycle = fleet.lifecycle[id]
	default:
		rec.Missing = append(rec.Missing, SourceLifecycle)
	}
	if rec.Lifecycle != nil && rec.Lifecycle.AgentID == "" {
		rec.Lifecycle.AgentID = id
	}

	var snap domain.TrustSnapshot
	found, err = readJSON(id, filepath.Join(agentDir, TrustFile), &snap)
	if err != nil {
		return rec, err
	}
	switch {
	case found:
		rec.Trust = &snap
	case fleet.trust[id] != nil:
		rec.Trust = fleet.trust[id]
	default:
		rec.Missing = append(rec.Missing, SourceTrust)
	}

	return rec, nil
}

// readJSON decodes path into v. It reports found=false without error when
// the file does not exist.
func readJSON(agentID, path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &CorruptError{AgentID: agentID, File: filepath.Base(path), Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, &CorruptError{AgentID: agentID, File: filepath.Base(path), Err: err}
	}
	return true, nil
}

// readEvidence accepts either a bare list of entries or {"completions": [...]}.
func readEvidence(agentID, path string) ([]domain.EvidenceEntry, bool, error) {
	var raw json.RawMessage
	found, err := readJSON(agentID, path, &raw)
	if err != nil || !found {
		return nil, found, err
	}

	var entries []domain.EvidenceEntry
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &entries)
	} else {
		var wrapped struct {
			Completions []domain.EvidenceEntry `json:"completions"`
		}
		err = json.Unmarshal(trimmed, &wrapped)
		entries = wrapped.Completions
	}
	if err != nil {
		return nil, false, &CorruptError{AgentID: agentID, File: EvidenceFile, Err: err}
	}
	if entries == nil {
		entries = []domain.EvidenceEntry{}
	}
	return entries, true, nil
}
