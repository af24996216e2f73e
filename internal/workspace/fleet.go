package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/domain"
)

// Fleet-wide fallback files inside the data directory.
const (
	FleetLifecycleFile = "lifecycle_state.json"
	ReputationDir      = "reputation"
	reputationPattern  = "snapshot_*.json"
)

// fleetData holds records shared by the whole fleet, keyed by agent id.
// Per-agent files take precedence over these.
type fleetData struct {
	lifecycle map[string]*domain.LifecycleRecord
	trust     map[string]*domain.TrustSnapshot
}

// fleetLifecycleEntry is one agent in lifecycle_state.json, which names
// agents by agent_name.
type fleetLifecycleEntry struct {
	AgentName string `json:"agent_name"`
	domain.LifecycleRecord
}

// loadFleet reads the fleet fallbacks. Problems are recorded as warnings;
// they never fail the load because no single agent owns these files.
func (l *Loader) loadFleet(res *LoadResult) fleetData {
	fd := fleetData{
		lifecycle: map[string]*domain.LifecycleRecord{},
		trust:     map[string]*domain.TrustSnapshot{},
	}

	if err := l.loadFleetLifecycle(fd.lifecycle); err != nil {
		l.log.Warn().Err(err).Msg("ignoring fleet lifecycle state")
		res.Warnings = append(res.Warnings, err.Error())
	}
	if err := l.loadReputation(fd.trust); err != nil {
		l.log.Warn().Err(err).Msg("ignoring reputation snapshot")
		res.Warnings = append(res.Warnings, err.Error())
	}
	return fd
}

func (l *Loader) loadFleetLifecycle(out map[string]*domain.LifecycleRecord) error {
	data, err := os.ReadFile(filepath.Join(l.dataDir, FleetLifecycleFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", FleetLifecycleFile, err)
	}

	var entries []fleetLifecycleEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		var wrapped struct {
			Agents []fleetLifecycleEntry `json:"agents"`
		}
		if werr := json.Unmarshal(data, &wrapped); werr != nil {
			return fmt.Errorf("parsing %s: %w", FleetLifecycleFile, werr)
		}
		entries = wrapped.Agents
	}

	for _, e := range entries {
		id := e.AgentName
		if id == "" {
			id = e.AgentID
		}
		if id == "" {
			continue
		}
		rec := e.LifecycleRecord
		rec.AgentID = id
		out[id] = &rec
	}
	return nil
}

// loadReputation reads the newest reputation snapshot, a JSON object
// mapping agent id to trust snapshot.
func (l *Loader) loadReputation(out map[string]*domain.TrustSnapshot) error {
	matches, err := filepath.Glob(filepath.Join(l.dataDir, ReputationDir, reputationPattern))
	if err != nil || len(matches) == 0 {
		return nil
	}
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(latest), err)
	}
	var snaps map[string]domain.TrustSnapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(latest), err)
	}
	for id, s := range snaps {
		out[id] = &s
	}
	return nil
}
