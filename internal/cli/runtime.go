package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/hooks"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/routing"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/scoring"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/snapshot"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/store"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/synth"
	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/workspace"
)

// runtime holds the components shared by the commands that synthesize.
type runtime struct {
	cfg       config.Config
	log       *logging.Logger
	hooks     *hooks.Manager
	loader    *workspace.Loader
	store     snapshot.Store
	decisions *store.DecisionLog
	synth     *synth.Synthesizer

	closers []func() error
}

// loadConfig reads and validates the config file and fills in default paths.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	paths.Fill(&cfg)
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// newRuntime wires the loader, scorer, router, stores and synthesizer from cfg.
func newRuntime(cfg config.Config) (*runtime, error) {
	rootLog, closeLog, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	rt := &runtime{
		cfg:     cfg,
		log:     rootLog,
		hooks:   hooks.NewManager(rootLog),
		loader:  workspace.NewLoader(cfg.Workspace, rootLog),
		closers: []func() error{closeLog},
	}

	var db *store.DB
	openDB := func() (*store.DB, error) {
		if db != nil {
			return db, nil
		}
		d, err := store.Open(cfg.Snapshot.DBPath, rootLog)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db = d
		rt.closers = append(rt.closers, d.Close)
		return d, nil
	}

	switch cfg.Snapshot.Backend {
	case config.SnapshotBackendSQLite:
		d, err := openDB()
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.store = store.NewSnapshotStore(d, cfg.Snapshot.Retain)
	default:
		rt.store = snapshot.NewFileStore(cfg.Snapshot, rootLog)
	}

	opts := []synth.Option{
		synth.WithStore(rt.store),
		synth.WithHooks(rt.hooks),
	}
	if cfg.Synth.Workers > 0 {
		opts = append(opts, synth.WithWorkers(cfg.Synth.Workers))
	}
	if cfg.Routing.AuditDecisions {
		d, err := openDB()
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.decisions = store.NewDecisionLog(d)
		opts = append(opts, synth.WithDecisionLog(rt.decisions))
	}

	router := routing.NewRouter(cfg.Routing, routing.CapabilitiesFromConfig(cfg.Agents), rootLog)
	rt.synth = synth.New(rt.loader, scoring.New(cfg.Scoring), router, rootLog, opts...)
	return rt, nil
}

// restoreLatest seeds the synthesizer from the last saved snapshot.
// A missing snapshot is not an error.
func (rt *runtime) restoreLatest(ctx context.Context) (bool, error) {
	snap, err := rt.synth.LoadLatestSnapshot(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rt.synth.Restore(snap), nil
}

// Close releases the database and log file.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
