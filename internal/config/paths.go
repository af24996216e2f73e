package config

import (
	"errors"
	"os"
	"path/filepath"
)

// EnvHome relocates every default path when set.
const EnvHome = "SWARMINTEL_HOME"

// Paths are the default on-disk locations, all rooted at Base
// ($SWARMINTEL_HOME or ~/.swarmintel):
//
//	config.yaml
//	data/workspaces/<agent>/
//	data/intelligence/
//	data/swarmintel.db
//	logs/
type Paths struct {
	Base       string
	Config     string
	Data       string
	Workspaces string
	Snapshots  string
	DB         string
	Logs       string
}

// ResolvePaths computes the default locations.
func ResolvePaths() (Paths, error) {
	base := os.Getenv(EnvHome)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, errors.New("cannot locate home directory; set " + EnvHome)
		}
		base = filepath.Join(home, ".swarmintel")
	}
	return PathsAt(base), nil
}

// PathsAt lays out the default locations under base.
func PathsAt(base string) Paths {
	data := filepath.Join(base, "data")
	return Paths{
		Base:       base,
		Config:     filepath.Join(base, "config.yaml"),
		Data:       data,
		Workspaces: filepath.Join(data, "workspaces"),
		Snapshots:  filepath.Join(data, "intelligence"),
		DB:         filepath.Join(data, "swarmintel.db"),
		Logs:       filepath.Join(base, "logs"),
	}
}

// EnsureDirs creates the directories of p.
func (p Paths) EnsureDirs() error {
	var errs []error
	for _, d := range []string{p.Workspaces, p.Snapshots, p.Logs} {
		errs = append(errs, os.MkdirAll(d, 0o700))
	}
	return errors.Join(errs...)
}

// Fill points every location cfg leaves empty at its default.
func (p Paths) Fill(cfg *Config) {
	for _, f := range []struct {
		dst *string
		def string
	}{
		{&cfg.Workspace.Dir, p.Workspaces},
		{&cfg.Workspace.DataDir, p.Data},
		{&cfg.Snapshot.Dir, p.Snapshots},
		{&cfg.Snapshot.DBPath, p.DB},
	} {
		if *f.dst == "" {
			*f.dst = f.def
		}
	}
}
