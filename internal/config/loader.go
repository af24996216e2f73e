package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars substitutes ${VAR} references. Unset variables stay literal
// so a missing secret shows up in validation instead of becoming "".
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := os.LookupEnv(ref[2 : len(ref)-1]); ok {
			return v
		}
		return ref
	})
}

// expandable lists the fields that may reference the environment.
func (c *Config) expandable() []*string {
	return []*string{
		&c.Gateway.Token,
		&c.Workspace.Dir,
		&c.Workspace.DataDir,
		&c.Snapshot.Dir,
		&c.Snapshot.DBPath,
		&c.Logging.File,
	}
}

// envOverrides maps SWARMINTEL_* variables onto config fields. Values that
// fail to parse are ignored.
var envOverrides = map[string]func(*Config, string){
	"SWARMINTEL_WORKSPACES": func(c *Config, v string) { c.Workspace.Dir = v },
	"SWARMINTEL_DATA_DIR":   func(c *Config, v string) { c.Workspace.DataDir = v },
	"SWARMINTEL_WORKERS": func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.Synth.Workers = n
		}
	},
	"SWARMINTEL_SNAPSHOT_BACKEND": func(c *Config, v string) { c.Snapshot.Backend = strings.ToLower(v) },
	"SWARMINTEL_GATEWAY_PORT": func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gateway.Port = n
		}
	},
	"SWARMINTEL_GATEWAY_TOKEN": func(c *Config, v string) { c.Gateway.Token = v },
	"SWARMINTEL_LOG_LEVEL":     func(c *Config, v string) { c.Logging.Level = strings.ToLower(v) },
}

func applyEnvOverrides(cfg *Config) {
	for name, set := range envOverrides {
		if v := os.Getenv(name); v != "" {
			set(cfg, v)
		}
	}
}

// Load builds the effective config: defaults, then the file at path (if
// any), then SWARMINTEL_* overrides, then ${VAR} expansion.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		// Decoding onto the defaults leaves absent keys untouched, so an
		// explicit 0 stays 0.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Path: path, Message: "failed to parse config: " + err.Error()}
		}
	}

	applyEnvOverrides(&cfg)
	for _, f := range cfg.expandable() {
		*f = expandEnvVars(*f)
	}
	return cfg, nil
}

// LoadRaw reads the config file as an untyped tree for `config get|set`.
// A missing file is an empty tree.
func LoadRaw(path string) (map[string]any, error) {
	raw := map[string]any{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return raw, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Path: path, Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes the tree back, replacing the file atomically.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
