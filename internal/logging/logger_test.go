package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
)

func jsonLogger(level string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(&buf, level), &buf
}

func TestSubAndAgentFields(t *testing.T) {
	log, buf := jsonLogger("debug")
	log.Sub("synth").Agent("researcher").Info().Float64("compound", 84.8).Msg("scored")

	out := buf.String()
	assert.Contains(t, out, `"subsystem":"synth"`)
	assert.Contains(t, out, `"agent":"researcher"`)
	assert.Contains(t, out, `"compound":84.8`)
	assert.Contains(t, out, `"time":`)
}

func TestLevelFiltering(t *testing.T) {
	log, buf := jsonLogger("warn")
	log.Debug().Msg("cycle start")
	log.Info().Msg("cycle done")
	assert.Empty(t, buf.String())

	log.Warn().Msg("agent skipped")
	log.Error().Msg("snapshot failed")
	assert.Contains(t, buf.String(), "agent skipped")
	assert.Contains(t, buf.String(), "snapshot failed")
}

func TestSilent(t *testing.T) {
	log, buf := jsonLogger("silent")
	log.Error().Msg("hidden")
	assert.Empty(t, buf.String())
	assert.False(t, log.Enabled("error"))
}

func TestEnabled(t *testing.T) {
	log, _ := jsonLogger("info")
	assert.False(t, log.Enabled("debug"))
	assert.True(t, log.Enabled("info"))
	assert.True(t, log.Enabled("error"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"WARN":    zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"silent":  zerolog.Disabled,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "swarmintel.log")
	log, closeFn, err := NewFromConfig(config.LoggingConfig{Level: "info", File: path, ConsoleStyle: "json"})
	require.NoError(t, err)

	log.Sub("snapshot").Info().Msg("snapshot saved")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "snapshot saved")
	assert.Contains(t, string(data), `"subsystem":"snapshot"`)
}

func TestNewFromConfigConsoleOnly(t *testing.T) {
	log, closeFn, err := NewFromConfig(config.LoggingConfig{Level: "silent", ConsoleStyle: "compact"})
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.NoError(t, closeFn())
}

func TestConsoleStyles(t *testing.T) {
	var buf bytes.Buffer
	New(consoleWriter(&buf, "json"), "info").Info().Str("tier", "Oro").Msg("tiered")
	assert.Contains(t, buf.String(), `"tier":"Oro"`)

	buf.Reset()
	New(consoleWriter(&buf, "compact"), "info").Sub("router").Info().Msg("routed")
	assert.Contains(t, buf.String(), "routed")
	assert.NotContains(t, buf.String(), "{")
}
