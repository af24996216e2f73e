// Package logging provides subsystem-scoped zerolog loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/config"
)

// Field names shared by every subsystem.
const (
	FieldSubsystem = "subsystem"
	FieldAgent     = "agent"
)

// Logger is a zerolog logger bound to a subsystem.
type Logger struct {
	zl zerolog.Logger
}

// New returns a root logger at level. A nil w selects colored console output
// on stderr.
func New(w io.Writer, level string) *Logger {
	if w == nil {
		w = consoleWriter(os.Stderr, "")
	}
	return &Logger{zl: zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()}
}

// NewFromConfig builds the root logger for cfg. With cfg.File set, JSON lines
// are also appended to that file and the returned func closes it.
func NewFromConfig(cfg config.LoggingConfig) (*Logger, func() error, error) {
	console := consoleWriter(os.Stderr, cfg.ConsoleStyle)
	if cfg.File == "" {
		return New(console, cfg.Level), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return nil, nil, fmt.Errorf("log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("log file: %w", err)
	}
	return New(zerolog.MultiLevelWriter(console, f), cfg.Level), f.Close, nil
}

func consoleWriter(out io.Writer, style string) io.Writer {
	switch style {
	case "json":
		return out
	case "compact":
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: true, FieldsExclude: []string{FieldSubsystem}}
	default:
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
}

// Sub tags a child logger with a subsystem name.
func (l *Logger) Sub(subsystem string) *Logger {
	return &Logger{zl: l.zl.With().Str(FieldSubsystem, subsystem).Logger()}
}

// Agent tags a child logger with an agent ID.
func (l *Logger) Agent(id string) *Logger {
	return &Logger{zl: l.zl.With().Str(FieldAgent, id).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Enabled reports whether events at level would be written.
func (l *Logger) Enabled(level string) bool {
	return ParseLevel(level) >= l.zl.GetLevel()
}

// ParseLevel maps a configured level name to zerolog. "silent" disables
// output; unknown names fall back to info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "silent" || s == "off" {
		return zerolog.Disabled
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
