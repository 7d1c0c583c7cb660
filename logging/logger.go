// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a SimLogger with contextual helpers
// (component, run id) and domain specific helpers for ticks, decisions and
// alerts.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger defines the minimal logging interface used throughout ICUMesh.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoOpLogger discards all log messages. Useful for tests or when logging is
// disabled.
type NoOpLogger struct{}

// Debug discards the message.
func (NoOpLogger) Debug(string, ...any) {}

// Info discards the message.
func (NoOpLogger) Info(string, ...any) {}

// Warn discards the message.
func (NoOpLogger) Warn(string, ...any) {}

// Error discards the message.
func (NoOpLogger) Error(string, ...any) {}

// Config configures construction of a SimLogger.
type Config struct {
	Level     slog.Level
	Format    string // "json" or "text"
	Output    io.Writer
	Component string
	RunID     string
}

// DefaultConfig returns a baseline text info-level configuration writing to
// stderr, suitable for the CLI.
func DefaultConfig() *Config {
	return &Config{Level: slog.LevelInfo, Format: "text", Output: os.Stderr}
}

// SimLogger wraps slog.Logger adding contextual cloning helpers and domain
// convenience methods.
type SimLogger struct {
	logger *slog.Logger
}

// NewLogger builds a SimLogger from a config (or defaults if nil).
func NewLogger(cfg *Config) *SimLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	logger := slog.New(handler)
	if cfg.Component != "" {
		logger = logger.With(slog.String("component", cfg.Component))
	}
	if cfg.RunID != "" {
		logger = logger.With(slog.String("run_id", cfg.RunID))
	}
	return &SimLogger{logger: logger}
}

// FromSlog wraps an existing *slog.Logger.
func FromSlog(logger *slog.Logger) *SimLogger { return &SimLogger{logger: logger} }

// WithComponent returns a clone tagged with the logical component (bus,
// clock, agent role, etc.).
func (l *SimLogger) WithComponent(c string) *SimLogger {
	return &SimLogger{logger: l.logger.With(slog.String("component", c))}
}

// WithRun returns a clone tagged with the simulation run identifier.
func (l *SimLogger) WithRun(runID string) *SimLogger {
	return &SimLogger{logger: l.logger.With(slog.String("run_id", runID))}
}

// Debug logs at debug level.
func (l *SimLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Info logs at info level.
func (l *SimLogger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

// Warn logs at warn level.
func (l *SimLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// Error logs at error level.
func (l *SimLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// LogTick records one completed clock tick with its drain latency.
func (l *SimLogger) LogTick(tick int, patients int, backlog int, dur time.Duration) {
	l.logger.Debug("tick completed",
		slog.Int("tick", tick),
		slog.Int("patients", patients),
		slog.Int("backlog", backlog),
		slog.Duration("duration", dur),
	)
}

// LogDecision records a committed decision.
func (l *SimLogger) LogDecision(role, patientID, kind, urgency string, authoritative bool) {
	l.logger.Info("decision committed",
		slog.String("role", role),
		slog.String("patient_id", patientID),
		slog.String("kind", kind),
		slog.String("urgency", urgency),
		slog.Bool("authoritative", authoritative),
	)
}

// LogAlert records an emitted alert.
func (l *SimLogger) LogAlert(patientID, rule, severity string, value float64) {
	l.logger.Warn("alert emitted",
		slog.String("patient_id", patientID),
		slog.String("rule", rule),
		slog.String("severity", severity),
		slog.Float64("value", value),
	)
}
