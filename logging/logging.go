// Package logging provides structured log output for agents and the pool.
// Output is line-oriented (text or JSON) and built on logrus; every package
// in this module logs through a component-scoped Logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var logrusLevels = map[Level]logrus.Level{
	LevelDebug: logrus.DebugLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelWarn:  logrus.WarnLevel,
	LevelError: logrus.ErrorLevel,
}

// ParseLevel converts a config string ("debug", "INFO", "warning") to a Level.
// Unknown strings fall back to LevelInfo with ok=false.
func ParseLevel(s string) (Level, bool) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return LevelInfo, false
	}
	switch {
	case lvl >= logrus.DebugLevel:
		return LevelDebug, true
	case lvl == logrus.InfoLevel:
		return LevelInfo, true
	case lvl == logrus.WarnLevel:
		return LevelWarn, true
	default:
		return LevelError, true
	}
}

// Logger provides structured logging. Loggers derived with WithComponent or
// WithFields share output, level and format with their parent.
type Logger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

// New creates a new Logger writing text lines to stdout at INFO.
func New() *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(textFormatter())
	return &Logger{base: base, entry: logrus.NewEntry(base)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l := New()
	l.base.SetOutput(io.Discard)
	return l
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

func jsonFormatter() logrus.Formatter {
	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{base: l.base, entry: l.entry.WithField("component", component)}
}

// WithFields returns a new logger that adds fields to every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{base: l.base, entry: l.entry.WithFields(logrus.Fields(fields))}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	if lvl, ok := logrusLevels[level]; ok {
		l.base.SetLevel(lvl)
	}
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
}

// SetJSON switches between JSON and text output.
func (l *Logger) SetJSON(enabled bool) {
	if enabled {
		l.base.SetFormatter(jsonFormatter())
		return
	}
	l.base.SetFormatter(textFormatter())
}

// AddHook attaches a logrus hook to the logger and every logger derived
// from the same root.
func (l *Logger) AddHook(h logrus.Hook) {
	l.base.AddHook(h)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.with(fields).Debug(msg)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.with(fields).Info(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.with(fields).Warn(msg)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.with(fields).Error(msg)
}

func (l *Logger) with(fields []map[string]interface{}) *logrus.Entry {
	if len(fields) == 0 || fields[0] == nil {
		return l.entry
	}
	return l.entry.WithFields(logrus.Fields(fields[0]))
}

// --- Domain event helpers ---

// StatusChange logs an agent status transition.
func (l *Logger) StatusChange(agentID, from, to string) {
	l.Debug("status_change", map[string]interface{}{
		"agent": agentID,
		"from":  from,
		"to":    to,
	})
}

// TaskStart logs that an agent accepted a task.
func (l *Logger) TaskStart(agentID, taskID, taskType string) {
	l.Debug("task_start", map[string]interface{}{
		"agent": agentID,
		"task":  taskID,
		"type":  taskType,
	})
}

// TaskComplete logs a completed task.
func (l *Logger) TaskComplete(agentID, taskID string, duration time.Duration) {
	l.Info("task_complete", map[string]interface{}{
		"agent":    agentID,
		"task":     taskID,
		"duration": duration.String(),
	})
}

// TaskFailed logs a failed task.
func (l *Logger) TaskFailed(agentID, taskID string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"agent":    agentID,
		"task":     taskID,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Warn("task_failed", fields)
}

// Quarantined logs that an agent moved to error status.
func (l *Logger) Quarantined(agentID string, err error) {
	fields := map[string]interface{}{
		"agent": agentID,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error("agent_quarantined", fields)
}

// Lifecycle logs the outcome of initialize or cleanup.
func (l *Logger) Lifecycle(agentID, phase string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"agent":    agentID,
		"phase":    phase,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("lifecycle_failed", fields)
		return
	}
	l.Info("lifecycle", fields)
}
