// Package logging provides two sinks the engine threads through its
// constructors, never as a package-level singleton: a zap.Logger for
// process-wide structured logs (the operator's terminal / the CLI's own
// diagnostics) and a per-project EventLog that writes logs/master.log and
// logs/events.json inside a project directory, adapted from the teacher's
// Category/StructuredLogEntry pattern.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category classifies a project event log entry by subsystem, the same
// partitioning idea as the teacher's internal/logging Category enum, scaled
// down to this domain's components.
type Category string

const (
	CategoryEngine   Category = "engine"
	CategoryScanner  Category = "scanner"
	CategoryRecon    Category = "recon"
	CategoryAgent    Category = "agent"
	CategoryRepair   Category = "repair"
	CategoryBrowser  Category = "browser"
	CategoryRuntime  Category = "runtime"
	CategorySubprocess Category = "subprocess"
)

// NewZapLogger builds the process-wide structured logger. debugMode widens
// the level to Debug and switches the encoder to console for readability;
// production mode stays JSON at Info.
func NewZapLogger(debugMode bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debugMode {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = !debugMode
	return cfg.Build()
}

// Entry is one structured record appended to logs/events.json (JSON-per-line).
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Category  Category          `json:"category"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// EventLog appends structured entries to a project's logs/events.json and
// human-readable lines to logs/master.log. Safe for concurrent use by a
// single project's handlers (guarded by a mutex, matching the teacher's
// per-category file-handle locking).
type EventLog struct {
	mu         sync.Mutex
	eventsPath string
	masterPath string
	eventsFile *os.File
	masterFile *os.File
}

// NewEventLog opens (creating if absent) the two log files under dir/logs/.
func NewEventLog(dir string) (*EventLog, error) {
	logsDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	eventsPath := filepath.Join(logsDir, "events.json")
	masterPath := filepath.Join(logsDir, "master.log")

	ef, err := os.OpenFile(eventsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open events.json: %w", err)
	}
	mf, err := os.OpenFile(masterPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		ef.Close()
		return nil, fmt.Errorf("open master.log: %w", err)
	}

	return &EventLog{eventsPath: eventsPath, masterPath: masterPath, eventsFile: ef, masterFile: mf}, nil
}

// Log appends one entry to both sinks.
func (l *EventLog) Log(category Category, level, message string, fields map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry := Entry{Timestamp: now, Category: category, Level: level, Message: message, Fields: fields}
	if data, err := json.Marshal(entry); err == nil {
		l.eventsFile.Write(append(data, '\n'))
	}
	line := fmt.Sprintf("[%s] %-5s %-10s %s\n", now.Format(time.RFC3339), level, category, message)
	l.masterFile.WriteString(line)
}

func (l *EventLog) Info(category Category, message string, fields map[string]string) {
	l.Log(category, "info", message, fields)
}

func (l *EventLog) Warn(category Category, message string, fields map[string]string) {
	l.Log(category, "warn", message, fields)
}

func (l *EventLog) Error(category Category, message string, fields map[string]string) {
	l.Log(category, "error", message, fields)
}

// Close closes both underlying files.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err1 := l.eventsFile.Close()
	err2 := l.masterFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
