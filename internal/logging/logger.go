// Package logging provides config-driven categorized file logging for the
// pipeline. Logs are written under <run dir>/logs with one file per
// category; nothing is written unless debug mode is enabled.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category.
type Category string

const (
	CategoryBoot     Category = "boot"     // startup and configuration
	CategoryPipeline Category = "pipeline" // stage sequencing
	CategoryVQE      Category = "vqe"      // stage 1 state preparation
	CategoryQAE      Category = "qae"      // stage 2 autoencoder training
	CategoryLatent   Category = "latent"   // stage 3 latent search
	CategorySim      Category = "sim"      // simulator activity
	CategoryStore    Category = "store"    // run store operations
	CategoryReport   Category = "report"   // comparison rendering
)

// Settings mirrors config.LoggingConfig; a struct copy is passed in at
// Initialize to keep this package free of a config import.
type Settings struct {
	DebugMode  bool
	Level      string
	Categories map[string]bool
	JSONFormat bool
}

// entry is the structured JSON log record used when JSONFormat is on.
type entry struct {
	Timestamp int64          `json:"ts"`
	Category  string         `json:"cat"`
	Level     string         `json:"lvl"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger writes to one category's log file. Level and format are snapshotted
// at creation so writes never touch the package state.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
	minLevel int
	jsonOut  bool
}

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	logsDir  string
	settings Settings
	logLevel int
)

// Initialize sets up the logging directory. Call once at startup; a no-op
// when debug mode is off.
func Initialize(runDir string, s Settings) error {
	mu.Lock()
	settings = s
	switch s.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	mu.Unlock()

	if !s.DebugMode {
		return nil
	}
	if runDir == "" {
		return fmt.Errorf("run directory required")
	}

	dir := filepath.Join(runDir, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	mu.Lock()
	logsDir = dir
	mu.Unlock()

	boot := Get(CategoryBoot)
	boot.Info("logging initialized, dir=%s level=%s", dir, s.Level)
	return nil
}

func categoryEnabled(c Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if !settings.DebugMode || logsDir == "" {
		return false
	}
	if settings.Categories == nil {
		return true
	}
	enabled, ok := settings.Categories[string(c)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Disabled categories
// get a no-op logger.
func Get(category Category) *Logger {
	if !categoryEnabled(category) {
		return &Logger{category: category}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", path, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
		minLevel: logLevel,
		jsonOut:  settings.JSONFormat,
	}
	loggers[category] = l
	return l
}

func (l *Logger) write(level int, tag, format string, args ...any) {
	if l.logger == nil || l.minLevel > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.jsonOut {
		data, err := json.Marshal(entry{
			Timestamp: time.Now().UnixMilli(),
			Category:  string(l.category),
			Level:     tag,
			Message:   msg,
		})
		if err == nil {
			l.logger.Printf("%s", data)
			return
		}
	}
	l.logger.Printf("[%s] %s", tag, msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) { l.write(LevelDebug, "debug", format, args...) }

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) { l.write(LevelInfo, "info", format, args...) }

// Warn logs a warning.
func (l *Logger) Warn(format string, args ...any) { l.write(LevelWarn, "warn", format, args...) }

// Error logs an error.
func (l *Logger) Error(format string, args ...any) { l.write(LevelError, "error", format, args...) }

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
	logsDir = ""
}

// Timer measures an operation's duration and logs it on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}
