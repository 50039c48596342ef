// Package logging provides categorized file-based logging for the order
// status tooling. Logs are written under <workspace>/logs with one file per
// category per day. When debug mode is off the package is a silent no-op.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup and shutdown
	CategoryStore    Category = "store"    // SQLite store operations
	CategoryIntake   Category = "intake"   // CSV/XLSX import and inbox watcher
	CategoryPlanning Category = "planning" // Reconciliation runs
	CategorySerial   Category = "serial"   // Serial parsing and assignment
	CategoryQueue    Category = "queue"    // Work queue runner
	CategoryAudit    Category = "audit"    // Edit-history queries
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options controls logger behavior. The CLI fills this from the loaded
// config so this package never has to parse config files itself.
type Options struct {
	Dir        string          // Log directory; empty disables logging
	Level      string          // debug, info, warn, error
	Categories map[string]bool // nil = all categories enabled
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex

	opts     Options
	optsMu   sync.RWMutex
	logLevel = LevelInfo
	enabled  bool
)

// Logger writes to one category's log file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

// Initialize configures the logging directory and level. Call once at
// startup; a zero Options disables all logging.
func Initialize(o Options) error {
	optsMu.Lock()
	opts = o
	switch o.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	enabled = o.Dir != ""
	optsMu.Unlock()

	if !enabled {
		return nil
	}
	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	Boot("=== order-status logging initialized (dir=%s level=%s) ===", o.Dir, o.Level)
	return nil
}

// IsCategoryEnabled reports whether a category produces output.
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	if !enabled {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	on, ok := opts.Categories[string(category)]
	if !ok {
		return true
	}
	return on
}

// Get returns (or creates) the logger for a category. Disabled categories
// get a no-op logger.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation a matter of deleting old files.
	optsMu.RLock()
	dir := opts.Dir
	optsMu.RUnlock()
	filename := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
	logPath := filepath.Join(dir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files. Call at shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience functions for the common categories. No-ops when the
// category is disabled.

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// Store logs to the store category.
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// Intake logs to the intake category.
func Intake(format string, args ...interface{}) { Get(CategoryIntake).Info(format, args...) }

// IntakeDebug logs debug to the intake category.
func IntakeDebug(format string, args ...interface{}) { Get(CategoryIntake).Debug(format, args...) }

// Planning logs to the planning category.
func Planning(format string, args ...interface{}) { Get(CategoryPlanning).Info(format, args...) }

// PlanningDebug logs debug to the planning category.
func PlanningDebug(format string, args ...interface{}) { Get(CategoryPlanning).Debug(format, args...) }

// Serial logs to the serial category.
func Serial(format string, args ...interface{}) { Get(CategorySerial).Info(format, args...) }

// SerialDebug logs debug to the serial category.
func SerialDebug(format string, args ...interface{}) { Get(CategorySerial).Debug(format, args...) }

// Queue logs to the queue category.
func Queue(format string, args ...interface{}) { Get(CategoryQueue).Info(format, args...) }

// QueueDebug logs debug to the queue category.
func QueueDebug(format string, args ...interface{}) { Get(CategoryQueue).Debug(format, args...) }

// Audit logs to the audit category.
func Audit(format string, args ...interface{}) { Get(CategoryAudit).Info(format, args...) }

// Timer helps measure operation duration.
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

// StopWithThreshold logs a warning if duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
