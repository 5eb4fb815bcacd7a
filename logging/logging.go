// Package logging provides the prefixed, leveled logger used by the IR
// builder and the interpreter.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Level represents the severity of a log message
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelSilent
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelSilent:
		return "SILENT"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel maps a level name (debug, info, warn, error, silent) to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "silent", "off", "none":
		return LevelSilent, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Logger provides centralized logging with a fixed prefix
type Logger struct {
	mu         sync.Mutex
	prefix     string
	min        Level
	out        io.Writer
	errOut     io.Writer
	errorCount int
	warnCount  int
	infoCount  int
	debugCount int
}

var defaultLogger = New("[irgen]")

// New creates a logger writing debug/info to stdout and warnings/errors to
// stderr, with a minimum level of LevelInfo.
func New(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		min:    LevelInfo,
		out:    os.Stdout,
		errOut: os.Stderr,
	}
}

// Discard returns a logger that drops every message but still counts them.
func Discard(prefix string) *Logger {
	l := New(prefix)
	l.out = io.Discard
	l.errOut = io.Discard
	return l
}

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger
}

// WithPrefix returns a new logger sharing l's level and writers.
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		prefix: prefix,
		min:    l.min,
		out:    l.out,
		errOut: l.errOut,
	}
}

// SetLevel sets the minimum level that is written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.min = level
	l.mu.Unlock()
}

// SetOutput sends every level to w.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = w
	l.errOut = w
	l.mu.Unlock()
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.log(LevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch level {
	case LevelDebug:
		l.debugCount++
	case LevelInfo:
		l.infoCount++
	case LevelWarning:
		l.warnCount++
	case LevelError:
		l.errorCount++
	}
	if level < l.min {
		return
	}

	output := l.out
	if level >= LevelWarning {
		output = l.errOut
	}

	message := fmt.Sprintf(format, args...)
	fmt.Fprintf(output, "%s [%s] %s\n", l.prefix, level, message)
}

// HasErrors returns true if any errors were logged
func (l *Logger) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errorCount > 0
}

// ErrorCount returns the number of errors logged
func (l *Logger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errorCount
}

// WarningCount returns the number of warnings logged
func (l *Logger) WarningCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warnCount
}

// Reset resets all counters
func (l *Logger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorCount = 0
	l.warnCount = 0
	l.infoCount = 0
	l.debugCount = 0
}

// PrintSummary prints a summary of logged warnings and errors
func (l *Logger) PrintSummary() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.errorCount > 0 || l.warnCount > 0 {
		fmt.Fprintf(l.errOut, "\n%s Summary:\n", l.prefix)
		if l.errorCount > 0 {
			fmt.Fprintf(l.errOut, "  Errors: %d\n", l.errorCount)
		}
		if l.warnCount > 0 {
			fmt.Fprintf(l.errOut, "  Warnings: %d\n", l.warnCount)
		}
	}
}

// Global logging functions for convenience
func Debug(format string, args ...interface{}) {
	defaultLogger.Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

func Warning(format string, args ...interface{}) {
	defaultLogger.Warning(format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}
