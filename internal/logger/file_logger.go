// Package logger provides the levelled debug log shared by the CLI,
// orchestrator and listener, plus an in-memory logger for tests.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogDir is the directory, relative to the working directory, that holds
// debug.log and per-run output.
const LogDir = ".sparkreport"

// LevelEnv names the environment variable that selects the minimum log level.
const LevelEnv = "SPARKREPORT_LOG_LEVEL"

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{DEBUG: "DEBUG", INFO: "INFO", WARN: "WARN", ERROR: "ERROR"}

func (l LogLevel) String() string {
	if l < DEBUG || l > ERROR {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel converts a case-insensitive level name. ok is false for
// unknown names, in which case WARN is returned.
func ParseLevel(name string) (level LogLevel, ok bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for l, n := range levelNames {
		if n == name {
			return LogLevel(l), true
		}
	}
	return WARN, false
}

// Option configures a FileLogger
type Option func(*FileLogger)

// WithLevel overrides the level taken from LevelEnv
func WithLevel(level LogLevel) Option {
	return func(l *FileLogger) {
		l.minLevel = level
	}
}

// WithConsole sets where ERROR lines are echoed. nil disables the echo.
func WithConsole(w io.Writer) Option {
	return func(l *FileLogger) {
		l.console = w
	}
}

// FileLogger appends timestamped entries to <dir>/debug.log. Errors are
// always written and echoed to the console; other levels are filtered.
type FileLogger struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	minLevel LogLevel
	console  io.Writer
}

// NewFileLogger creates a logger writing to LogDir in the working directory
func NewFileLogger(opts ...Option) (*FileLogger, error) {
	return NewFileLoggerAt(LogDir, opts...)
}

// NewFileLoggerAt creates a logger writing debug.log inside dir
func NewFileLoggerAt(dir string, opts ...Option) (*FileLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	logPath := filepath.Join(dir, "debug.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}

	level, _ := ParseLevel(os.Getenv(LevelEnv))
	l := &FileLogger{
		file:     file,
		path:     logPath,
		minLevel: level,
		console:  os.Stderr,
	}
	for _, opt := range opts {
		opt(l)
	}

	wd, err := os.Getwd()
	if err != nil {
		wd = "unknown"
	}
	header := fmt.Sprintf("\n=== sparkreport debug log ===\n"+
		"Session started: %s\nPID: %d\nWorking directory: %s\nLevel: %s\n---\n\n",
		time.Now().Format(time.RFC3339), os.Getpid(), wd, l.minLevel)
	if _, err := file.WriteString(header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write log header: %w", err)
	}

	return l, nil
}

// Path returns the location of the log file
func (l *FileLogger) Path() string {
	return l.path
}

// Level returns the minimum level written to the file
func (l *FileLogger) Level() LogLevel {
	return l.minLevel
}

func (l *FileLogger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *FileLogger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *FileLogger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *FileLogger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

func (l *FileLogger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.minLevel && level != ERROR {
		return
	}
	message := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if level == ERROR && l.console != nil {
		fmt.Fprintf(l.console, "[ERROR] %s\n", message)
	}
	if l.file == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	_, _ = fmt.Fprintf(l.file, "[%s] [%s] %s\n", timestamp, level, message)
	_ = l.file.Sync()
}

// Close writes the session footer and closes the file. Later calls are no-ops.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	_, _ = fmt.Fprintf(l.file, "\n--- Session ended: %s ---\n\n", time.Now().Format(time.RFC3339))
	err := l.file.Close()
	l.file = nil
	return err
}
