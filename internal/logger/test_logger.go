package logger

import (
	"fmt"
	"strings"
	"sync"
)

// TestLogger records formatted messages per level for assertions
type TestLogger struct {
	mu       sync.Mutex
	messages map[LogLevel][]string
}

// NewTestLogger creates an empty test logger
func NewTestLogger() *TestLogger {
	return &TestLogger{messages: make(map[LogLevel][]string)}
}

func (l *TestLogger) Debug(format string, args ...interface{}) { l.record(DEBUG, format, args...) }
func (l *TestLogger) Info(format string, args ...interface{})  { l.record(INFO, format, args...) }
func (l *TestLogger) Warn(format string, args ...interface{})  { l.record(WARN, format, args...) }
func (l *TestLogger) Error(format string, args ...interface{}) { l.record(ERROR, format, args...) }

// Close does nothing for test logger
func (l *TestLogger) Close() error {
	return nil
}

func (l *TestLogger) record(level LogLevel, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages[level] = append(l.messages[level], msg)
}

// Messages returns a copy of the messages logged at level
func (l *TestLogger) Messages(level LogLevel) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.messages[level]...)
}

// Contains reports whether a message at level contains substr
func (l *TestLogger) Contains(level LogLevel, substr string) bool {
	for _, msg := range l.Messages(level) {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func (l *TestLogger) GetDebugMessages() []string { return l.Messages(DEBUG) }
func (l *TestLogger) GetInfoMessages() []string  { return l.Messages(INFO) }
func (l *TestLogger) GetWarnMessages() []string  { return l.Messages(WARN) }
func (l *TestLogger) GetErrorMessages() []string { return l.Messages(ERROR) }
