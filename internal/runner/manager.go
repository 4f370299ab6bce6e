package runner

import (
	"fmt"
	"strings"

	"github.com/zk/sparkreport/internal/runner/definitions"
)

// Logger interface for logging
type Logger interface {
	Debug(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Manager manages test runner definitions
type Manager struct {
	names   []string
	runners map[string]Definition
	logger  Logger
}

// NewManager creates a manager with the built-in runners registered
func NewManager(logger Logger) *Manager {
	m := &Manager{
		runners: make(map[string]Definition),
		logger:  logger,
	}

	m.Register("go", definitions.NewGoTestDefinition(logger))

	return m
}

// Register adds a test runner definition. Runners are tried in
// registration order; registering a name again replaces it in place.
func (m *Manager) Register(name string, def Definition) {
	if _, exists := m.runners[name]; !exists {
		m.names = append(m.names, name)
	}
	m.runners[name] = def
}

// Detect identifies the test runner from command and returns its definition
func (m *Manager) Detect(command []string) (Definition, error) {
	for _, name := range m.names {
		if def := m.runners[name]; def.Detect(command) {
			if m.logger != nil {
				m.logger.Debug("Detected %s runner for: %s", name, strings.Join(command, " "))
			}
			return def, nil
		}
	}

	return nil, fmt.Errorf("no test runner detected for command: %s", strings.Join(command, " "))
}

// GetDefinition returns a specific runner definition by name
func (m *Manager) GetDefinition(name string) (Definition, bool) {
	def, ok := m.runners[name]
	return def, ok
}
