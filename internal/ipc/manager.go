package ipc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// PathEnv names the environment variable holding the default event file
const PathEnv = "SPARKREPORT_IPC_PATH"

// Manager handles IPC communication via file-based JSONL
type Manager struct {
	IPCPath   string
	Events    chan Event
	watcher   *fsnotify.Watcher
	stopChan  chan struct{}
	stopped   chan struct{} // closed when watchLoop returns
	watching  bool
	mu        sync.Mutex
	closeOnce sync.Once
	logger    Logger
	file      *os.File
	reader    *bufio.Reader
	readerMu  sync.Mutex // guards reader, partial and pending
	partial   []byte
	pending   []Event // parsed but not delivered when the loop stopped
}

// Logger interface for debug logging
type Logger interface {
	Debug(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// NewManager creates a new IPC manager for reading events.
// Consumers must drain Events until it is closed by Cleanup.
func NewManager(ipcPath string, logger Logger) (*Manager, error) {
	if logger == nil {
		logger = &noopLogger{}
	}

	ipcDir := filepath.Dir(ipcPath)
	if err := os.MkdirAll(ipcDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create IPC directory: %w", err)
	}

	// Create IPC file if it doesn't exist
	file, err := os.OpenFile(ipcPath, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open IPC file: %w", err)
	}

	return &Manager{
		IPCPath:  ipcPath,
		Events:   make(chan Event, 1024),
		stopChan: make(chan struct{}),
		stopped:  make(chan struct{}),
		logger:   logger,
		file:     file,
		reader:   bufio.NewReader(file),
	}, nil
}

// WatchEvents starts watching the IPC file for new events.
// Existing content is read first.
func (m *Manager) WatchEvents() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		return errors.New("already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(m.IPCPath); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch IPC file: %w", err)
	}

	m.watcher = watcher
	m.watching = true
	go m.watchLoop(watcher)
	return nil
}

// readEvents reads complete lines from the current position in the file.
// A trailing line without newline is kept until the rest arrives.
func (m *Manager) readEvents(send func(Event) bool) {
	m.readerMu.Lock()
	defer m.readerMu.Unlock()

	for {
		chunk, err := m.reader.ReadBytes('\n')
		if len(chunk) > 0 {
			m.partial = append(m.partial, chunk...)
		}
		if err != nil {
			if err != io.EOF {
				m.logger.Error("Error reading events: %v", err)
			}
			return
		}

		line := m.partial
		m.partial = nil
		if event, ok := m.parseEvent(line); ok {
			if !send(event) {
				return
			}
		}
	}
}

// watchLoop watches for file changes and triggers reads
func (m *Manager) watchLoop(watcher *fsnotify.Watcher) {
	defer close(m.stopped)

	m.readEvents(m.deliver)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				m.logger.Debug("IPC file modified: %s", event.Name)
				m.readEvents(m.deliver)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("Watcher error: %v", err)

		case <-m.stopChan:
			return
		}
	}
}

// deliver publishes event unless the loop is stopping, in which case the
// event is kept for Cleanup. Called with readerMu held.
func (m *Manager) deliver(event Event) bool {
	select {
	case m.Events <- event:
		m.logger.Debug("Processing IPC event: %s", event.Type())
		return true
	default:
	}

	select {
	case m.Events <- event:
		m.logger.Debug("Processing IPC event: %s", event.Type())
		return true
	case <-m.stopChan:
		m.pending = append(m.pending, event)
		return false
	}
}

// parseEvent decodes one JSON line
func (m *Manager) parseEvent(line []byte) (Event, bool) {
	event, err := ParseEvent(line)
	if err != nil {
		m.logger.Error("Skipping IPC line: %v", err)
		return nil, false
	}
	return event, event != nil
}

// ParseEvent decodes a JSONL event line. Blank lines yield a nil event.
func ParseEvent(line []byte) (Event, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, nil
	}

	var envelope struct {
		EventType EventType `json:"eventType"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}

	var event Event
	switch envelope.EventType {
	case EventTypeSuiteStarted:
		var e SuiteStartedEvent
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("failed to parse suite started event: %w", err)
		}
		event = e

	case EventTypeSuiteFinished:
		var e SuiteFinishedEvent
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("failed to parse suite finished event: %w", err)
		}
		event = e

	case EventTypeTestOutcome:
		var e TestOutcomeEvent
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("failed to parse test outcome event: %w", err)
		}
		event = e

	case "":
		return nil, errors.New("event missing eventType field")

	default:
		return nil, fmt.Errorf("unknown event type: %s", envelope.EventType)
	}

	return event, nil
}

// Cleanup stops watching, delivers events written before the call and
// closes the Events channel.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	watching := m.watching
	m.mu.Unlock()

	select {
	case <-m.stopChan:
	default:
		close(m.stopChan)
	}

	if watching {
		<-m.stopped
	}

	m.closeOnce.Do(func() {
		m.readerMu.Lock()
		pending := m.pending
		m.pending = nil
		m.readerMu.Unlock()
		for _, event := range pending {
			m.Events <- event
		}
		m.readEvents(func(event Event) bool {
			m.Events <- event
			return true
		})
		close(m.Events)
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher != nil {
		_ = m.watcher.Close()
		m.watcher = nil
	}
	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}
	return nil
}

// SendEvent appends event as one JSON line to the file at path
func SendEvent(path string, event Event) error {
	if path == "" {
		return fmt.Errorf("%s not set", PathEnv)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create IPC directory: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open IPC file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Single write so concurrent writers never interleave within a line
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// DefaultPath returns the event file from the environment, falling back
// to .sparkreport/ipc/events.jsonl under the working directory.
func DefaultPath() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, ".sparkreport", "ipc", "events.jsonl"), nil
}

// noopLogger is a default logger that does nothing
type noopLogger struct{}

func (n *noopLogger) Debug(format string, args ...interface{}) {}
func (n *noopLogger) Error(format string, args ...interface{}) {}
