package report

import (
	"fmt"
	"time"
)

// Exception describes the cause attached to a log entry
type Exception struct {
	Type    string
	Message string
	Stack   string
}

// typedError lets errors that crossed a process boundary keep the type
// name recorded by the sender
type typedError interface {
	ErrorType() string
}

// NewException captures an error's dynamic type, message and detailed rendering
func NewException(err error) *Exception {
	if err == nil {
		return nil
	}
	e := &Exception{
		Type:    fmt.Sprintf("%T", err),
		Message: err.Error(),
	}
	if te, ok := err.(typedError); ok && te.ErrorType() != "" {
		e.Type = te.ErrorType()
	}
	if detail := fmt.Sprintf("%+v", err); detail != e.Message {
		e.Stack = detail
	}
	return e
}

// Log is one entry recorded on a test node
type Log struct {
	Status    Status
	Details   string
	Exception *Exception
	Timestamp time.Time
}

// Test is a node in the report tree: a test class at the top level,
// a test method (or any nested node) below it.
type Test struct {
	report *Report
	id     string
	name   string
	parent *Test
	class  string

	children   []*Test
	categories []string
	authors    []string
	devices    []string
	logs       []Log
	started    time.Time
	ended      time.Time
}

// ID returns the node's stable identifier
func (t *Test) ID() string {
	return t.id
}

// Name returns the node's label
func (t *Test) Name() string {
	return t.name
}

// SetClass records the fully qualified class a top-level node stands for.
// The name stays the display label.
func (t *Test) SetClass(class string) *Test {
	t.report.mu.Lock()
	defer t.report.mu.Unlock()
	t.class = class
	return t
}

// CreateNode adds a child node
func (t *Test) CreateNode(name string) *Test {
	t.report.mu.Lock()
	defer t.report.mu.Unlock()

	child := t.report.newTest(name, t)
	t.children = append(t.children, child)
	t.touchLocked()
	return child
}

// AssignCategory tags the node with categories; duplicates are ignored
func (t *Test) AssignCategory(categories ...string) *Test {
	t.report.mu.Lock()
	defer t.report.mu.Unlock()
	t.categories = appendUnique(t.categories, categories...)
	return t
}

// AssignAuthor tags the node with authors
func (t *Test) AssignAuthor(authors ...string) *Test {
	t.report.mu.Lock()
	defer t.report.mu.Unlock()
	t.authors = appendUnique(t.authors, authors...)
	return t
}

// AssignDevice tags the node with devices
func (t *Test) AssignDevice(devices ...string) *Test {
	t.report.mu.Lock()
	defer t.report.mu.Unlock()
	t.devices = appendUnique(t.devices, devices...)
	return t
}

// Log appends a free-text entry
func (t *Test) Log(status Status, details string) *Test {
	return t.appendLog(Log{Status: status, Details: details})
}

// LogError appends an entry carrying err as its cause
func (t *Test) LogError(status Status, err error) *Test {
	entry := Log{Status: status, Exception: NewException(err)}
	if entry.Exception != nil {
		entry.Details = entry.Exception.Message
	}
	return t.appendLog(entry)
}

func (t *Test) appendLog(entry Log) *Test {
	t.report.mu.Lock()
	defer t.report.mu.Unlock()
	entry.Timestamp = t.report.clock()
	t.logs = append(t.logs, entry)
	t.touchLocked()
	return t
}

// Status derives the node status from its logs and children
func (t *Test) Status() Status {
	t.report.mu.Lock()
	defer t.report.mu.Unlock()
	return t.statusLocked()
}

// Children returns a copy of the child list
func (t *Test) Children() []*Test {
	t.report.mu.Lock()
	defer t.report.mu.Unlock()
	out := make([]*Test, len(t.children))
	copy(out, t.children)
	return out
}

// Categories returns a copy of the assigned categories
func (t *Test) Categories() []string {
	t.report.mu.Lock()
	defer t.report.mu.Unlock()
	return append([]string(nil), t.categories...)
}

// Logs returns a copy of the recorded entries
func (t *Test) Logs() []Log {
	t.report.mu.Lock()
	defer t.report.mu.Unlock()
	return append([]Log(nil), t.logs...)
}

func (t *Test) statusLocked() Status {
	status := StatusPass
	for _, l := range t.logs {
		if l.Status == StatusInfo {
			continue
		}
		status = Worst(status, l.Status)
	}
	for _, c := range t.children {
		status = Worst(status, c.statusLocked())
	}
	return status
}

// touchLocked moves the end time of the node and its ancestors forward
func (t *Test) touchLocked() {
	now := t.report.clock()
	for n := t; n != nil; n = n.parent {
		if now.After(n.ended) {
			n.ended = now
		}
	}
}

func (t *Test) pathLocked() []string {
	var path []string
	for n := t; n != nil; n = n.parent {
		path = append([]string{n.name}, path...)
	}
	return path
}

func appendUnique(existing []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		found := false
		for _, e := range existing {
			if e == v {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, v)
		}
	}
	return existing
}
