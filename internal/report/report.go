package report

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ErrAlreadyFlushed is returned by Flush after the report has been flushed once
var ErrAlreadyFlushed = errors.New("report already flushed")

// Observer receives the finished report when it is flushed
type Observer interface {
	Flush(s Snapshot) error
}

// Option configures a Report
type Option func(*Report)

// WithClock overrides the time source, mostly for tests
func WithClock(clock func() time.Time) Option {
	return func(r *Report) {
		r.clock = clock
	}
}

// WithID sets the run ID instead of a random one
func WithID(id string) Option {
	return func(r *Report) {
		r.id = id
	}
}

// Report holds every test recorded during one suite run.
// All node mutation goes through the report's mutex, so tests
// may be created and logged from many goroutines.
type Report struct {
	mu        sync.Mutex
	id        string
	clock     func() time.Time
	started   time.Time
	ended     time.Time
	tests     []*Test
	logs      []Log
	observers []Observer
	flushed   bool
}

// New creates an empty report
func New(opts ...Option) *Report {
	r := &Report{
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.id == "" {
		r.id = uuid.NewString()
	}
	r.started = r.clock()
	return r
}

// ID returns the run identifier
func (r *Report) ID() string {
	return r.id
}

// CreateTest adds a new top-level test node
func (r *Report) CreateTest(name string) *Test {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.newTest(name, nil)
	r.tests = append(r.tests, t)
	return t
}

// Log appends a report-level entry, shown in the LOG view
func (r *Report) Log(status Status, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, Log{Status: status, Details: details, Timestamp: r.clock()})
}

// AttachReporter registers observers. An observer that is already
// attached is ignored.
func (r *Report) AttachReporter(observers ...Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range observers {
		if o == nil || r.isAttached(o) {
			continue
		}
		r.observers = append(r.observers, o)
	}
}

// Observers returns the number of attached observers
func (r *Report) Observers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

func (r *Report) isAttached(o Observer) bool {
	for _, existing := range r.observers {
		if existing == o {
			return true
		}
	}
	return false
}

// Len returns the number of top-level tests
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tests)
}

// Flush snapshots the report and hands it to every observer.
// Every observer is called even if an earlier one fails; the errors are combined.
func (r *Report) Flush() error {
	r.mu.Lock()
	if r.flushed {
		r.mu.Unlock()
		return ErrAlreadyFlushed
	}
	r.flushed = true
	r.ended = r.clock()
	snapshot := r.snapshotLocked()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	var err error
	for _, o := range observers {
		if ferr := o.Flush(snapshot); ferr != nil {
			err = multierr.Append(err, fmt.Errorf("flushing %T: %w", o, ferr))
		}
	}
	return err
}

// Snapshot returns an immutable copy of the current report state
func (r *Report) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Report) newTest(name string, parent *Test) *Test {
	now := r.clock()
	var parentNames []string
	if parent != nil {
		parentNames = parent.pathLocked()
	}
	return &Test{
		report:  r,
		id:      GenerateNodeID(name, parentNames),
		name:    name,
		parent:  parent,
		started: now,
		ended:   now,
	}
}
