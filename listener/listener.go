// Package listener bridges test lifecycle callbacks to an HTML report.
//
// A Listener reads the reporting properties resource on the first suite
// start, builds the report when reporting.start is true, records one node
// per test class with a child per reported test, and flushes the report
// once when the suite finishes. Every hook is safe for concurrent use and
// never panics or returns an error to the host.
package listener

import (
	"fmt"
	"io/fs"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/zk/sparkreport/internal/config"
	"github.com/zk/sparkreport/internal/metric"
	"github.com/zk/sparkreport/internal/report"
	"github.com/zk/sparkreport/internal/spark"
)

// Logger is the logging surface the listener needs
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type noopLogger struct{}

func (n *noopLogger) Debug(format string, args ...interface{}) {}
func (n *noopLogger) Info(format string, args ...interface{})  {}
func (n *noopLogger) Error(format string, args ...interface{}) {}

// Option configures a Listener
type Option func(*Listener)

// WithLogger sets the logger used for diagnostics
func WithLogger(logger Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithConfigRoots sets the roots searched for the properties resource
func WithConfigRoots(roots ...fs.FS) Option {
	return func(l *Listener) {
		l.roots = roots
	}
}

// WithResourceNames overrides the properties resource names searched
func WithResourceNames(names ...string) Option {
	return func(l *Listener) {
		l.names = names
	}
}

// WithReportOptions passes options to the report when it is created
func WithReportOptions(opts ...report.Option) Option {
	return func(l *Listener) {
		l.reportOpts = append(l.reportOpts, opts...)
	}
}

// WithObservers attaches additional observers when the report is created
func WithObservers(observers ...report.Observer) Option {
	return func(l *Listener) {
		l.observers = append(l.observers, observers...)
	}
}

// state is built once on suite start and published atomically
type state struct {
	report   *report.Report
	spark    *spark.Reporter
	settings config.Settings

	mu       sync.Mutex
	executed map[string]*report.Test
}

// classNode returns the node for class, creating it on first use
func (s *state) classNode(class TestClass) *report.Test {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node, ok := s.executed[class.Name]; ok {
		return node
	}
	node := s.report.CreateTest(class.SimpleName()).
		SetClass(class.Name).
		AssignAuthor(s.settings.Authors...).
		AssignDevice(s.settings.Devices...)
	s.executed[class.Name] = node
	return node
}

// Listener maps test lifecycle events onto a report
type Listener struct {
	logger     Logger
	roots      []fs.FS
	names      []string
	reportOpts []report.Option
	observers  []report.Observer

	startOnce sync.Once
	flushOnce sync.Once
	state     atomic.Pointer[state]
}

// New creates a listener. Nothing is read until the first suite start.
func New(opts ...Option) *Listener {
	l := &Listener{
		logger: &noopLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.roots) == 0 {
		l.roots = config.DefaultRoots()
	}
	if len(l.names) == 0 {
		l.names = config.DefaultNames
	}
	return l
}

// SuiteStarted reads the configuration and creates the report if
// reporting is enabled. Only the first call has any effect.
func (l *Listener) SuiteStarted() {
	defer l.recoverHook("SuiteStarted")
	l.startOnce.Do(l.createReport)
}

// SuiteFinished flushes the report. It is a no-op when reporting is
// disabled, and only the first flush is performed.
func (l *Listener) SuiteFinished() {
	defer l.recoverHook("SuiteFinished")

	st := l.state.Load()
	if st == nil {
		return
	}
	l.flushOnce.Do(func() {
		st.report.Log(report.StatusInfo, fmt.Sprintf("Suite finished with %d test classes", st.report.Len()))
		if err := st.report.Flush(); err != nil {
			l.logger.Error("Failed to flush report: %+v", err)
			return
		}
		l.logger.Info("Report written to %s", st.spark.Path())
	})
}

// TestOutcome records the outcome of one test. cause is attached to
// failed and aborted tests; disabled tests are not recorded.
func (l *Listener) TestOutcome(class TestClass, displayName string, outcome Outcome, cause error) {
	defer l.recoverHook("TestOutcome")

	st := l.state.Load()
	if st == nil {
		return
	}

	var status report.Status
	switch outcome {
	case Successful:
	case Failed:
		status = report.StatusFail
	case Aborted:
		status = report.StatusSkip
	case Disabled:
		l.logger.Debug("Ignoring disabled test %s %s", class.Name, displayName)
		return
	default:
		l.logger.Error("Ignoring unknown outcome %v for %s %s", outcome, class.Name, displayName)
		return
	}

	node := st.classNode(class).
		CreateNode(NormalizeDisplayName(displayName)).
		AssignCategory(class.SimpleName())

	if status == "" {
		return
	}
	if cause != nil {
		node.LogError(status, cause)
	} else {
		node.Log(status, "Test "+outcome.String())
	}
}

// TestSuccessful records a passing test
func (l *Listener) TestSuccessful(class TestClass, displayName string) {
	l.TestOutcome(class, displayName, Successful, nil)
}

// TestFailed records a failing test with its cause
func (l *Listener) TestFailed(class TestClass, displayName string, cause error) {
	l.TestOutcome(class, displayName, Failed, cause)
}

// TestAborted records a test that was skipped or aborted
func (l *Listener) TestAborted(class TestClass, displayName string, cause error) {
	l.TestOutcome(class, displayName, Aborted, cause)
}

// TestDisabled is accepted for completeness and records nothing
func (l *Listener) TestDisabled(class TestClass, displayName string, reason string) {
	l.TestOutcome(class, displayName, Disabled, nil)
}

// Enabled reports whether a report has been created
func (l *Listener) Enabled() bool {
	return l.state.Load() != nil
}

// Report returns the underlying report, or nil when reporting is disabled
func (l *Listener) Report() *report.Report {
	if st := l.state.Load(); st != nil {
		return st.report
	}
	return nil
}

// OutputPath returns the HTML report location, or "" when disabled
func (l *Listener) OutputPath() string {
	if st := l.state.Load(); st != nil {
		return st.spark.Path()
	}
	return ""
}

func (l *Listener) createReport() {
	res := config.Load(l.roots, l.names)
	switch res.Status {
	case config.Missing:
		l.logger.Debug("No reporting configuration found, reporting disabled")
		return
	case config.Invalid:
		l.logger.Error("Failed to load reporting configuration %s: %+v", res.Source, res.Err)
		return
	}

	settings := res.Settings
	if !settings.Enabled {
		l.logger.Debug("Reporting not enabled in %s", res.Source)
		return
	}
	l.logger.Info("Reporting enabled by %s, output %s", res.Source, settings.Output)

	rep := report.New(l.reportOpts...)
	rep.Log(report.StatusInfo, fmt.Sprintf("Suite started, reporting enabled by %s", res.Source))
	sparkReporter := spark.NewReporter(settings.Output)

	if settings.StyleConfig != "" {
		if err := sparkReporter.LoadConfig(settings.StyleConfig); err != nil {
			l.logger.Error("Failed to load style config: %+v", err)
			rep.Log(report.StatusWarning, fmt.Sprintf("Style config %s not applied: %v", settings.StyleConfig, err))
		} else {
			rep.Log(report.StatusInfo, "Style config "+settings.StyleConfig+" applied")
		}
	}
	rep.AttachReporter(sparkReporter)

	if settings.ViewOrder != "" {
		views := spark.ParseViewOrder(settings.ViewOrder)
		l.logger.Debug("View order %q resolved to %v", settings.ViewOrder, views)
		sparkReporter.ViewOrder(views...)
		if len(views) == 0 {
			rep.Log(report.StatusWarning, fmt.Sprintf("View order %q names no known views, using the default", settings.ViewOrder))
		}
	}
	if settings.OfflineMode {
		sparkReporter.SetOfflineMode(true)
	}

	if settings.MarkdownOutput != "" {
		rep.AttachReporter(report.NewMarkdownReporter(settings.MarkdownOutput))
	}
	if settings.MetricsOutput != "" {
		rep.AttachReporter(metric.NewObserver(settings.MetricsOutput))
	}
	rep.AttachReporter(l.observers...)

	l.state.Store(&state{
		report:   rep,
		spark:    sparkReporter,
		settings: settings,
		executed: make(map[string]*report.Test),
	})
}

func (l *Listener) recoverHook(hook string) {
	if r := recover(); r != nil {
		l.logger.Error("Recovered from panic in %s: %v\n%s", hook, r, debug.Stack())
	}
}
