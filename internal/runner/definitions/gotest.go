package definitions

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zk/sparkreport/listener"
)

// Logger is the logging surface used by definitions
type Logger interface {
	Debug(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// OutcomeSink receives one call per finished test
type OutcomeSink interface {
	TestOutcome(class listener.TestClass, displayName string, outcome listener.Outcome, cause error)
}

// GoTestDefinition implements support for Go's native test runner.
// Each package is a test class and each test or leaf subtest is a test in it.
// A test with subtests is only reported when it fails while none of its
// subtests did, as happens with t.Error after t.Run or a failing cleanup.
type GoTestDefinition struct {
	logger      Logger
	passthrough io.Writer

	mu         sync.Mutex
	testStates map[string]*TestState // keyed by package/test
	parents    map[string]bool       // package/test keys that have subtests
	failedIn   map[string]bool       // containers with a failed subtest
	packages   map[string]*PackageState
	failures   []PackageFailure
}

// TestState tracks the state of a running test
type TestState struct {
	Name      string
	Package   string
	StartTime time.Time
	Output    []string
	IsPaused  bool
}

// PackageState tracks a package between its start and result events
type PackageState struct {
	StartTime time.Time
	Tests     int
	Output    []string
}

// PackageFailure is a package that failed without running any test,
// typically a build or setup error
type PackageFailure struct {
	Package string
	Message string
}

// GoTestEvent represents a single event from go test -json output
type GoTestEvent struct {
	Time       time.Time `json:"Time"`
	Action     string    `json:"Action"`
	Package    string    `json:"Package"`
	ImportPath string    `json:"ImportPath,omitempty"`
	Test       string    `json:"Test,omitempty"`
	Output     string    `json:"Output,omitempty"`
	Elapsed    float64   `json:"Elapsed,omitempty"`
}

// TestError is the cause attached to a failed or skipped Go test
type TestError struct {
	Package string
	Test    string
	Action  string
	Elapsed float64
	Output  []string
}

func (e *TestError) Error() string {
	if msg := strings.Join(meaningfulLines(e.Output), "\n"); msg != "" {
		return msg
	}
	if e.Action == "skip" {
		return "test skipped"
	}
	return "test failed"
}

// Format prints the full captured output for %+v
func (e *TestError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s %s (%.2fs)\n%s", e.Package, e.Test, e.Elapsed, strings.TrimRight(strings.Join(e.Output, ""), "\n"))
		return
	}
	_, _ = io.WriteString(s, e.Error())
}

// NewGoTestDefinition creates a new Go test runner definition
func NewGoTestDefinition(logger Logger) *GoTestDefinition {
	if logger == nil {
		logger = noopLogger{}
	}
	return &GoTestDefinition{
		logger:     logger,
		testStates: make(map[string]*TestState),
		parents:    make(map[string]bool),
		failedIn:   make(map[string]bool),
		packages:   make(map[string]*PackageState),
	}
}

// SetPassthrough sets where non-JSON output lines are copied
func (g *GoTestDefinition) SetPassthrough(w io.Writer) {
	g.passthrough = w
}

// Name returns the name of this test runner
func (g *GoTestDefinition) Name() string {
	return "go"
}

// Detect checks if the command is for go test
func (g *GoTestDefinition) Detect(args []string) bool {
	if len(args) < 2 {
		return false
	}

	if args[0] == "go" && args[1] == "test" {
		return true
	}

	// Full path to the go binary
	if (strings.HasSuffix(args[0], "/go") || strings.HasSuffix(args[0], `\go.exe`)) && args[1] == "test" {
		return true
	}

	return false
}

// ModifyCommand ensures the -json flag is present in the go test command
func (g *GoTestDefinition) ModifyCommand(cmd []string) []string {
	result := make([]string, 0, len(cmd)+1)
	hasJSON := false

	for _, arg := range cmd {
		if arg == "-json" || arg == "--json" || arg == "-json=true" {
			hasJSON = true
		}
	}

	// Add -json right after "test" if not present
	for i, arg := range cmd {
		result = append(result, arg)
		if i == 1 && arg == "test" && !hasJSON {
			result = append(result, "-json")
		}
	}

	return result
}

// ProcessOutput reads go test JSON output and reports each finished test to sink
func (g *GoTestDefinition) ProcessOutput(stdout io.Reader, sink OutcomeSink) error {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()

		var event GoTestEvent
		if len(line) == 0 || line[0] != '{' || json.Unmarshal(line, &event) != nil {
			// Non-JSON line (likely build error)
			g.logger.Debug("Non-JSON output: %s", string(line))
			if g.passthrough != nil {
				_, _ = fmt.Fprintln(g.passthrough, string(line))
			}
			continue
		}

		if err := g.processEvent(&event, sink); err != nil {
			g.logger.Error("Failed to process event: %v", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading output: %w", err)
	}
	return nil
}

// PackageFailures returns packages that failed without running tests
func (g *GoTestDefinition) PackageFailures() []PackageFailure {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]PackageFailure(nil), g.failures...)
}

type finished struct {
	class       string
	displayName string
	outcome     listener.Outcome
	cause       error
}

// processEvent handles a single go test JSON event
func (g *GoTestDefinition) processEvent(event *GoTestEvent, sink OutcomeSink) error {
	if event == nil {
		return nil
	}

	var reports []finished

	switch event.Action {
	case "start":
		if event.Test == "" {
			g.handlePackageStart(event)
		}

	case "run":
		if event.Test != "" {
			g.handleTestRun(event)
		}

	case "pause", "cont":
		if event.Test != "" {
			g.handleTestPause(event, event.Action == "pause")
		}

	case "pass", "fail", "skip":
		if event.Test != "" {
			if r, ok := g.handleTestResult(event); ok {
				reports = append(reports, r)
			}
		} else {
			reports = g.handlePackageResult(event)
		}

	case "output":
		g.handleOutput(event)

	case "build-output", "build-fail":
		g.logger.Debug("Build event for %s: %s", event.ImportPath, strings.TrimSpace(event.Output))

	case "bench":
		g.logger.Debug("Benchmark event (not supported): %+v", event)

	default:
		return fmt.Errorf("unknown action %q", event.Action)
	}

	// Sink calls happen outside the lock
	for _, r := range reports {
		sink.TestOutcome(listener.TestClass{Name: r.class}, r.displayName, r.outcome, r.cause)
	}
	return nil
}

func testKey(pkg, test string) string {
	return pkg + "/" + test
}

// handlePackageStart processes package start events
func (g *GoTestDefinition) handlePackageStart(event *GoTestEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.packageLocked(event.Package, event.Time)
}

func (g *GoTestDefinition) packageLocked(pkg string, at time.Time) *PackageState {
	ps, ok := g.packages[pkg]
	if !ok {
		ps = &PackageState{StartTime: at}
		g.packages[pkg] = ps
	}
	return ps
}

// handleTestRun processes test run events
func (g *GoTestDefinition) handleTestRun(event *GoTestEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.testStates[testKey(event.Package, event.Test)] = &TestState{
		Name:      event.Test,
		Package:   event.Package,
		StartTime: event.Time,
	}
	g.packageLocked(event.Package, event.Time).Tests++

	// Every ancestor of a subtest is a container
	parts := strings.Split(event.Test, "/")
	for i := 1; i < len(parts); i++ {
		g.parents[testKey(event.Package, strings.Join(parts[:i], "/"))] = true
	}
}

// handleTestPause processes pause and cont events
func (g *GoTestDefinition) handleTestPause(event *GoTestEvent, paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if state, ok := g.testStates[testKey(event.Package, event.Test)]; ok {
		state.IsPaused = paused
	}
}

// handleOutput buffers output for the test or package it belongs to
func (g *GoTestDefinition) handleOutput(event *GoTestEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if event.Test == "" {
		ps := g.packageLocked(event.Package, event.Time)
		ps.Output = append(ps.Output, event.Output)
		return
	}

	key := testKey(event.Package, event.Test)
	state, ok := g.testStates[key]
	if !ok {
		state = &TestState{Name: event.Test, Package: event.Package, StartTime: event.Time}
		g.testStates[key] = state
	}
	state.Output = append(state.Output, event.Output)
}

// handleTestResult turns a test result into a report unless the test is a container
func (g *GoTestDefinition) handleTestResult(event *GoTestEvent) (finished, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := testKey(event.Package, event.Test)
	state, ok := g.testStates[key]
	if !ok {
		state = &TestState{Name: event.Test, Package: event.Package}
	}
	delete(g.testStates, key)

	if event.Action == "fail" {
		g.markFailedLocked(event.Package, event.Test)
	}

	if g.parents[key] {
		delete(g.parents, key)
		childFailed := g.failedIn[key]
		delete(g.failedIn, key)
		if event.Action != "fail" || childFailed {
			g.logger.Debug("Test %s in %s has subtests, not reported", event.Test, event.Package)
			return finished{}, false
		}
		g.logger.Debug("Test %s in %s failed outside its subtests", event.Test, event.Package)
	}

	r := finished{class: event.Package, displayName: event.Test}
	switch event.Action {
	case "pass":
		r.outcome = listener.Successful
	case "fail":
		r.outcome = listener.Failed
		r.cause = newTestError(state, event.Action, event.Elapsed)
	case "skip":
		r.outcome = listener.Aborted
		r.cause = newTestError(state, event.Action, event.Elapsed)
	}
	return r, true
}

// markFailedLocked records a failure against every ancestor of test
func (g *GoTestDefinition) markFailedLocked(pkg, test string) {
	parts := strings.Split(test, "/")
	for i := 1; i < len(parts); i++ {
		g.failedIn[testKey(pkg, strings.Join(parts[:i], "/"))] = true
	}
}

// handlePackageResult closes a package. Tests still running when a package
// fails are reported as failed with the package output as cause.
func (g *GoTestDefinition) handlePackageResult(event *GoTestEvent) []finished {
	g.mu.Lock()
	defer g.mu.Unlock()

	ps := g.packageLocked(event.Package, event.Time)
	defer delete(g.packages, event.Package)

	var unfinished []*TestState
	prefix := event.Package + "/"
	for key, state := range g.testStates {
		if !strings.HasPrefix(key, prefix) || state.Package != event.Package {
			continue
		}
		delete(g.testStates, key)
		if g.parents[key] {
			delete(g.parents, key)
			delete(g.failedIn, key)
			continue
		}
		unfinished = append(unfinished, state)
	}
	sort.Slice(unfinished, func(i, j int) bool { return unfinished[i].Name < unfinished[j].Name })

	if event.Action != "fail" {
		for _, state := range unfinished {
			g.logger.Debug("Test %s in %s never finished", state.Name, event.Package)
		}
		return nil
	}

	if ps.Tests == 0 {
		msg := strings.Join(meaningfulLines(ps.Output), "\n")
		if msg == "" {
			msg = "package failed"
		}
		g.failures = append(g.failures, PackageFailure{Package: event.Package, Message: msg})
		g.logger.Error("Package %s failed without running tests: %s", event.Package, msg)
		return nil
	}

	reports := make([]finished, 0, len(unfinished))
	for _, state := range unfinished {
		state.Output = append(state.Output, ps.Output...)
		reports = append(reports, finished{
			class:       event.Package,
			displayName: state.Name,
			outcome:     listener.Failed,
			cause:       newTestError(state, "fail", event.Elapsed),
		})
	}
	return reports
}

func newTestError(state *TestState, action string, elapsed float64) *TestError {
	return &TestError{
		Package: state.Package,
		Test:    state.Name,
		Action:  action,
		Elapsed: elapsed,
		Output:  append([]string(nil), state.Output...),
	}
}

// meaningfulLines drops go test framing lines and blank lines
func meaningfulLines(output []string) []string {
	var lines []string
	for _, chunk := range output {
		for _, line := range strings.Split(chunk, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || isFramingLine(trimmed) {
				continue
			}
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func isFramingLine(line string) bool {
	for _, prefix := range []string{"=== RUN", "=== PAUSE", "=== CONT", "=== NAME", "--- PASS", "--- FAIL", "--- SKIP", "# "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	switch {
	case line == "PASS", line == "FAIL":
		return true
	case strings.HasPrefix(line, "FAIL\t"), strings.HasPrefix(line, "ok  \t"), strings.HasPrefix(line, "ok \t"):
		return true
	}
	return false
}

type noopLogger struct{}

func (noopLogger) Debug(format string, args ...interface{}) {}
func (noopLogger) Error(format string, args ...interface{}) {}
