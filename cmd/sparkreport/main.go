package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/zk/sparkreport/internal/config"
	"github.com/zk/sparkreport/internal/ipc"
	"github.com/zk/sparkreport/internal/logger"
	"github.com/zk/sparkreport/internal/orchestrator"
	"github.com/zk/sparkreport/internal/report"
	"github.com/zk/sparkreport/internal/runner/definitions"
	"github.com/zk/sparkreport/listener"
)

// classWidth bounds the Class column; longer import paths keep their tail
const classWidth = 60

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

// app carries the streams and flags shared by every subcommand
type app struct {
	configDirs []string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	exitCode   int

	// notify registers for interrupt signals; swapped in tests
	notify func(c chan<- os.Signal)
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		notify: func(c chan<- os.Signal) {
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		},
	}
}

func main() {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := a.rootCmd().Execute(); err != nil && a.exitCode == 0 {
		os.Exit(1)
	}
	os.Exit(a.exitCode)
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sparkreport",
		Short: "HTML test reports from Go test runs",
		Long: `sparkreport turns test runs into a single-page HTML report.

Reporting is switched on by a sparkreport.properties file with
reporting.start=true, looked up in each --config-dir in order.

Examples:
  sparkreport run -- go test ./...         # Run tests and write the report
  sparkreport convert results.json         # Report a saved go test -json stream
  go test -json ./... | sparkreport convert
  sparkreport watch .sparkreport/ipc/events.jsonl`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetIn(a.stdin)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)
	rootCmd.PersistentFlags().StringSliceVar(&a.configDirs, "config-dir", []string{"."},
		"directory searched for sparkreport.properties (repeatable)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run -- <test command>",
		Short: "Run a test command and report its results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.finish(a.runTestsCore(args))
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "convert [file]",
		Short: "Report a saved go test -json stream (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return a.finish(a.convertCore(path))
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "watch [events.jsonl]",
		Short: "Report lifecycle events appended to an event file until the suite finishes",
		Long: fmt.Sprintf(`Watch an event file written by instrumented tests and report its events.
Without an argument the path comes from %s.`, ipc.PathEnv),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return a.finish(a.watchCore(path))
		},
	})

	return rootCmd
}

func (a *app) finish(code int, err error) error {
	a.exitCode = code
	if err != nil && code == 0 {
		a.exitCode = 1
	}
	return err
}

func (a *app) newLogger() (*logger.FileLogger, error) {
	fileLogger, err := logger.NewFileLogger(logger.WithConsole(a.stderr))
	if err != nil {
		fmt.Fprintf(a.stderr, "Failed to create debug logger: %v\n", err)
		return nil, err
	}
	return fileLogger, nil
}

func (a *app) closeLogger(fileLogger *logger.FileLogger) {
	if err := fileLogger.Close(); err != nil {
		fmt.Fprintf(a.stderr, "Warning: failed to close debug log: %v\n", err)
	}
}

func (a *app) newListener(log listener.Logger) *listener.Listener {
	return listener.New(
		listener.WithLogger(log),
		listener.WithConfigRoots(config.DirRoots(a.configDirs...)...),
	)
}

// runTestsCore runs the command under the orchestrator and returns its exit code
func (a *app) runTestsCore(args []string) (int, error) {
	fileLogger, err := a.newLogger()
	if err != nil {
		return 1, err
	}
	defer a.closeLogger(fileLogger)

	l := a.newListener(fileLogger)
	orch, err := orchestrator.New(orchestrator.Config{
		Command:     args,
		Logger:      fileLogger,
		Sink:        l,
		Passthrough: a.stdout,
		Stderr:      a.stderr,
	})
	if err != nil {
		fmt.Fprintf(a.stderr, "Failed to create orchestrator: %v\n", err)
		return 1, err
	}

	l.SuiteStarted()
	runErr := orch.Run()
	l.SuiteFinished()

	if runErr != nil {
		if strings.Contains(runErr.Error(), "no test runner detected") {
			fmt.Fprintf(a.stderr, "\nError: Could not detect test runner from command: %s\n", strings.Join(args, " "))
			fmt.Fprintf(a.stderr, "\nsparkreport currently supports:\n")
			fmt.Fprintf(a.stderr, "  • go test\n")
			fmt.Fprintf(a.stderr, "\nExample usage:\n")
			fmt.Fprintf(a.stderr, "  sparkreport run -- go test ./...\n")
			return 1, runErr
		}
		fmt.Fprintf(a.stderr, "Test execution failed: %v\n", runErr)
		return orch.ExitCode(), runErr
	}

	if err := a.printSummary(l, orch.PackageFailures(), orch.Duration()); err != nil {
		fileLogger.Error("Failed to print summary: %v", err)
	}
	fmt.Fprintf(a.stdout, "Raw output: %s\n", orch.OutputPath())
	return orch.ExitCode(), nil
}

// convertCore reports a saved go test -json stream. The exit code is 1
// when a test or package failed.
func (a *app) convertCore(path string) (int, error) {
	fileLogger, err := a.newLogger()
	if err != nil {
		return 1, err
	}
	defer a.closeLogger(fileLogger)

	in := a.stdin
	if path != "" && path != "-" {
		file, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(a.stderr, "Failed to open %s: %v\n", path, err)
			return 1, err
		}
		defer func() { _ = file.Close() }()
		in = file
	}

	l := a.newListener(fileLogger)
	sink := &tally{next: l}
	def := definitions.NewGoTestDefinition(fileLogger)
	def.SetPassthrough(a.stdout)

	start := time.Now()
	l.SuiteStarted()
	procErr := def.ProcessOutput(in, sink)
	l.SuiteFinished()

	if procErr != nil {
		fmt.Fprintf(a.stderr, "Failed to read test output: %v\n", procErr)
		return 1, procErr
	}

	failures := def.PackageFailures()
	if err := a.printSummary(l, failures, time.Since(start)); err != nil {
		fileLogger.Error("Failed to print summary: %v", err)
	}
	if sink.failed() > 0 || len(failures) > 0 {
		return 1, nil
	}
	return 0, nil
}

// watchCore dispatches events from the event file until the suite
// finishes or a signal arrives
func (a *app) watchCore(path string) (int, error) {
	fileLogger, err := a.newLogger()
	if err != nil {
		return 1, err
	}
	defer a.closeLogger(fileLogger)

	if path == "" {
		if path, err = ipc.DefaultPath(); err != nil {
			return 1, err
		}
	}

	mgr, err := ipc.NewManager(path, fileLogger)
	if err != nil {
		fmt.Fprintf(a.stderr, "Failed to open event file: %v\n", err)
		return 1, err
	}

	l := a.newListener(fileLogger)
	sink := &tally{next: l}
	dispatch := func(event ipc.Event) {
		if err := ipc.Dispatch(event, sink); err != nil {
			fileLogger.Error("Failed to dispatch event: %v", err)
		}
	}

	if err := mgr.WatchEvents(); err != nil {
		_ = mgr.Cleanup()
		fmt.Fprintf(a.stderr, "Failed to watch event file: %v\n", err)
		return 1, err
	}
	fmt.Fprintf(a.stdout, "Watching %s\n", path)

	sigChan := make(chan os.Signal, 1)
	a.notify(sigChan)
	defer signal.Stop(sigChan)

	exitCode := 0
	finished := false
	for !finished {
		select {
		case event, ok := <-mgr.Events:
			if !ok {
				finished = true
				break
			}
			dispatch(event)
			if event.Type() == ipc.EventTypeSuiteFinished {
				finished = true
			}
		case sig := <-sigChan:
			fileLogger.Info("Received signal: %v", sig)
			exitCode = orchestrator.ExitInterrupted
			finished = true
		}
	}

	// Cleanup publishes late events, so drain while it runs
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range mgr.Events {
			dispatch(event)
		}
	}()
	_ = mgr.Cleanup()
	wg.Wait()

	// Interrupted runs still get their report
	l.SuiteFinished()

	if err := a.printSummary(l, nil, 0); err != nil {
		fileLogger.Error("Failed to print summary: %v", err)
	}
	if exitCode == 0 && sink.failed() > 0 {
		exitCode = 1
	}
	return exitCode, nil
}

// printSummary writes the per-class table, the report location and any
// package failures
func (a *app) printSummary(l *listener.Listener, failures []definitions.PackageFailure, elapsed time.Duration) error {
	fmt.Fprintln(a.stdout)

	if !l.Enabled() {
		fmt.Fprintf(a.stdout, "Reporting disabled: no %s=true found in %s\n",
			config.KeyStart, strings.Join(a.configDirs, ", "))
	} else {
		table := tablewriter.NewWriter(a.stdout)
		table.Header([]string{"Class", "Status", "Tests", "Passed", "Failed", "Skipped"})

		var tests, passed, failed, skipped int
		for _, cs := range l.Summary() {
			tests += cs.Tests
			passed += cs.Passed
			failed += cs.Failed
			skipped += cs.Skipped
			if err := table.Append([]string{
				report.TruncateForDisplay(cs.Class, classWidth),
				string(cs.Status),
				strconv.Itoa(cs.Tests),
				strconv.Itoa(cs.Passed),
				strconv.Itoa(cs.Failed),
				strconv.Itoa(cs.Skipped),
			}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}

		fmt.Fprintf(a.stdout, "Results: %d passed, %d failed, %d skipped, %d total\n", passed, failed, skipped, tests)
		fmt.Fprintf(a.stdout, "Report: %s\n", l.OutputPath())
	}

	for _, f := range failures {
		fmt.Fprintf(a.stdout, "Package %s failed before running tests:\n%s\n", f.Package, f.Message)
	}
	if elapsed > 0 {
		fmt.Fprintf(a.stdout, "Total time: %.3fs\n", elapsed.Seconds())
	}
	return nil
}

// tally forwards outcomes and counts failures for the exit code
type tally struct {
	next *listener.Listener

	mu       sync.Mutex
	failures int
}

func (t *tally) SuiteStarted()  { t.next.SuiteStarted() }
func (t *tally) SuiteFinished() { t.next.SuiteFinished() }

func (t *tally) TestOutcome(class listener.TestClass, displayName string, outcome listener.Outcome, cause error) {
	if outcome == listener.Failed {
		t.mu.Lock()
		t.failures++
		t.mu.Unlock()
	}
	t.next.TestOutcome(class, displayName, outcome, cause)
}

func (t *tally) failed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}
