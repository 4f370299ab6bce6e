package orchestrator

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/zk/sparkreport/internal/logger"
	"github.com/zk/sparkreport/internal/runner"
	"github.com/zk/sparkreport/internal/runner/definitions"
)

// ExitInterrupted is the exit code reported when the run is stopped by a signal
const ExitInterrupted = 130

// OutputLogName is the file in the run directory holding the raw command output
const OutputLogName = "output.log"

// Logger interface for logging
type Logger interface {
	Debug(format string, args ...interface{})
	Error(format string, args ...interface{})
	Info(format string, args ...interface{})
}

// Config holds orchestrator configuration
type Config struct {
	Command []string
	Logger  Logger

	// Sink receives every finished test. Required.
	Sink definitions.OutcomeSink

	// Runners defaults to runner.NewManager with the built-in definitions
	Runners *runner.Manager

	// RunDir defaults to .sparkreport/runs/<run id>
	RunDir string

	// Passthrough receives output lines the runner could not parse
	Passthrough io.Writer

	// Stderr receives a copy of the command's stderr
	Stderr io.Writer
}

// Orchestrator runs a test command and streams its results into a sink
type Orchestrator struct {
	command     []string
	logger      Logger
	sink        definitions.OutcomeSink
	runners     *runner.Manager
	runID       string
	runDir      string
	passthrough io.Writer
	stderr      io.Writer

	// notify registers for interrupt signals; swapped in tests
	notify func(c chan<- os.Signal)

	definition    runner.Definition
	exitCode      int
	startTime     time.Time
	duration      time.Duration
	stderrCapture strings.Builder
}

// New creates a new orchestrator
func New(config Config) (*Orchestrator, error) {
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}

	runners := config.Runners
	if runners == nil {
		runners = runner.NewManager(config.Logger)
	}

	runID := generateRunID()
	runDir := config.RunDir
	if runDir == "" {
		runDir = filepath.Join(logger.LogDir, "runs", runID)
	}

	return &Orchestrator{
		command:     config.Command,
		logger:      config.Logger,
		sink:        config.Sink,
		runners:     runners,
		runID:       runID,
		runDir:      runDir,
		passthrough: config.Passthrough,
		stderr:      config.Stderr,
		notify: func(c chan<- os.Signal) {
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		},
	}, nil
}

// Run executes the test command and feeds its output to the detected runner.
// A non-zero exit of the command is not an error; see ExitCode.
func (o *Orchestrator) Run() error {
	if len(o.command) == 0 {
		o.exitCode = 1
		return fmt.Errorf("no test command given")
	}

	def, err := o.runners.Detect(o.command)
	if err != nil {
		o.exitCode = 1
		return fmt.Errorf("failed to detect test runner: %w", err)
	}
	o.definition = def

	if o.passthrough != nil {
		if p, ok := def.(interface{ SetPassthrough(io.Writer) }); ok {
			p.SetPassthrough(o.passthrough)
		}
	}

	if err := os.MkdirAll(o.runDir, 0755); err != nil {
		o.exitCode = 1
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	outputPath := filepath.Join(o.runDir, OutputLogName)
	outputFile, err := os.Create(outputPath)
	if err != nil {
		o.exitCode = 1
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		_ = outputFile.Sync()
		_ = outputFile.Close()
	}()

	testCommand := def.ModifyCommand(o.command)
	o.logger.Debug("Executing command: %v", testCommand)

	cmd := exec.Command(testCommand[0], testCommand[1:]...)
	if wd, err := os.Getwd(); err == nil {
		cmd.Dir = wd
	} else {
		o.logger.Error("Failed to get current working directory: %v", err)
	}
	cmd.Env = os.Environ()
	cmd.Stdin = os.Stdin

	// Raw output goes to output.log while the runner reads the same bytes
	pr, pw := io.Pipe()
	cmd.Stdout = io.MultiWriter(outputFile, pw)

	stderrWriters := []io.Writer{&o.stderrCapture}
	if o.stderr != nil {
		stderrWriters = append(stderrWriters, o.stderr)
	}
	cmd.Stderr = io.MultiWriter(stderrWriters...)

	sigChan := make(chan os.Signal, 1)
	o.notify(sigChan)
	defer signal.Stop(sigChan)

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		o.exitCode = 1
		return fmt.Errorf("failed to start test command: %w", err)
	}
	o.startTime = time.Now()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := def.ProcessOutput(pr, o.sink); err != nil {
			o.logger.Error("Failed to process output: %v", err)
		}
		// Keep the child from blocking on a reader that gave up early
		_, _ = io.Copy(io.Discard, pr)
	}()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case waitErr = <-done:
		o.exitCode = exitCodeOf(waitErr)
		o.logger.Debug("Command completed with exit code: %d", o.exitCode)
	case sig := <-sigChan:
		o.logger.Info("Received signal: %v", sig)
		_ = cmd.Process.Kill()
		<-done
		o.exitCode = ExitInterrupted
	}

	_ = pw.Close()
	wg.Wait()
	o.duration = time.Since(o.startTime)
	o.logger.Debug("Output processing completed in %s", o.duration)

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return fmt.Errorf("test command failed: %w", waitErr)
	}
	return nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
	}
	return 1
}

// ExitCode returns the exit code of the test command
func (o *Orchestrator) ExitCode() int {
	return o.exitCode
}

// RunID returns the identifier of this run
func (o *Orchestrator) RunID() string {
	return o.runID
}

// RunDir returns the directory holding the run's output log
func (o *Orchestrator) RunDir() string {
	return o.runDir
}

// OutputPath returns the path of the raw output log
func (o *Orchestrator) OutputPath() string {
	return filepath.Join(o.runDir, OutputLogName)
}

// Duration returns how long the test command ran
func (o *Orchestrator) Duration() time.Duration {
	return o.duration
}

// Stderr returns everything the command wrote to stderr
func (o *Orchestrator) Stderr() string {
	return o.stderrCapture.String()
}

// PackageFailures returns packages that failed before any test ran,
// when the detected runner tracks them
func (o *Orchestrator) PackageFailures() []definitions.PackageFailure {
	if pf, ok := o.definition.(interface {
		PackageFailures() []definitions.PackageFailure
	}); ok {
		return pf.PackageFailures()
	}
	return nil
}

// generateRunID returns a sortable, unique run identifier
func generateRunID() string {
	return time.Now().Format("20060102T150405") + "-" + uuid.NewString()[:8]
}
