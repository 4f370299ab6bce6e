package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zk/sparkreport/internal/ipc"
)

// inTempDir runs the test from a fresh working directory holding an
// enabled properties file and returns the app and its output buffers
func inTempDir(t *testing.T, properties string) (*app, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	if properties != "" {
		if err := os.WriteFile(filepath.Join(dir, "sparkreport.properties"), []byte(properties), 0644); err != nil {
			t.Fatal(err)
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var stdout, stderr bytes.Buffer
	a := newApp(strings.NewReader(""), &stdout, &stderr)
	a.configDirs = []string{"."}
	return a, &stdout, &stderr
}

func fixturePath(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", "gotest.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

const enabled = "reporting.start=true\nreporting.output=out/report.html\n"

func TestConvertCore_WritesReportAndSummary(t *testing.T) {
	fixture := fixturePath(t)
	a, stdout, _ := inTempDir(t, enabled)

	exitCode, err := a.convertCore(fixture)
	if err != nil {
		t.Fatalf("convertCore: %v", err)
	}
	if exitCode != 1 {
		t.Errorf("expected exit code 1 for a failing run, got %d", exitCode)
	}

	out := stdout.String()
	for _, want := range []string{"example.com/calc", "example.com/strs", "FAIL", "Results: 3 passed, 1 failed, 1 skipped, 5 total", "out/report.html"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	html, err := os.ReadFile(filepath.Join("out", "report.html"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(html), "TestDivide/by_zero") {
		t.Error("report should list the failed subtest")
	}
}

func TestConvertCore_Stdin(t *testing.T) {
	a, stdout, _ := inTempDir(t, enabled)
	a.stdin = strings.NewReader(strings.Join([]string{
		`{"Action":"run","Package":"example.com/ok","Test":"TestOK"}`,
		`{"Action":"pass","Package":"example.com/ok","Test":"TestOK"}`,
		`{"Action":"pass","Package":"example.com/ok"}`,
	}, "\n"))

	exitCode, err := a.convertCore("")
	if err != nil {
		t.Fatalf("convertCore: %v", err)
	}
	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if !strings.Contains(stdout.String(), "Results: 1 passed, 0 failed, 0 skipped, 1 total") {
		t.Errorf("unexpected summary:\n%s", stdout.String())
	}
}

func TestConvertCore_ContainerFailingItself(t *testing.T) {
	a, stdout, _ := inTempDir(t, enabled)
	a.stdin = strings.NewReader(strings.Join([]string{
		`{"Action":"run","Package":"example.com/ok","Test":"TestA"}`,
		`{"Action":"run","Package":"example.com/ok","Test":"TestA/sub"}`,
		`{"Action":"pass","Package":"example.com/ok","Test":"TestA/sub"}`,
		`{"Action":"output","Package":"example.com/ok","Test":"TestA","Output":"    a_test.go:9: cleanup check failed\n"}`,
		`{"Action":"fail","Package":"example.com/ok","Test":"TestA"}`,
		`{"Action":"fail","Package":"example.com/ok"}`,
	}, "\n"))

	exitCode, err := a.convertCore("")
	if err != nil {
		t.Fatalf("convertCore: %v", err)
	}
	if exitCode != 1 {
		t.Errorf("expected exit code 1 for a failing container, got %d", exitCode)
	}
	if !strings.Contains(stdout.String(), "Results: 1 passed, 1 failed, 0 skipped, 2 total") {
		t.Errorf("unexpected summary:\n%s", stdout.String())
	}

	html, err := os.ReadFile(filepath.Join("out", "report.html"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(html), "cleanup check failed") {
		t.Error("report should carry the container's output as cause")
	}
}

func TestConvertCore_LongClassPathIsShortened(t *testing.T) {
	const pkg = "example.com/organisation/monorepo/services/billing/internal/invoices/render"
	a, stdout, _ := inTempDir(t, enabled)
	a.stdin = strings.NewReader(strings.Join([]string{
		`{"Action":"run","Package":"` + pkg + `","Test":"TestRender"}`,
		`{"Action":"pass","Package":"` + pkg + `","Test":"TestRender"}`,
		`{"Action":"pass","Package":"` + pkg + `"}`,
	}, "\n"))

	if _, err := a.convertCore(""); err != nil {
		t.Fatalf("convertCore: %v", err)
	}
	out := stdout.String()
	if strings.Contains(out, pkg) {
		t.Errorf("class column should be shortened:\n%s", out)
	}
	if !strings.Contains(out, "...monorepo/services/billing/internal/invoices/render") {
		t.Errorf("class column should keep the tail of the path:\n%s", out)
	}
}

func TestConvertCore_PackageFailure(t *testing.T) {
	a, stdout, _ := inTempDir(t, enabled)
	a.stdin = strings.NewReader(strings.Join([]string{
		`{"Action":"start","Package":"example.com/broken"}`,
		`{"Action":"output","Package":"example.com/broken","Output":"FAIL\texample.com/broken [setup failed]\n"}`,
		`{"Action":"fail","Package":"example.com/broken"}`,
	}, "\n"))

	exitCode, err := a.convertCore("-")
	if err != nil {
		t.Fatalf("convertCore: %v", err)
	}
	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(stdout.String(), "Package example.com/broken failed before running tests") {
		t.Errorf("package failure not shown:\n%s", stdout.String())
	}
}

func TestConvertCore_ReportingDisabled(t *testing.T) {
	fixture := fixturePath(t)
	a, stdout, _ := inTempDir(t, "")

	if _, err := a.convertCore(fixture); err != nil {
		t.Fatalf("convertCore: %v", err)
	}
	if !strings.Contains(stdout.String(), "Reporting disabled") {
		t.Errorf("expected disabled notice:\n%s", stdout.String())
	}
	if _, err := os.Stat(filepath.Join("target", "results", "report.html")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("no report should be written, stat err = %v", err)
	}
}

func TestConvertCore_MissingFile(t *testing.T) {
	a, _, stderr := inTempDir(t, enabled)
	exitCode, err := a.convertCore("does-not-exist.json")
	if err == nil || exitCode != 1 {
		t.Fatalf("expected failure, got code %d err %v", exitCode, err)
	}
	if !strings.Contains(stderr.String(), "Failed to open") {
		t.Errorf("unexpected stderr: %s", stderr.String())
	}
}

func TestRunTestsCore_UnknownRunner(t *testing.T) {
	a, _, stderr := inTempDir(t, enabled)

	exitCode, err := a.runTestsCore([]string{"invalid-test-runner"})
	if err == nil || !strings.Contains(err.Error(), "no test runner detected") {
		t.Fatalf("expected detection error, got %v", err)
	}
	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(stderr.String(), "Could not detect test runner") {
		t.Errorf("expected usage hint, got %s", stderr.String())
	}
}

func TestRunTestsCore_GoTest(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the go toolchain")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go not found in PATH")
	}

	src, err := filepath.Abs(filepath.Join("testdata", "basic-go"))
	if err != nil {
		t.Fatal(err)
	}
	a, stdout, _ := inTempDir(t, enabled)
	t.Setenv("GOWORK", "off")

	entries, err := os.ReadDir(src)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(e.Name(), data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	exitCode, err := a.runTestsCore([]string{"go", "test", "./..."})
	if err != nil {
		t.Fatalf("runTestsCore: %v", err)
	}
	if exitCode != 1 {
		t.Errorf("expected go test exit code 1, got %d", exitCode)
	}

	out := stdout.String()
	for _, want := range []string{"example.com/basicgo", "Results: 2 passed, 1 failed, 1 skipped, 4 total", "Raw output:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join("out", "report.html")); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestWatchCore_ReadsUntilSuiteFinished(t *testing.T) {
	a, stdout, _ := inTempDir(t, enabled)
	path := filepath.Join("ipc", "events.jsonl")

	events := []ipc.Event{
		ipc.NewSuiteStartedEvent("suite"),
		ipc.NewTestOutcomeEvent("com.acme.LoginTest", "logs in", ipc.OutcomeSuccessful, nil),
		ipc.NewTestOutcomeEvent("com.acme.LoginTest", "rejects bad password", ipc.OutcomeFailed, errors.New("boom")),
		ipc.NewSuiteFinishedEvent("suite"),
	}
	for _, e := range events {
		if err := ipc.SendEvent(path, e); err != nil {
			t.Fatalf("SendEvent: %v", err)
		}
	}

	exitCode, err := a.watchCore(path)
	if err != nil {
		t.Fatalf("watchCore: %v", err)
	}
	if exitCode != 1 {
		t.Errorf("expected exit code 1 with a failed test, got %d", exitCode)
	}
	if !strings.Contains(stdout.String(), "Results: 1 passed, 1 failed, 0 skipped, 2 total") {
		t.Errorf("unexpected summary:\n%s", stdout.String())
	}
	if _, err := os.Stat(filepath.Join("out", "report.html")); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestWatchCore_SignalFlushesReport(t *testing.T) {
	a, _, _ := inTempDir(t, enabled)
	path := filepath.Join("ipc", "events.jsonl")
	if err := ipc.SendEvent(path, ipc.NewSuiteStartedEvent("suite")); err != nil {
		t.Fatal(err)
	}
	if err := ipc.SendEvent(path, ipc.NewTestOutcomeEvent("Calc", "adds", ipc.OutcomeSuccessful, nil)); err != nil {
		t.Fatal(err)
	}
	a.notify = func(c chan<- os.Signal) {
		go func() {
			time.Sleep(200 * time.Millisecond)
			c <- os.Interrupt
		}()
	}

	exitCode, err := a.watchCore(path)
	if err != nil {
		t.Fatalf("watchCore: %v", err)
	}
	if exitCode != 130 {
		t.Errorf("expected exit code 130, got %d", exitCode)
	}
	if _, err := os.Stat(filepath.Join("out", "report.html")); err != nil {
		t.Errorf("interrupted watch should still write the report: %v", err)
	}
}

func TestWatchCore_SignalWithEventsInFlight(t *testing.T) {
	a, stdout, _ := inTempDir(t, enabled)
	path := filepath.Join("ipc", "events.jsonl")

	// More events than the manager buffers, so the watcher is still
	// delivering when the signal lands
	const total = 1500
	if err := ipc.SendEvent(path, ipc.NewSuiteStartedEvent("suite")); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < total; i++ {
		event := ipc.NewTestOutcomeEvent("com.acme.BulkTest", fmt.Sprintf("case %d", i), ipc.OutcomeSuccessful, nil)
		if err := ipc.SendEvent(path, event); err != nil {
			t.Fatal(err)
		}
	}
	a.notify = func(c chan<- os.Signal) {
		c <- os.Interrupt
	}

	exitCode, err := a.watchCore(path)
	if err != nil {
		t.Fatalf("watchCore: %v", err)
	}
	if exitCode != 130 {
		t.Errorf("expected exit code 130, got %d", exitCode)
	}
	want := fmt.Sprintf("Results: %d passed, 0 failed, 0 skipped, %d total", total, total)
	if !strings.Contains(stdout.String(), want) {
		t.Errorf("events written before the signal were lost:\n%s", stdout.String())
	}
}

func TestWatchCore_DefaultPathFromEnv(t *testing.T) {
	a, _, _ := inTempDir(t, enabled)
	path, err := filepath.Abs(filepath.Join("env", "events.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv(ipc.PathEnv, path)
	if err := ipc.SendEvent(path, ipc.NewSuiteFinishedEvent("suite")); err != nil {
		t.Fatal(err)
	}

	exitCode, err := a.watchCore("")
	if err != nil || exitCode != 0 {
		t.Fatalf("watchCore: code %d err %v", exitCode, err)
	}
}

func TestRootCmd_ConvertSetsExitCode(t *testing.T) {
	fixture := fixturePath(t)
	a, stdout, _ := inTempDir(t, "")

	configDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(configDir, "sparkreport.properties"), []byte(enabled), 0644); err != nil {
		t.Fatal(err)
	}

	root := a.rootCmd()
	root.SetArgs([]string{"--config-dir", configDir, "convert", fixture})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if a.exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", a.exitCode)
	}
	if !strings.Contains(stdout.String(), "Report: out/report.html") {
		t.Errorf("unexpected output:\n%s", stdout.String())
	}
}

func TestRootCmd_RunRequiresCommand(t *testing.T) {
	a, _, _ := inTempDir(t, "")
	root := a.rootCmd()
	root.SetArgs([]string{"run"})
	if err := root.Execute(); err == nil {
		t.Error("expected error when no test command is given")
	}
}
