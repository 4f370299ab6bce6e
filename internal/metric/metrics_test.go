package metric

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zk/sparkreport/internal/report"
)

func snapshot() report.Snapshot {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return start.Add(time.Duration(calls) * time.Second)
	}

	r := report.New(report.WithClock(clock))
	calc := r.CreateTest("CalculatorTest")
	calc.CreateNode("testAdd")
	calc.CreateNode("testDivide").LogError(report.StatusFail, errors.New("division by zero"))
	r.CreateTest("StringTest").CreateNode("testTrim").Log(report.StatusSkip, "not on this platform")
	return r.Snapshot()
}

func TestObserver_Record(t *testing.T) {
	o := NewObserver(filepath.Join(t.TempDir(), "metrics.prom"))
	o.Record(snapshot())

	assert.Equal(t, 1.0, testutil.ToFloat64(o.TestsTotal.WithLabelValues("CalculatorTest", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.TestsTotal.WithLabelValues("CalculatorTest", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.TestsTotal.WithLabelValues("StringTest", "skip")))
	assert.Equal(t, 3, testutil.CollectAndCount(o.TestsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(o.Classes))
	assert.Greater(t, testutil.ToFloat64(o.ReportDuration), 0.0)
}

func TestObserver_FlushWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "metrics.prom")
	o := NewObserver(path)

	r := report.New()
	r.AttachReporter(o)
	r.CreateTest("CalculatorTest").CreateNode("testAdd")
	require.NoError(t, r.Flush())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, `sparkreport_tests_total{class="CalculatorTest",status="pass"} 1`)
	assert.Contains(t, text, "sparkreport_classes 1")
	assert.Contains(t, text, "# HELP sparkreport_report_duration_seconds")
}

func TestObserver_RecordUsesClassIdentity(t *testing.T) {
	r := report.New()
	r.CreateTest("config").SetClass("example.com/a/internal/config").CreateNode("TestLoad")
	r.CreateTest("config").SetClass("example.com/b/internal/config").CreateNode("TestLoad")

	o := NewObserver(filepath.Join(t.TempDir(), "metrics.prom"))
	o.Record(r.Snapshot())

	assert.Equal(t, 1.0, testutil.ToFloat64(o.TestsTotal.WithLabelValues("example.com/a/internal/config", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.TestsTotal.WithLabelValues("example.com/b/internal/config", "pass")))
	assert.Equal(t, 2, testutil.CollectAndCount(o.TestsTotal))
}

func TestObserver_FlushUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	o := NewObserver(filepath.Join(blocker, "metrics.prom"))
	assert.Error(t, o.Flush(snapshot()))
}
