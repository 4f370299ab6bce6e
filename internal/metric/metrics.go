package metric

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zk/sparkreport/internal/report"
)

// Observer counts test outcomes and writes them as a node-exporter
// textfile when the report is flushed.
type Observer struct {
	path     string
	registry *prometheus.Registry

	TestsTotal     *prometheus.CounterVec
	Classes        prometheus.Gauge
	ReportDuration prometheus.Gauge
}

// NewObserver creates an observer with its own registry writing to path
func NewObserver(path string) *Observer {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Observer{
		path:     path,
		registry: registry,

		TestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sparkreport_tests_total",
			Help: "The number of reported tests by class and status",
		}, []string{"class", "status"}),

		Classes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sparkreport_classes",
			Help: "The number of test classes in the report",
		}),

		ReportDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sparkreport_report_duration_seconds",
			Help: "Wall time covered by the report",
		}),
	}
}

// Path returns the textfile location
func (o *Observer) Path() string {
	return o.path
}

// Registry exposes the observer's registry
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// Record adds the outcomes in s to the collectors
func (o *Observer) Record(s report.Snapshot) {
	for _, class := range s.Tests {
		for _, test := range class.Children {
			o.TestsTotal.WithLabelValues(class.ClassName(), test.Status.Lower()).Inc()
		}
	}
	o.Classes.Set(float64(len(s.Tests)))
	o.ReportDuration.Set(s.Duration().Seconds())
}

// Flush records s and writes the registry to the textfile
func (o *Observer) Flush(s report.Snapshot) error {
	o.Record(s)

	if err := os.MkdirAll(filepath.Dir(o.path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(o.path, o.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
