package spark

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_XML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "spark-config.xml", `<?xml version="1.0" encoding="UTF-8"?>
<extentreports>
  <configuration>
    <theme>dark</theme>
    <encoding>UTF-8</encoding>
    <documentTitle>Nightly</documentTitle>
    <reportName>Calculator Suite</reportName>
    <timeStampFormat>MMM dd, yyyy HH:mm:ss</timeStampFormat>
    <styles><![CDATA[.brand { color: red; }]]></styles>
    <scripts><![CDATA[console.log("ready");]]></scripts>
  </configuration>
</extentreports>`)

	r := NewReporter(filepath.Join(dir, "report.html"))
	require.NoError(t, r.LoadConfig(path))

	cfg := r.Config()
	assert.Equal(t, ThemeDark, cfg.Theme)
	assert.Equal(t, "Nightly", cfg.DocumentTitle)
	assert.Equal(t, "Calculator Suite", cfg.ReportName)
	assert.Equal(t, "Jan 02, 2006 15:04:05", cfg.TimeFormat)
	assert.Equal(t, ".brand { color: red; }", cfg.CSS)
	assert.Equal(t, `console.log("ready");`, cfg.JS)
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "spark.yaml", `
theme: standard
reportName: From YAML
timeStampFormat: "2006-01-02 15:04"
offlineMode: true
`)

	r := NewReporter(filepath.Join(dir, "report.html"))
	require.NoError(t, r.LoadConfig(path))

	cfg := r.Config()
	assert.Equal(t, ThemeStandard, cfg.Theme)
	assert.Equal(t, "From YAML", cfg.ReportName)
	assert.Equal(t, "2006-01-02 15:04", cfg.TimeFormat)
	assert.True(t, cfg.OfflineMode)
	assert.Equal(t, "Spark Report", cfg.DocumentTitle, "unset fields keep their defaults")
}

func TestLoadConfig_ErrorsKeepDefaults(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		file string
		body string
	}{
		{"malformed xml", "broken.xml", "<extentreports><configuration><theme>dark"},
		{"unknown theme", "theme.xml", "<extentreports><configuration><theme>neon</theme></configuration></extentreports>"},
		{"malformed yaml", "broken.yml", "theme: [dark"},
		{"unsupported extension", "style.json", `{"theme":"dark"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.body)
			r := NewReporter(filepath.Join(dir, "report.html"))
			assert.Error(t, r.LoadConfig(path))
			assert.Equal(t, DefaultConfig(), r.Config())
		})
	}

	t.Run("missing file", func(t *testing.T) {
		r := NewReporter(filepath.Join(dir, "report.html"))
		assert.Error(t, r.LoadConfig(filepath.Join(dir, "absent.xml")))
		assert.Equal(t, DefaultConfig(), r.Config())
	})
}

func TestLoadConfig_UppercaseExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "SPARK.YML", "reportName: Shouting\n")

	r := NewReporter(filepath.Join(dir, "report.html"))
	require.NoError(t, r.LoadConfig(path))
	assert.Equal(t, "Shouting", r.Config().ReportName)
}

func TestConvertTimeFormat(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"MMM dd, yyyy HH:mm:ss", "Jan 02, 2006 15:04:05"},
		{"yyyy-MM-dd hh:mm a", "2006-01-02 03:04 PM"},
		{"EEEE, MMMM dd", "Monday, January 02"},
		{"2006-01-02T15:04:05Z07:00", "2006-01-02T15:04:05Z07:00"},
		{"MMM d, yyyy h:mm a", "Jan 2, 2006 3:04 PM"},
		{"d/M/yy H:m:s", "2/1/06 15:4:5"},
		{"E dd.MM.y", "Mon 02.01.2006"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConvertTimeFormat(tt.in))
		})
	}
}
