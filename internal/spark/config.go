package spark

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Theme selects the report color scheme
type Theme string

const (
	ThemeStandard Theme = "standard"
	ThemeDark     Theme = "dark"
)

// DefaultTimeFormat is used when no timestamp format is configured
const DefaultTimeFormat = "Jan 02, 2006 15:04:05"

// Config holds the presentation settings of a Spark report
type Config struct {
	Theme         Theme
	Encoding      string
	DocumentTitle string
	ReportName    string
	TimeFormat    string // Go layout
	CSS           string
	JS            string
	OfflineMode   bool
}

// DefaultConfig returns the settings used before any style config is applied
func DefaultConfig() Config {
	return Config{
		Theme:         ThemeStandard,
		Encoding:      "UTF-8",
		DocumentTitle: "Spark Report",
		ReportName:    "Test Report",
		TimeFormat:    DefaultTimeFormat,
	}
}

// styleConfig is the on-disk shape shared by the XML and YAML formats.
// Empty fields leave the current setting untouched.
type styleConfig struct {
	Theme           string `xml:"theme" yaml:"theme"`
	Encoding        string `xml:"encoding" yaml:"encoding"`
	DocumentTitle   string `xml:"documentTitle" yaml:"documentTitle"`
	ReportName      string `xml:"reportName" yaml:"reportName"`
	TimeStampFormat string `xml:"timeStampFormat" yaml:"timeStampFormat"`
	Styles          string `xml:"styles" yaml:"styles"`
	Scripts         string `xml:"scripts" yaml:"scripts"`
	OfflineMode     *bool  `xml:"offlineMode" yaml:"offlineMode"`
}

type xmlDocument struct {
	XMLName       xml.Name    `xml:"extentreports"`
	Configuration styleConfig `xml:"configuration"`
}

func (sc styleConfig) apply(cfg Config) (Config, error) {
	if sc.Theme != "" {
		switch Theme(strings.ToLower(strings.TrimSpace(sc.Theme))) {
		case ThemeStandard:
			cfg.Theme = ThemeStandard
		case ThemeDark:
			cfg.Theme = ThemeDark
		default:
			return cfg, fmt.Errorf("unknown theme %q", sc.Theme)
		}
	}
	if v := strings.TrimSpace(sc.Encoding); v != "" {
		cfg.Encoding = v
	}
	if v := strings.TrimSpace(sc.DocumentTitle); v != "" {
		cfg.DocumentTitle = v
	}
	if v := strings.TrimSpace(sc.ReportName); v != "" {
		cfg.ReportName = v
	}
	if v := strings.TrimSpace(sc.TimeStampFormat); v != "" {
		cfg.TimeFormat = ConvertTimeFormat(v)
	}
	if v := strings.TrimSpace(sc.Styles); v != "" {
		cfg.CSS = v
	}
	if v := strings.TrimSpace(sc.Scripts); v != "" {
		cfg.JS = v
	}
	if sc.OfflineMode != nil {
		cfg.OfflineMode = *sc.OfflineMode
	}
	return cfg, nil
}

// parseStyleConfig decodes a style config file on top of base.
// The format is chosen by file extension.
func parseStyleConfig(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read style config: %w", err)
	}

	var sc styleConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		var doc xmlDocument
		if err := xml.Unmarshal(data, &doc); err != nil {
			return base, fmt.Errorf("failed to parse XML style config %s: %w", path, err)
		}
		sc = doc.Configuration
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return base, fmt.Errorf("failed to parse YAML style config %s: %w", path, err)
		}
	default:
		return base, fmt.Errorf("unsupported style config format: %s", path)
	}

	cfg, err := sc.apply(base)
	if err != nil {
		return base, fmt.Errorf("invalid style config %s: %w", path, err)
	}
	return cfg, nil
}

// javaLayout maps the date pattern letters found in existing style configs
// to Go reference-time layouts. Longer tokens come first so that a run of
// letters is matched whole before its single-letter form.
var javaLayout = strings.NewReplacer(
	"yyyy", "2006",
	"yyy", "2006",
	"yy", "06",
	"MMMM", "January",
	"MMM", "Jan",
	"MM", "01",
	"dd", "02",
	"EEEE", "Monday",
	"EEE", "Mon",
	"HH", "15",
	"hh", "03",
	"mm", "04",
	"ss", "05",
	"SSS", "000",
	"a", "PM",
	"y", "2006",
	"M", "1",
	"d", "2",
	"E", "Mon",
	"H", "15", // Go has no unpadded 24-hour hour
	"h", "3",
	"m", "4",
	"s", "5",
)

// ConvertTimeFormat accepts either a Go layout or a date pattern such as
// "MMM dd, yyyy HH:mm:ss" and returns a Go layout.
func ConvertTimeFormat(format string) string {
	if strings.Contains(format, "2006") || strings.Contains(format, "15:04") {
		return format
	}
	return javaLayout.Replace(format)
}
