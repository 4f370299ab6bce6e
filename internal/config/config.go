// Package config locates and parses the reporting properties resource.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/magiconair/properties"
)

// Property keys
const (
	KeyStart          = "reporting.start"
	KeyOutput         = "reporting.output"
	KeyStyleConfig    = "reporting.styleConfig"
	KeyViewOrder      = "reporting.viewOrder"
	KeyOfflineMode    = "reporting.offlineMode"
	KeyMarkdownOutput = "reporting.markdown.output"
	KeyMetricsOutput  = "reporting.metrics.output"
	KeyAuthor         = "reporting.author"
	KeyDevice         = "reporting.device"
)

// DefaultOutput is used when reporting.output is absent
const DefaultOutput = "target/results/report.html"

// DefaultNames are the resource names searched, in order
var DefaultNames = []string{
	"sparkreport.properties",
	"sparkreport/sparkreport.properties",
}

// DefaultRoots returns the search roots used when none are given
func DefaultRoots() []fs.FS {
	return []fs.FS{os.DirFS(".")}
}

// DirRoots turns directory paths into search roots
func DirRoots(dirs ...string) []fs.FS {
	roots := make([]fs.FS, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		roots = append(roots, os.DirFS(d))
	}
	return roots
}

// Status tells how a load attempt ended
type Status int

const (
	Missing Status = iota
	Loaded
	Invalid
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case Loaded:
		return "loaded"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Settings are the recognised reporting options
type Settings struct {
	Enabled        bool
	Output         string
	StyleConfig    string
	ViewOrder      string // raw comma-separated tokens
	OfflineMode    bool
	MarkdownOutput string
	MetricsOutput  string
	Authors        []string // assigned to every class node
	Devices        []string
}

// Result is the outcome of Load. Settings are only meaningful when Status is Loaded.
type Result struct {
	Status   Status
	Source   string
	Settings Settings
	Err      error
}

// Load searches each name across roots and parses the first resource found.
// Names are tried in order; for each name the roots are tried in order.
func Load(roots []fs.FS, names []string) Result {
	if len(roots) == 0 {
		roots = DefaultRoots()
	}
	if len(names) == 0 {
		names = DefaultNames
	}

	for _, name := range names {
		for _, root := range roots {
			data, err := fs.ReadFile(root, name)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
					continue
				}
				return Result{Status: Invalid, Source: name, Err: fmt.Errorf("failed to read %s: %w", name, err)}
			}
			settings, err := Parse(data)
			if err != nil {
				return Result{Status: Invalid, Source: name, Err: fmt.Errorf("failed to parse %s: %w", name, err)}
			}
			return Result{Status: Loaded, Source: name, Settings: settings}
		}
	}
	return Result{Status: Missing}
}

// Parse reads settings from properties content
func Parse(data []byte) (Settings, error) {
	p, err := properties.Load(data, properties.UTF8)
	if err != nil {
		return Settings{}, err
	}
	return FromProperties(p), nil
}

// FromProperties extracts settings, applying defaults for absent keys
func FromProperties(p *properties.Properties) Settings {
	s := Settings{
		Output:      DefaultOutput,
		OfflineMode: true,
	}

	if v, ok := p.Get(KeyStart); ok {
		s.Enabled = strings.EqualFold(v, "true")
	}
	if v, ok := p.Get(KeyOutput); ok && strings.TrimSpace(v) != "" {
		s.Output = strings.TrimSpace(v)
	}
	if v, ok := p.Get(KeyStyleConfig); ok {
		s.StyleConfig = strings.TrimSpace(v)
	}
	if v, ok := p.Get(KeyViewOrder); ok {
		s.ViewOrder = v
	}
	if v, ok := p.Get(KeyOfflineMode); ok {
		s.OfflineMode = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if v, ok := p.Get(KeyMarkdownOutput); ok {
		s.MarkdownOutput = strings.TrimSpace(v)
	}
	if v, ok := p.Get(KeyMetricsOutput); ok {
		s.MetricsOutput = strings.TrimSpace(v)
	}
	if v, ok := p.Get(KeyAuthor); ok {
		s.Authors = splitList(v)
	}
	if v, ok := p.Get(KeyDevice); ok {
		s.Devices = splitList(v)
	}
	return s
}

// splitList splits a comma-separated value, dropping blank items
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
