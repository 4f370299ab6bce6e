package spark

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zk/sparkreport/internal/report"
)

var pageTemplate = template.Must(template.New("spark").Funcs(template.FuncMap{
	"duration": formatDuration,
	"join":     strings.Join,
}).Parse(pageSource))

// Reporter renders a report snapshot as a single HTML page.
// It is a report.Observer.
type Reporter struct {
	mu     sync.Mutex
	path   string
	config Config
	views  []ViewName
}

// NewReporter creates a reporter that writes to path
func NewReporter(path string) *Reporter {
	return &Reporter{
		path:   path,
		config: DefaultConfig(),
		views:  DefaultViewOrder(),
	}
}

// Path returns the output file
func (r *Reporter) Path() string {
	return r.path
}

// Config returns a copy of the current settings
func (r *Reporter) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config
}

// LoadConfig applies a style config, choosing the format by extension.
// On error the current settings are kept.
func (r *Reporter) LoadConfig(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := parseStyleConfig(path, r.config)
	if err != nil {
		return err
	}
	r.config = cfg
	return nil
}

// SetOfflineMode switches between inlined and extracted assets
func (r *Reporter) SetOfflineMode(offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.OfflineMode = offline
}

// ViewOrder restricts and orders the navigation views.
// Unknown views are dropped; an empty list restores the default order.
func (r *Reporter) ViewOrder(views ...ViewName) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var order []ViewName
	seen := make(map[ViewName]bool)
	for _, v := range views {
		if !KnownView(v) || seen[v] {
			continue
		}
		seen[v] = true
		order = append(order, v)
	}
	if len(order) == 0 {
		order = DefaultViewOrder()
	}
	r.views = order
}

// Views returns the configured view order
func (r *Reporter) Views() []ViewName {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ViewName(nil), r.views...)
}

type viewData struct {
	Kind   string
	ID     string
	Label  string
	Groups []report.Group
}

type page struct {
	Config       Config
	Snapshot     report.Snapshot
	Views        []viewData
	Started      string
	Ended        string
	Duration     string
	Inline       bool
	InlineCSS    template.CSS
	InlineJS     template.JS
	CustomCSS    template.CSS
	CustomJS     template.JS
	AssetBase    string
	AssetVersion string
}

// Flush writes the HTML page for s
func (r *Reporter) Flush(s report.Snapshot) error {
	cfg := r.Config()
	views := r.Views()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	p := page{
		Config:    cfg,
		Snapshot:  s,
		Started:   s.Started.Format(cfg.TimeFormat),
		Ended:     s.Ended.Format(cfg.TimeFormat),
		Duration:  formatDuration(s.Duration()),
		CustomCSS: template.CSS(cfg.CSS),
		CustomJS:  template.JS(cfg.JS),
	}
	for _, v := range views {
		p.Views = append(p.Views, buildView(v, s))
	}

	if cfg.OfflineMode {
		if err := extractAssets(filepath.Join(dir, AssetDir)); err != nil {
			return err
		}
		p.AssetBase = AssetDir
		p.AssetVersion = assetVersion
	} else {
		p.Inline = true
		p.InlineCSS = template.CSS(mustAsset("spark.css"))
		p.InlineJS = template.JS(mustAsset("spark.js"))
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	if err := os.WriteFile(r.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func buildView(v ViewName, s report.Snapshot) viewData {
	d := viewData{
		Kind:  string(v),
		ID:    "view-" + strings.ToLower(string(v)),
		Label: v.Label(),
	}
	switch v {
	case ViewCategory:
		d.Groups = s.Categories
	case ViewException:
		d.Groups = s.Exceptions
	case ViewAuthor:
		d.Groups = s.Authors
	case ViewDevice:
		d.Groups = s.Devices
	}
	return d
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}
