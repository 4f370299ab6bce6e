package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkdownReporter writes a plain markdown summary of the run
type MarkdownReporter struct {
	path string
}

// NewMarkdownReporter creates a reporter writing to path
func NewMarkdownReporter(path string) *MarkdownReporter {
	return &MarkdownReporter{path: path}
}

// Path returns the output location
func (m *MarkdownReporter) Path() string {
	return m.path
}

// Flush writes the summary for s
func (m *MarkdownReporter) Flush(s Snapshot) error {
	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create markdown directory: %w", err)
		}
	}
	return os.WriteFile(m.path, []byte(RenderMarkdown(s)), 0644)
}

// RenderMarkdown renders the snapshot as markdown. Each class is a section
// and each of its tests a list item; causes are indented under the item.
func RenderMarkdown(s Snapshot) string {
	var sb strings.Builder

	sb.WriteString("# Test Run\n\n")
	fmt.Fprintf(&sb, "**Run:** `%s`\n", s.ID)
	fmt.Fprintf(&sb, "**Started:** %s\n", s.Started.Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Status:** %s\n\n", s.Status())

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Classes: %d (%d passed, %d failed, %d skipped)\n",
		s.Stats.Parents.Total(), s.Stats.Parents.Pass, s.Stats.Parents.Fail, s.Stats.Parents.Skip)
	fmt.Fprintf(&sb, "- Tests: %d (%d passed, %d failed, %d skipped)\n\n",
		s.Stats.Children.Total(), s.Stats.Children.Pass, s.Stats.Children.Fail, s.Stats.Children.Skip)

	for _, t := range s.Tests {
		fmt.Fprintf(&sb, "## %s\n\n", t.ClassName())
		fmt.Fprintf(&sb, "Status: **%s**\n\n", t.Status)

		for _, c := range t.Children {
			fmt.Fprintf(&sb, "- %s %s", c.Status.Icon(), c.Name)
			if d := c.Duration(); d > 0 {
				fmt.Fprintf(&sb, " (%.0fms)", float64(d)/float64(time.Millisecond))
			}
			sb.WriteString("\n")

			for _, l := range c.Logs {
				if l.Exception == nil && l.Details == "" {
					continue
				}
				detail := l.Details
				if l.Exception != nil && l.Exception.Stack != "" {
					detail = l.Exception.Stack
				}
				sb.WriteString("\n  ```\n")
				for _, line := range strings.Split(strings.TrimRight(detail, "\n"), "\n") {
					fmt.Fprintf(&sb, "  %s\n", line)
				}
				sb.WriteString("  ```\n\n")
			}
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "---\n*Updated: %s*\n", s.Ended.Format(time.RFC3339))

	return sb.String()
}
