package report

import "strings"

// Status is the outcome recorded on a log entry or derived for a test node
type Status string

const (
	StatusInfo    Status = "INFO"
	StatusPass    Status = "PASS"
	StatusSkip    Status = "SKIP"
	StatusWarning Status = "WARNING"
	StatusFail    Status = "FAIL"
)

// rank orders statuses so that the worst outcome wins when statuses are merged
func (s Status) rank() int {
	switch s {
	case StatusFail:
		return 4
	case StatusWarning:
		return 3
	case StatusSkip:
		return 2
	case StatusPass:
		return 1
	default:
		return 0
	}
}

// Worst returns the more severe of two statuses
func Worst(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Lower returns the lowercase form used for CSS classes and file names
func (s Status) Lower() string {
	return strings.ToLower(string(s))
}

// Icon returns a single character marker for plain-text output
func (s Status) Icon() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusFail:
		return "✕"
	case StatusSkip:
		return "○"
	case StatusWarning:
		return "!"
	default:
		return "~"
	}
}
