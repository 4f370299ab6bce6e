package listener

import (
	"fmt"
	"strings"
)

// Outcome is the result reported by the host for a single test
type Outcome int

const (
	Successful Outcome = iota
	Failed
	Aborted
	Disabled
)

func (o Outcome) String() string {
	switch o {
	case Successful:
		return "successful"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	case Disabled:
		return "disabled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ParseOutcome converts a case-insensitive outcome name
func ParseOutcome(name string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "successful", "success", "pass", "passed":
		return Successful, nil
	case "failed", "fail", "failure":
		return Failed, nil
	case "aborted", "skip", "skipped":
		return Aborted, nil
	case "disabled":
		return Disabled, nil
	default:
		return Successful, fmt.Errorf("unknown outcome %q", name)
	}
}

// TestClass identifies the class (or package) a test belongs to
type TestClass struct {
	// Name is the fully qualified identity, e.g. a Go import path
	Name string
}

// SimpleName is the last element of Name after '/' or '.'
func (c TestClass) SimpleName() string {
	name := strings.TrimRight(c.Name, "/.")
	if i := strings.LastIndexAny(name, "/."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// NormalizeDisplayName strips parentheses from a test display name
func NormalizeDisplayName(name string) string {
	return strings.NewReplacer("(", "", ")", "").Replace(name)
}
