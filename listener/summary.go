package listener

import "github.com/zk/sparkreport/internal/report"

// ClassSummary counts the reported tests of one class. Class is the
// fully qualified name, so packages sharing a last element stay apart.
type ClassSummary struct {
	Class   string
	Status  report.Status
	Tests   int
	Passed  int
	Failed  int
	Skipped int
}

// Summary returns per-class counts in the order classes were first seen.
// It is nil when reporting is disabled.
func (l *Listener) Summary() []ClassSummary {
	st := l.state.Load()
	if st == nil {
		return nil
	}

	snapshot := st.report.Snapshot()
	out := make([]ClassSummary, 0, len(snapshot.Tests))
	for _, class := range snapshot.Tests {
		cs := ClassSummary{Class: class.ClassName(), Status: class.Status}
		for _, test := range class.Children {
			cs.Tests++
			switch test.Status {
			case report.StatusFail:
				cs.Failed++
			case report.StatusSkip:
				cs.Skipped++
			default:
				cs.Passed++
			}
		}
		out = append(out, cs)
	}
	return out
}
