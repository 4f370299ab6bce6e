package report

import (
	"sort"
	"time"
)

// Counts tallies nodes by status
type Counts struct {
	Pass    int
	Fail    int
	Skip    int
	Warning int
	Info    int
}

func (c *Counts) add(s Status) {
	switch s {
	case StatusPass:
		c.Pass++
	case StatusFail:
		c.Fail++
	case StatusSkip:
		c.Skip++
	case StatusWarning:
		c.Warning++
	default:
		c.Info++
	}
}

// Total returns the number of counted nodes
func (c Counts) Total() int {
	return c.Pass + c.Fail + c.Skip + c.Warning + c.Info
}

// Stats summarizes a snapshot
type Stats struct {
	Parents  Counts // top-level nodes
	Children Counts // direct children of top-level nodes
}

// Node is a read-only copy of a test node
type Node struct {
	ID         string
	Name       string
	Class      string // fully qualified identity, empty when only Name is known
	Path       []string
	Status     Status
	Categories []string
	Authors    []string
	Devices    []string
	Logs       []Log
	Started    time.Time
	Ended      time.Time
	Children   []Node
}

// Duration returns how long the node was active
func (n Node) Duration() time.Duration {
	return n.Ended.Sub(n.Started)
}

// ClassName returns the node's class identity, falling back to its name
func (n Node) ClassName() string {
	if n.Class != "" {
		return n.Class
	}
	return n.Name
}

// DisplayPath returns the hierarchical label of the node
func (n Node) DisplayPath() string {
	return BuildHierarchicalPath(n.Path)
}

// Member is a node reference inside a Group
type Member struct {
	ID     string
	Path   string
	Status Status
}

// Group collects nodes sharing a category, author, device or exception type
type Group struct {
	Name    string
	Counts  Counts
	Members []Member
}

// Snapshot is the immutable view of a report handed to observers
type Snapshot struct {
	ID         string
	Started    time.Time
	Ended      time.Time
	Tests      []Node
	Stats      Stats
	Categories []Group
	Authors    []Group
	Devices    []Group
	Exceptions []Group
	Logs       []Log // report-level entries, oldest first
}

// Duration returns the wall time covered by the report
func (s Snapshot) Duration() time.Duration {
	return s.Ended.Sub(s.Started)
}

// Status returns the worst status over all top-level tests
func (s Snapshot) Status() Status {
	status := StatusPass
	for _, t := range s.Tests {
		status = Worst(status, t.Status)
	}
	return status
}

func (r *Report) snapshotLocked() Snapshot {
	ended := r.ended
	if ended.IsZero() {
		ended = r.clock()
	}
	s := Snapshot{
		ID:      r.id,
		Started: r.started,
		Ended:   ended,
		Tests:   make([]Node, 0, len(r.tests)),
		Logs:    append([]Log(nil), r.logs...),
	}

	categories := newGroupIndex()
	authors := newGroupIndex()
	devices := newGroupIndex()
	exceptions := newGroupIndex()

	var visit func(t *Test) Node
	visit = func(t *Test) Node {
		n := Node{
			ID:         t.id,
			Name:       t.name,
			Class:      t.class,
			Path:       t.pathLocked(),
			Status:     t.statusLocked(),
			Categories: append([]string(nil), t.categories...),
			Authors:    append([]string(nil), t.authors...),
			Devices:    append([]string(nil), t.devices...),
			Logs:       append([]Log(nil), t.logs...),
			Started:    t.started,
			Ended:      t.ended,
		}
		member := Member{ID: n.ID, Path: n.DisplayPath(), Status: n.Status}
		for _, c := range n.Categories {
			categories.add(c, member)
		}
		for _, a := range n.Authors {
			authors.add(a, member)
		}
		for _, d := range n.Devices {
			devices.add(d, member)
		}
		for _, l := range n.Logs {
			if l.Exception != nil {
				exceptions.add(l.Exception.Type, member)
			}
		}
		for _, c := range t.children {
			n.Children = append(n.Children, visit(c))
		}
		return n
	}

	for _, t := range r.tests {
		node := visit(t)
		s.Stats.Parents.add(node.Status)
		for _, c := range node.Children {
			s.Stats.Children.add(c.Status)
		}
		s.Tests = append(s.Tests, node)
	}

	s.Categories = categories.groups()
	s.Authors = authors.groups()
	s.Devices = devices.groups()
	s.Exceptions = exceptions.groups()
	return s
}

type groupIndex struct {
	byName map[string]*Group
}

func newGroupIndex() *groupIndex {
	return &groupIndex{byName: make(map[string]*Group)}
}

func (g *groupIndex) add(name string, m Member) {
	group, ok := g.byName[name]
	if !ok {
		group = &Group{Name: name}
		g.byName[name] = group
	}
	group.Counts.add(m.Status)
	group.Members = append(group.Members, m)
}

// groups returns the collected groups sorted by name
func (g *groupIndex) groups() []Group {
	out := make([]Group, 0, len(g.byName))
	for _, group := range g.byName {
		out = append(out, *group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
