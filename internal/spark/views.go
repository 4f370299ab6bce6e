package spark

import "strings"

// ViewName identifies a navigation view of the report
type ViewName string

const (
	ViewTest      ViewName = "TEST"
	ViewCategory  ViewName = "CATEGORY"
	ViewException ViewName = "EXCEPTION"
	ViewDashboard ViewName = "DASHBOARD"
	ViewAuthor    ViewName = "AUTHOR"
	ViewDevice    ViewName = "DEVICE"
	ViewLog       ViewName = "LOG"
)

var defaultViewOrder = []ViewName{
	ViewTest, ViewCategory, ViewException, ViewDashboard, ViewAuthor, ViewDevice, ViewLog,
}

// DefaultViewOrder returns every view in the order used when none is configured
func DefaultViewOrder() []ViewName {
	return append([]ViewName(nil), defaultViewOrder...)
}

// KnownView reports whether name is one of the recognised views
func KnownView(name ViewName) bool {
	for _, v := range defaultViewOrder {
		if v == name {
			return true
		}
	}
	return false
}

// ParseViewOrder splits a comma-separated list of view tokens.
// Tokens are trimmed and matched case-insensitively; unknown tokens and
// repeats are dropped while the relative order of the rest is kept.
func ParseViewOrder(raw string) []ViewName {
	var views []ViewName
	seen := make(map[ViewName]bool)
	for _, token := range strings.Split(raw, ",") {
		name := ViewName(strings.ToUpper(strings.TrimSpace(token)))
		if !KnownView(name) || seen[name] {
			continue
		}
		seen[name] = true
		views = append(views, name)
	}
	return views
}

// Label is the navigation caption of the view
func (v ViewName) Label() string {
	switch v {
	case ViewTest:
		return "Tests"
	case ViewCategory:
		return "Categories"
	case ViewException:
		return "Exceptions"
	case ViewDashboard:
		return "Dashboard"
	case ViewAuthor:
		return "Authors"
	case ViewDevice:
		return "Devices"
	case ViewLog:
		return "Log"
	default:
		return string(v)
	}
}
