package listener

import "errors"

// T is the subset of testing.TB needed to track a test
type T interface {
	Name() string
	Cleanup(func())
	Failed() bool
	Skipped() bool
}

// M is the subset of *testing.M used by Main
type M interface {
	Run() int
}

var (
	errTestFailed  = errors.New("test failed")
	errTestSkipped = errors.New("test skipped")
)

// Track reports t's outcome under class when t finishes
func (l *Listener) Track(t T, class TestClass) {
	name := t.Name()
	t.Cleanup(func() {
		switch {
		case t.Failed():
			l.TestFailed(class, name, errTestFailed)
		case t.Skipped():
			l.TestAborted(class, name, errTestSkipped)
		default:
			l.TestSuccessful(class, name)
		}
	})
}

// Main runs the tests in m between suite start and suite finish and
// returns m's exit code. Use it from TestMain:
//
//	func TestMain(m *testing.M) {
//		os.Exit(listener.Main(m, listener.New()))
//	}
func Main(m M, l *Listener) int {
	l.SuiteStarted()
	defer l.SuiteFinished()
	return m.Run()
}
