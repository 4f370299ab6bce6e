package ipc

import (
	"fmt"

	"github.com/zk/sparkreport/listener"
)

// Sink receives lifecycle calls decoded from events
type Sink interface {
	SuiteStarted()
	SuiteFinished()
	TestOutcome(class listener.TestClass, displayName string, outcome listener.Outcome, cause error)
}

// Dispatch maps an event onto sink
func Dispatch(event Event, sink Sink) error {
	switch e := event.(type) {
	case SuiteStartedEvent:
		sink.SuiteStarted()
	case SuiteFinishedEvent:
		sink.SuiteFinished()
	case TestOutcomeEvent:
		outcome, err := listener.ParseOutcome(e.Payload.Outcome)
		if err != nil {
			return fmt.Errorf("test %s %s: %w", e.Payload.Class, e.Payload.DisplayName, err)
		}
		sink.TestOutcome(listener.TestClass{Name: e.Payload.Class}, e.Payload.DisplayName, outcome, e.Payload.CauseError())
	default:
		return fmt.Errorf("unsupported event type: %T", event)
	}
	return nil
}
