package ipc

import "fmt"

// EventType represents the type of IPC event
type EventType string

const (
	EventTypeSuiteStarted  EventType = "suiteStarted"
	EventTypeSuiteFinished EventType = "suiteFinished"
	EventTypeTestOutcome   EventType = "testOutcome"
)

// Outcome names used in testOutcome payloads
const (
	OutcomeSuccessful = "successful"
	OutcomeFailed     = "failed"
	OutcomeAborted    = "aborted"
	OutcomeDisabled   = "disabled"
)

// Event is the base interface for all IPC events
type Event interface {
	Type() EventType
}

// SuiteStartedEvent marks the beginning of a test suite run
type SuiteStartedEvent struct {
	EventType EventType `json:"eventType"`
	Payload   struct {
		Suite string `json:"suite,omitempty"`
	} `json:"payload"`
}

func (e SuiteStartedEvent) Type() EventType { return EventTypeSuiteStarted }

// SuiteFinishedEvent marks the end of a test suite run
type SuiteFinishedEvent struct {
	EventType EventType `json:"eventType"`
	Payload   struct {
		Suite string `json:"suite,omitempty"`
	} `json:"payload"`
}

func (e SuiteFinishedEvent) Type() EventType { return EventTypeSuiteFinished }

// TestOutcomePayload describes the result of a single test
type TestOutcomePayload struct {
	Class       string `json:"class"`
	DisplayName string `json:"displayName"`
	Outcome     string `json:"outcome"`
	Cause       string `json:"cause,omitempty"`
	CauseType   string `json:"causeType,omitempty"`
}

// TestOutcomeEvent reports the result of a single test
type TestOutcomeEvent struct {
	EventType EventType          `json:"eventType"`
	Payload   TestOutcomePayload `json:"payload"`
}

func (e TestOutcomeEvent) Type() EventType { return EventTypeTestOutcome }

// NewSuiteStartedEvent creates a suiteStarted event
func NewSuiteStartedEvent(suite string) SuiteStartedEvent {
	e := SuiteStartedEvent{EventType: EventTypeSuiteStarted}
	e.Payload.Suite = suite
	return e
}

// NewSuiteFinishedEvent creates a suiteFinished event
func NewSuiteFinishedEvent(suite string) SuiteFinishedEvent {
	e := SuiteFinishedEvent{EventType: EventTypeSuiteFinished}
	e.Payload.Suite = suite
	return e
}

// NewTestOutcomeEvent creates a testOutcome event. cause may be nil.
func NewTestOutcomeEvent(class, displayName, outcome string, cause error) TestOutcomeEvent {
	e := TestOutcomeEvent{
		EventType: EventTypeTestOutcome,
		Payload: TestOutcomePayload{
			Class:       class,
			DisplayName: displayName,
			Outcome:     outcome,
		},
	}
	if cause != nil {
		e.Payload.Cause = cause.Error()
		e.Payload.CauseType = fmt.Sprintf("%T", cause)
	}
	return e
}

// RemoteError is a failure cause carried across the event file
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// ErrorType reports the type name recorded by the sender
func (e *RemoteError) ErrorType() string {
	if e.Kind == "" {
		return "error"
	}
	return e.Kind
}

// CauseError rebuilds the cause of an outcome, or nil if there is none
func (p TestOutcomePayload) CauseError() error {
	if p.Cause == "" && p.CauseType == "" {
		return nil
	}
	return &RemoteError{Kind: p.CauseType, Message: p.Cause}
}
