package runner

import (
	"io"

	"github.com/zk/sparkreport/internal/runner/definitions"
)

// Definition describes how to run one kind of test command and read its output
type Definition interface {
	// Name returns the name of the test runner
	Name() string

	// Detect checks if this runner can handle the given command
	Detect(args []string) bool

	// ModifyCommand adjusts the command so its output can be processed
	ModifyCommand(cmd []string) []string

	// ProcessOutput reads the runner output and reports finished tests to sink
	ProcessOutput(stdout io.Reader, sink definitions.OutcomeSink) error
}
