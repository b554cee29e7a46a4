// Package cli runs commands through local or remote executors and collects
// their output.
package cli

import (
	"github.com/google/uuid"
)

// ExitCodeNotSet is reported by transports that cannot return the exit
// status of a remote command.
const ExitCodeNotSet = -1

// Output is the result of one command.
type Output struct {
	// ID tags the execution in log lines.
	ID       string
	ExitCode int
	// Stdout and Stderr hold the output lines without line terminators.
	// They are nil when the stream produced nothing.
	Stdout []string
	Stderr []string
}

// NewOutput returns an Output with a fresh ID and no exit code.
func NewOutput() *Output {
	return &Output{
		ID:       uuid.NewString(),
		ExitCode: ExitCodeNotSet,
	}
}
