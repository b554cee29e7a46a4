package cli

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/remotecli/remotecli/metrics"
)

// ErrNothingToExecute is returned for an empty command.
var ErrNothingToExecute = errors.New("nothing to execute")

// Executor runs commands on one target. Prepare must be called before the
// first command and Cleanup when the executor is no longer needed.
type Executor interface {
	// Transport names the executor in logs and metrics.
	Transport() string
	Prepare(ctx context.Context) error
	ExecWith(ctx context.Context, p Processor, command string) (*Output, error)
	Cleanup() error
	Active() bool
}

// Exec runs command with the non interactive processor.
func Exec(ctx context.Context, e Executor, command string) (*Output, error) {
	return e.ExecWith(ctx, DefaultProcessor, command)
}

// ExecArgs joins args into one command and runs it.
func ExecArgs(ctx context.Context, e Executor, args ...string) (*Output, error) {
	command, err := JoinArgs(args)
	if err != nil {
		return nil, err
	}
	return Exec(ctx, e, command)
}

// JoinArgs joins args with single spaces. Joining stops at the first empty
// argument.
func JoinArgs(args []string) (string, error) {
	var parts []string
	for _, a := range args {
		if a == "" {
			break
		}
		parts = append(parts, a)
	}
	if len(parts) == 0 {
		return "", ErrNothingToExecute
	}
	return strings.Join(parts, " "), nil
}

// Observe records the outcome of a command run by an executor.
func Observe(transport, command string, out *Output, err error) {
	metrics.M.Executions.WithLabelValues(transport, metrics.Result(err)).Inc()
	if err != nil {
		metrics.M.Errs.WithLabelValues(transport).Inc()
		return
	}
	log.Printf("%s [%s] %q exited with %d", transport, out.ID, command, out.ExitCode)
}
