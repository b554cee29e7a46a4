package cli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait waits for output after the command was
// killed or exited.
const waitDelay = 5 * time.Second

// Local runs commands on this machine without a shell. No environment is
// added, so programs should be named by their full path.
type Local struct{}

// NewLocal returns a local executor.
func NewLocal() *Local {
	return &Local{}
}

// Transport implements Executor.
func (*Local) Transport() string { return "local" }

// Prepare implements Executor.
func (*Local) Prepare(context.Context) error { return nil }

// Cleanup implements Executor.
func (*Local) Cleanup() error { return nil }

// Active implements Executor.
func (*Local) Active() bool { return true }

// ExecWith splits command on white space and runs it.
func (l *Local) ExecWith(ctx context.Context, p Processor, command string) (out *Output, err error) {
	defer func() { Observe(l.Transport(), command, out, err) }()
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, ErrNothingToExecute
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.WaitDelay = waitDelay
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to start %s: %w", args[0], err)
	}
	// Children of the command may hold the pipes open after it is killed.
	stop := context.AfterFunc(ctx, func() {
		stdout.Close()
		stderr.Close()
	})
	defer stop()

	out, err = p.Process(ctx, stdin, stdout, stderr)
	stdin.Close()
	werr := cmd.Wait()
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		return nil, err
	}
	var exitErr *exec.ExitError
	if werr != nil && !errors.As(werr, &exitErr) {
		return nil, werr
	}
	out.ExitCode = cmd.ProcessState.ExitCode()
	return out, nil
}
