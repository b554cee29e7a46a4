package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Processor consumes the streams of a running command.
type Processor interface {
	Process(ctx context.Context, stdin io.Writer, stdout, stderr io.Reader) (*Output, error)
}

// NonInteractive sends nothing to the command and collects stdout and
// stderr line by line.
type NonInteractive struct{}

// Process drains both streams concurrently until they are closed.
func (NonInteractive) Process(ctx context.Context, stdin io.Writer, stdout, stderr io.Reader) (*Output, error) {
	if stdout == nil || stderr == nil {
		return nil, errors.New("output streams not provided")
	}
	out := NewOutput()
	var g errgroup.Group
	g.Go(func() error {
		lines, err := readLines(stdout)
		out.Stdout = lines
		return err
	})
	g.Go(func() error {
		lines, err := readLines(stderr)
		out.Stderr = lines
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// readLines splits r into lines until EOF. Lines have no length limit and
// the stream is always read to the end, so a command never blocks on a
// full pipe. Cancellation is left to the executor, which closes the
// streams.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			lines = append(lines, strings.TrimSuffix(line, "\r"))
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
	}
}

// DefaultProcessor is used by Exec and ExecArgs.
var DefaultProcessor Processor = NonInteractive{}
