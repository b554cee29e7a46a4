package rclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/remotecli/remotecli/cli"
)

var errNotPrepared = errors.New("session not prepared")

// base tracks the prepared state shared by the rexec and rsh executors.
// Every command needs its own connection; the one dialed by Prepare is used
// by the first command.
type base struct {
	mu       sync.Mutex
	prepared bool
	pending  net.Conn
}

type dialFunc func(ctx context.Context) (net.Conn, error)

func (b *base) prepare(ctx context.Context, dial dialFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		return nil
	}
	conn, err := dial(ctx)
	if err != nil {
		return err
	}
	b.pending = conn
	b.prepared = true
	return nil
}

func (b *base) take(ctx context.Context, dial dialFunc) (net.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.prepared {
		return nil, errNotPrepared
	}
	if conn := b.pending; conn != nil {
		b.pending = nil
		return conn, nil
	}
	return dial(ctx)
}

func (b *base) cleanup() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prepared = false
	if b.pending == nil {
		return nil
	}
	err := b.pending.Close()
	b.pending = nil
	return err
}

func (b *base) active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prepared
}

// Rexec is a cli.Executor for the rexec service. The service cannot report
// exit codes.
type Rexec struct {
	base
	creds *RexecCredentials
}

// NewRexec returns an executor authenticating with c.
func NewRexec(c *RexecCredentials) (*Rexec, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &Rexec{creds: c}, nil
}

// Transport implements cli.Executor.
func (r *Rexec) Transport() string { return "rexec" }

func (r *Rexec) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", r.creds.addr())
	if err != nil {
		return nil, fmt.Errorf("connection to rexec service failed: %w", err)
	}
	return conn, nil
}

// Prepare implements cli.Executor.
func (r *Rexec) Prepare(ctx context.Context) error {
	if err := r.prepare(ctx, r.dial); err != nil {
		return err
	}
	log.Printf("rexec session to %s prepared", r.creds.addr())
	return nil
}

// Cleanup implements cli.Executor.
func (r *Rexec) Cleanup() error { return r.cleanup() }

// Active implements cli.Executor.
func (r *Rexec) Active() bool { return r.active() }

// ExecWith implements cli.Executor. stderr arrives on a second connection
// opened by the server.
func (r *Rexec) ExecWith(ctx context.Context, p cli.Processor, command string) (out *cli.Output, err error) {
	defer func() { cli.Observe(r.Transport(), command, out, err) }()
	if command == "" {
		return nil, cli.ErrNothingToExecute
	}
	conn, err := r.take(ctx, r.dial)
	if err != nil {
		return nil, err
	}
	l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: localIP(conn)})
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer l.Close()
	req := &request{
		conn:   conn,
		stderr: l,
		fields: [][]byte{
			[]byte(r.creds.Username),
			append([]byte(nil), r.creds.password...),
			[]byte(command),
		},
	}
	return req.run(ctx, p)
}

// Rsh is a cli.Executor for the rsh service. rshd only trusts clients
// connecting from reserved ports, which requires privileges.
type Rsh struct {
	base
	creds *RshCredentials
	ports portRange
}

// NewRsh returns an executor for the accounts named by c.
func NewRsh(c *RshCredentials) (*Rsh, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &Rsh{creds: c, ports: reservedPorts}, nil
}

// Transport implements cli.Executor.
func (r *Rsh) Transport() string { return "rsh" }

func (r *Rsh) dial(ctx context.Context) (net.Conn, error) {
	conn, err := r.ports.dial(ctx, r.creds.addr())
	if err != nil {
		return nil, fmt.Errorf("connection to rsh service failed: %w", err)
	}
	return conn, nil
}

// Prepare implements cli.Executor.
func (r *Rsh) Prepare(ctx context.Context) error {
	if err := r.prepare(ctx, r.dial); err != nil {
		return err
	}
	log.Printf("rsh session to %s prepared", r.creds.addr())
	return nil
}

// Cleanup implements cli.Executor.
func (r *Rsh) Cleanup() error { return r.cleanup() }

// Active implements cli.Executor.
func (r *Rsh) Active() bool { return r.active() }

// ExecWith implements cli.Executor.
func (r *Rsh) ExecWith(ctx context.Context, p cli.Processor, command string) (out *cli.Output, err error) {
	defer func() { cli.Observe(r.Transport(), command, out, err) }()
	if command == "" {
		return nil, cli.ErrNothingToExecute
	}
	conn, err := r.take(ctx, r.dial)
	if err != nil {
		return nil, err
	}
	l, err := r.ports.listen(localIP(conn))
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer l.Close()
	req := &request{
		conn:   conn,
		stderr: l,
		fields: [][]byte{
			[]byte(r.creds.LocalUser),
			[]byte(r.creds.RemoteUser),
			[]byte(command),
		},
	}
	return req.run(ctx, p)
}
