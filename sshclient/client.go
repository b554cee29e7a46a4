// Package sshclient executes commands on a remote host over SSH, using
// locally signed public key authentication and strict host key checking.
package sshclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/cli"
	"github.com/remotecli/remotecli/hostkey"
	"github.com/remotecli/remotecli/lib"
	"github.com/stripe/krl"
	"golang.org/x/crypto/ssh"
)

// DefaultTimeout bounds the TCP connect and SSH handshake.
const DefaultTimeout = 30 * time.Second

// Client is a cli.Executor over one SSH connection.
type Client struct {
	host    *hostkey.HostID
	creds   Credentials
	prefs   *algorithm.Preferences
	revoked *krl.KRL
	timeout time.Duration

	mu   sync.Mutex
	conn *ssh.Client
}

// New returns an unconnected client. prefs may be nil for the defaults.
func New(host *hostkey.HostID, creds Credentials, prefs *algorithm.Preferences) (*Client, error) {
	if host == nil || creds == nil {
		return nil, errors.New("not all SSH parameters provided")
	}
	if err := host.Validate(); err != nil {
		return nil, err
	}
	if prefs == nil {
		prefs = algorithm.DefaultPreferences()
	}
	if _, err := sshConfig(prefs); err != nil {
		return nil, err
	}
	return &Client{
		host:    host,
		creds:   creds,
		prefs:   prefs,
		timeout: DefaultTimeout,
	}, nil
}

// SetTimeout changes the connect timeout. Zero restores the default.
func (c *Client) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	c.timeout = d
}

// SetRevocationList rejects host keys revoked by k.
func (c *Client) SetRevocationList(k *krl.KRL) {
	c.revoked = k
}

// Transport implements cli.Executor.
func (c *Client) Transport() string { return "ssh" }

func (c *Client) clientConfig() (*ssh.ClientConfig, error) {
	cfg, err := sshConfig(c.prefs)
	if err != nil {
		return nil, err
	}
	auth, err := c.creds.AuthMethods()
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		Config:            cfg,
		User:              c.creds.Username(),
		Auth:              auth,
		HostKeyCallback:   c.host.Verifier().WithRevocationList(c.revoked).Callback(),
		HostKeyAlgorithms: hostKeyAlgorithms(c.host.Hostkeys),
		Timeout:           c.timeout,
		ClientVersion:     clientVersion(),
	}, nil
}

// clientVersion is the SSH identification string. Software versions may not
// contain spaces or dashes.
func clientVersion() string {
	v := strings.Map(func(r rune) rune {
		if r == '-' || r <= ' ' || r > '~' {
			return '_'
		}
		return r
	}, lib.UserAgent())
	return "SSH-2.0-" + v
}

// Prepare connects and authenticates. It is a no-op on an active client.
func (c *Client) Prepare(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	cfg, err := c.clientConfig()
	if err != nil {
		return err
	}
	addr := c.host.Addr()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	d := net.Dialer{}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		nc.SetDeadline(deadline)
	}
	sc, chans, reqs, err := ssh.NewClientConn(nc, addr, cfg)
	if err != nil {
		nc.Close()
		return fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	nc.SetDeadline(time.Time{})
	c.conn = ssh.NewClient(sc, chans, reqs)
	log.Printf("connected to %s as %s (%s)", addr, c.creds.Username(), sc.ServerVersion())
	return nil
}

// Active implements cli.Executor.
func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Cleanup closes the connection.
func (c *Client) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	log.Printf("disconnected from %s", c.host.Addr())
	return err
}

// ExecWith runs command in a new session.
func (c *Client) ExecWith(ctx context.Context, p cli.Processor, command string) (out *cli.Output, err error) {
	defer func() { cli.Observe(c.Transport(), command, out, err) }()
	if command == "" {
		return nil, cli.ErrNothingToExecute
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, errors.New("ssh session not established")
	}
	session, err := conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("unable to open session: %w", err)
	}
	defer session.Close()
	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := session.Start(command); err != nil {
		return nil, fmt.Errorf("unable to start command: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { session.Close() })
	defer stop()

	out, err = p.Process(ctx, stdin, stdout, stderr)
	stdin.Close()
	werr := session.Wait()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var exitErr *ssh.ExitError
	var missing *ssh.ExitMissingError
	switch {
	case werr == nil:
		out.ExitCode = 0
	case errors.As(werr, &exitErr):
		out.ExitCode = exitErr.ExitStatus()
	case errors.As(werr, &missing):
		out.ExitCode = cli.ExitCodeNotSet
	default:
		return nil, werr
	}
	return out, nil
}
