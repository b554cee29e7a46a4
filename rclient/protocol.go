// Package rclient executes commands with the BSD rexec and rsh protocols.
package rclient

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/remotecli/remotecli/cli"
)

// acceptTimeout bounds the wait for the server to open the stderr
// connection.
const acceptTimeout = 30 * time.Second

// request is one BSD remote command exchange: the stderr port followed by
// NUL terminated fields on conn, then a status byte from the server.
type request struct {
	conn   net.Conn
	stderr net.Listener
	fields [][]byte
}

func (r *request) run(ctx context.Context, p cli.Processor) (*cli.Output, error) {
	var errConn net.Conn
	defer func() {
		r.conn.Close()
		if errConn != nil {
			errConn.Close()
		}
	}()
	stop := context.AfterFunc(ctx, func() { r.conn.Close() })
	defer stop()

	var buf bytes.Buffer
	if r.stderr != nil {
		buf.WriteString(strconv.Itoa(r.stderr.Addr().(*net.TCPAddr).Port))
	}
	buf.WriteByte(0)
	for _, f := range r.fields {
		buf.Write(f)
		buf.WriteByte(0)
	}
	_, err := r.conn.Write(buf.Bytes())
	wipe(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("unable to send command: %w", err)
	}

	if r.stderr != nil {
		if errConn, err = accept(ctx, r.stderr); err != nil {
			return nil, fmt.Errorf("server did not open the stderr connection: %w", err)
		}
		c := errConn
		stopErr := context.AfterFunc(ctx, func() { c.Close() })
		defer stopErr()
	}

	br := bufio.NewReader(r.conn)
	status, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("no response from server: %w", err)
	}
	if status != 0 {
		msg, _ := br.ReadString('\n')
		return nil, fmt.Errorf("command rejected: %s", strings.TrimSpace(msg))
	}

	var stderr io.Reader = strings.NewReader("")
	if errConn != nil {
		stderr = errConn
	}
	out, err := p.Process(ctx, r.conn, br, stderr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	out.ExitCode = cli.ExitCodeNotSet
	return out, nil
}

func accept(ctx context.Context, l net.Listener) (net.Conn, error) {
	deadline := time.Now().Add(acceptTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if tl, ok := l.(*net.TCPListener); ok {
		tl.SetDeadline(deadline)
	}
	return l.Accept()
}

// portRange is an inclusive range of local ports tried from high to low.
// The zero value means any ephemeral port.
type portRange struct {
	min, max int
}

// reservedPorts are the privileged ports rshd expects its clients to use.
var reservedPorts = portRange{min: 512, max: 1023}

var errNoReservedPort = errors.New("no reserved port available")

func (r portRange) any() bool { return r.max == 0 }

func (r portRange) dial(ctx context.Context, addr string) (net.Conn, error) {
	if r.any() {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
	var lastErr error = errNoReservedPort
	for port := r.max; port >= r.min; port-- {
		d := net.Dialer{LocalAddr: &net.TCPAddr{Port: port}}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isAddrInUse(err) {
			break
		}
	}
	return nil, lastErr
}

func (r portRange) listen(ip net.IP) (net.Listener, error) {
	if r.any() {
		return net.ListenTCP("tcp", &net.TCPAddr{IP: ip})
	}
	var lastErr error = errNoReservedPort
	for port := r.max; port >= r.min; port-- {
		l, err := net.ListenTCP("tcp", &net.TCPAddr{IP: ip, Port: port})
		if err == nil {
			return l, nil
		}
		lastErr = err
		if !isAddrInUse(err) {
			break
		}
	}
	return nil, lastErr
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

func localIP(conn net.Conn) net.IP {
	if a, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		return a.IP
	}
	return nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
