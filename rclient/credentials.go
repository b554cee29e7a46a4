package rclient

import (
	"errors"
	"net"
	"strconv"
)

// Default service ports.
const (
	DefaultRexecPort = 512
	DefaultRshPort   = 514
)

// RexecCredentials name the remote account of a rexec session. The password
// travels in clear text.
type RexecCredentials struct {
	Hostname string
	Port     int
	Username string
	password []byte
}

// NewRexecCredentials copies password and uses the default rexec port.
func NewRexecCredentials(hostname, username string, password []byte) *RexecCredentials {
	return &RexecCredentials{
		Hostname: hostname,
		Port:     DefaultRexecPort,
		Username: username,
		password: append([]byte(nil), password...),
	}
}

func (c *RexecCredentials) validate() error {
	switch {
	case c == nil:
		return errors.New("credentials not provided")
	case c.Hostname == "":
		return errors.New("invalid host name")
	case c.Username == "":
		return errors.New("invalid username")
	}
	return nil
}

func (c *RexecCredentials) addr() string {
	return hostPort(c.Hostname, c.Port, DefaultRexecPort)
}

// Wipe zeroes the password.
func (c *RexecCredentials) Wipe() {
	for i := range c.password {
		c.password[i] = 0
	}
	c.password = nil
}

// RshCredentials name the remote and local accounts of an rsh session. The
// remote host trusts the local user through its .rhosts or hosts.equiv.
type RshCredentials struct {
	Hostname   string
	Port       int
	RemoteUser string
	LocalUser  string
}

// NewRshCredentials uses the default rsh port. An empty localUser means the
// same name as remoteUser.
func NewRshCredentials(hostname, remoteUser, localUser string) *RshCredentials {
	if localUser == "" {
		localUser = remoteUser
	}
	return &RshCredentials{
		Hostname:   hostname,
		Port:       DefaultRshPort,
		RemoteUser: remoteUser,
		LocalUser:  localUser,
	}
}

func (c *RshCredentials) validate() error {
	switch {
	case c == nil:
		return errors.New("credentials not provided")
	case c.Hostname == "":
		return errors.New("invalid host name")
	case c.RemoteUser == "":
		return errors.New("invalid remote username")
	case c.LocalUser == "":
		return errors.New("invalid local username")
	}
	return nil
}

func (c *RshCredentials) addr() string {
	return hostPort(c.Hostname, c.Port, DefaultRshPort)
}

// Wipe clears the account names; rsh carries no secret.
func (c *RshCredentials) Wipe() {
	c.RemoteUser, c.LocalUser = "", ""
}

func hostPort(host string, port, def int) string {
	if port == 0 {
		port = def
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
