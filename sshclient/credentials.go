package sshclient

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/signer"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Credentials authenticate a user to the SSH server. Owners call Wipe once
// the credentials are no longer needed.
type Credentials interface {
	Username() string
	AuthMethods() ([]ssh.AuthMethod, error)
	Wipe()
}

// PasswordCredentials authenticate with a password, offered both as
// "password" and "keyboard-interactive".
type PasswordCredentials struct {
	user     string
	password []byte
}

// NewPasswordCredentials copies password; the caller may wipe its own copy.
func NewPasswordCredentials(user string, password []byte) *PasswordCredentials {
	return &PasswordCredentials{
		user:     user,
		password: append([]byte(nil), password...),
	}
}

// Username implements Credentials.
func (c *PasswordCredentials) Username() string { return c.user }

// AuthMethods implements Credentials.
func (c *PasswordCredentials) AuthMethods() ([]ssh.AuthMethod, error) {
	if len(c.password) == 0 {
		return nil, errors.New("password not set")
	}
	password := func() (string, error) {
		return string(c.password), nil
	}
	challenge := func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = string(c.password)
		}
		return answers, nil
	}
	return []ssh.AuthMethod{
		ssh.PasswordCallback(password),
		ssh.KeyboardInteractive(challenge),
	}, nil
}

// Wipe implements Credentials.
func (c *PasswordCredentials) Wipe() {
	for i := range c.password {
		c.password[i] = 0
	}
	c.password = nil
}

// KeyCredentials authenticate with a private key.
type KeyCredentials struct {
	user string
	key  *signer.KeyPair
}

// NewKeyCredentials parses a DER private key of type alg.
func NewKeyCredentials(user string, alg algorithm.Asymmetric, der []byte) (*KeyCredentials, error) {
	k, err := signer.Parse(alg, der)
	if err != nil {
		return nil, fmt.Errorf("unable to load %s key: %w", alg, err)
	}
	return &KeyCredentials{user: user, key: k}, nil
}

// NewKeyPairCredentials takes ownership of k.
func NewKeyPairCredentials(user string, k *signer.KeyPair) *KeyCredentials {
	return &KeyCredentials{user: user, key: k}
}

// Username implements Credentials.
func (c *KeyCredentials) Username() string { return c.user }

// AuthMethods implements Credentials.
func (c *KeyCredentials) AuthMethods() ([]ssh.AuthMethod, error) {
	s, err := signer.NewSSHSigner(c.key)
	if err != nil {
		return nil, err
	}
	return []ssh.AuthMethod{ssh.PublicKeys(s)}, nil
}

// Wipe implements Credentials.
func (c *KeyCredentials) Wipe() {
	c.key.Wipe()
}

// AgentCredentials authenticate with the keys held by an ssh-agent.
type AgentCredentials struct {
	user  string
	agent agent.Agent
	conn  net.Conn
}

// NewAgentCredentials uses the keys of a.
func NewAgentCredentials(user string, a agent.Agent) *AgentCredentials {
	return &AgentCredentials{user: user, agent: a}
}

// DialAgent connects to the agent listening on SSH_AUTH_SOCK.
func DialAgent(user string) (*AgentCredentials, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, errors.New("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to ssh agent: %w", err)
	}
	return &AgentCredentials{user: user, agent: agent.NewClient(conn), conn: conn}, nil
}

// Username implements Credentials.
func (c *AgentCredentials) Username() string { return c.user }

// AuthMethods implements Credentials.
func (c *AgentCredentials) AuthMethods() ([]ssh.AuthMethod, error) {
	if c.agent == nil {
		return nil, errors.New("no ssh agent")
	}
	return []ssh.AuthMethod{ssh.PublicKeysCallback(c.agent.Signers)}, nil
}

// Wipe closes the agent connection.
func (c *AgentCredentials) Wipe() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.agent = nil
}
