package client

import (
	"errors"
	"fmt"
	"log"

	"github.com/hashicorp/go-multierror"
	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/cli"
	"github.com/remotecli/remotecli/hostkey"
	"github.com/remotecli/remotecli/rclient"
	"github.com/remotecli/remotecli/signer"
	"github.com/remotecli/remotecli/sshclient"
	"go4.org/wkfs"
)

// wiper is implemented by every credential type.
type wiper interface {
	Wipe()
}

// executor wipes the credentials it was built with on Cleanup. It cannot be
// prepared again afterwards.
type executor struct {
	cli.Executor
	creds wiper
}

func (e *executor) Cleanup() error {
	var errs *multierror.Error
	if err := e.Executor.Cleanup(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if e.creds != nil {
		e.creds.Wipe()
		e.creds = nil
	}
	return errs.ErrorOrNil()
}

// NewExecutor builds the executor for the transport named in c. Key files,
// trust stores and revocation lists are read through wkfs, so /vault/ and
// /s3/ paths work once the keystore is registered.
func NewExecutor(c *Config) (cli.Executor, error) {
	switch c.Transport {
	case TransportLocal:
		return cli.NewLocal(), nil
	case TransportRexec:
		creds := rclient.NewRexecCredentials(c.Host, c.User, []byte(c.Password))
		if c.Port != 0 {
			creds.Port = c.Port
		}
		r, err := rclient.NewRexec(creds)
		if err != nil {
			creds.Wipe()
			return nil, err
		}
		return &executor{Executor: r, creds: creds}, nil
	case TransportRsh:
		creds := rclient.NewRshCredentials(c.Host, c.User, c.LocalUser)
		if c.Port != 0 {
			creds.Port = c.Port
		}
		r, err := rclient.NewRsh(creds)
		if err != nil {
			return nil, err
		}
		return &executor{Executor: r, creds: creds}, nil
	case TransportSSH:
		return newSSH(c)
	}
	return nil, fmt.Errorf("unknown transport %q", c.Transport)
}

func newSSH(c *Config) (cli.Executor, error) {
	host, err := lookupHost(c)
	if err != nil {
		return nil, err
	}
	prefs, err := c.Preferences()
	if err != nil {
		return nil, err
	}
	creds, err := credentials(c)
	if err != nil {
		return nil, err
	}
	s, err := sshclient.New(host, creds, prefs)
	if err != nil {
		creds.Wipe()
		return nil, err
	}
	s.SetTimeout(c.Timeout)
	if c.RevokedKeys != "" {
		k, err := hostkey.ReadRevocationList(c.RevokedKeys)
		if err != nil {
			creds.Wipe()
			return nil, err
		}
		s.SetRevocationList(k)
	}
	return &executor{Executor: s, creds: creds}, nil
}

func lookupHost(c *Config) (*hostkey.HostID, error) {
	ts, err := hostkey.ReadTrustStore(c.KnownHosts)
	if err != nil {
		return nil, err
	}
	host, ok := ts.Lookup(c.Host, c.Port)
	if !ok {
		return nil, fmt.Errorf("host %s is not in trust store %s", c.Host, c.KnownHosts)
	}
	return host, nil
}

func credentials(c *Config) (sshclient.Credentials, error) {
	switch {
	case c.KeyFile != "":
		k, err := LoadKey(c)
		if err != nil {
			return nil, err
		}
		return sshclient.NewKeyPairCredentials(c.User, k), nil
	case c.Agent:
		return sshclient.DialAgent(c.User)
	}
	return sshclient.NewPasswordCredentials(c.User, []byte(c.Password)), nil
}

// LoadKey reads the configured private key: PEM, or raw DER when a key type
// is configured.
func LoadKey(c *Config) (*signer.KeyPair, error) {
	if c.KeyFile == "" {
		return nil, errors.New("no key_file configured")
	}
	if c.KeyType == "" {
		return signer.LoadFile(c.KeyFile)
	}
	alg, err := algorithm.ParseAsymmetric(c.KeyType)
	if err != nil {
		return nil, err
	}
	der, err := wkfs.ReadFile(c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key %s: %w", c.KeyFile, err)
	}
	defer func() {
		for i := range der {
			der[i] = 0
		}
	}()
	k, err := signer.Parse(alg, der)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded %s key from %s", alg, c.KeyFile)
	return k, nil
}
