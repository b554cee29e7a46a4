package client

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/go-homedir"
	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/keystore"
	"github.com/remotecli/remotecli/keystore/vault"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Transports understood by NewExecutor.
const (
	TransportSSH   = "ssh"
	TransportRexec = "rexec"
	TransportRsh   = "rsh"
	TransportLocal = "local"
)

// Config holds the client configuration.
type Config struct {
	Transport      string        `mapstructure:"transport"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	LocalUser      string        `mapstructure:"local_user"`
	Password       string        `mapstructure:"password"`
	KeyFile        string        `mapstructure:"key_file"`
	KeyType        string        `mapstructure:"key_type"`
	Agent          bool          `mapstructure:"agent"`
	KnownHosts     string        `mapstructure:"known_hosts"`
	RevokedKeys    string        `mapstructure:"revoked_keys"`
	Kex            []string      `mapstructure:"kex"`
	Ciphers        []string      `mapstructure:"ciphers"`
	MACs           []string      `mapstructure:"macs"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MetricsAddress string        `mapstructure:"metrics_address"`
	VaultAddress   string        `mapstructure:"vault_address"`
	VaultToken     string        `mapstructure:"vault_token"`
	AWSRegion      string        `mapstructure:"aws_region"`
	AWSAccessKey   string        `mapstructure:"aws_access_key"`
	AWSSecretKey   string        `mapstructure:"aws_secret_key"`
}

// Vault returns the Vault section for keystore registration.
func (c *Config) Vault() keystore.Vault {
	return keystore.Vault{Address: c.VaultAddress, Token: c.VaultToken}
}

// AWS returns the AWS section for keystore registration.
func (c *Config) AWS() keystore.AWS {
	return keystore.AWS{Region: c.AWSRegion, AccessKey: c.AWSAccessKey, SecretKey: c.AWSSecretKey}
}

// Preferences returns the SSH algorithm preferences named by the configuration.
func (c *Config) Preferences() (*algorithm.Preferences, error) {
	return algorithm.ParsePreferences(c.Kex, c.Ciphers, c.MACs)
}

var boundFlags = []string{
	"transport", "host", "port", "user", "local_user", "key_file", "key_type", "agent",
	"known_hosts", "revoked_keys", "kex", "ciphers", "macs", "timeout", "metrics_address",
}

func setDefaults(v *viper.Viper, flags *pflag.FlagSet) {
	v.SetDefault("transport", TransportSSH)
	v.SetDefault("timeout", "30s")
	if flags == nil {
		return
	}
	for _, name := range boundFlags {
		if f := flags.Lookup(name); f != nil {
			v.BindPFlag(name, f)
		}
	}
}

func setFromEnvironment(c *Config) {
	if os.Getenv("REMOTECLI_USER") != "" {
		c.User = os.Getenv("REMOTECLI_USER")
	}
	if os.Getenv("REMOTECLI_PASSWORD") != "" {
		c.Password = os.Getenv("REMOTECLI_PASSWORD")
	}
	port, err := strconv.Atoi(os.Getenv("REMOTECLI_PORT"))
	if err == nil {
		c.Port = port
	}
}

func setFromVault(c *Config) error {
	if c.VaultAddress == "" || c.VaultToken == "" {
		return nil
	}
	v, err := vault.NewClient(c.VaultAddress, c.VaultToken)
	if err != nil {
		return fmt.Errorf("vault error: %w", err)
	}
	return v.Resolve(&c.Password, &c.AWSAccessKey, &c.AWSSecretKey)
}

func expandPaths(c *Config) error {
	var errs *multierror.Error
	for _, p := range []*string{&c.KeyFile, &c.KnownHosts, &c.RevokedKeys} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		*p = expanded
	}
	return errs.ErrorOrNil()
}

func verifyConfig(c *Config) error {
	var err error
	remote := c.Transport != TransportLocal
	switch c.Transport {
	case TransportSSH, TransportRexec, TransportRsh, TransportLocal:
	default:
		err = multierror.Append(err, fmt.Errorf("unknown transport %q", c.Transport))
	}
	if remote && c.Host == "" {
		err = multierror.Append(err, errors.New("missing host"))
	}
	if remote && c.User == "" {
		err = multierror.Append(err, errors.New("missing user"))
	}
	if c.Port < 0 || c.Port > 65535 {
		err = multierror.Append(err, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.KeyType != "" {
		if _, e := algorithm.ParseAsymmetric(c.KeyType); e != nil {
			err = multierror.Append(err, e)
		}
	}
	switch c.Transport {
	case TransportSSH:
		if c.Password == "" && c.KeyFile == "" && !c.Agent {
			err = multierror.Append(err, errors.New("ssh needs a password, a key_file or the agent"))
		}
		if c.KnownHosts == "" {
			err = multierror.Append(err, errors.New("ssh needs a known_hosts trust store"))
		}
		if _, e := c.Preferences(); e != nil {
			err = multierror.Append(err, e)
		}
	case TransportRexec:
		if c.Password == "" {
			err = multierror.Append(err, errors.New("rexec needs a password"))
		}
	}
	return err
}

// LoadConfig reads the client configuration from an HCL file into a Config
// struct without checking that it is complete. Flags that are set override
// the file. An empty path reads flags and defaults only.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, flags)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("hcl")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config from file %s: %w", path, err)
		}
	}
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := setFromVault(c); err != nil {
		return nil, err
	}
	setFromEnvironment(c)
	if err := expandPaths(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadConfig loads the configuration and verifies that it names everything
// its transport needs.
func ReadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	c, err := LoadConfig(path, flags)
	if err != nil {
		return nil, err
	}
	if err := verifyConfig(c); err != nil {
		return nil, fmt.Errorf("unable to verify config: %w", err)
	}
	return c, nil
}
