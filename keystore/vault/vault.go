// Package vault reads secrets from HashiCorp Vault.
package vault

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/vault/api"
	"github.com/remotecli/remotecli/lib"
)

// Prefix marks configuration values that name a Vault secret.
const Prefix = "/vault/"

// IsPath reports whether value names a Vault secret.
func IsPath(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// NewClient returns a new vault client.
func NewClient(address, token string) (*Client, error) {
	config := &api.Config{
		Address: address,
	}
	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)
	client.AddHeader("User-Agent", lib.UserAgent())
	return &Client{
		vault: client,
	}, nil
}

// parseName splits /vault/<path>/<key> into the secret path and the key
// inside it.
func parseName(name string) (path, key string) {
	name = strings.TrimPrefix(name, Prefix)
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// Client is a simple client for vault.
type Client struct {
	vault *api.Client
}

// Read returns the key of the form `/vault/secret/path/key`. Secrets of a
// version 2 KV engine are looked up under their "data" member.
func (c *Client) Read(name string) (string, error) {
	p, k := parseName(name)
	if k == "" {
		return "", fmt.Errorf("no key in vault path %s", name)
	}
	secret, err := c.vault.Logical().Read(p)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", p, err)
	}
	if secret == nil {
		return "", fmt.Errorf("no such secret %s", p)
	}
	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		if _, direct := data[k]; !direct {
			data = nested
		}
	}
	v, ok := data[k]
	if !ok {
		return "", fmt.Errorf("no such key %s", k)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("key %s of %s is not a string", k, p)
	}
	return s, nil
}

// Resolve replaces every value that names a Vault secret with the secret.
// Values that cannot be read are left untouched and reported together.
func (c *Client) Resolve(values ...*string) error {
	var errs *multierror.Error
	for _, v := range values {
		if v == nil || !IsPath(*v) {
			continue
		}
		s, err := c.Read(*v)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		*v = s
	}
	return errs.ErrorOrNil()
}
