package hostkey

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl"
	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/lib/fingerprint"
	"github.com/stripe/krl"
	"go4.org/wkfs"
	"golang.org/x/crypto/ssh"
)

type trustFile struct {
	Hosts []hostConfig `hcl:"host"`
}

type hostConfig struct {
	Name     string      `hcl:"name"`
	Port     int         `hcl:"port"`
	Hostkeys []keyConfig `hcl:"hostkey"`
}

type keyConfig struct {
	Algorithm string `hcl:"algorithm"`
	Type      string `hcl:"type"`
	Key       string `hcl:"key"`
}

// TrustStore is the set of hosts with known keys.
type TrustStore struct {
	hosts []*HostID
}

// Hosts returns the hosts in file order.
func (t *TrustStore) Hosts() []*HostID {
	return t.hosts
}

// Lookup returns the entry for hostname and port. A port of 0 means
// DefaultPort.
func (t *TrustStore) Lookup(hostname string, port int) (*HostID, bool) {
	if port == 0 {
		port = DefaultPort
	}
	for _, h := range t.hosts {
		if strings.EqualFold(h.Hostname, hostname) && h.Port == port {
			return h, true
		}
	}
	return nil, false
}

// ParseTrustStore decodes an HCL trust store:
//
//	host {
//		name = "build.example.com"
//		port = 22
//		hostkey {
//			algorithm = "ssh-rsa"
//			type = "md5"
//			key = "d4:1d:8c:..."
//		}
//	}
//
// Full keys are given as a base64 blob or an authorized_keys line, in which
// case the algorithm may be omitted.
func ParseTrustStore(data []byte) (*TrustStore, error) {
	f := &trustFile{}
	if err := hcl.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("error parsing trust store: %w", err)
	}
	t := &TrustStore{}
	var errs *multierror.Error
	for _, hc := range f.Hosts {
		h := NewHostID(hc.Name)
		if hc.Port != 0 {
			h.Port = hc.Port
		}
		for _, kc := range hc.Hostkeys {
			k, err := kc.hostkey()
			if err == nil {
				err = h.Insert(k)
			}
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("host %q: %w", hc.Name, err))
			}
		}
		if err := h.Validate(); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if _, dup := t.Lookup(h.Hostname, h.Port); dup {
			errs = multierror.Append(errs, fmt.Errorf("host %s listed twice", h.Addr()))
			continue
		}
		t.hosts = append(t.hosts, h)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return t, nil
}

func (kc keyConfig) hostkey() (*Hostkey, error) {
	typ, err := ParseType(kc.Type)
	if err != nil {
		return nil, err
	}
	var (
		alg algorithm.PublicKey
		key []byte
	)
	if kc.Algorithm != "" {
		if alg, err = algorithm.LookupPublicKey(kc.Algorithm); err != nil {
			return nil, err
		}
	}
	switch typ {
	case Full:
		var pub ssh.PublicKey
		if strings.ContainsRune(strings.TrimSpace(kc.Key), ' ') {
			pub, _, _, _, err = ssh.ParseAuthorizedKey([]byte(kc.Key))
		} else {
			var blob []byte
			if blob, err = base64.StdEncoding.DecodeString(kc.Key); err == nil {
				pub, err = ssh.ParsePublicKey(blob)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("unable to parse host key: %w", err)
		}
		found, err := algorithm.LookupPublicKey(pub.Type())
		if err != nil {
			return nil, err
		}
		if alg != 0 && alg != found {
			return nil, fmt.Errorf("host key is %s, configured as %s", found, alg)
		}
		alg, key = found, pub.Marshal()
	case MD5:
		fp := strings.TrimPrefix(kc.Key, "MD5:")
		if !fingerprint.ValidHex(fp) {
			return nil, fmt.Errorf("%w: md5 fingerprint %q", fingerprint.ErrInvalidEncoding, kc.Key)
		}
		key = []byte(fp)
	case BubbleBabble:
		if _, err := fingerprint.ParseBubbleBabble(kc.Key); err != nil {
			return nil, err
		}
		key = []byte(kc.Key)
	}
	if alg == 0 {
		return nil, fmt.Errorf("algorithm required for %s host key", typ)
	}
	return New(alg, typ, key)
}

// ReadTrustStore reads a trust store from a local or well-known filesystem
// path.
func ReadTrustStore(path string) (*TrustStore, error) {
	data, err := wkfs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read trust store %s: %w", path, err)
	}
	return ParseTrustStore(data)
}

// ReadRevocationList reads an OpenSSH key revocation list.
func ReadRevocationList(path string) (*krl.KRL, error) {
	data, err := wkfs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read revocation list %s: %w", path, err)
	}
	k, err := krl.ParseKRL(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse revocation list %s: %w", path, err)
	}
	return k, nil
}
