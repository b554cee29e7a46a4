// Package hostkey holds the trusted host keys of remote hosts and checks
// the keys presented during an SSH handshake against them.
package hostkey

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/remotecli/remotecli/algorithm"
)

// DefaultPort is the SSH port used when a HostID does not name one.
const DefaultPort = 22

// ErrDuplicateAlgorithm is returned when a host already trusts a key of the
// same algorithm.
var ErrDuplicateAlgorithm = errors.New("host key algorithm already trusted")

// Type selects how a trusted key is represented and compared.
type Type int

// Host key representations.
const (
	Full Type = iota
	MD5
	BubbleBabble
)

var typeNames = map[Type]string{
	Full:         "full",
	MD5:          "md5",
	BubbleBabble: "bubblebabble",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType returns the Type named s. An empty name means Full.
func ParseType(s string) (Type, error) {
	if s == "" {
		return Full, nil
	}
	for t, name := range typeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown host key type %q", s)
}

// Hostkey is one trusted key of a host. For Full keys Key holds the SSH
// public key blob; for fingerprints it holds the fingerprint text.
type Hostkey struct {
	Algorithm algorithm.PublicKey
	Type      Type
	Key       []byte
}

// New returns a Hostkey holding a copy of key.
func New(alg algorithm.PublicKey, typ Type, key []byte) (*Hostkey, error) {
	if len(key) == 0 {
		return nil, errors.New("host key not specified")
	}
	if _, ok := typeNames[typ]; !ok {
		return nil, fmt.Errorf("unknown host key type %d", int(typ))
	}
	return &Hostkey{
		Algorithm: alg,
		Type:      typ,
		Key:       append([]byte(nil), key...),
	}, nil
}

// HostID names a remote host and the keys it may present.
type HostID struct {
	Hostname string
	Port     int
	Hostkeys []*Hostkey
}

// NewHostID returns a HostID on the default SSH port with no trusted keys.
func NewHostID(hostname string) *HostID {
	return &HostID{Hostname: hostname, Port: DefaultPort}
}

// Insert adds a trusted key. At most one key per algorithm is accepted.
func (h *HostID) Insert(k *Hostkey) error {
	if k == nil {
		return errors.New("host key not specified")
	}
	if _, err := algorithm.LookupPublicKey(k.Algorithm.Name()); err != nil {
		return err
	}
	for _, known := range h.Hostkeys {
		if known.Algorithm == k.Algorithm {
			return fmt.Errorf("%w: %s", ErrDuplicateAlgorithm, k.Algorithm)
		}
	}
	h.Hostkeys = append(h.Hostkeys, k)
	return nil
}

// Addr returns the host:port dial address.
func (h *HostID) Addr() string {
	port := h.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(h.Hostname, strconv.Itoa(port))
}

// Validate reports every problem that makes h unusable for a connection.
func (h *HostID) Validate() error {
	var err error
	if h.Hostname == "" {
		err = multierror.Append(err, errors.New("missing hostname"))
	}
	if h.Port < 0 || h.Port > 65535 {
		err = multierror.Append(err, fmt.Errorf("invalid port %d", h.Port))
	}
	if len(h.Hostkeys) == 0 {
		err = multierror.Append(err, fmt.Errorf("no trusted host keys for %q", h.Hostname))
	}
	for i, k := range h.Hostkeys {
		if k == nil || len(k.Key) == 0 {
			err = multierror.Append(err, fmt.Errorf("host key %d of %q is empty", i, h.Hostname))
		}
	}
	return err
}

// Verifier returns a Verifier over the trusted keys of h.
func (h *HostID) Verifier() *Verifier {
	return NewVerifier(h.Hostkeys)
}
