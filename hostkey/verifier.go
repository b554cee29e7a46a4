package hostkey

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/remotecli/remotecli/lib/fingerprint"
	"github.com/remotecli/remotecli/metrics"
	"github.com/stripe/krl"
	"golang.org/x/crypto/ssh"
)

var (
	// ErrMismatch is returned by the host key callback when the presented
	// key matches none of the trusted keys.
	ErrMismatch = errors.New("host key mismatch")
	// ErrRevoked is returned by the host key callback for revoked keys.
	ErrRevoked = errors.New("host key revoked")
)

// Verifier compares presented host keys with a list of trusted keys.
type Verifier struct {
	keys    []*Hostkey
	revoked *krl.KRL
}

// NewVerifier returns a Verifier trusting keys.
func NewVerifier(keys []*Hostkey) *Verifier {
	return &Verifier{keys: keys}
}

// WithRevocationList makes v reject every key revoked by k.
func (v *Verifier) WithRevocationList(k *krl.KRL) *Verifier {
	v.revoked = k
	return v
}

// Verify reports whether the public key blob key, offered with algorithm
// alg, matches a trusted key. An empty alg matches trusted keys of any
// algorithm.
func (v *Verifier) Verify(alg string, key []byte) bool {
	ok, _ := v.verify(alg, key)
	return ok
}

func (v *Verifier) verify(alg string, key []byte) (bool, error) {
	if len(key) == 0 || len(v.keys) == 0 {
		metrics.M.HostKeyChecks.WithLabelValues("rejected").Inc()
		return false, ErrMismatch
	}
	if v.revoked != nil && v.isRevoked(key) {
		metrics.M.HostKeyChecks.WithLabelValues("revoked").Inc()
		return false, ErrRevoked
	}
	var md5hash, bbhash string
	for _, k := range v.keys {
		if k == nil || len(k.Key) == 0 {
			continue
		}
		if alg != "" && alg != k.Algorithm.Name() {
			continue
		}
		var match bool
		switch k.Type {
		case Full:
			match = len(k.Key) == len(key) && subtle.ConstantTimeCompare(k.Key, key) == 1
		case MD5:
			if md5hash == "" {
				md5hash = fingerprint.MD5(key)
			}
			match = strings.EqualFold(md5hash, string(k.Key))
		case BubbleBabble:
			if bbhash == "" {
				bbhash = fingerprint.SHA1BubbleBabble(key)
			}
			match = bbhash == string(k.Key)
		}
		if match {
			metrics.M.HostKeyChecks.WithLabelValues("accepted").Inc()
			return true, nil
		}
	}
	metrics.M.HostKeyChecks.WithLabelValues("rejected").Inc()
	return false, ErrMismatch
}

// An unparseable key cannot be checked against the list and is treated as
// revoked.
func (v *Verifier) isRevoked(key []byte) bool {
	pub, err := ssh.ParsePublicKey(key)
	if err != nil {
		return true
	}
	return v.revoked.IsRevoked(pub)
}

// Callback returns an ssh.HostKeyCallback backed by v.
func (v *Verifier) Callback() ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		blob := key.Marshal()
		ok, err := v.verify(key.Type(), blob)
		if ok {
			return nil
		}
		log.Printf("host key for %s (%s) rejected: %s md5 %s", hostname, remote, key.Type(), fingerprint.MD5(blob))
		return fmt.Errorf("%w: %s %s", err, hostname, key.Type())
	}
}
