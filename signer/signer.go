package signer

import (
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"

	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/lib/sshwire"
	"github.com/remotecli/remotecli/metrics"
	"github.com/remotecli/remotecli/sigformat"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	// ErrSigningFailed wraps any failure of the underlying signature
	// primitive or of the signature conversion.
	ErrSigningFailed = errors.New("signing failed")
	// ErrKeyNotReady is returned by Sign before a key has been passed.
	ErrKeyNotReady = errors.New("no key assigned")
)

// State is the position of a Signer in its lifecycle.
type State int

// Signer states.
const (
	Uninitialized State = iota
	KeysAssigned
	SignatureReady
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case KeysAssigned:
		return "keys-assigned"
	case SignatureReady:
		return "signature-ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Signer produces SSH signature blobs with one key. It is not safe for
// concurrent use.
type Signer struct {
	key     *KeyPair
	state   State
	format  string
	payload []byte
	rand    io.Reader
}

// New returns an uninitialized Signer.
func New() *Signer {
	return &Signer{rand: rand.Reader}
}

// State returns the current state.
func (s *Signer) State() State {
	return s.state
}

// PassKey assigns the signing key and discards any previous signature.
func (s *Signer) PassKey(k *KeyPair) error {
	if k == nil || k.privateKey() == nil {
		return fmt.Errorf("%w: nil key", ErrInvalidKey)
	}
	s.reset()
	s.key = k
	s.state = KeysAssigned
	return nil
}

func (s *Signer) reset() {
	wipeBytes(s.payload)
	s.payload = nil
	s.format = ""
}

// Sign signs msg with the digest implied by the key type. On failure the
// signer stays in KeysAssigned and may be retried.
func (s *Signer) Sign(msg []byte) error {
	if s.state == Uninitialized {
		return ErrKeyNotReady
	}
	s.reset()
	s.state = KeysAssigned
	format, payload, err := s.sign(msg)
	metrics.M.Signatures.WithLabelValues(s.key.alg.String(), metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSigningFailed, s.key.alg, err)
	}
	s.format, s.payload = format, payload
	s.state = SignatureReady
	return nil
}

func (s *Signer) sign(msg []byte) (string, []byte, error) {
	pk, err := algorithm.PublicKeyFor(s.key.alg)
	if err != nil {
		return "", nil, err
	}
	digest, err := s.key.alg.Digest().Sum(msg)
	if err != nil {
		return "", nil, err
	}
	var payload []byte
	switch priv := s.key.privateKey().(type) {
	case *rsa.PrivateKey:
		payload, err = rsa.SignPKCS1v15(s.rand, priv, s.key.alg.Digest().Hash(), digest)
	case *dsa.PrivateKey:
		payload, err = signDSA(s.rand, priv, digest)
	case *ecdsa.PrivateKey:
		payload, err = signECDSA(s.rand, priv, digest)
	default:
		err = fmt.Errorf("%w: key has been wiped", ErrInvalidKey)
	}
	if err != nil {
		return "", nil, err
	}
	return pk.Name(), payload, nil
}

func signDSA(rand io.Reader, priv *dsa.PrivateKey, digest []byte) ([]byte, error) {
	r, s, err := dsa.Sign(rand, priv, digest)
	if err != nil {
		return nil, err
	}
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	sig, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	a := sigformat.NewDSA(sig)
	if err := a.Convert(); err != nil {
		return nil, err
	}
	return a.Signature(), nil
}

func signECDSA(rand io.Reader, priv *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	sig, err := ecdsa.SignASN1(rand, priv, digest)
	if err != nil {
		return nil, err
	}
	a := sigformat.NewECDSA(sig)
	if err := a.Convert(); err != nil {
		return nil, err
	}
	f := sshwire.NewFormatter(a.R(), a.S())
	defer f.Wipe()
	return f.Format(), nil
}

// Format returns the signature algorithm name, or "" unless a signature is
// ready.
func (s *Signer) Format() string {
	if s.state != SignatureReady {
		return ""
	}
	return s.format
}

// Payload returns the algorithm specific signature: the PKCS#1 v1.5
// signature for RSA, 40 bytes r||s for DSA, or the [r, s] mpint pair for
// ECDSA. It is nil unless a signature is ready.
func (s *Signer) Payload() []byte {
	if s.state != SignatureReady {
		return nil
	}
	return s.payload
}

// Signature returns the complete SSH signature blob [name, payload], or nil
// unless a signature is ready.
func (s *Signer) Signature() []byte {
	if s.state != SignatureReady {
		return nil
	}
	f := sshwire.NewFormatter().AddString(s.format).Add(s.payload)
	defer f.Wipe()
	return f.Format()
}
