// Package algorithm holds the algorithm families used across the module and
// the lookup tables between their names and variants.
package algorithm

import (
	"crypto"
	"errors"
	"fmt"
	"strings"

	// Register the digests returned by Digest.Hash.
	_ "crypto/md5"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// ErrUnsupportedAlgorithm is returned when a name or variant has no entry in
// the lookup tables.
var ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

// table maps the variants of one family to their names and back.
type table[T comparable] struct {
	order  []T
	names  map[T]string
	byName map[string]T
}

func newTable[T comparable](entries ...entry[T]) *table[T] {
	t := &table[T]{
		names:  make(map[T]string, len(entries)),
		byName: make(map[string]T, len(entries)),
	}
	for _, e := range entries {
		t.order = append(t.order, e.v)
		t.names[e.v] = e.name
		t.byName[strings.ToLower(e.name)] = e.v
	}
	return t
}

type entry[T comparable] struct {
	v    T
	name string
}

func (t *table[T]) name(v T) string {
	return t.names[v]
}

func (t *table[T]) lookup(family, name string) (T, error) {
	v, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s %q", ErrUnsupportedAlgorithm, family, name)
	}
	return v, nil
}

// Asymmetric is a public key algorithm independent of any protocol.
type Asymmetric int

// Supported asymmetric algorithms.
const (
	DSA Asymmetric = iota + 1
	RSA
	ECDSAP256
	ECDSAP384
	ECDSAP521
)

var asymmetric = newTable(
	entry[Asymmetric]{DSA, "DSA"},
	entry[Asymmetric]{RSA, "RSA"},
	entry[Asymmetric]{ECDSAP256, "ECDSA-P256"},
	entry[Asymmetric]{ECDSAP384, "ECDSA-P384"},
	entry[Asymmetric]{ECDSAP521, "ECDSA-P521"},
)

func (a Asymmetric) String() string {
	if n := asymmetric.name(a); n != "" {
		return n
	}
	return fmt.Sprintf("Asymmetric(%d)", int(a))
}

// IsEC reports whether a is one of the ECDSA variants.
func (a Asymmetric) IsEC() bool {
	return a == ECDSAP256 || a == ECDSAP384 || a == ECDSAP521
}

// Valid reports whether a is a known variant.
func (a Asymmetric) Valid() bool {
	_, ok := asymmetric.names[a]
	return ok
}

// Digest returns the digest used when signing with a: SHA-1 for RSA and DSA,
// and the curve sized SHA-2 for ECDSA.
func (a Asymmetric) Digest() Digest {
	switch a {
	case RSA, DSA:
		return SHA1
	case ECDSAP256:
		return SHA256
	case ECDSAP384:
		return SHA384
	case ECDSAP521:
		return SHA512
	}
	return 0
}

// ParseAsymmetric looks up an asymmetric algorithm by name, ignoring case.
func ParseAsymmetric(name string) (Asymmetric, error) {
	return asymmetric.lookup("key type", name)
}

// Asymmetrics returns all supported asymmetric algorithms.
func Asymmetrics() []Asymmetric {
	return append([]Asymmetric(nil), asymmetric.order...)
}

// Digest is a message digest algorithm.
type Digest int

// Supported digests.
const (
	MD5 Digest = iota + 1
	SHA1
	SHA256
	SHA384
	SHA512
)

var digests = newTable(
	entry[Digest]{MD5, "MD5"},
	entry[Digest]{SHA1, "SHA1"},
	entry[Digest]{SHA256, "SHA256"},
	entry[Digest]{SHA384, "SHA384"},
	entry[Digest]{SHA512, "SHA512"},
)

var digestHashes = map[Digest]crypto.Hash{
	MD5:    crypto.MD5,
	SHA1:   crypto.SHA1,
	SHA256: crypto.SHA256,
	SHA384: crypto.SHA384,
	SHA512: crypto.SHA512,
}

func (d Digest) String() string {
	if n := digests.name(d); n != "" {
		return n
	}
	return fmt.Sprintf("Digest(%d)", int(d))
}

// Hash returns the crypto.Hash implementing d, or 0 for an unknown digest.
func (d Digest) Hash() crypto.Hash {
	return digestHashes[d]
}

// Sum hashes msg with d.
func (d Digest) Sum(msg []byte) ([]byte, error) {
	h := d.Hash()
	if h == 0 || !h.Available() {
		return nil, fmt.Errorf("%w: digest %s", ErrUnsupportedAlgorithm, d)
	}
	w := h.New()
	w.Write(msg)
	return w.Sum(nil), nil
}

// ParseDigest looks up a digest by name, ignoring case.
func ParseDigest(name string) (Digest, error) {
	return digests.lookup("digest", name)
}
