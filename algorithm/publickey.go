package algorithm

import (
	"fmt"
	"strings"
)

// PublicKey is an SSH public key algorithm.
type PublicKey int

// SSH public key algorithms.
const (
	SSHDSS PublicKey = iota + 1
	SSHRSA
	ECDSASHA2NistP256
	ECDSASHA2NistP384
	ECDSASHA2NistP521
)

const ecdsaPrefix = "ecdsa-sha2-"

var publicKeys = newTable(
	entry[PublicKey]{SSHDSS, "ssh-dss"},
	entry[PublicKey]{SSHRSA, "ssh-rsa"},
	entry[PublicKey]{ECDSASHA2NistP256, "ecdsa-sha2-nistp256"},
	entry[PublicKey]{ECDSASHA2NistP384, "ecdsa-sha2-nistp384"},
	entry[PublicKey]{ECDSASHA2NistP521, "ecdsa-sha2-nistp521"},
)

var publicKeyAsymmetric = map[PublicKey]Asymmetric{
	SSHDSS:            DSA,
	SSHRSA:            RSA,
	ECDSASHA2NistP256: ECDSAP256,
	ECDSASHA2NistP384: ECDSAP384,
	ECDSASHA2NistP521: ECDSAP521,
}

var asymmetricPublicKey = map[Asymmetric]PublicKey{
	DSA:       SSHDSS,
	RSA:       SSHRSA,
	ECDSAP256: ECDSASHA2NistP256,
	ECDSAP384: ECDSASHA2NistP384,
	ECDSAP521: ECDSASHA2NistP521,
}

// Name returns the SSH wire name of p.
func (p PublicKey) Name() string {
	return publicKeys.name(p)
}

func (p PublicKey) String() string {
	if n := p.Name(); n != "" {
		return n
	}
	return fmt.Sprintf("PublicKey(%d)", int(p))
}

// Asymmetric returns the protocol independent algorithm behind p.
func (p PublicKey) Asymmetric() Asymmetric {
	return publicKeyAsymmetric[p]
}

// CurveName returns the curve identifier carried in ECDSA key blobs, e.g.
// "nistp256". It is empty for non EC algorithms.
func (p PublicKey) CurveName() string {
	if !p.Asymmetric().IsEC() {
		return ""
	}
	return strings.TrimPrefix(p.Name(), ecdsaPrefix)
}

// LookupPublicKey returns the SSH public key algorithm with the given wire
// name.
func LookupPublicKey(name string) (PublicKey, error) {
	return publicKeys.lookup("public key algorithm", name)
}

// PublicKeyFor returns the SSH public key algorithm for a.
func PublicKeyFor(a Asymmetric) (PublicKey, error) {
	p, ok := asymmetricPublicKey[a]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, a)
	}
	return p, nil
}

// PublicKeys returns all SSH public key algorithms in preference order.
func PublicKeys() []PublicKey {
	return append([]PublicKey(nil), publicKeys.order...)
}
