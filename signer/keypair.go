// Package signer turns decoded private key parameters into SSH public key
// blobs and SSH signatures.
package signer

import (
	"crypto"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/lib/ecutil"
	"github.com/remotecli/remotecli/privkey"
)

// ErrInvalidKey is returned for key parameters that cannot form a usable key.
var ErrInvalidKey = errors.New("invalid key material")

// KeyPair is a private key built from raw big-endian parameters. Its private
// parts must be released with Wipe.
type KeyPair struct {
	alg   algorithm.Asymmetric
	rsa   *rsa.PrivateKey
	dsa   *dsa.PrivateKey
	ecdsa *ecdsa.PrivateKey
}

func toInt(name string, b []byte) (*big.Int, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidKey, name)
	}
	return new(big.Int).SetBytes(b), nil
}

// NewRSA builds an RSA key from its modulus and exponents.
func NewRSA(n, e, d []byte) (*KeyPair, error) {
	N, err := toInt("modulus", n)
	if err != nil {
		return nil, err
	}
	E, err := toInt("public exponent", e)
	if err != nil {
		return nil, err
	}
	D, err := toInt("private exponent", d)
	if err != nil {
		return nil, err
	}
	if !E.IsInt64() || E.Int64() < 3 || E.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("%w: public exponent out of range", ErrInvalidKey)
	}
	priv := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: N, E: int(E.Int64())},
		D:         D,
	}
	if primes := recoverPrimes(N, E, D); primes != nil {
		priv.Primes = primes
		if priv.Validate() != nil {
			priv.Primes = nil
		} else {
			priv.Precompute()
		}
	}
	return &KeyPair{alg: algorithm.RSA, rsa: priv}, nil
}

// recoverPrimes factors a two prime modulus from its exponents, so that
// the key carries the CRT values ssh-agent requires. It returns nil when d
// does not match (n, e).
func recoverPrimes(n, e, d *big.Int) []*big.Int {
	one := big.NewInt(1)
	if n.Cmp(big.NewInt(3)) < 0 || n.Bit(0) == 0 {
		return nil
	}
	k := new(big.Int).Mul(d, e)
	k.Sub(k, one)
	if k.Sign() <= 0 || k.Bit(0) == 1 {
		return nil
	}
	// k = 2^s * t with t odd.
	t := new(big.Int).Set(k)
	s := 0
	for t.Bit(0) == 0 {
		t.Rsh(t, 1)
		s++
	}
	nm1 := new(big.Int).Sub(n, one)
	x, y := new(big.Int), new(big.Int)
	for g := int64(2); g < 100; g++ {
		x.Exp(big.NewInt(g), t, n)
		for i := 0; i < s; i++ {
			if x.Cmp(one) == 0 || x.Cmp(nm1) == 0 {
				break
			}
			y.Mul(x, x).Mod(y, n)
			if y.Cmp(one) == 0 {
				// x is a nontrivial square root of 1.
				p := new(big.Int).Sub(x, one)
				p.GCD(nil, nil, p, n)
				q, r := new(big.Int).QuoRem(n, p, new(big.Int))
				if p.Cmp(one) <= 0 || q.Cmp(one) <= 0 || r.Sign() != 0 {
					return nil
				}
				return []*big.Int{p, q}
			}
			x, y = y, x
		}
	}
	return nil
}

// ValidateDSAQ checks that the DER encoding of the DSA subprime holds a 160
// bit value: 20 bytes with the sign bit clear, or 21 bytes made of a zero
// sign byte followed by a byte with the high bit set.
func ValidateDSAQ(q []byte) error {
	switch {
	case len(q) == 20 && q[0] != 0 && q[0]&0x80 == 0:
		return nil
	case len(q) == 21 && q[0] == 0 && q[1]&0x80 != 0:
		return nil
	}
	return fmt.Errorf("%w: DSA subprime must be 160 bits, got %d bytes", ErrInvalidKey, len(q))
}

// NewDSA builds a DSA key from its domain parameters and key pair.
func NewDSA(p, q, g, y, x []byte) (*KeyPair, error) {
	if err := ValidateDSAQ(q); err != nil {
		return nil, err
	}
	var ints [5]*big.Int
	for i, v := range [][]byte{p, q, g, y, x} {
		n, err := toInt(string("pqgyx"[i]), v)
		if err != nil {
			return nil, err
		}
		ints[i] = n
	}
	return &KeyPair{
		alg: algorithm.DSA,
		dsa: &dsa.PrivateKey{
			PublicKey: dsa.PublicKey{
				Parameters: dsa.Parameters{P: ints[0], Q: ints[1], G: ints[2]},
				Y:          ints[3],
			},
			X: ints[4],
		},
	}, nil
}

// NewECDSA builds an EC key from the encoded public point q and the private
// scalar d. The point is validated against the curve of alg.
func NewECDSA(alg algorithm.Asymmetric, q, d []byte) (*KeyPair, error) {
	dom, err := ecutil.DomainFor(alg)
	if err != nil {
		return nil, err
	}
	pt, err := ecutil.OctetStringToPoint(dom, q)
	if err != nil {
		return nil, err
	}
	if err := ecutil.ValidatePublicKey(dom, pt); err != nil {
		return nil, err
	}
	D, err := toInt("private scalar", d)
	if err != nil {
		return nil, err
	}
	if D.Sign() == 0 || D.Cmp(dom.N()) >= 0 {
		return nil, fmt.Errorf("%w: private scalar out of range", ErrInvalidKey)
	}
	return &KeyPair{
		alg: alg,
		ecdsa: &ecdsa.PrivateKey{
			PublicKey: ecdsa.PublicKey{Curve: dom.Curve(), X: pt.X, Y: pt.Y},
			D:         D,
		},
	}, nil
}

// FromDecoder builds a key from a parsed KeyDecoder.
func FromDecoder(k *privkey.KeyDecoder) (*KeyPair, error) {
	if err := k.Parse(); err != nil {
		return nil, err
	}
	alg := k.Algorithm()
	switch {
	case alg == algorithm.RSA:
		return NewRSA(k.Get('n'), k.Get('e'), k.Get('d'))
	case alg == algorithm.DSA:
		return NewDSA(k.Get('p'), k.Get('q'), k.Get('g'), k.Get('y'), k.Get('x'))
	case alg.IsEC():
		return NewECDSA(alg, k.Get('q'), k.Get('d'))
	}
	return nil, fmt.Errorf("%w: %s", algorithm.ErrUnsupportedAlgorithm, alg)
}

// Parse decodes a DER private key of type alg into a KeyPair. The
// intermediate decoder is disposed before returning.
func Parse(alg algorithm.Asymmetric, blob []byte) (*KeyPair, error) {
	k := privkey.NewKeyDecoder(alg, blob)
	defer k.Dispose()
	return FromDecoder(k)
}

// ParsePEM decodes a PEM private key into a KeyPair.
func ParsePEM(data []byte) (*KeyPair, error) {
	alg, blob, err := privkey.Decode(data)
	if err != nil {
		return nil, err
	}
	defer wipeBytes(blob)
	return Parse(alg, blob)
}

// LoadFile reads a PEM private key from a local or well-known filesystem path.
func LoadFile(path string) (*KeyPair, error) {
	alg, blob, err := privkey.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer wipeBytes(blob)
	return Parse(alg, blob)
}

// Algorithm returns the key type.
func (k *KeyPair) Algorithm() algorithm.Asymmetric {
	return k.alg
}

// Public returns the public half as a crypto public key.
func (k *KeyPair) Public() crypto.PublicKey {
	switch {
	case k.rsa != nil:
		return &k.rsa.PublicKey
	case k.dsa != nil:
		return &k.dsa.PublicKey
	case k.ecdsa != nil:
		return &k.ecdsa.PublicKey
	}
	return nil
}

// privateKey returns the crypto private key, or nil after Wipe.
func (k *KeyPair) privateKey() interface{} {
	switch {
	case k.rsa != nil:
		return k.rsa
	case k.dsa != nil:
		return k.dsa
	case k.ecdsa != nil:
		return k.ecdsa
	}
	return nil
}

// Wipe zeroes the private parameters and drops the key.
func (k *KeyPair) Wipe() {
	switch {
	case k.rsa != nil:
		wipeInt(k.rsa.D)
		for _, p := range k.rsa.Primes {
			wipeInt(p)
		}
		wipeInt(k.rsa.Precomputed.Dp)
		wipeInt(k.rsa.Precomputed.Dq)
		wipeInt(k.rsa.Precomputed.Qinv)
	case k.dsa != nil:
		wipeInt(k.dsa.X)
	case k.ecdsa != nil:
		wipeInt(k.ecdsa.D)
	}
	k.rsa, k.dsa, k.ecdsa = nil, nil, nil
}

func wipeInt(n *big.Int) {
	if n == nil {
		return
	}
	w := n.Bits()
	for i := range w {
		w[i] = 0
	}
	n.SetInt64(0)
}

func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
