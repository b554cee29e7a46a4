// Package ecutil holds the domain parameters of the NIST curves used by
// ecdsa-sha2 keys and validates public points against them.
package ecutil

import (
	"crypto/elliptic"
	"errors"
	"fmt"
	"math/big"

	"github.com/remotecli/remotecli/algorithm"
)

// ErrValidationFailure is returned for points that are not valid public keys
// on the curve.
var ErrValidationFailure = errors.New("ec point validation failed")

// uncompressed is the SEC1 tag of an uncompressed point.
const uncompressed = 0x04

// Domain is the immutable parameter set (p, a, b, G, n, h) of a curve.
// Accessors return copies.
type Domain struct {
	alg                algorithm.Asymmetric
	name               string
	size               int
	p, a, b, gx, gy, n *big.Int
	h                  int
	curve              elliptic.Curve
}

// Point is an affine curve point. The point at infinity is the nil *Point.
type Point struct {
	X, Y *big.Int
}

var domains = map[algorithm.Asymmetric]*Domain{}

func init() {
	curves := map[algorithm.Asymmetric]elliptic.Curve{
		algorithm.ECDSAP256: elliptic.P256(),
		algorithm.ECDSAP384: elliptic.P384(),
		algorithm.ECDSAP521: elliptic.P521(),
	}
	for _, dp := range domainParams {
		domains[dp.alg] = &Domain{
			alg:   dp.alg,
			name:  dp.name,
			size:  dp.size,
			p:     mustHex(dp.p),
			a:     mustHex(dp.a),
			b:     mustHex(dp.b),
			gx:    mustHex(dp.gx),
			gy:    mustHex(dp.gy),
			n:     mustHex(dp.n),
			h:     1,
			curve: curves[dp.alg],
		}
	}
}

func mustHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("ecutil: bad domain constant " + s)
	}
	return v
}

// DomainFor returns the domain of an ECDSA key type.
func DomainFor(alg algorithm.Asymmetric) (*Domain, error) {
	d, ok := domains[alg]
	if !ok {
		return nil, fmt.Errorf("%w: no curve for %s", algorithm.ErrUnsupportedAlgorithm, alg)
	}
	return d, nil
}

// Algorithm returns the key type using the curve.
func (d *Domain) Algorithm() algorithm.Asymmetric { return d.alg }

// Name returns the SSH curve identifier, e.g. "nistp256".
func (d *Domain) Name() string { return d.name }

// FieldSize returns the byte width of a field element.
func (d *Domain) FieldSize() int { return d.size }

// P returns the field prime.
func (d *Domain) P() *big.Int { return new(big.Int).Set(d.p) }

// A returns the curve coefficient a.
func (d *Domain) A() *big.Int { return new(big.Int).Set(d.a) }

// B returns the curve coefficient b.
func (d *Domain) B() *big.Int { return new(big.Int).Set(d.b) }

// N returns the order of the base point.
func (d *Domain) N() *big.Int { return new(big.Int).Set(d.n) }

// Cofactor returns h.
func (d *Domain) Cofactor() int { return d.h }

// G returns the base point.
func (d *Domain) G() *Point {
	return &Point{X: new(big.Int).Set(d.gx), Y: new(big.Int).Set(d.gy)}
}

// Curve returns the crypto/elliptic implementation of the curve.
func (d *Domain) Curve() elliptic.Curve { return d.curve }

// OctetStringToUnsignedInt interprets b as an unsigned big-endian integer.
func OctetStringToUnsignedInt(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// OctetStringToPoint decodes an uncompressed point. Leading zero bytes, such
// as the unused bits octet of a BIT STRING, are skipped.
func OctetStringToPoint(d *Domain, b []byte) (*Point, error) {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	b = b[i:]
	if len(b) == 0 || b[0] != uncompressed {
		return nil, fmt.Errorf("%w: not an uncompressed point", ErrValidationFailure)
	}
	if len(b) != 1+2*d.size {
		return nil, fmt.Errorf("%w: point of %d bytes on %s", ErrValidationFailure, len(b), d.name)
	}
	return &Point{
		X: OctetStringToUnsignedInt(b[1 : 1+d.size]),
		Y: OctetStringToUnsignedInt(b[1+d.size:]),
	}, nil
}

// Marshal returns the uncompressed encoding of pt.
func (d *Domain) Marshal(pt *Point) []byte {
	out := make([]byte, 1+2*d.size)
	out[0] = uncompressed
	pt.X.FillBytes(out[1 : 1+d.size])
	pt.Y.FillBytes(out[1+d.size:])
	return out
}

// ValidatePublicKey checks that pt is a finite point with coordinates in
// [0, p) satisfying y^2 = x^3 + ax + b (mod p). Only cofactor 1 curves are
// accepted, for which this implies membership of the subgroup of order n.
func ValidatePublicKey(d *Domain, pt *Point) error {
	if pt == nil || pt.X == nil || pt.Y == nil {
		return fmt.Errorf("%w: point at infinity", ErrValidationFailure)
	}
	for _, c := range []*big.Int{pt.X, pt.Y} {
		if c.Sign() < 0 || c.Cmp(d.p) >= 0 {
			return fmt.Errorf("%w: coordinate out of range", ErrValidationFailure)
		}
	}
	if d.h != 1 {
		// TODO: check n*Q == infinity before admitting a curve with h != 1.
		return fmt.Errorf("%w: cofactor %d not supported", ErrValidationFailure, d.h)
	}
	lhs := new(big.Int).Mul(pt.Y, pt.Y)
	lhs.Mod(lhs, d.p)
	rhs := new(big.Int).Mul(pt.X, pt.X)
	rhs.Add(rhs, d.a)
	rhs.Mul(rhs, pt.X)
	rhs.Add(rhs, d.b)
	rhs.Mod(rhs, d.p)
	if lhs.Cmp(rhs) != 0 {
		return fmt.Errorf("%w: point not on %s", ErrValidationFailure, d.name)
	}
	return nil
}
