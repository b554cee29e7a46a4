package signer

import (
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"math/big"

	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/lib/ecutil"
	"github.com/remotecli/remotecli/lib/sshwire"
)

// mpint returns the SSH mpint body of a non-negative n: minimal big-endian
// bytes with a zero byte prepended when the high bit is set.
func mpint(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) > 0 && b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return b
}

// PublicKeyBlob returns the SSH wire encoding of the public half of k:
//
//	ssh-rsa: [name, e, n]
//	ssh-dss: [name, p, q, g, y]
//	ecdsa-sha2-*: [name, curve, Q]
func (k *KeyPair) PublicKeyBlob() ([]byte, error) {
	pk, err := algorithm.PublicKeyFor(k.alg)
	if err != nil {
		return nil, err
	}
	f := sshwire.NewFormatter().AddString(pk.Name())
	switch pub := k.Public().(type) {
	case *rsa.PublicKey:
		f.Add(mpint(big.NewInt(int64(pub.E)))).Add(mpint(pub.N))
	case *dsa.PublicKey:
		f.Add(mpint(pub.P)).Add(mpint(pub.Q)).Add(mpint(pub.G)).Add(mpint(pub.Y))
	case *ecdsa.PublicKey:
		dom, err := ecutil.DomainFor(k.alg)
		if err != nil {
			return nil, err
		}
		f.AddString(pk.CurveName()).Add(dom.Marshal(&ecutil.Point{X: pub.X, Y: pub.Y}))
	default:
		return nil, fmt.Errorf("%w: key has been wiped", ErrInvalidKey)
	}
	return f.Format(), nil
}
