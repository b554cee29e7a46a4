// Package sigformat converts DER encoded DSA and ECDSA signatures into the
// forms carried by SSH signature blobs.
package sigformat

import (
	"errors"
	"fmt"

	"github.com/remotecli/remotecli/lib/der"
)

// ErrComponentSize is returned when r or s do not fit the fixed width
// required by the target format.
var ErrComponentSize = errors.New("signature component size not supported")

// Adapter converts one DER signature.
type Adapter interface {
	// Convert parses the signature and builds the target form. Calls after
	// a success are no-ops.
	Convert() error
	// Ready reports whether Convert succeeded.
	Ready() bool
}

// pair holds the r and s integers of a Dss-Sig-Value / ECDSA-Sig-Value.
type pair struct {
	d    *der.Decoder
	r, s []byte
}

func newPair(sig []byte) pair {
	return pair{d: der.NewDecoder(sig)}
}

// parse reads SEQUENCE { r INTEGER, s INTEGER } with nothing after it.
func (p *pair) parse() error {
	if p.r != nil {
		return nil
	}
	seq, err := p.d.ParseSequence()
	if err != nil {
		return err
	}
	if p.d.HasMoreData(seq.End()) {
		return fmt.Errorf("%w: trailing data after signature", der.ErrMalformedEncoding)
	}
	r, err := p.d.ParseInteger()
	if err != nil {
		return err
	}
	s, err := p.d.ParseInteger()
	if err != nil {
		return err
	}
	if p.d.Pos() != seq.End() {
		return fmt.Errorf("%w: unexpected data in signature", der.ErrMalformedEncoding)
	}
	p.r, p.s = p.d.Bytes(r), p.d.Bytes(s)
	return nil
}

// DSAElementSize is the width of r and s in an ssh-dss signature.
const DSAElementSize = 20

// DSA converts a DER DSA signature to the 40 byte r||s form of ssh-dss.
type DSA struct {
	pair
	out []byte
}

// NewDSA returns an adapter for the DER signature sig.
func NewDSA(sig []byte) *DSA {
	return &DSA{pair: newPair(sig)}
}

// Convert implements Adapter.
func (a *DSA) Convert() error {
	if a.out != nil {
		return nil
	}
	if err := a.parse(); err != nil {
		return err
	}
	out := make([]byte, 2*DSAElementSize)
	if err := putElement(out[:DSAElementSize], a.r); err != nil {
		return err
	}
	if err := putElement(out[DSAElementSize:], a.s); err != nil {
		return err
	}
	a.out = out
	return nil
}

// putElement right aligns v in dst, dropping a DER sign byte.
func putElement(dst, v []byte) error {
	if len(v) == DSAElementSize+1 {
		if v[0] != 0 {
			return fmt.Errorf("%w: %d byte DSA component", ErrComponentSize, len(v))
		}
		v = v[1:]
	}
	if len(v) < 1 || len(v) > DSAElementSize {
		return fmt.Errorf("%w: %d byte DSA component", ErrComponentSize, len(v))
	}
	copy(dst[len(dst)-len(v):], v)
	return nil
}

// Ready implements Adapter.
func (a *DSA) Ready() bool {
	return a.out != nil
}

// Signature returns the 40 byte signature, or nil before a successful
// Convert.
func (a *DSA) Signature() []byte {
	return a.out
}

// ECDSA extracts r and s of a DER ECDSA signature. Both are returned as the
// raw DER integer contents, which are valid SSH mpints.
type ECDSA struct {
	pair
	ready bool
}

// NewECDSA returns an adapter for the DER signature sig.
func NewECDSA(sig []byte) *ECDSA {
	return &ECDSA{pair: newPair(sig)}
}

// Convert implements Adapter.
func (a *ECDSA) Convert() error {
	if a.ready {
		return nil
	}
	if err := a.parse(); err != nil {
		return err
	}
	a.ready = true
	return nil
}

// Ready implements Adapter.
func (a *ECDSA) Ready() bool {
	return a.ready
}

// R returns r, or nil before a successful Convert.
func (a *ECDSA) R() []byte {
	if !a.ready {
		return nil
	}
	return a.r
}

// S returns s, or nil before a successful Convert.
func (a *ECDSA) S() []byte {
	if !a.ready {
		return nil
	}
	return a.s
}
