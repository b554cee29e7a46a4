// Package privkey extracts the numeric parameters of RSA, DSA and EC private
// keys from their DER encoding (PKCS#1, OpenSSL DSA and SEC1 layouts).
package privkey

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/lib/der"
)

type state int

const (
	notStarted state = iota
	parsing
	ready
	failed
)

// Curve OIDs (contents of the OBJECT IDENTIFIER) accepted in the optional
// [0] parameters of a SEC1 key.
var curveOIDs = map[algorithm.Asymmetric][]byte{
	algorithm.ECDSAP256: {0x2a, 0x86, 0x48, 0xce, 0x3d, 0x03, 0x01, 0x07},
	algorithm.ECDSAP384: {0x2b, 0x81, 0x04, 0x00, 0x22},
	algorithm.ECDSAP521: {0x2b, 0x81, 0x04, 0x00, 0x23},
}

// field indexes into KeyDecoder.params per algorithm, keyed by lower case code.
var (
	rsaFields = map[rune]int{'n': 0, 'e': 1, 'd': 2}
	dsaFields = map[rune]int{'p': 0, 'q': 1, 'g': 2, 'y': 3, 'x': 4}
	ecFields  = map[rune]int{'d': 0, 's': 0, 'q': 1, 'w': 1}
)

var errCurveMismatch = errors.New("curve OID does not match key type")

// KeyDecoder parses one DER encoded private key. It is not safe for
// concurrent use.
type KeyDecoder struct {
	alg    algorithm.Asymmetric
	buf    []byte
	d      *der.Decoder
	params []der.Range
	state  state
	err    error
	// namedCurve is set when an EC key carries its curve OID.
	namedCurve bool
}

// NewKeyDecoder returns a decoder for a key of type alg. The blob is copied
// and the copy is zeroed by Dispose.
func NewKeyDecoder(alg algorithm.Asymmetric, blob []byte) *KeyDecoder {
	buf := make([]byte, len(blob))
	copy(buf, blob)
	return &KeyDecoder{
		alg: alg,
		buf: buf,
		d:   der.NewDecoder(buf),
	}
}

// Algorithm returns the key type the decoder was created for.
func (k *KeyDecoder) Algorithm() algorithm.Asymmetric {
	return k.alg
}

// Parse decodes the key. Repeated calls return the result of the first one.
func (k *KeyDecoder) Parse() error {
	switch k.state {
	case ready:
		return nil
	case failed:
		return k.err
	}
	k.state = parsing
	if err := k.parse(); err != nil {
		k.params = nil
		k.state = failed
		k.err = fmt.Errorf("unable to parse %s private key: %w", k.alg, err)
		return k.err
	}
	k.state = ready
	return nil
}

// Ready reports whether Parse succeeded.
func (k *KeyDecoder) Ready() bool {
	return k.state == ready
}

// Err returns the reason Parse failed, if it did.
func (k *KeyDecoder) Err() error {
	return k.err
}

func (k *KeyDecoder) parse() error {
	seq, err := k.d.ParseSequence()
	if err != nil {
		return err
	}
	if k.d.HasMoreData(seq.End()) {
		return fmt.Errorf("%w: trailing data after key structure", der.ErrMalformedEncoding)
	}
	version, err := k.version()
	if err != nil {
		return err
	}
	switch {
	case k.alg == algorithm.RSA:
		if version != 0 && version != 1 {
			return fmt.Errorf("%w: RSA key version %d", der.ErrMalformedEncoding, version)
		}
		return k.integers(3)
	case k.alg == algorithm.DSA:
		if version != 0 {
			return fmt.Errorf("%w: DSA key version %d", der.ErrMalformedEncoding, version)
		}
		if err := k.integers(5); err != nil {
			return err
		}
		return k.noTrailingData()
	case k.alg.IsEC():
		if version != 1 {
			return fmt.Errorf("%w: EC key version %d", der.ErrMalformedEncoding, version)
		}
		return k.parseEC()
	}
	return fmt.Errorf("%w: %s", algorithm.ErrUnsupportedAlgorithm, k.alg)
}

func (k *KeyDecoder) version() (int, error) {
	r, err := k.d.ParseInteger()
	if err != nil {
		return 0, err
	}
	return k.d.SmallInt(r)
}

// integers reads n INTEGERs. Anything after them is left unread.
func (k *KeyDecoder) integers(n int) error {
	for i := 0; i < n; i++ {
		r, err := k.d.ParseInteger()
		if err != nil {
			return err
		}
		k.params = append(k.params, r)
	}
	return nil
}

func (k *KeyDecoder) noTrailingData() error {
	if k.d.HasMoreData(k.d.Pos()) {
		return fmt.Errorf("%w: unexpected data at offset %d", der.ErrMalformedEncoding, k.d.Pos())
	}
	return nil
}

// parseEC reads the remainder of an ECPrivateKey:
//
//	privateKey OCTET STRING,
//	parameters [0] OBJECT IDENTIFIER OPTIONAL,
//	publicKey  [1] BIT STRING
func (k *KeyDecoder) parseEC() error {
	priv, err := k.d.ParseOctetString()
	if err != nil {
		return err
	}
	if k.d.Peek(der.Container0) {
		c0, err := k.d.ParseContainer0()
		if err != nil {
			return err
		}
		oid, err := k.d.ParseObject()
		if err != nil {
			return err
		}
		if k.d.Pos() != c0.End() {
			return fmt.Errorf("%w: unexpected data in [0]", der.ErrMalformedEncoding)
		}
		if !k.d.Equal(oid, curveOIDs[k.alg]) {
			return fmt.Errorf("%w: %w", algorithm.ErrUnsupportedAlgorithm, errCurveMismatch)
		}
		k.namedCurve = true
	}
	c1, err := k.d.ParseContainer1()
	if err != nil {
		return err
	}
	pub, err := k.d.ParseBitString()
	if err != nil {
		return err
	}
	if k.d.Pos() != c1.End() {
		return fmt.Errorf("%w: unexpected data in [1]", der.ErrMalformedEncoding)
	}
	if err := k.noTrailingData(); err != nil {
		return err
	}
	k.params = append(k.params, priv, pub)
	return nil
}

func (k *KeyDecoder) fields() map[rune]int {
	switch {
	case k.alg == algorithm.RSA:
		return rsaFields
	case k.alg == algorithm.DSA:
		return dsaFields
	case k.alg.IsEC():
		return ecFields
	}
	return nil
}

// Get returns a copy of the parameter named by code, ignoring case:
// n, e, d for RSA; p, q, g, y, x for DSA; d or s (private scalar) and q or w
// (public point, as the raw BIT STRING contents) for EC keys.
// It returns nil if the key is not ready or code is unknown for the key type.
func (k *KeyDecoder) Get(code rune) []byte {
	if !k.Ready() {
		return nil
	}
	i, ok := k.fields()[unicode.ToLower(code)]
	if !ok || i >= len(k.params) {
		return nil
	}
	return k.d.Bytes(k.params[i])
}

// Dispose clears the parameter ranges and zeroes the key copy. The decoder
// is unusable afterwards.
func (k *KeyDecoder) Dispose() {
	for i := range k.params {
		k.params[i] = der.Range{}
	}
	k.params = k.params[:0]
	for i := range k.buf {
		k.buf[i] = 0
	}
	if k.state == ready {
		k.state = failed
		k.err = errors.New("private key disposed")
	}
}
