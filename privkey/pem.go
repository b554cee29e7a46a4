package privkey

import (
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/remotecli/remotecli/algorithm"
	"go4.org/wkfs"
)

var pemTypes = map[string]algorithm.Asymmetric{
	"RSA PRIVATE KEY": algorithm.RSA,
	"DSA PRIVATE KEY": algorithm.DSA,
	"EC PRIVATE KEY":  0,
}

// scalar sizes used to guess the curve of SEC1 keys without parameters.
var curveByScalarLen = map[int]algorithm.Asymmetric{
	32: algorithm.ECDSAP256,
	48: algorithm.ECDSAP384,
	66: algorithm.ECDSAP521,
}

// Decode extracts the DER body of a PEM encoded private key and the key type
// it holds. Encrypted keys are rejected.
func Decode(data []byte) (algorithm.Asymmetric, []byte, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return 0, nil, errors.New("no PEM data found")
	}
	if _, ok := block.Headers["DEK-Info"]; ok {
		return 0, nil, errors.New("encrypted private keys are not supported")
	}
	alg, ok := pemTypes[block.Type]
	if !ok {
		return 0, nil, fmt.Errorf("%w: PEM block %q", algorithm.ErrUnsupportedAlgorithm, block.Type)
	}
	if alg == 0 {
		var err error
		if alg, err = DetectCurve(block.Bytes); err != nil {
			return 0, nil, err
		}
	}
	return alg, block.Bytes, nil
}

// DetectCurve finds the curve of a SEC1 EC private key. The curve OID is
// used when present, otherwise the size of the private scalar decides.
func DetectCurve(blob []byte) (algorithm.Asymmetric, error) {
	for _, alg := range []algorithm.Asymmetric{algorithm.ECDSAP256, algorithm.ECDSAP384, algorithm.ECDSAP521} {
		k := NewKeyDecoder(alg, blob)
		err := k.Parse()
		named, n := k.namedCurve, len(k.Get('d'))
		k.Dispose()
		if err != nil {
			continue
		}
		if named {
			return alg, nil
		}
		if guess, ok := curveByScalarLen[n]; ok {
			return guess, nil
		}
	}
	return 0, fmt.Errorf("%w: unable to determine EC curve", algorithm.ErrUnsupportedAlgorithm)
}

// ReadFile loads a PEM private key. Paths under registered well-known
// filesystems such as /vault/ and /s3/ are supported.
func ReadFile(path string) (algorithm.Asymmetric, []byte, error) {
	data, err := wkfs.ReadFile(path)
	if err != nil {
		return 0, nil, fmt.Errorf("unable to read private key %s: %w", path, err)
	}
	defer wipe(data)
	return Decode(data)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
