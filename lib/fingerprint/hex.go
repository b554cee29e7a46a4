// Package fingerprint implements the textual forms used to compare host
// keys: colon separated hex and Bubble Babble.
package fingerprint

import "errors"

// ErrInvalidEncoding is returned when decoding malformed input.
var ErrInvalidEncoding = errors.New("fingerprint: invalid encoding")

const (
	upperDigits = "0123456789ABCDEF"
	lowerDigits = "0123456789abcdef"
)

// Hex encodes b as colon separated hex pairs, e.g. "57:fe:9f". An empty
// input yields an empty string.
func Hex(b []byte, upper bool) string {
	if len(b) == 0 {
		return ""
	}
	digits := lowerDigits
	if upper {
		digits = upperDigits
	}
	out := make([]byte, 0, 3*len(b)-1)
	for i, v := range b {
		if i > 0 {
			out = append(out, ':')
		}
		out = append(out, digits[v>>4], digits[v&0x0f])
	}
	return string(out)
}

// ValidHex reports whether s is a non-empty sequence of hex pairs separated
// by single colons. Digits may be of either case.
func ValidHex(s string) bool {
	if len(s)%3 != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if i%3 == 2 {
			if s[i] != ':' {
				return false
			}
			continue
		}
		if nibble(s[i]) < 0 {
			return false
		}
	}
	return true
}

func nibble(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// ParseHex decodes the output of Hex. The input is validated with ValidHex
// first; an empty string is rejected.
func ParseHex(s string) ([]byte, error) {
	if !ValidHex(s) {
		return nil, ErrInvalidEncoding
	}
	out := make([]byte, 0, (len(s)+1)/3)
	for i := 0; i < len(s); i += 3 {
		out = append(out, byte(nibble(s[i])<<4|nibble(s[i+1])))
	}
	return out, nil
}
