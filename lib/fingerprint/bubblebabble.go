package fingerprint

import (
	"fmt"
	"strings"
)

const (
	vowels     = "aeiouy"
	consonants = "bcdfghklmnprstvzx"
	// index of 'x' in consonants; only valid in the closing tuple.
	consonantX = 16
)

// BubbleBabble encodes b as a pronounceable string of five letter words
// with an embedded checksum. The empty input encodes to "xexax".
func BubbleBabble(b []byte) string {
	var sb strings.Builder
	sb.Grow(6*(len(b)/2) + 5)
	sb.WriteByte('x')
	seed := 1
	for i := 0; ; i += 2 {
		if i >= len(b) {
			sb.WriteByte(vowels[seed%6])
			sb.WriteByte(consonants[consonantX])
			sb.WriteByte(vowels[seed/6])
			break
		}
		b1 := int(b[i])
		sb.WriteByte(vowels[((b1>>6&3)+seed)%6])
		sb.WriteByte(consonants[b1>>2&15])
		sb.WriteByte(vowels[((b1&3)+seed/6)%6])
		if i+1 >= len(b) {
			break
		}
		b2 := int(b[i+1])
		sb.WriteByte(consonants[b2>>4&15])
		sb.WriteByte('-')
		sb.WriteByte(consonants[b2&15])
		seed = (seed*5 + b1*7 + b2) % 36
	}
	sb.WriteByte('x')
	return sb.String()
}

func invalid(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidEncoding, fmt.Sprintf(format, a...))
}

// decodeByte reverses the vowel, consonant, vowel triple of one byte.
func decodeByte(s string, seed int) (byte, error) {
	v1 := strings.IndexByte(vowels, s[0])
	c := strings.IndexByte(consonants, s[1])
	v2 := strings.IndexByte(vowels, s[2])
	if v1 < 0 || c < 0 || v2 < 0 {
		return 0, invalid("unexpected character in %q", s)
	}
	high := (v1 - seed%6 + 6) % 6
	low := (v2 - seed/6 + 6) % 6
	if high > 3 || low > 3 || c > 15 {
		return 0, invalid("corrupt tuple %q", s)
	}
	return byte(high<<6 | c<<2 | low), nil
}

func consonant(c byte) (int, error) {
	i := strings.IndexByte(consonants, c)
	if i < 0 || i > 15 {
		return 0, invalid("unexpected character %q", c)
	}
	return i, nil
}

// ParseBubbleBabble decodes s and verifies its checksum.
func ParseBubbleBabble(s string) ([]byte, error) {
	if len(s) < 5 || s[0] != 'x' || s[len(s)-1] != 'x' {
		return nil, invalid("missing delimiters")
	}
	inner := s[1 : len(s)-1]
	if len(inner)%6 != 3 {
		return nil, invalid("length %d", len(s))
	}
	out := make([]byte, 0, 2*(len(inner)/6)+1)
	seed := 1
	for len(inner) > 3 {
		t := inner[:6]
		inner = inner[6:]
		b1, err := decodeByte(t[:3], seed)
		if err != nil {
			return nil, err
		}
		if t[4] != '-' {
			return nil, invalid("missing separator in %q", t)
		}
		hi, err := consonant(t[3])
		if err != nil {
			return nil, err
		}
		lo, err := consonant(t[5])
		if err != nil {
			return nil, err
		}
		b2 := byte(hi<<4 | lo)
		out = append(out, b1, b2)
		seed = (seed*5 + int(b1)*7 + int(b2)) % 36
	}
	if inner[1] == 'x' {
		if inner[0] != vowels[seed%6] || inner[2] != vowels[seed/6] {
			return nil, invalid("checksum mismatch")
		}
		return out, nil
	}
	b, err := decodeByte(inner, seed)
	if err != nil {
		return nil, err
	}
	return append(out, b), nil
}
