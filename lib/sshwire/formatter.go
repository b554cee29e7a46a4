// Package sshwire builds and parses the length prefixed byte vectors
// (RFC 4251 section 5 "string") that make up SSH key and signature blobs.
package sshwire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated is returned by Parse when a vector runs past the input.
var ErrTruncated = errors.New("sshwire: truncated vector")

// Formatter accumulates vectors and serializes them in insertion order.
// It is not safe for concurrent use.
type Formatter struct {
	vectors [][]byte
}

// NewFormatter returns a formatter holding vs.
func NewFormatter(vs ...[]byte) *Formatter {
	f := &Formatter{}
	for _, v := range vs {
		f.Add(v)
	}
	return f
}

// Add appends a copy of v. A nil v is ignored, an empty one is kept.
func (f *Formatter) Add(v []byte) *Formatter {
	if v == nil {
		return f
	}
	f.vectors = append(f.vectors, append([]byte{}, v...))
	return f
}

// AddString appends s.
func (f *Formatter) AddString(s string) *Formatter {
	return f.Add([]byte(s))
}

// AddRunes appends the UTF-8 encoding of rs and zeroes rs.
func (f *Formatter) AddRunes(rs []rune) *Formatter {
	if rs == nil {
		return f
	}
	f.Add([]byte(string(rs)))
	for i := range rs {
		rs[i] = 0
	}
	return f
}

// Len returns the number of vectors added so far.
func (f *Formatter) Len() int {
	return len(f.vectors)
}

// Size returns the length of the output of Format.
func (f *Formatter) Size() int {
	n := 0
	for _, v := range f.vectors {
		n += 4 + len(v)
	}
	return n
}

// Format returns every vector prefixed by its 32 bit big-endian length.
// It may be called again after further Adds.
func (f *Formatter) Format() []byte {
	out := make([]byte, f.Size())
	i := 0
	for _, v := range f.vectors {
		if uint64(len(v)) > math.MaxUint32 {
			panic(fmt.Sprintf("sshwire: vector of %d bytes", len(v)))
		}
		binary.BigEndian.PutUint32(out[i:], uint32(len(v)))
		i += 4
		i += copy(out[i:], v)
	}
	return out
}

// Wipe zeroes every vector and empties the formatter.
func (f *Formatter) Wipe() {
	for _, v := range f.vectors {
		for i := range v {
			v[i] = 0
		}
	}
	f.vectors = nil
}

// Parse splits a formatted blob back into its vectors.
func Parse(blob []byte) ([][]byte, error) {
	vs := [][]byte{}
	for len(blob) > 0 {
		v, rest, err := ParseString(blob)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
		blob = rest
	}
	return vs, nil
}

// ParseString reads one vector and returns it with the remaining input.
func ParseString(blob []byte) ([]byte, []byte, error) {
	if len(blob) < 4 {
		return nil, nil, ErrTruncated
	}
	n := binary.BigEndian.Uint32(blob)
	blob = blob[4:]
	if uint64(n) > uint64(len(blob)) {
		return nil, nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, len(blob))
	}
	return append([]byte{}, blob[:n]...), blob[n:], nil
}
