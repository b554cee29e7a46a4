// Package der is a cursor based decoder for the small subset of DER used by
// private keys and signatures.
//
// The decoder never copies while parsing. Every parse call returns a Range
// into the backing buffer that callers materialize with Bytes once the whole
// structure has been validated.
package der

import (
	"errors"
	"fmt"
	"math"
)

// Tag is an ASN.1 identifier octet.
type Tag byte

// Tags understood by the decoder.
const (
	Integer     Tag = 0x02
	BitString   Tag = 0x03
	OctetString Tag = 0x04
	Object      Tag = 0x06
	Sequence    Tag = 0x30
	// Container0 and Container1 are the SEC1 context specific wrappers around
	// the curve OID and the public point of an EC private key.
	Container0 Tag = 0xa0
	Container1 Tag = 0xa1
)

func (t Tag) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case BitString:
		return "BIT STRING"
	case OctetString:
		return "OCTET STRING"
	case Object:
		return "OBJECT"
	case Sequence:
		return "SEQUENCE"
	case Container0:
		return "[0]"
	case Container1:
		return "[1]"
	}
	return fmt.Sprintf("tag(0x%02x)", byte(t))
}

var (
	// ErrMalformedEncoding is returned for any structural violation: an
	// unexpected tag, a bad length, a truncated buffer or trailing data.
	ErrMalformedEncoding = errors.New("der: malformed encoding")
	// ErrIntegerTooLong is returned by SmallInt for ranges longer than 4 bytes.
	ErrIntegerTooLong = errors.New("der: integer too long")
)

// maxLengthBytes caps the long form length to values that fit in 32 bits.
const maxLengthBytes = 4

// Range is a view of Length bytes starting at Start in the decoder's buffer.
type Range struct {
	Start  int
	Length int
}

// End returns the offset of the first byte after the range.
func (r Range) End() int {
	return r.Start + r.Length
}

// Decoder reads DER structures from an immutable buffer with a forward only
// cursor.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder returns a decoder positioned at the start of buf.
// A nil buffer is treated as empty.
func NewDecoder(buf []byte) *Decoder {
	if buf == nil {
		buf = []byte{}
	}
	return &Decoder{buf: buf}
}

// Pos returns the current cursor offset.
func (d *Decoder) Pos() int {
	return d.pos
}

// Len returns the size of the backing buffer.
func (d *Decoder) Len() int {
	return len(d.buf)
}

func malformed(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedEncoding, fmt.Sprintf(format, a...))
}

func (d *Decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, malformed("read past end of buffer at offset %d", d.pos)
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ParseLength reads a length in short or long form.
//
// A zero length is rejected as well as lengths that need more than four
// bytes, exceed 31 bits or reach past the end of the buffer.
func (d *Decoder) ParseLength() (int, error) {
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	var length uint64
	remaining := 0
	if b&0x80 == 0 {
		length = uint64(b)
	} else {
		remaining = int(b & 0x7f)
	}
	if length == 0 && remaining == 0 {
		return 0, malformed("zero length")
	}
	if remaining > maxLengthBytes {
		return 0, malformed("length uses %d bytes", remaining)
	}
	for ; remaining > 0; remaining-- {
		b, err := d.readByte()
		if err != nil {
			return 0, err
		}
		length = length<<8 | uint64(b)
	}
	if length > math.MaxInt32 {
		return 0, malformed("negative length")
	}
	if d.pos+int(length) > len(d.buf) {
		return 0, malformed("length %d exceeds buffer", length)
	}
	return int(length), nil
}

func (d *Decoder) header(tag Tag) (Range, error) {
	b, err := d.readByte()
	if err != nil {
		return Range{}, err
	}
	if Tag(b) != tag {
		return Range{}, malformed("expected %s, got %s", tag, Tag(b))
	}
	length, err := d.ParseLength()
	if err != nil {
		return Range{}, err
	}
	return Range{Start: d.pos, Length: length}, nil
}

// ParseContainer reads the header of a constructed type and returns the range
// of its contents. The cursor is left at the first content byte.
func (d *Decoder) ParseContainer(tag Tag) (Range, error) {
	return d.header(tag)
}

// ParsePrimitive reads a primitive type and moves the cursor past its
// contents.
func (d *Decoder) ParsePrimitive(tag Tag) (Range, error) {
	r, err := d.header(tag)
	if err != nil {
		return Range{}, err
	}
	d.pos = r.End()
	return r, nil
}

// ParseSequence reads a SEQUENCE header.
func (d *Decoder) ParseSequence() (Range, error) { return d.ParseContainer(Sequence) }

// ParseContainer0 reads a SEC1 [0] header.
func (d *Decoder) ParseContainer0() (Range, error) { return d.ParseContainer(Container0) }

// ParseContainer1 reads a SEC1 [1] header.
func (d *Decoder) ParseContainer1() (Range, error) { return d.ParseContainer(Container1) }

// ParseInteger reads an INTEGER.
func (d *Decoder) ParseInteger() (Range, error) { return d.ParsePrimitive(Integer) }

// ParseOctetString reads an OCTET STRING.
func (d *Decoder) ParseOctetString() (Range, error) { return d.ParsePrimitive(OctetString) }

// ParseBitString reads a BIT STRING.
func (d *Decoder) ParseBitString() (Range, error) { return d.ParsePrimitive(BitString) }

// ParseObject reads an OBJECT IDENTIFIER.
func (d *Decoder) ParseObject() (Range, error) { return d.ParsePrimitive(Object) }

// Peek reports whether the byte under the cursor is tag.
func (d *Decoder) Peek(tag Tag) bool {
	return d.pos < len(d.buf) && Tag(d.buf[d.pos]) == tag
}

// HasMoreData reports whether any bytes follow offset from.
func (d *Decoder) HasMoreData(from int) bool {
	return from < len(d.buf)
}

func (d *Decoder) valid(r Range) bool {
	return r.Start >= 0 && r.Length >= 0 && r.End() <= len(d.buf)
}

// Bytes returns a copy of the bytes covered by r, or nil if r is out of
// bounds.
func (d *Decoder) Bytes(r Range) []byte {
	if !d.valid(r) {
		return nil
	}
	out := make([]byte, r.Length)
	copy(out, d.buf[r.Start:r.End()])
	return out
}

// Equal reports whether the bytes covered by r equal b.
func (d *Decoder) Equal(r Range, b []byte) bool {
	if !d.valid(r) || r.Length != len(b) {
		return false
	}
	for i := range b {
		if d.buf[r.Start+i] != b[i] {
			return false
		}
	}
	return true
}

// SmallInt converts a big-endian range of at most four bytes to an int.
func (d *Decoder) SmallInt(r Range) (int, error) {
	if !d.valid(r) {
		return 0, malformed("range %d+%d out of bounds", r.Start, r.Length)
	}
	if r.Length > 4 {
		return 0, ErrIntegerTooLong
	}
	v := 0
	for _, b := range d.buf[r.Start:r.End()] {
		v = v<<8 | int(b)
	}
	return v, nil
}
