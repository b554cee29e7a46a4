package sshwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	f := NewFormatter()
	f.AddString("ssh-rsa").Add([]byte{0x01, 0x00, 0x01}).Add(nil).Add([]byte{})
	assert.Equal(t, 3, f.Len())
	want := []byte{
		0, 0, 0, 7, 's', 's', 'h', '-', 'r', 's', 'a',
		0, 0, 0, 3, 0x01, 0x00, 0x01,
		0, 0, 0, 0,
	}
	assert.Equal(t, want, f.Format())
	assert.Equal(t, len(want), f.Size())

	f.Add([]byte{0xff})
	assert.Equal(t, append(want, 0, 0, 0, 1, 0xff), f.Format())
}

func TestRoundTrip(t *testing.T) {
	var tests = [][][]byte{
		{},
		{{}},
		{{}, {}, {}},
		{[]byte("ecdsa-sha2-nistp256"), []byte("nistp256"), make([]byte, 65)},
		{make([]byte, 70000), {0x00}},
	}
	for _, vs := range tests {
		blob := NewFormatter(vs...).Format()
		got, err := Parse(blob)
		require.NoError(t, err)
		assert.Equal(t, vs, got)
	}
}

func TestAddCopies(t *testing.T) {
	v := []byte{1, 2, 3}
	f := NewFormatter(v)
	v[0] = 9
	assert.Equal(t, []byte{0, 0, 0, 3, 1, 2, 3}, f.Format())
}

func TestAddRunesZeroesSource(t *testing.T) {
	rs := []rune("secret")
	f := NewFormatter().AddRunes(rs)
	assert.Equal(t, make([]rune, 6), rs)
	got, err := Parse(f.Format())
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("secret")}, got)
}

func TestWipe(t *testing.T) {
	f := NewFormatter([]byte("private"))
	held := f.vectors[0]
	f.Wipe()
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, make([]byte, 7), held)
	assert.Empty(t, f.Format())
}

func TestParseTruncated(t *testing.T) {
	for _, blob := range [][]byte{
		{0, 0, 0},
		{0, 0, 0, 5, 1, 2},
		{0, 0, 0, 1, 1, 0, 0},
	} {
		_, err := Parse(blob)
		assert.ErrorIs(t, err, ErrTruncated)
	}
}
