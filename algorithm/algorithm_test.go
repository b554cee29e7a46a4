package algorithm

import (
	"crypto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestForKeyType(t *testing.T) {
	var tests = []struct {
		alg  Asymmetric
		want crypto.Hash
	}{
		{RSA, crypto.SHA1},
		{DSA, crypto.SHA1},
		{ECDSAP256, crypto.SHA256},
		{ECDSAP384, crypto.SHA384},
		{ECDSAP521, crypto.SHA512},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.alg.Digest().Hash(), tc.alg.String())
	}
	assert.Equal(t, Digest(0), Asymmetric(42).Digest())
}

func TestParseAsymmetric(t *testing.T) {
	a, err := ParseAsymmetric("ecdsa-p384")
	require.NoError(t, err)
	assert.Equal(t, ECDSAP384, a)
	assert.True(t, a.IsEC())

	a, err = ParseAsymmetric(" RSA ")
	require.NoError(t, err)
	assert.Equal(t, RSA, a)
	assert.False(t, a.IsEC())

	_, err = ParseAsymmetric("ed25519")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	assert.Len(t, Asymmetrics(), 5)
}

func TestPublicKeyTables(t *testing.T) {
	for _, a := range Asymmetrics() {
		p, err := PublicKeyFor(a)
		require.NoError(t, err)
		assert.Equal(t, a, p.Asymmetric())
		back, err := LookupPublicKey(p.Name())
		require.NoError(t, err)
		assert.Equal(t, p, back)
	}
	assert.Equal(t, "nistp521", ECDSASHA2NistP521.CurveName())
	assert.Equal(t, "", SSHRSA.CurveName())
	_, err := PublicKeyFor(Asymmetric(0))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	_, err = LookupPublicKey("ssh-ed25519")
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestDigestSum(t *testing.T) {
	sum, err := SHA256.Sum([]byte("abc"))
	require.NoError(t, err)
	assert.Len(t, sum, 32)
	_, err = Digest(0).Sum(nil)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	d, err := ParseDigest("sha1")
	require.NoError(t, err)
	assert.Equal(t, SHA1, d)
}

func TestPreferences(t *testing.T) {
	p := &Preferences{}
	p.AppendCipher(AES128CTR)
	p.AppendCipher(AES256CTR)
	p.AppendCipher(AES128CTR)
	assert.Equal(t, []string{"aes128-ctr", "aes256-ctr"}, p.CipherNames())

	p, err := ParsePreferences(nil, []string{"aes128-ctr"}, []string{"HMAC-SHA1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPreferences().KexNames(), p.KexNames())
	assert.Equal(t, []string{"aes128-ctr"}, p.CipherNames())
	assert.Equal(t, []string{"hmac-sha1"}, p.MACNames())
	assert.Equal(t, []string{"none"}, p.CompressionNames())
	assert.Equal(t, SHA1, p.MACs[0].Digest())

	_, err = ParsePreferences([]string{"bogus"}, nil, nil)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestShortlist(t *testing.T) {
	preferred := []string{"twofish256-ctr", "AES256-CTR", "aes128-ctr"}
	available := []string{"aes128-ctr", "aes256-ctr"}
	assert.Equal(t, []string{"aes256-ctr", "aes128-ctr"}, Shortlist(preferred, available))
	assert.Empty(t, Shortlist([]string{"none"}, available))
}
