package signer

import (
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"errors"
	"math/big"
	"net"
	"testing"
	"testing/iotest"

	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/lib/ecutil"
	"github.com/remotecli/remotecli/lib/sshwire"
	"github.com/remotecli/remotecli/privkey"
	"github.com/remotecli/remotecli/testdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

var message = []byte("data to be signed")

func mustParsePEM(t *testing.T, pemData []byte) *KeyPair {
	t.Helper()
	k, err := ParsePEM(pemData)
	require.NoError(t, err)
	return k
}

func generateEC(t *testing.T, curve elliptic.Curve, alg algorithm.Asymmetric) (*ecdsa.PrivateKey, *KeyPair) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	blob, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	k, err := Parse(alg, blob)
	require.NoError(t, err)
	return priv, k
}

func TestStateMachine(t *testing.T) {
	s := New()
	assert.Equal(t, Uninitialized, s.State())
	assert.ErrorIs(t, s.Sign(message), ErrKeyNotReady)
	assert.Error(t, s.PassKey(nil))
	assert.Equal(t, Uninitialized, s.State())

	k := mustParsePEM(t, testdata.RSAKey)
	defer k.Wipe()
	require.NoError(t, s.PassKey(k))
	assert.Equal(t, KeysAssigned, s.State())
	assert.Nil(t, s.Signature())
	assert.Nil(t, s.Payload())
	assert.Equal(t, "", s.Format())

	require.NoError(t, s.Sign(message))
	assert.Equal(t, SignatureReady, s.State())
	assert.NotNil(t, s.Signature())

	require.NoError(t, s.Sign(message))
	assert.Equal(t, SignatureReady, s.State())

	require.NoError(t, s.PassKey(k))
	assert.Equal(t, KeysAssigned, s.State())
	assert.Nil(t, s.Signature())
	assert.Equal(t, "signature-ready", SignatureReady.String())
}

func TestSignRSA(t *testing.T) {
	k := mustParsePEM(t, testdata.RSAKey)
	defer k.Wipe()
	s := New()
	require.NoError(t, s.PassKey(k))
	require.NoError(t, s.Sign(message))

	vs, err := sshwire.Parse(s.Signature())
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "ssh-rsa", string(vs[0]))
	assert.Len(t, vs[1], 128)

	blob, err := k.PublicKeyBlob()
	require.NoError(t, err)
	pub, err := ssh.ParsePublicKey(blob)
	require.NoError(t, err)
	assert.NoError(t, pub.Verify(message, &ssh.Signature{Format: s.Format(), Blob: s.Payload()}))
}

func TestRSAPublicKeyBlob(t *testing.T) {
	_, der, err := privkey.Decode(testdata.RSAKey)
	require.NoError(t, err)
	want, err := x509.ParsePKCS1PrivateKey(der)
	require.NoError(t, err)
	wantPub, err := ssh.NewPublicKey(&want.PublicKey)
	require.NoError(t, err)

	k, err := Parse(algorithm.RSA, der)
	require.NoError(t, err)
	blob, err := k.PublicKeyBlob()
	require.NoError(t, err)
	assert.Equal(t, wantPub.Marshal(), blob)

	vs, err := sshwire.Parse(blob)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ssh-rsa"), {0x11}, mpint(want.N)}, vs)
}

func TestSignDSA(t *testing.T) {
	k := mustParsePEM(t, testdata.DSAKey)
	defer k.Wipe()
	s := New()
	require.NoError(t, s.PassKey(k))
	require.NoError(t, s.Sign(message))
	assert.Equal(t, "ssh-dss", s.Format())

	sig := s.Payload()
	require.Len(t, sig, 40)
	digest := sha1.Sum(message)
	r := new(big.Int).SetBytes(sig[:20])
	ss := new(big.Int).SetBytes(sig[20:])
	pub := k.Public().(*dsa.PublicKey)
	assert.True(t, dsa.Verify(pub, digest[:], r, ss))

	blob, err := k.PublicKeyBlob()
	require.NoError(t, err)
	vs, err := sshwire.Parse(blob)
	require.NoError(t, err)
	require.Len(t, vs, 5)
	assert.Equal(t, "ssh-dss", string(vs[0]))
	assert.Equal(t, mpint(pub.Q), vs[2])
	assert.Len(t, vs[2], 21)
}

func TestSignFailureIsRetryable(t *testing.T) {
	k := mustParsePEM(t, testdata.DSAKey)
	defer k.Wipe()
	s := New()
	require.NoError(t, s.PassKey(k))
	s.rand = iotest.ErrReader(errors.New("no entropy"))
	err := s.Sign(message)
	assert.ErrorIs(t, err, ErrSigningFailed)
	assert.Equal(t, KeysAssigned, s.State())
	assert.Nil(t, s.Signature())

	s.rand = rand.Reader
	require.NoError(t, s.Sign(message))
	assert.Equal(t, SignatureReady, s.State())
}

func TestSignECDSA(t *testing.T) {
	var tests = []struct {
		curve elliptic.Curve
		alg   algorithm.Asymmetric
		name  string
	}{
		{elliptic.P256(), algorithm.ECDSAP256, "ecdsa-sha2-nistp256"},
		{elliptic.P384(), algorithm.ECDSAP384, "ecdsa-sha2-nistp384"},
		{elliptic.P521(), algorithm.ECDSAP521, "ecdsa-sha2-nistp521"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			priv, k := generateEC(t, tc.curve, tc.alg)
			defer k.Wipe()

			want, err := ssh.NewPublicKey(&priv.PublicKey)
			require.NoError(t, err)
			blob, err := k.PublicKeyBlob()
			require.NoError(t, err)
			assert.Equal(t, want.Marshal(), blob)

			s := New()
			require.NoError(t, s.PassKey(k))
			require.NoError(t, s.Sign(message))
			assert.Equal(t, tc.name, s.Format())
			rs, err := sshwire.Parse(s.Payload())
			require.NoError(t, err)
			assert.Len(t, rs, 2)
			assert.NoError(t, want.Verify(message, &ssh.Signature{Format: s.Format(), Blob: s.Payload()}))

			vs, err := sshwire.Parse(s.Signature())
			require.NoError(t, err)
			assert.Equal(t, [][]byte{[]byte(tc.name), s.Payload()}, vs)
		})
	}
}

func TestECDSATestdataKeys(t *testing.T) {
	for _, key := range [][]byte{testdata.ECDSAP256Key, testdata.ECDSAP384Key, testdata.ECDSAP521Key} {
		k := mustParsePEM(t, key)
		sg, err := NewSSHSigner(k)
		require.NoError(t, err)
		sig, err := sg.Sign(rand.Reader, message)
		require.NoError(t, err)
		assert.NoError(t, sg.PublicKey().Verify(message, sig))
		k.Wipe()
	}
}

func TestValidateDSAQ(t *testing.T) {
	q20 := func(first byte) []byte {
		b := make([]byte, 20)
		b[0] = first
		return b
	}
	var tests = []struct {
		name string
		q    []byte
		ok   bool
	}{
		{"20 bytes high bit clear", q20(0x7f), true},
		{"20 bytes high bit set", q20(0x80), false},
		{"20 bytes leading zero", q20(0x00), false},
		{"21 bytes sign padded", append([]byte{0x00}, q20(0x80)...), true},
		{"21 bytes needless padding", append([]byte{0x00}, q20(0x7f)...), false},
		{"21 bytes no padding", append([]byte{0x01}, q20(0x80)...), false},
		{"19 bytes", make([]byte, 19), false},
		{"32 bytes", make([]byte, 32), false},
	}
	for _, tc := range tests {
		err := ValidateDSAQ(tc.q)
		if tc.ok {
			assert.NoError(t, err, tc.name)
		} else {
			assert.ErrorIs(t, err, ErrInvalidKey, tc.name)
		}
	}
}

func TestNewDSARejectsBadSubprime(t *testing.T) {
	_, err := NewDSA([]byte{1}, make([]byte, 32), []byte{1}, []byte{1}, []byte{1})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewECDSARejects(t *testing.T) {
	priv, k := generateEC(t, elliptic.P256(), algorithm.ECDSAP256)
	k.Wipe()
	q := elliptic.Marshal(elliptic.P256(), priv.X, priv.Y)
	d := priv.D.Bytes()

	bad := append([]byte{}, q...)
	bad[len(bad)-1] ^= 0x01
	_, err := NewECDSA(algorithm.ECDSAP256, bad, d)
	assert.ErrorIs(t, err, ecutil.ErrValidationFailure)

	_, err = NewECDSA(algorithm.ECDSAP384, q, d)
	assert.ErrorIs(t, err, ecutil.ErrValidationFailure)

	_, err = NewECDSA(algorithm.ECDSAP256, q, elliptic.P256().Params().N.Bytes())
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewECDSA(algorithm.RSA, q, d)
	assert.ErrorIs(t, err, algorithm.ErrUnsupportedAlgorithm)
}

func TestNewRSARejects(t *testing.T) {
	_, err := NewRSA(nil, []byte{3}, []byte{1})
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = NewRSA([]byte{1}, []byte{1}, []byte{1})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestParseFailuresSurface(t *testing.T) {
	_, err := Parse(algorithm.DSA, []byte{0x30, 0x00})
	assert.Error(t, err)
	_, err = ParsePEM([]byte("garbage"))
	assert.Error(t, err)
}

func TestWipe(t *testing.T) {
	k := mustParsePEM(t, testdata.DSAKey)
	x := k.dsa.X
	k.Wipe()
	assert.Equal(t, 0, x.Sign())
	assert.Nil(t, k.Public())
	_, err := k.PublicKeyBlob()
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, New().PassKey(k), ErrInvalidKey)
}

func TestAddToAgent(t *testing.T) {
	_, k := generateEC(t, elliptic.P384(), algorithm.ECDSAP384)
	defer k.Wipe()
	a := agent.NewKeyring()
	require.NoError(t, AddToAgent(a, k, "test key", 0))
	keys, err := a.List()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	blob, err := k.PublicKeyBlob()
	require.NoError(t, err)
	assert.Equal(t, blob, keys[0].Marshal())
	assert.Equal(t, "test key", keys[0].Comment)

	sg, err := NewSSHSigner(k)
	require.NoError(t, err)
	assert.Contains(t, sg.AuthorizedKey(""), "ecdsa-sha2-nistp384 ")
}

func rsaParams(t *testing.T) (n, e, d []byte, primes []string) {
	t.Helper()
	_, der, err := privkey.Decode(testdata.RSAKey)
	require.NoError(t, err)
	want, err := x509.ParsePKCS1PrivateKey(der)
	require.NoError(t, err)
	for _, p := range want.Primes {
		primes = append(primes, p.String())
	}
	return want.N.Bytes(), big.NewInt(int64(want.E)).Bytes(), want.D.Bytes(), primes
}

func TestNewRSARecoversPrimes(t *testing.T) {
	n, e, d, primes := rsaParams(t)
	k, err := NewRSA(n, e, d)
	require.NoError(t, err)
	defer k.Wipe()
	require.Len(t, k.rsa.Primes, 2)
	assert.ElementsMatch(t, primes, []string{k.rsa.Primes[0].String(), k.rsa.Primes[1].String()})
	assert.NoError(t, k.rsa.Validate())
	assert.NotNil(t, k.rsa.Precomputed.Qinv)

	bad := new(big.Int).SetBytes(d)
	bad.Add(bad, big.NewInt(2))
	k2, err := NewRSA(n, e, bad.Bytes())
	require.NoError(t, err)
	defer k2.Wipe()
	assert.Empty(t, k2.rsa.Primes)
	assert.ErrorIs(t, AddToAgent(agent.NewKeyring(), k2, "", 0), ErrInvalidKey)
}

func TestAddToAgentRSAOverSocket(t *testing.T) {
	k := mustParsePEM(t, testdata.RSAKey)
	defer k.Wipe()

	keyring := agent.NewKeyring()
	client, server := net.Pipe()
	defer client.Close()
	go func() {
		agent.ServeAgent(keyring, server)
		server.Close()
	}()
	a := agent.NewClient(client)

	require.NoError(t, AddToAgent(a, k, "rsa key", 0))
	keys, err := a.List()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	blob, err := k.PublicKeyBlob()
	require.NoError(t, err)
	assert.Equal(t, blob, keys[0].Marshal())

	sig, err := a.Sign(keys[0], message)
	require.NoError(t, err)
	pub, err := ssh.ParsePublicKey(blob)
	require.NoError(t, err)
	assert.NoError(t, pub.Verify(message, sig))
}

func TestSSHSignerRSAUsesSHA1(t *testing.T) {
	k := mustParsePEM(t, testdata.RSAKey)
	defer k.Wipe()
	sg, err := NewSSHSigner(k)
	require.NoError(t, err)
	_, ok := interface{}(sg).(ssh.AlgorithmSigner)
	assert.False(t, ok)

	sig, err := sg.Sign(rand.Reader, message)
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoRSA, sig.Format)
	assert.NoError(t, sg.PublicKey().Verify(message, sig))
}
