package hostkey

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/lib/fingerprint"
	"github.com/remotecli/remotecli/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/krl"
	"golang.org/x/crypto/ssh"
)

func newHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pub, err := ssh.NewPublicKey(&k.PublicKey)
	require.NoError(t, err)
	return pub
}

func TestParseType(t *testing.T) {
	var tests = []struct {
		in   string
		want Type
	}{
		{"", Full},
		{"full", Full},
		{"MD5", MD5},
		{"bubblebabble", BubbleBabble},
	}
	for _, tc := range tests {
		got, err := ParseType(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
	_, err := ParseType("sha256")
	assert.Error(t, err)
	assert.Equal(t, "bubblebabble", BubbleBabble.String())
}

func TestInsert(t *testing.T) {
	h := NewHostID("example.com")
	assert.Equal(t, DefaultPort, h.Port)
	assert.Equal(t, "example.com:22", h.Addr())

	k1, err := New(algorithm.SSHRSA, MD5, []byte("aa:bb"))
	require.NoError(t, err)
	k2, err := New(algorithm.SSHRSA, Full, []byte{1, 2, 3})
	require.NoError(t, err)
	k3, err := New(algorithm.ECDSASHA2NistP256, BubbleBabble, []byte("xexax"))
	require.NoError(t, err)

	require.NoError(t, h.Insert(k1))
	assert.ErrorIs(t, h.Insert(k2), ErrDuplicateAlgorithm)
	require.NoError(t, h.Insert(k3))
	assert.Len(t, h.Hostkeys, 2)

	assert.Error(t, h.Insert(nil))
	assert.Error(t, h.Insert(&Hostkey{Key: []byte{1}}))

	_, err = New(algorithm.SSHRSA, Full, nil)
	assert.Error(t, err)
}

func TestNewCopiesKey(t *testing.T) {
	b := []byte{1, 2, 3}
	k, err := New(algorithm.SSHDSS, Full, b)
	require.NoError(t, err)
	b[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, k.Key)
}

func TestValidate(t *testing.T) {
	h := &HostID{Port: 70000}
	err := h.Validate()
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 3)

	h = NewHostID("example.com")
	require.NoError(t, h.Insert(&Hostkey{Algorithm: algorithm.SSHRSA, Key: []byte{1}}))
	assert.NoError(t, h.Validate())
}

func TestVerify(t *testing.T) {
	pub := newHostKey(t)
	blob := pub.Marshal()
	other := newHostKey(t).Marshal()

	md5 := fingerprint.MD5(blob)
	bb := fingerprint.SHA1BubbleBabble(blob)

	var tests = []struct {
		name string
		key  *Hostkey
		alg  string
		blob []byte
		want bool
	}{
		{"full", &Hostkey{algorithm.ECDSASHA2NistP256, Full, blob}, "ecdsa-sha2-nistp256", blob, true},
		{"full any algorithm", &Hostkey{algorithm.ECDSASHA2NistP256, Full, blob}, "", blob, true},
		{"full other key", &Hostkey{algorithm.ECDSASHA2NistP256, Full, blob}, "", other, false},
		{"algorithm filter", &Hostkey{algorithm.SSHRSA, Full, blob}, "ecdsa-sha2-nistp256", blob, false},
		{"md5", &Hostkey{algorithm.ECDSASHA2NistP256, MD5, []byte(md5)}, "ecdsa-sha2-nistp256", blob, true},
		{"md5 upper case", &Hostkey{algorithm.ECDSASHA2NistP256, MD5, []byte(strings.ToUpper(md5))}, "", blob, true},
		{"md5 other key", &Hostkey{algorithm.ECDSASHA2NistP256, MD5, []byte(md5)}, "", other, false},
		{"bubblebabble", &Hostkey{algorithm.ECDSASHA2NistP256, BubbleBabble, []byte(bb)}, "", blob, true},
		{"bubblebabble is case sensitive", &Hostkey{algorithm.ECDSASHA2NistP256, BubbleBabble, []byte(strings.ToUpper(bb))}, "", blob, false},
		{"empty key", &Hostkey{algorithm.ECDSASHA2NistP256, Full, blob}, "", nil, false},
	}
	for _, tc := range tests {
		v := NewVerifier([]*Hostkey{tc.key})
		assert.Equal(t, tc.want, v.Verify(tc.alg, tc.blob), tc.name)
	}
	assert.False(t, NewVerifier(nil).Verify("", blob))
}

func TestVerifySkipsEmptyRecords(t *testing.T) {
	blob := newHostKey(t).Marshal()
	v := NewVerifier([]*Hostkey{
		nil,
		{Algorithm: algorithm.ECDSASHA2NistP256, Type: Full},
		{Algorithm: algorithm.ECDSASHA2NistP256, Type: Full, Key: blob},
	})
	assert.True(t, v.Verify("", blob))
}

func TestRevocationList(t *testing.T) {
	pub := newHostKey(t)
	list := &krl.KRL{
		Sections: []krl.KRLSection{&krl.KRLExplicitKeySection{pub}},
	}
	data, err := list.Marshal(rand.Reader)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "revoked_keys")
	require.NoError(t, os.WriteFile(path, data, 0600))
	revoked, err := ReadRevocationList(path)
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.M.HostKeyChecks.WithLabelValues("revoked"))
	v := NewVerifier([]*Hostkey{{algorithm.ECDSASHA2NistP256, Full, pub.Marshal()}}).WithRevocationList(revoked)
	assert.False(t, v.Verify("", pub.Marshal()))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.M.HostKeyChecks.WithLabelValues("revoked")))

	err = v.Callback()("example.com", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 22}, pub)
	assert.ErrorIs(t, err, ErrRevoked)

	_, err = ReadRevocationList(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestCallback(t *testing.T) {
	pub := newHostKey(t)
	h := NewHostID("example.com")
	require.NoError(t, h.Insert(&Hostkey{algorithm.ECDSASHA2NistP256, BubbleBabble, []byte(fingerprint.SHA1BubbleBabble(pub.Marshal()))}))
	cb := h.Verifier().Callback()
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 22}
	assert.NoError(t, cb("example.com", addr, pub))
	assert.ErrorIs(t, cb("example.com", addr, newHostKey(t)), ErrMismatch)
}

func trustStore(pub ssh.PublicKey) string {
	authorized := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
	return `
host {
	name = "build.example.com"
	hostkey {
		key = "` + authorized + `"
	}
	hostkey {
		algorithm = "ssh-rsa"
		type = "md5"
		key = "MD5:d4:1d:8c:d9:8f:00:b2:04:e9:80:09:98:ec:f8:42:7e"
	}
}
host {
	name = "db.example.com"
	port = 2222
	hostkey {
		algorithm = "ssh-dss"
		type = "bubblebabble"
		key = "xukif-namov-vilek-rodab-tisah-hozev-zyhik-bikyn-barot-mocab-nexox"
	}
}
`
}

func TestParseTrustStore(t *testing.T) {
	pub := newHostKey(t)
	ts, err := ParseTrustStore([]byte(trustStore(pub)))
	require.NoError(t, err)
	require.Len(t, ts.Hosts(), 2)

	h, ok := ts.Lookup("build.example.com", 0)
	require.True(t, ok)
	require.Len(t, h.Hostkeys, 2)
	assert.Equal(t, algorithm.ECDSASHA2NistP256, h.Hostkeys[0].Algorithm)
	assert.Equal(t, pub.Marshal(), h.Hostkeys[0].Key)
	assert.Equal(t, MD5, h.Hostkeys[1].Type)
	assert.Equal(t, "d4:1d:8c:d9:8f:00:b2:04:e9:80:09:98:ec:f8:42:7e", string(h.Hostkeys[1].Key))
	assert.True(t, h.Verifier().Verify("ecdsa-sha2-nistp256", pub.Marshal()))

	h, ok = ts.Lookup("DB.example.com", 2222)
	require.True(t, ok)
	assert.Equal(t, "db.example.com:2222", h.Addr())
	assert.Equal(t, BubbleBabble, h.Hostkeys[0].Type)

	_, ok = ts.Lookup("db.example.com", 22)
	assert.False(t, ok)
}

func hostBlock(name string, keys ...string) string {
	b := "host {\n"
	if name != "" {
		b += "\tname = \"" + name + "\"\n"
	}
	for _, k := range keys {
		b += "\thostkey {\n" + k + "\t}\n"
	}
	return b + "}\n"
}

func keyBlock(alg, typ, key string) string {
	var b string
	if alg != "" {
		b += "\t\talgorithm = \"" + alg + "\"\n"
	}
	if typ != "" {
		b += "\t\ttype = \"" + typ + "\"\n"
	}
	return b + "\t\tkey = \"" + key + "\"\n"
}

func TestParseTrustStoreErrors(t *testing.T) {
	md5 := keyBlock("ssh-rsa", "md5", "aa:bb")
	var tests = []struct {
		name string
		data string
	}{
		{"not hcl", "host {"},
		{"duplicate algorithm", hostBlock("a", md5, keyBlock("ssh-rsa", "md5", "cc:dd"))},
		{"bad md5", hostBlock("a", keyBlock("ssh-rsa", "md5", "aa-bb"))},
		{"bad bubblebabble", hostBlock("a", keyBlock("ssh-rsa", "bubblebabble", "xesef-disof-gytuf-katof-movif-bexux"))},
		{"unknown type", hostBlock("a", keyBlock("ssh-rsa", "sha256", "aa:bb"))},
		{"unknown algorithm", hostBlock("a", keyBlock("ssh-ed448", "md5", "aa:bb"))},
		{"fingerprint without algorithm", hostBlock("a", keyBlock("", "md5", "aa:bb"))},
		{"bad full key", hostBlock("a", keyBlock("", "", "!!!"))},
		{"no keys", hostBlock("a")},
		{"missing name", hostBlock("", md5)},
		{"listed twice", hostBlock("a", md5) + hostBlock("a", keyBlock("ssh-dss", "md5", "aa:bb"))},
	}
	for _, tc := range tests {
		_, err := ParseTrustStore([]byte(tc.data))
		assert.Error(t, err, tc.name)
	}
	_, err := ParseTrustStore([]byte(hostBlock("a", md5)))
	assert.NoError(t, err)
}

func TestReadTrustStore(t *testing.T) {
	pub := newHostKey(t)
	path := filepath.Join(t.TempDir(), "known_hosts.hcl")
	require.NoError(t, os.WriteFile(path, []byte(trustStore(pub)), 0600))
	ts, err := ReadTrustStore(path)
	require.NoError(t, err)
	assert.Len(t, ts.Hosts(), 2)

	_, err = ReadTrustStore(path + ".missing")
	assert.Error(t, err)
}
