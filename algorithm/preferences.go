package algorithm

import "strings"

// Cipher is an SSH symmetric cipher.
type Cipher int

// SSH ciphers.
const (
	ChaCha20Poly1305 Cipher = iota + 1
	AES256GCM
	AES128GCM
	AES256CTR
	AES256CBC
	Twofish256CTR
	Twofish256CBC
	AES192CTR
	AES192CBC
	AES128CTR
	AES128CBC
	Twofish128CTR
	Twofish128CBC
	BlowfishCTR
	BlowfishCBC
	TripleDESCTR
	TripleDESCBC
	Arcfour
	Cast128CTR
	Cast128CBC
	CipherNone
)

var ciphers = newTable(
	entry[Cipher]{ChaCha20Poly1305, "chacha20-poly1305@openssh.com"},
	entry[Cipher]{AES256GCM, "aes256-gcm@openssh.com"},
	entry[Cipher]{AES128GCM, "aes128-gcm@openssh.com"},
	entry[Cipher]{AES256CTR, "aes256-ctr"},
	entry[Cipher]{AES256CBC, "aes256-cbc"},
	entry[Cipher]{Twofish256CTR, "twofish256-ctr"},
	entry[Cipher]{Twofish256CBC, "twofish256-cbc"},
	entry[Cipher]{AES192CTR, "aes192-ctr"},
	entry[Cipher]{AES192CBC, "aes192-cbc"},
	entry[Cipher]{AES128CTR, "aes128-ctr"},
	entry[Cipher]{AES128CBC, "aes128-cbc"},
	entry[Cipher]{Twofish128CTR, "twofish128-ctr"},
	entry[Cipher]{Twofish128CBC, "twofish128-cbc"},
	entry[Cipher]{BlowfishCTR, "blowfish-ctr"},
	entry[Cipher]{BlowfishCBC, "blowfish-cbc"},
	entry[Cipher]{TripleDESCTR, "3des-ctr"},
	entry[Cipher]{TripleDESCBC, "3des-cbc"},
	entry[Cipher]{Arcfour, "arcfour"},
	entry[Cipher]{Cast128CTR, "cast128-ctr"},
	entry[Cipher]{Cast128CBC, "cast128-cbc"},
	entry[Cipher]{CipherNone, "none"},
)

// Name returns the SSH wire name of c.
func (c Cipher) Name() string { return ciphers.name(c) }

func (c Cipher) String() string { return c.Name() }

// LookupCipher returns the cipher with the given wire name.
func LookupCipher(name string) (Cipher, error) { return ciphers.lookup("cipher", name) }

// Kex is an SSH key exchange method.
type Kex int

// SSH key exchange methods.
const (
	Curve25519SHA256 Kex = iota + 1
	ECDHNistP256
	ECDHNistP384
	ECDHNistP521
	DHGroup14SHA256
	DHGroup16SHA512
	DHGroupExchangeSHA256
	DHGroup14SHA1
	DHGroupExchangeSHA1
	DHGroup1SHA1
)

var kexes = newTable(
	entry[Kex]{Curve25519SHA256, "curve25519-sha256"},
	entry[Kex]{ECDHNistP256, "ecdh-sha2-nistp256"},
	entry[Kex]{ECDHNistP384, "ecdh-sha2-nistp384"},
	entry[Kex]{ECDHNistP521, "ecdh-sha2-nistp521"},
	entry[Kex]{DHGroup14SHA256, "diffie-hellman-group14-sha256"},
	entry[Kex]{DHGroup16SHA512, "diffie-hellman-group16-sha512"},
	entry[Kex]{DHGroupExchangeSHA256, "diffie-hellman-group-exchange-sha256"},
	entry[Kex]{DHGroup14SHA1, "diffie-hellman-group14-sha1"},
	entry[Kex]{DHGroupExchangeSHA1, "diffie-hellman-group-exchange-sha1"},
	entry[Kex]{DHGroup1SHA1, "diffie-hellman-group1-sha1"},
)

// Name returns the SSH wire name of k.
func (k Kex) Name() string { return kexes.name(k) }

func (k Kex) String() string { return k.Name() }

// LookupKex returns the key exchange method with the given wire name.
func LookupKex(name string) (Kex, error) { return kexes.lookup("key exchange", name) }

// MAC is an SSH message authentication code.
type MAC int

// SSH MACs.
const (
	HMACSHA256ETM MAC = iota + 1
	HMACSHA512ETM
	HMACSHA256
	HMACSHA512
	HMACSHA1
	HMACMD5
	HMACSHA196
	HMACMD596
	HMACRIPEMD160
	HMACRIPEMD16096
	MACNone
)

var macs = newTable(
	entry[MAC]{HMACSHA256ETM, "hmac-sha2-256-etm@openssh.com"},
	entry[MAC]{HMACSHA512ETM, "hmac-sha2-512-etm@openssh.com"},
	entry[MAC]{HMACSHA256, "hmac-sha2-256"},
	entry[MAC]{HMACSHA512, "hmac-sha2-512"},
	entry[MAC]{HMACSHA1, "hmac-sha1"},
	entry[MAC]{HMACMD5, "hmac-md5"},
	entry[MAC]{HMACSHA196, "hmac-sha1-96"},
	entry[MAC]{HMACMD596, "hmac-md5-96"},
	entry[MAC]{HMACRIPEMD160, "hmac-ripemd160"},
	entry[MAC]{HMACRIPEMD16096, "hmac-ripemd160-96"},
	entry[MAC]{MACNone, "none"},
)

var macDigests = map[MAC]Digest{
	HMACSHA256ETM: SHA256,
	HMACSHA512ETM: SHA512,
	HMACSHA256:    SHA256,
	HMACSHA512:    SHA512,
	HMACSHA1:      SHA1,
	HMACMD5:       MD5,
}

// Name returns the SSH wire name of m.
func (m MAC) Name() string { return macs.name(m) }

func (m MAC) String() string { return m.Name() }

// Digest returns the digest behind m, or 0 for truncated and exotic MACs.
func (m MAC) Digest() Digest { return macDigests[m] }

// LookupMAC returns the MAC with the given wire name.
func LookupMAC(name string) (MAC, error) { return macs.lookup("mac", name) }

// Compression is an SSH compression method.
type Compression int

// SSH compression methods.
const (
	Zlib Compression = iota + 1
	ZlibOpenSSH
	CompressionNone
)

var compressions = newTable(
	entry[Compression]{Zlib, "zlib"},
	entry[Compression]{ZlibOpenSSH, "zlib@openssh.com"},
	entry[Compression]{CompressionNone, "none"},
)

// Name returns the SSH wire name of c.
func (c Compression) Name() string { return compressions.name(c) }

func (c Compression) String() string { return c.Name() }

// LookupCompression returns the compression method with the given wire name.
func LookupCompression(name string) (Compression, error) {
	return compressions.lookup("compression", name)
}

// Preferences is an ordered, duplicate free selection of algorithms offered
// during the SSH handshake.
type Preferences struct {
	Kex         []Kex
	Ciphers     []Cipher
	MACs        []MAC
	Compression []Compression
}

func appendUnique[T comparable](list []T, v T) []T {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// AppendKex adds k unless it is already present.
func (p *Preferences) AppendKex(k Kex) { p.Kex = appendUnique(p.Kex, k) }

// AppendCipher adds c unless it is already present.
func (p *Preferences) AppendCipher(c Cipher) { p.Ciphers = appendUnique(p.Ciphers, c) }

// AppendMAC adds m unless it is already present.
func (p *Preferences) AppendMAC(m MAC) { p.MACs = appendUnique(p.MACs, m) }

// AppendCompression adds c unless it is already present.
func (p *Preferences) AppendCompression(c Compression) {
	p.Compression = appendUnique(p.Compression, c)
}

// DefaultPreferences returns a selection of modern algorithms.
func DefaultPreferences() *Preferences {
	p := &Preferences{}
	for _, k := range []Kex{Curve25519SHA256, ECDHNistP256, ECDHNistP384, ECDHNistP521, DHGroup14SHA256} {
		p.AppendKex(k)
	}
	for _, c := range []Cipher{ChaCha20Poly1305, AES256GCM, AES128GCM, AES256CTR, AES192CTR, AES128CTR} {
		p.AppendCipher(c)
	}
	for _, m := range []MAC{HMACSHA256ETM, HMACSHA512ETM, HMACSHA256, HMACSHA512} {
		p.AppendMAC(m)
	}
	p.AppendCompression(CompressionNone)
	return p
}

// ParsePreferences builds preferences from lists of wire names. Empty lists
// fall back to the defaults of that family.
func ParsePreferences(kex, ciphers, macs []string) (*Preferences, error) {
	def := DefaultPreferences()
	p := &Preferences{Compression: def.Compression}
	for _, n := range kex {
		k, err := LookupKex(n)
		if err != nil {
			return nil, err
		}
		p.AppendKex(k)
	}
	for _, n := range ciphers {
		c, err := LookupCipher(n)
		if err != nil {
			return nil, err
		}
		p.AppendCipher(c)
	}
	for _, n := range macs {
		m, err := LookupMAC(n)
		if err != nil {
			return nil, err
		}
		p.AppendMAC(m)
	}
	if len(p.Kex) == 0 {
		p.Kex = def.Kex
	}
	if len(p.Ciphers) == 0 {
		p.Ciphers = def.Ciphers
	}
	if len(p.MACs) == 0 {
		p.MACs = def.MACs
	}
	return p, nil
}

func names[T interface{ Name() string }](list []T) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = append(out, v.Name())
	}
	return out
}

// KexNames returns the wire names of the key exchange methods in order.
func (p *Preferences) KexNames() []string { return names(p.Kex) }

// CipherNames returns the wire names of the ciphers in order.
func (p *Preferences) CipherNames() []string { return names(p.Ciphers) }

// MACNames returns the wire names of the MACs in order.
func (p *Preferences) MACNames() []string { return names(p.MACs) }

// CompressionNames returns the wire names of the compression methods in order.
func (p *Preferences) CompressionNames() []string { return names(p.Compression) }

// Shortlist returns the names of preferred that also appear in available,
// keeping the order of preferred. Names are compared ignoring case.
func Shortlist(preferred, available []string) []string {
	var out []string
	for _, p := range preferred {
		for _, a := range available {
			if strings.EqualFold(p, a) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
