package sshclient

import (
	"errors"
	"fmt"

	"github.com/remotecli/remotecli/algorithm"
	"github.com/remotecli/remotecli/hostkey"
	"golang.org/x/crypto/ssh"
)

// Algorithms implemented by golang.org/x/crypto/ssh on the client side.
var (
	supportedKex = []string{
		"curve25519-sha256", "curve25519-sha256@libssh.org",
		"ecdh-sha2-nistp256", "ecdh-sha2-nistp384", "ecdh-sha2-nistp521",
		"diffie-hellman-group14-sha256", "diffie-hellman-group16-sha512",
		"diffie-hellman-group-exchange-sha256", "diffie-hellman-group-exchange-sha1",
		"diffie-hellman-group14-sha1", "diffie-hellman-group1-sha1",
	}
	supportedCiphers = []string{
		"chacha20-poly1305@openssh.com", "aes256-gcm@openssh.com", "aes128-gcm@openssh.com",
		"aes256-ctr", "aes192-ctr", "aes128-ctr",
		"aes128-cbc", "3des-cbc", "arcfour",
	}
	supportedMACs = []string{
		"hmac-sha2-256-etm@openssh.com", "hmac-sha2-512-etm@openssh.com",
		"hmac-sha2-256", "hmac-sha2-512", "hmac-sha1", "hmac-sha1-96",
	}
	supportedCompression = []string{"none"}
)

// sshConfig narrows prefs to what the engine implements.
func sshConfig(prefs *algorithm.Preferences) (ssh.Config, error) {
	c := ssh.Config{
		KeyExchanges: algorithm.Shortlist(prefs.KexNames(), supportedKex),
		Ciphers:      algorithm.Shortlist(prefs.CipherNames(), supportedCiphers),
		MACs:         algorithm.Shortlist(prefs.MACNames(), supportedMACs),
	}
	switch {
	case len(c.KeyExchanges) == 0:
		return c, errors.New("no supported key exchange method")
	case len(c.Ciphers) == 0:
		return c, errors.New("no supported cipher")
	case len(c.MACs) == 0:
		return c, errors.New("no supported mac")
	}
	if len(prefs.Compression) > 0 && len(algorithm.Shortlist(prefs.CompressionNames(), supportedCompression)) == 0 {
		return c, fmt.Errorf("compression %v not supported", prefs.CompressionNames())
	}
	return c, nil
}

// hostKeyAlgorithms lists the signature algorithms able to prove possession
// of the trusted keys, so the server presents a key we can verify.
func hostKeyAlgorithms(keys []*hostkey.Hostkey) []string {
	var algs []string
	seen := make(map[string]bool)
	add := func(names ...string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				algs = append(algs, n)
			}
		}
	}
	for _, k := range keys {
		if k.Algorithm == algorithm.SSHRSA {
			add(ssh.KeyAlgoRSASHA512, ssh.KeyAlgoRSASHA256)
		}
		add(k.Algorithm.Name())
	}
	return algs
}
