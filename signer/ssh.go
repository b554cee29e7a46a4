package signer

import (
	"fmt"
	"io"
	"sync"

	"github.com/remotecli/remotecli/lib"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// SSHSigner exposes a KeyPair as an ssh.Signer for public key
// authentication.
//
// Signatures always use the fixed digest of the key algorithm. It does not
// implement ssh.AlgorithmSigner, so an RSA key is only offered as ssh-rsa
// (SHA-1), which OpenSSH 8.8 and later refuse unless PubkeyAcceptedAlgorithms
// allows it. Use an ECDSA key for such servers.
type SSHSigner struct {
	mu  sync.Mutex
	key *KeyPair
	pub ssh.PublicKey
}

// NewSSHSigner wraps k. The public key is parsed back from the blob built by
// PublicKeyBlob.
func NewSSHSigner(k *KeyPair) (*SSHSigner, error) {
	blob, err := k.PublicKeyBlob()
	if err != nil {
		return nil, err
	}
	pub, err := ssh.ParsePublicKey(blob)
	if err != nil {
		return nil, fmt.Errorf("unable to parse public key blob: %w", err)
	}
	return &SSHSigner{key: k, pub: pub}, nil
}

// PublicKey implements ssh.Signer.
func (s *SSHSigner) PublicKey() ssh.PublicKey {
	return s.pub
}

// Sign implements ssh.Signer.
func (s *SSHSigner) Sign(rand io.Reader, data []byte) (*ssh.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sg := New()
	if rand != nil {
		sg.rand = rand
	}
	if err := sg.PassKey(s.key); err != nil {
		return nil, err
	}
	if err := sg.Sign(data); err != nil {
		return nil, err
	}
	return &ssh.Signature{
		Format: sg.Format(),
		Blob:   sg.Payload(),
	}, nil
}

// AuthorizedKey returns the authorized_keys line for the key, with an
// optional comment and without a trailing newline.
func (s *SSHSigner) AuthorizedKey(comment string) string {
	return lib.AuthorizedKey(s.pub, comment)
}

// AddToAgent installs k into an ssh-agent. An agent over a socket needs the
// CRT values of an RSA key, so an RSA key whose primes could not be
// recovered from its exponents is refused here.
func AddToAgent(a agent.Agent, k *KeyPair, comment string, lifetimeSecs uint32) error {
	priv := k.privateKey()
	if priv == nil {
		return fmt.Errorf("%w: key has been wiped", ErrInvalidKey)
	}
	if k.rsa != nil && len(k.rsa.Primes) != 2 {
		return fmt.Errorf("%w: RSA key primes unknown, ssh-agent would reject it", ErrInvalidKey)
	}
	err := a.Add(agent.AddedKey{
		PrivateKey:   priv,
		Comment:      comment,
		LifetimeSecs: lifetimeSecs,
	})
	if err != nil {
		return fmt.Errorf("unable to add key to ssh agent: %w", err)
	}
	return nil
}
