package fingerprint

import (
	"crypto/md5"
	"crypto/sha1"
)

// MD5 returns the lower case colon hex MD5 digest of an SSH public key blob,
// as printed by OpenSSH for legacy fingerprints.
func MD5(key []byte) string {
	sum := md5.Sum(key)
	return Hex(sum[:], false)
}

// SHA1BubbleBabble returns the Bubble Babble form of the SHA-1 digest of an
// SSH public key blob.
func SHA1BubbleBabble(key []byte) string {
	sum := sha1.Sum(key)
	return BubbleBabble(sum[:])
}
