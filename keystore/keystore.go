// Package keystore makes remote secret stores readable as well-known
// filesystems: /vault/ for HashiCorp Vault and /s3/ for Amazon S3.
package keystore

import (
	"sync"

	"github.com/remotecli/remotecli/keystore/s3fs"
	"github.com/remotecli/remotecli/keystore/vaultfs"
)

// Vault holds Hashicorp Vault configuration.
type Vault struct {
	Address string
	Token   string
}

// AWS holds Amazon AWS configuration.
// AWS can also be configured using SDK methods.
type AWS struct {
	Region    string
	AccessKey string
	SecretKey string
}

var once sync.Once

// Register installs the /vault/ and /s3/ filesystems. Only the first call
// has an effect; a filesystem that cannot be configured is still registered
// and fails every read with the reason.
func Register(v Vault, a AWS) {
	once.Do(func() {
		vaultfs.Register(v.Address, v.Token)
		s3fs.Register(a.Region, a.AccessKey, a.SecretKey)
	})
}
