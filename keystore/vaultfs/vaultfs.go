// Package vaultfs serves Vault secrets as the /vault/ well-known filesystem,
// so keys and trust stores can be read with wkfs.ReadFile.
package vaultfs

import (
	"bytes"
	"errors"
	"os"
	"path"
	"time"

	"github.com/remotecli/remotecli/keystore/vault"
	"go4.org/wkfs"
)

// Register the /vault/ filesystem. Without an address every read fails with
// the reason.
func Register(address, token string) {
	if address == "" {
		register(&vaultFS{err: errors.New("no vault configuration found")})
		return
	}
	client, err := vault.NewClient(address, token)
	if err != nil {
		register(&vaultFS{err: err})
		return
	}
	register(&vaultFS{client: client})
}

func register(fs *vaultFS) {
	wkfs.RegisterFS(vault.Prefix, fs)
}

type vaultFS struct {
	err    error
	client *vault.Client
}

func (fs *vaultFS) read(name string) (string, error) {
	if fs.err != nil {
		return "", fs.err
	}
	return fs.client.Read(name)
}

// Open opens the named secret for reading.
func (fs *vaultFS) Open(name string) (wkfs.File, error) {
	secret, err := fs.read(name)
	if err != nil {
		return nil, err
	}
	return &file{
		info:   newInfo(name, secret),
		Reader: bytes.NewReader([]byte(secret)),
	}, nil
}

func (fs *vaultFS) Stat(name string) (os.FileInfo, error) { return fs.Lstat(name) }

func (fs *vaultFS) Lstat(name string) (os.FileInfo, error) {
	secret, err := fs.read(name)
	if err != nil {
		return nil, err
	}
	return newInfo(name, secret), nil
}

func (fs *vaultFS) MkdirAll(path string, perm os.FileMode) error {
	return errors.New("vaultfs: read only")
}

func (fs *vaultFS) OpenFile(name string, flag int, perm os.FileMode) (wkfs.FileWriter, error) {
	return nil, errors.New("vaultfs: read only")
}

func (fs *vaultFS) Remove(name string) error {
	return errors.New("vaultfs: read only")
}

type fileInfo struct {
	name string
	size int64
}

func newInfo(name, secret string) *fileInfo {
	return &fileInfo{name: path.Base(name), size: int64(len(secret))}
}

func (fi *fileInfo) IsDir() bool        { return false }
func (fi *fileInfo) ModTime() time.Time { return time.Time{} }
func (fi *fileInfo) Mode() os.FileMode  { return 0400 }
func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Sys() interface{}   { return nil }

type file struct {
	info *fileInfo
	*bytes.Reader
}

func (*file) Close() error                  { return nil }
func (f *file) Name() string                { return f.info.name }
func (f *file) Stat() (os.FileInfo, error) { return f.info, nil }
