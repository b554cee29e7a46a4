// Package s3fs registers a read-mostly /s3/ well-known filesystem so that key
// material, trust stores and revocation lists can be loaded from S3 buckets.
package s3fs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"go4.org/wkfs"
)

// Prefix is the path prefix handled by this filesystem.
const Prefix = "/s3/"

var errReadOnly = errors.New("s3fs: read only")

// Register the /s3/ filesystem as a well-known filesystem.
// Empty keys fall back to the standard AWS credential chain.
func Register(region, accessKey, secretKey string) {
	ac := &aws.Config{}
	// If region is unset the SDK will attempt to read the region from the environment.
	if region != "" {
		ac.Region = aws.String(region)
	}
	if accessKey != "" && secretKey != "" {
		ac.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}
	register(ac)
}

func register(ac *aws.Config) {
	sess, err := session.NewSession(ac)
	if err != nil {
		registerBrokenFS(fmt.Errorf("s3fs: %w", err))
		return
	}
	if _, err := sess.Config.Credentials.Get(); err != nil {
		registerBrokenFS(errors.New("s3fs: aws credentials not found"))
		return
	}
	sc := s3.New(sess)
	if aws.StringValue(sc.Config.Region) == "" {
		registerBrokenFS(errors.New("s3fs: aws region configuration not found"))
		return
	}
	wkfs.RegisterFS(Prefix, &s3FS{sc: sc})
}

func registerBrokenFS(err error) {
	wkfs.RegisterFS(Prefix, &s3FS{err: err})
}

type s3FS struct {
	sc  *s3.S3
	err error
}

func (fs *s3FS) parseName(name string) (bucket, key string, err error) {
	if fs.err != nil {
		return "", "", fs.err
	}
	name = strings.TrimPrefix(name, Prefix)
	i := strings.Index(name, "/")
	if i <= 0 || i == len(name)-1 {
		return "", "", fmt.Errorf("s3fs: %q is not of the form bucket/key", name)
	}
	return name[:i], name[i+1:], nil
}

// notExist maps missing buckets and keys onto os.ErrNotExist.
func notExist(err error) error {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return os.ErrNotExist
		}
	}
	return err
}

// Open opens the named object for reading.
func (fs *s3FS) Open(name string) (wkfs.File, error) {
	bucket, key, err := fs.parseName(name)
	if err != nil {
		return nil, err
	}
	obj, err := fs.sc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, notExist(err)
	}
	defer obj.Body.Close()
	slurp, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	return &file{
		name:    name,
		modtime: aws.TimeValue(obj.LastModified),
		Reader:  bytes.NewReader(slurp),
	}, nil
}

func (fs *s3FS) Stat(name string) (os.FileInfo, error) { return fs.Lstat(name) }

func (fs *s3FS) Lstat(name string) (os.FileInfo, error) {
	bucket, key, err := fs.parseName(name)
	if err != nil {
		return nil, err
	}
	obj, err := fs.sc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, notExist(err)
	}
	return &statInfo{
		name:    key,
		size:    aws.Int64Value(obj.ContentLength),
		modtime: aws.TimeValue(obj.LastModified),
	}, nil
}

func (fs *s3FS) MkdirAll(path string, perm os.FileMode) error { return errReadOnly }

func (fs *s3FS) OpenFile(name string, flag int, perm os.FileMode) (wkfs.FileWriter, error) {
	return nil, errReadOnly
}

// Remove deletes the named object.
func (fs *s3FS) Remove(name string) error {
	bucket, key, err := fs.parseName(name)
	if err != nil {
		return err
	}
	_, err = fs.sc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	return notExist(err)
}

type statInfo struct {
	name    string
	size    int64
	modtime time.Time
}

func (si *statInfo) IsDir() bool        { return false }
func (si *statInfo) ModTime() time.Time { return si.modtime }
func (si *statInfo) Mode() os.FileMode  { return 0400 }
func (si *statInfo) Name() string       { return path.Base(si.name) }
func (si *statInfo) Size() int64        { return si.size }
func (si *statInfo) Sys() interface{}   { return nil }

type file struct {
	name    string
	modtime time.Time
	*bytes.Reader
}

func (*file) Close() error   { return nil }
func (f *file) Name() string { return path.Base(f.name) }
func (f *file) Stat() (os.FileInfo, error) {
	return &statInfo{name: f.name, size: f.Size(), modtime: f.modtime}, nil
}
