// Package objectstore uploads export files to S3 or to a local directory tree.
package objectstore

import (
	"context"
	"fmt"
	"io"
)

// Backend names accepted by New.
const (
	BackendS3    = "s3"
	BackendLocal = "local"
)

// Store puts one object under bucket/key.
type Store interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// Options configures the backend chosen by New.
type Options struct {
	Backend         string
	LocalRoot       string
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// New returns the Store for opts.Backend.
func New(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendS3:
		return NewS3Store(ctx, opts)
	case BackendLocal:
		return NewLocalStore(opts.LocalRoot), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
