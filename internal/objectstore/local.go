package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore writes objects to <root>/<bucket>/<key>.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Path returns the file path an object is written to.
func (s *LocalStore) Path(bucket, key string) string {
	return filepath.Join(s.root, bucket, filepath.FromSlash(key))
}

// Put copies body to the object path, creating parent directories. Keys leaving the bucket are rejected.
func (s *LocalStore) Put(ctx context.Context, bucket, key string, body io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bucket == "" || !filepath.IsLocal(bucket) || !filepath.IsLocal(filepath.FromSlash(key)) {
		return fmt.Errorf("invalid object location %q/%q", bucket, key)
	}

	dest := s.Path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", dest, err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	_, copyErr := io.Copy(f, body)
	if err := errors.Join(copyErr, f.Close()); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
