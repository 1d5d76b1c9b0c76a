package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/menta2k/label-analyzer/pkg/fault"
)

// LocalStore treats a bucket as a directory and a key as a slash separated path inside it
type LocalStore struct{}

// NewLocal creates a filesystem store
func NewLocal() *LocalStore {
	return &LocalStore{}
}

// Get reads bucket/key from disk
func (s *LocalStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	op := fmt.Sprintf("read %s/%s", bucket, key)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return nil, fault.New(fault.Permission, op, errors.New("key escapes the bucket directory"))
	}

	data, err := os.ReadFile(filepath.Join(bucket, rel))
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, fault.New(fault.NotFound, op, err)
	case errors.Is(err, fs.ErrPermission):
		return nil, fault.New(fault.Permission, op, err)
	default:
		return nil, fault.New(fault.Service, op, err)
	}
}
