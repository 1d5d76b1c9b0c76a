package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/menta2k/label-analyzer/pkg/fault"
)

// GCSStore reads objects from Google Cloud Storage
type GCSStore struct {
	client *storage.Client
}

// NewGCS creates a Cloud Storage client with the given credentials
func NewGCS(ctx context.Context, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fault.FromGoogle("create storage client", err)
	}
	return &GCSStore{client: client}, nil
}

// Get downloads the whole object
func (s *GCSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	op := fmt.Sprintf("get gs://%s/%s", bucket, key)

	rc, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, classifyGCS(op, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, classifyGCS(op, err)
	}
	return data, nil
}

// Close releases the underlying client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func classifyGCS(op string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fault.New(fault.NotFound, op, err)
	}
	return fault.FromGoogle(op, err)
}
