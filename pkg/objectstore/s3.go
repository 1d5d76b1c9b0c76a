// Package objectstore implements client.ObjectStore for S3, Google Cloud
// Storage, Supabase Storage and the local filesystem.
package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/menta2k/label-analyzer/pkg/fault"
)

// S3API is the subset of the S3 client used by S3Store
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads objects from Amazon S3
type S3Store struct {
	api S3API
}

// NewS3 creates an S3 store from a resolved AWS config
func NewS3(cfg aws.Config) *S3Store {
	return &S3Store{api: s3.NewFromConfig(cfg)}
}

// NewS3WithAPI creates an S3 store over a custom client
func NewS3WithAPI(api S3API) *S3Store {
	return &S3Store{api: api}
}

// Get downloads the whole object body
func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fault.FromAWS(fmt.Sprintf("get s3://%s/%s", bucket, key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fault.New(fault.Service, "read object body", err)
	}
	return data, nil
}
