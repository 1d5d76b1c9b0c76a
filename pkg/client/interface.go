package client

import (
	"context"

	"github.com/menta2k/label-analyzer/pkg/types"
)

// ObjectStore reads a single object from a storage bucket
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// VisionAnalyzer detects labels for an image in a bucket
type VisionAnalyzer interface {
	DetectLabels(ctx context.Context, src types.Source, opts types.DetectOptions) ([]types.Label, error)
}

// ModelClient talks to a local vision model server
type ModelClient interface {
	SimpleQuery(ctx context.Context, model, prompt string, img []byte) (string, error)
}
