package rekognition

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/menta2k/label-analyzer/pkg/fault"
	"github.com/menta2k/label-analyzer/pkg/types"
)

// API is the subset of the Rekognition client used by Client
type API interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// Client detects labels with Amazon Rekognition, referencing the image by its S3 location
type Client struct {
	api API
}

// NewClient creates a Rekognition client from a resolved AWS config
func NewClient(cfg aws.Config) *Client {
	return &Client{api: rekognition.NewFromConfig(cfg)}
}

// NewClientWithAPI creates a client over a custom API implementation
func NewClientWithAPI(api API) *Client {
	return &Client{api: api}
}

// DetectLabels runs DetectLabels against s3://bucket/key. MaxLabels and
// MinConfidence are forwarded only when set.
func (c *Client) DetectLabels(ctx context.Context, src types.Source, opts types.DetectOptions) ([]types.Label, error) {
	input := &rekognition.DetectLabelsInput{
		Image: &rektypes.Image{
			S3Object: &rektypes.S3Object{
				Bucket: aws.String(src.Bucket),
				Name:   aws.String(src.Key),
			},
		},
	}
	if opts.MaxLabels > 0 {
		input.MaxLabels = aws.Int32(int32(opts.MaxLabels))
	}
	if opts.MinConfidence != nil {
		input.MinConfidence = aws.Float32(float32(*opts.MinConfidence))
	}

	out, err := c.api.DetectLabels(ctx, input)
	if err != nil {
		return nil, fault.FromAWS(fmt.Sprintf("detect labels s3://%s/%s", src.Bucket, src.Key), err)
	}

	return convertLabels(out.Labels), nil
}

func convertLabels(in []rektypes.Label) []types.Label {
	labels := make([]types.Label, 0, len(in))
	for _, l := range in {
		label := types.Label{
			Name:       aws.ToString(l.Name),
			Confidence: float64(aws.ToFloat32(l.Confidence)),
		}
		for _, inst := range l.Instances {
			if inst.BoundingBox == nil {
				continue
			}
			label.Instances = append(label.Instances, types.Instance{
				Box: types.BoundingBox{
					Left:   float64(aws.ToFloat32(inst.BoundingBox.Left)),
					Top:    float64(aws.ToFloat32(inst.BoundingBox.Top)),
					Width:  float64(aws.ToFloat32(inst.BoundingBox.Width)),
					Height: float64(aws.ToFloat32(inst.BoundingBox.Height)),
				},
				Confidence: float64(aws.ToFloat32(inst.Confidence)),
			})
		}
		labels = append(labels, label)
	}
	return labels
}
