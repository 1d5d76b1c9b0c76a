// Package gvision detects labels with Google Cloud Vision.
//
// Cloud Vision splits what Rekognition returns in one call across two
// features: LABEL_DETECTION gives scene and object categories without
// geometry, OBJECT_LOCALIZATION gives located objects with normalized
// polygons. Both are requested in one BatchAnnotateImages call and merged so each
// localized object becomes an instance of the label with the same name.
package gvision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/menta2k/label-analyzer/pkg/fault"
	"github.com/menta2k/label-analyzer/pkg/types"
)

// API is the subset of vision.ImageAnnotatorClient used by Client
type API interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// Client detects labels with Cloud Vision
type Client struct {
	api    API
	closer func() error
	inline bool
}

// Option configures a Client
type Option func(*Client)

// WithInlineContent sends the fetched bytes instead of a gs:// reference,
// for objects that do not live in Cloud Storage
func WithInlineContent() Option {
	return func(c *Client) { c.inline = true }
}

// NewClient creates an image annotator client with the given credentials
func NewClient(ctx context.Context, clientOpts []option.ClientOption, opts ...Option) (*Client, error) {
	ic, err := vision.NewImageAnnotatorClient(ctx, clientOpts...)
	if err != nil {
		return nil, fault.FromGoogle("create vision client", err)
	}
	c := &Client{api: ic, closer: ic.Close}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientWithAPI creates a client over a custom API implementation
func NewClientWithAPI(api API, opts ...Option) *Client {
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying connection
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// DetectLabels annotates the image and returns labels in response order.
// Cloud Vision has no confidence threshold parameter, so MinConfidence is
// applied to the merged result.
func (c *Client) DetectLabels(ctx context.Context, src types.Source, opts types.DetectOptions) ([]types.Label, error) {
	op := fmt.Sprintf("annotate %s/%s", src.Bucket, src.Key)

	image := &visionpb.Image{}
	if c.inline {
		if len(src.Data) == 0 {
			return nil, fault.New(fault.Service, op, errors.New("no image content to send"))
		}
		image.Content = src.Data
	} else {
		image.Source = &visionpb.ImageSource{ImageUri: fmt.Sprintf("gs://%s/%s", src.Bucket, src.Key)}
	}

	req := &visionpb.AnnotateImageRequest{
		Image: image,
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: int32(opts.MaxLabels)},
			{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: int32(opts.MaxLabels)},
		},
	}

	batch, err := c.api.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return nil, fault.FromGoogle(op, err)
	}
	if len(batch.GetResponses()) != 1 {
		return nil, fault.Errorf(fault.Service, op, "expected 1 annotation response, got %d", len(batch.GetResponses()))
	}
	res := batch.GetResponses()[0]
	if st := res.GetError(); st != nil && st.GetCode() != 0 {
		return nil, &fault.Error{
			Kind: fault.Service,
			Op:   op,
			Code: fmt.Sprintf("rpc code %d", st.GetCode()),
			Err:  errors.New(st.GetMessage()),
		}
	}

	return types.FilterLabels(mergeAnnotations(res), opts), nil
}

// mergeAnnotations folds localized objects into labels by case-insensitive
// name. Objects without a matching label are appended as their own label.
func mergeAnnotations(res *visionpb.AnnotateImageResponse) []types.Label {
	var labels []types.Label
	index := map[string]int{}

	for _, ann := range res.GetLabelAnnotations() {
		name := ann.GetDescription()
		index[strings.ToLower(name)] = len(labels)
		labels = append(labels, types.Label{
			Name:       name,
			Confidence: percent(ann.GetScore()),
		})
	}

	for _, obj := range res.GetLocalizedObjectAnnotations() {
		box, ok := polyToBox(obj.GetBoundingPoly())
		if !ok {
			continue
		}
		inst := types.Instance{Box: box, Confidence: percent(obj.GetScore())}

		key := strings.ToLower(obj.GetName())
		i, found := index[key]
		if !found {
			i = len(labels)
			index[key] = i
			labels = append(labels, types.Label{Name: obj.GetName(), Confidence: inst.Confidence})
		}
		labels[i].Instances = append(labels[i].Instances, inst)
	}

	return labels
}

func polyToBox(poly *visionpb.BoundingPoly) (types.BoundingBox, bool) {
	vs := poly.GetNormalizedVertices()
	if len(vs) == 0 {
		return types.BoundingBox{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, v := range vs {
		x, y := float64(v.GetX()), float64(v.GetY())
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return types.BoundingBox{Left: minX, Top: minY, Width: maxX - minX, Height: maxY - minY}, true
}

func percent(score float32) float64 {
	return float64(score) * 100
}
