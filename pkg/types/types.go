package types

import (
	"errors"
	"fmt"
)

// BoundingBox represents a normalized bounding box with coordinates in [0,1] range,
// relative to the image width (Left, Width) and height (Top, Height)
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Instance is one located occurrence of a label
type Instance struct {
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
}

// Label is a detected object or scene category. Confidence is a percentage in [0,100].
type Label struct {
	Name       string     `json:"name"`
	Confidence float64    `json:"confidence"`
	Instances  []Instance `json:"instances,omitempty"`
}

// BoundingBoxes returns the boxes of every instance in response order
func (l Label) BoundingBoxes() []BoundingBox {
	boxes := make([]BoundingBox, 0, len(l.Instances))
	for _, in := range l.Instances {
		boxes = append(boxes, in.Box)
	}
	return boxes
}

// DetectOptions are the filtering parameters forwarded to the vision service.
// Zero MaxLabels and nil MinConfidence leave the service defaults in place.
type DetectOptions struct {
	MaxLabels     int
	MinConfidence *float64
}

// Source identifies the analyzed object. Data carries the already fetched bytes
// for backends that cannot read the object store themselves.
type Source struct {
	Bucket string
	Key    string
	Data   []byte
}

// AnalysisRequest describes a single analysis run
type AnalysisRequest struct {
	Bucket        string
	Key           string
	MaxLabels     int
	MinConfidence *float64
}

// Options returns the detection options carried by the request
func (r AnalysisRequest) Options() DetectOptions {
	return DetectOptions{MaxLabels: r.MaxLabels, MinConfidence: r.MinConfidence}
}

// Validate checks the request fields
func (r AnalysisRequest) Validate() error {
	if r.Bucket == "" {
		return errors.New("bucket must not be empty")
	}
	if r.Key == "" {
		return errors.New("key must not be empty")
	}
	if r.MaxLabels < 0 {
		return fmt.Errorf("max labels must not be negative, got %d", r.MaxLabels)
	}
	if r.MinConfidence != nil && (*r.MinConfidence < 0 || *r.MinConfidence > 100) {
		return fmt.Errorf("min confidence must be between 0 and 100, got %g", *r.MinConfidence)
	}
	return nil
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}

// FilterLabels applies the detection options locally, for services that do not
// accept them as request parameters. Order is preserved.
func FilterLabels(labels []Label, opts DetectOptions) []Label {
	out := make([]Label, 0, len(labels))
	for _, l := range labels {
		if opts.MinConfidence != nil && l.Confidence < *opts.MinConfidence {
			continue
		}
		out = append(out, l)
		if opts.MaxLabels > 0 && len(out) == opts.MaxLabels {
			break
		}
	}
	return out
}
