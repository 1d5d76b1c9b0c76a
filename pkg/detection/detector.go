package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"

	// formats a model may be sent, for reading pixel dimensions
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/menta2k/label-analyzer/pkg/client"
	"github.com/menta2k/label-analyzer/pkg/fault"
	"github.com/menta2k/label-analyzer/pkg/types"
)

// DefaultPrompt is the default prompt for label detection
const DefaultPrompt = `You are an image labeler.

Return JSON only:
{
  "labels": [
    {
      "name": "string",
      "confidence": 0.0,
      "instances": [
        {"box": {"left": 0.0, "top": 0.0, "width": 0.0, "height": 0.0}, "confidence": 0.0}
      ]
    }
  ]
}

HARD RULES
- confidence is a percentage between 0 and 100.
- All box coordinates are normalized to [0,1] (NOT pixels), relative to image width and height.
- List objects, scenes and concepts; add instances only for things that can be located.
- Names: short nouns, Title Case, no duplicates.
- Order labels by confidence, highest first.
- If nothing is recognizable, return {"labels": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineComment = regexp.MustCompile(`(?m)\s//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// Detector implements client.VisionAnalyzer on top of a local vision model.
// The model server has no label limit or threshold parameters, so both are
// applied to the parsed response.
type Detector struct {
	client client.ModelClient
	model  string
	prompt string
}

// NewDetector creates a new detector for the given model
func NewDetector(c client.ModelClient, model string) *Detector {
	return &Detector{client: c, model: model, prompt: DefaultPrompt}
}

// WithPrompt replaces the detection prompt
func (d *Detector) WithPrompt(prompt string) *Detector {
	d.prompt = prompt
	return d
}

// DetectLabels sends the fetched image to the model and parses its labels
func (d *Detector) DetectLabels(ctx context.Context, src types.Source, opts types.DetectOptions) ([]types.Label, error) {
	op := fmt.Sprintf("detect labels %s/%s with %s", src.Bucket, src.Key, d.model)
	if len(src.Data) == 0 {
		return nil, fault.New(fault.Service, op, errors.New("model backends need the image content"))
	}

	raw, err := d.client.SimpleQuery(ctx, d.model, d.prompt, src.Data)
	if err != nil {
		return nil, err
	}

	labels, err := parseLabels(raw)
	if err != nil {
		return nil, fault.New(fault.Service, op, err)
	}

	w, h := 0, 0
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(src.Data)); err == nil {
		w, h = cfg.Width, cfg.Height
	}

	return types.FilterLabels(normalizeLabels(labels, w, h), opts), nil
}

type modelResponse struct {
	Labels []types.Label `json:"labels"`
}

// parseLabels parses the JSON response from the vision model
func parseLabels(raw string) ([]types.Label, error) {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, errors.New("model returned a non-JSON response")
	}

	var resp modelResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("malformed model response: %w", err)
	}
	return resp.Labels, nil
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// normalizeLabels trims names, drops unnamed labels, scales fractional
// confidences to percentages and clamps boxes into [0,1]
func normalizeLabels(labels []types.Label, imgW, imgH int) []types.Label {
	fractional := true
	for _, l := range labels {
		if l.Confidence > 1 {
			fractional = false
			break
		}
		for _, in := range l.Instances {
			if in.Confidence > 1 {
				fractional = false
				break
			}
		}
	}
	scale := 1.0
	if fractional {
		scale = 100
	}

	out := make([]types.Label, 0, len(labels))
	for _, l := range labels {
		l.Name = strings.TrimSpace(l.Name)
		if l.Name == "" {
			continue
		}
		l.Confidence = clamp(l.Confidence*scale, 0, 100)

		instances := make([]types.Instance, 0, len(l.Instances))
		for _, in := range l.Instances {
			box := normalizeBox(in.Box, imgW, imgH)
			if box.Width <= 0 || box.Height <= 0 {
				continue
			}
			instances = append(instances, types.Instance{
				Box:        box,
				Confidence: clamp(in.Confidence*scale, 0, 100),
			})
		}
		l.Instances = nil
		if len(instances) > 0 {
			l.Instances = instances
		}
		out = append(out, l)
	}
	return out
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox ensures box coordinates are within [0,1] bounds, converting
// from pixels when the model ignored the prompt and the image size is known
func normalizeBox(b types.BoundingBox, imgW, imgH int) types.BoundingBox {
	if imgW > 0 && imgH > 0 && (b.Left > 1 || b.Top > 1 || b.Width > 1 || b.Height > 1) {
		b = types.BoundingBox{
			Left:   b.Left / float64(imgW),
			Top:    b.Top / float64(imgH),
			Width:  b.Width / float64(imgW),
			Height: b.Height / float64(imgH),
		}
	}

	left := clamp(b.Left, 0, 1)
	top := clamp(b.Top, 0, 1)
	return types.BoundingBox{
		Left:   left,
		Top:    top,
		Width:  clamp(b.Width, 0, 1-left),
		Height: clamp(b.Height, 0, 1-top),
	}
}
