package detection

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/menta2k/label-analyzer/pkg/fault"
	"github.com/menta2k/label-analyzer/pkg/types"
)

type fakeModel struct {
	response string
	err      error
	gotImage []byte
	gotModel string
}

func (f *fakeModel) SimpleQuery(ctx context.Context, model, prompt string, img []byte) (string, error) {
	f.gotImage = img
	f.gotModel = model
	return f.response, f.err
}

// createTestPNG encodes a blank image of the given size
func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetectLabels(t *testing.T) {
	model := &fakeModel{response: "```json\n" + `{
  "labels": [
    {"name": " Cat ", "confidence": 96.5, "instances": [
      {"box": {"left": 0.25, "top": 0.25, "width": 0.5, "height": 0.5}, "confidence": 95}
    ]},
    {"name": "Sofa", "confidence": 81, "instances": []}, // furniture
    {"name": "", "confidence": 70},
  ]
}` + "\n```"}
	d := NewDetector(model, "llava")
	img := createTestPNG(t, 8, 8)

	got, err := d.DetectLabels(context.Background(), types.Source{Bucket: "dir", Key: "cat.png", Data: img}, types.DetectOptions{})
	if err != nil {
		t.Fatalf("DetectLabels failed: %v", err)
	}

	want := []types.Label{
		{Name: "Cat", Confidence: 96.5, Instances: []types.Instance{
			{Box: types.BoundingBox{Left: 0.25, Top: 0.25, Width: 0.5, Height: 0.5}, Confidence: 95},
		}},
		{Name: "Sofa", Confidence: 81},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
	if model.gotModel != "llava" {
		t.Errorf("Expected model llava, got %s", model.gotModel)
	}
	if !bytes.Equal(model.gotImage, img) {
		t.Error("Expected image bytes to be sent to the model")
	}
}

func TestDetectLabelsAppliesOptions(t *testing.T) {
	model := &fakeModel{response: `{"labels":[
		{"name":"Tree","confidence":92},
		{"name":"Bench","confidence":85},
		{"name":"Path","confidence":95},
		{"name":"Bird","confidence":91}
	]}`}
	d := NewDetector(model, "m")
	src := types.Source{Bucket: "b", Key: "k", Data: []byte("x")}

	got, err := d.DetectLabels(context.Background(), src, types.DetectOptions{MaxLabels: 2, MinConfidence: types.Float64(90)})
	if err != nil {
		t.Fatalf("DetectLabels failed: %v", err)
	}

	var names []string
	for _, l := range got {
		names = append(names, l.Name)
	}
	if diff := cmp.Diff([]string{"Tree", "Path"}, names); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectLabelsFractionalConfidence(t *testing.T) {
	model := &fakeModel{response: `{"labels":[{"name":"Car","confidence":0.5,"instances":[{"box":{"left":0,"top":0,"width":0.5,"height":0.5},"confidence":0.25}]}]}`}
	d := NewDetector(model, "m")

	got, err := d.DetectLabels(context.Background(), types.Source{Data: []byte("x")}, types.DetectOptions{})
	if err != nil {
		t.Fatalf("DetectLabels failed: %v", err)
	}
	if got[0].Confidence != 50 || got[0].Instances[0].Confidence != 25 {
		t.Errorf("Expected fractional confidences scaled to 50/25, got %v/%v", got[0].Confidence, got[0].Instances[0].Confidence)
	}
}

func TestDetectLabelsPixelBoxes(t *testing.T) {
	model := &fakeModel{response: `{"labels":[{"name":"Car","confidence":90,"instances":[{"box":{"left":100,"top":50,"width":200,"height":100},"confidence":90}]}]}`}
	d := NewDetector(model, "m")

	got, err := d.DetectLabels(context.Background(), types.Source{Data: createTestPNG(t, 400, 200)}, types.DetectOptions{})
	if err != nil {
		t.Fatalf("DetectLabels failed: %v", err)
	}

	want := types.BoundingBox{Left: 0.25, Top: 0.25, Width: 0.5, Height: 0.5}
	if diff := cmp.Diff(want, got[0].Instances[0].Box); diff != "" {
		t.Errorf("Box mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectLabelsMalformed(t *testing.T) {
	d := NewDetector(&fakeModel{response: "I see a cat."}, "m")

	_, err := d.DetectLabels(context.Background(), types.Source{Data: []byte("x")}, types.DetectOptions{})
	if !errors.Is(err, fault.ErrService) {
		t.Errorf("Expected ServiceError for non-JSON response, got %v", err)
	}
}

func TestDetectLabelsRequiresData(t *testing.T) {
	d := NewDetector(&fakeModel{}, "m")

	_, err := d.DetectLabels(context.Background(), types.Source{Bucket: "b", Key: "k"}, types.DetectOptions{})
	if !errors.Is(err, fault.ErrService) {
		t.Errorf("Expected ServiceError without image data, got %v", err)
	}
}

func TestDetectLabelsPassesClientError(t *testing.T) {
	clientErr := fault.New(fault.NotFound, "chat", errors.New("model not found"))
	d := NewDetector(&fakeModel{err: clientErr}, "m")

	_, err := d.DetectLabels(context.Background(), types.Source{Data: []byte("x")}, types.DetectOptions{})
	if !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("Expected client error to pass through, got %v", err)
	}
}

func TestNormalizeBox(t *testing.T) {
	got := normalizeBox(types.BoundingBox{Left: -0.5, Top: 0.75, Width: 2, Height: 0.5}, 0, 0)
	want := types.BoundingBox{Left: 0, Top: 0.75, Width: 1, Height: 0.25}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Box mismatch (-want +got):\n%s", diff)
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	raw := "```json\n{\"a\": 1, /* note */ \"b\": [1, 2,],}\n```"
	got := sanitizeModelJSON(raw)
	want := `{"a": 1,  "b": [1, 2]}`
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
