// Package orchestrator runs one analysis: fetch the object, detect labels,
// print them, draw their boxes and show the annotated image.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/menta2k/label-analyzer/internal/utils"
	"github.com/menta2k/label-analyzer/pkg/client"
	"github.com/menta2k/label-analyzer/pkg/fault"
	"github.com/menta2k/label-analyzer/pkg/processing"
	"github.com/menta2k/label-analyzer/pkg/types"
	"github.com/menta2k/label-analyzer/pkg/viewer"
)

// Output controls where the annotated image goes
type Output struct {
	// Path of the annotated image. Empty writes a temporary file that is
	// removed after display, unless the viewer returns before the image is closed.
	Path     string
	Format   string
	Quality  int
	Lossless bool
	// JSONPath, when set, receives the parsed labels as JSON
	JSONPath string
}

// Orchestrator coordinates the object store, the vision service and rendering
type Orchestrator struct {
	store     client.ObjectStore
	analyzer  client.VisionAnalyzer
	processor *processing.Processor
	viewer    viewer.Viewer
	out       io.Writer
	logger    *zap.Logger
	output    Output
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithProcessor replaces the default image processor
func WithProcessor(p *processing.Processor) Option {
	return func(o *Orchestrator) { o.processor = p }
}

// WithViewer sets the display. The default shows nothing.
func WithViewer(v viewer.Viewer) Option {
	return func(o *Orchestrator) { o.viewer = v }
}

// WithStdout sets where label lines are printed
func WithStdout(w io.Writer) Option {
	return func(o *Orchestrator) { o.out = w }
}

// WithLogger sets the diagnostic logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithOutput sets the annotated image destination
func WithOutput(out Output) Option {
	return func(o *Orchestrator) { o.output = out }
}

// New creates an orchestrator over the given collaborators
func New(store client.ObjectStore, analyzer client.VisionAnalyzer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		analyzer:  analyzer,
		processor: processing.NewProcessor(),
		viewer:    viewer.None{},
		out:       os.Stdout,
		logger:    zap.NewNop(),
		output:    Output{Format: "png", Quality: 90},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result summarizes a completed run
type Result struct {
	Labels     []types.Label
	Boxes      []processing.DrawnBox
	OutputPath string
}

// Analyze runs the full pipeline for one request. Any failure aborts the run
// at the failing step; nothing downstream is attempted.
func (o *Orchestrator) Analyze(ctx context.Context, req types.AnalysisRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fault.New(fault.Usage, "validate request", err)
	}
	log := o.logger.With(zap.String("bucket", req.Bucket), zap.String("key", req.Key))

	log.Info("Fetching image")
	data, err := o.store.Get(ctx, req.Bucket, req.Key)
	if err != nil {
		return nil, err
	}
	log.Debug("Fetched image", zap.String("size", utils.FormatFileSize(int64(len(data)))))

	log.Info("Detecting labels",
		zap.Int("max_labels", req.MaxLabels),
		zap.Any("min_confidence", req.MinConfidence))
	labels, err := o.analyzer.DetectLabels(ctx, types.Source{Bucket: req.Bucket, Key: req.Key, Data: data}, req.Options())
	if err != nil {
		return nil, err
	}

	if err := o.printLabels(labels); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		log.Warn("No labels detected")
	}
	for _, l := range labels {
		log.Debug("Label", zap.String("name", l.Name), zap.Int("instances", len(l.Instances)))
	}

	if o.output.JSONPath != "" {
		if err := writeJSON(o.output.JSONPath, labels); err != nil {
			return nil, err
		}
		log.Info("Labels written", zap.String("path", o.output.JSONPath))
	}

	buf, err := o.processor.Decode(data)
	if err != nil {
		return nil, err
	}

	drawn := o.processor.Annotate(buf, labels)
	for _, b := range drawn {
		log.Debug("Drew box",
			zap.String("label", b.Label),
			zap.String("color", b.Color),
			zap.Int("x", b.Rect.Min.X),
			zap.Int("y", b.Rect.Min.Y),
			zap.Int("width", b.Rect.Dx()),
			zap.Int("height", b.Rect.Dy()))
	}
	if len(drawn) == 0 {
		log.Info("No bounding boxes to draw")
	} else {
		log.Info("Drew bounding boxes", zap.Int("count", len(drawn)))
	}

	path, cleanup, err := o.outputPath(req.Key)
	if err != nil {
		return nil, err
	}
	// a launcher that returns early leaves the image to another process
	keep := o.output.Path != "" || !viewer.Blocks(o.viewer)
	defer func() {
		if !keep {
			cleanup()
		}
	}()

	// the path extension decides the encoder
	format := utils.NormalizeFormat(utils.GetFileExtension(path))
	if err := o.processor.SaveImage(buf.Image, path, format, o.output.Quality, o.output.Lossless); err != nil {
		keep = o.output.Path != ""
		return nil, fault.New(fault.Unknown, "save annotated image", err)
	}
	if o.output.Path != "" {
		log.Info("Annotated image saved", zap.String("path", path))
	}

	if err := o.viewer.Show(ctx, path, req.Bucket+"/"+req.Key); err != nil {
		keep = o.output.Path != ""
		return nil, fault.New(fault.Unknown, "display image", err)
	}

	result := &Result{Labels: labels, Boxes: drawn}
	if keep {
		result.OutputPath = path
	}
	if o.output.Path == "" && keep {
		log.Info("Viewer returned before the image was closed; annotated image kept", zap.String("path", path))
	}
	return result, nil
}

// printLabels writes one "<name>: <confidence>%" line per label in response order
func (o *Orchestrator) printLabels(labels []types.Label) error {
	for _, l := range labels {
		if _, err := fmt.Fprintf(o.out, "%s: %.1f%%\n", l.Name, l.Confidence); err != nil {
			return fault.New(fault.Unknown, "print labels", err)
		}
	}
	return nil
}

// outputPath returns the annotated image path and a cleanup for temporary files
func (o *Orchestrator) outputPath(key string) (string, func(), error) {
	format := utils.NormalizeFormat(o.output.Format)
	if path := o.output.Path; path != "" {
		if utils.GetFileExtension(path) == "" {
			path += "." + format
		}
		if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
			return "", nil, fault.New(fault.Unknown, "create output directory", err)
		}
		return path, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "label-analyzer-")
	if err != nil {
		return "", nil, fault.New(fault.Unknown, "create temp directory", err)
	}
	path := utils.GenerateOutputFilename(key, dir, "_labels", format)
	return path, func() { os.RemoveAll(dir) }, nil
}

func writeJSON(path string, labels []types.Label) error {
	if labels == nil {
		labels = []types.Label{}
	}
	data, err := json.MarshalIndent(labels, "", "  ")
	if err != nil {
		return fault.New(fault.Unknown, "encode labels", err)
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fault.New(fault.Unknown, "create json directory", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fault.New(fault.Unknown, "write labels", err)
	}
	return nil
}
