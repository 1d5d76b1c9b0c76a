// Package labelanalyzer detects labels in an image held in object storage,
// prints them and shows the image with the detected bounding boxes drawn.
//
// Basic usage:
//
//	cfg := config.Default()
//	cfg.AWS.Region = "us-east-1"
//
//	a, err := labelanalyzer.New(ctx, cfg, logger,
//		orchestrator.WithViewer(viewer.Default()))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer a.Close()
//
//	_, err = a.Analyze(ctx, types.AnalysisRequest{
//		Bucket:        "photos",
//		Key:           "street.jpg",
//		MaxLabels:     10,
//		MinConfidence: types.Float64(75),
//	})
//
// The package wires the pieces selected by the configuration:
//
//  1. Object stores (pkg/objectstore): S3, Google Cloud Storage, Supabase Storage or a local directory
//  2. Vision analyzers: Amazon Rekognition (pkg/rekognition), Google Cloud Vision (pkg/gvision)
//     or a local vision model behind Ollama or llama.cpp (pkg/detection)
//  3. Rendering (pkg/processing) and display (pkg/viewer)
//
// Failures are classified by pkg/fault; fault.ExitCode maps them to distinct
// process exit statuses.
package labelanalyzer

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/menta2k/label-analyzer/internal/config"
	"github.com/menta2k/label-analyzer/pkg/auth"
	"github.com/menta2k/label-analyzer/pkg/client"
	"github.com/menta2k/label-analyzer/pkg/detection"
	"github.com/menta2k/label-analyzer/pkg/fault"
	"github.com/menta2k/label-analyzer/pkg/gvision"
	"github.com/menta2k/label-analyzer/pkg/llamacpp"
	"github.com/menta2k/label-analyzer/pkg/objectstore"
	"github.com/menta2k/label-analyzer/pkg/ollama"
	"github.com/menta2k/label-analyzer/pkg/orchestrator"
	"github.com/menta2k/label-analyzer/pkg/processing"
	"github.com/menta2k/label-analyzer/pkg/rekognition"
	"github.com/menta2k/label-analyzer/pkg/types"
)

// Version of the label analyzer
const Version = "1.0.0"

// LabelAnalyzer is a configured analysis pipeline
type LabelAnalyzer struct {
	orchestrator *orchestrator.Orchestrator
	credentials  *auth.Credentials
	closers      []io.Closer
}

// New resolves credentials and builds the backends selected by cfg. Options
// are applied after the configuration, so they take precedence.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...orchestrator.Option) (*LabelAnalyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fault.New(fault.Usage, "validate config", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	creds, err := ResolveCredentials(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	la := &LabelAnalyzer{credentials: creds}

	store, err := la.newStore(ctx, cfg)
	if err != nil {
		la.Close()
		return nil, err
	}

	analyzer, err := la.newAnalyzer(ctx, cfg)
	if err != nil {
		la.Close()
		return nil, err
	}

	base := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithProcessor(processing.NewProcessorWithStroke(cfg.Output.Stroke)),
		orchestrator.WithOutput(orchestrator.Output{
			Path:     cfg.Output.Path,
			Format:   cfg.Output.Format,
			Quality:  cfg.Output.Quality,
			Lossless: cfg.Output.Lossless,
			JSONPath: cfg.Output.JSONPath,
		}),
	}
	la.orchestrator = orchestrator.New(store, analyzer, append(base, opts...)...)
	return la, nil
}

// NewWithBackends builds a pipeline over already constructed backends
func NewWithBackends(store client.ObjectStore, analyzer client.VisionAnalyzer, opts ...orchestrator.Option) *LabelAnalyzer {
	return &LabelAnalyzer{orchestrator: orchestrator.New(store, analyzer, opts...)}
}

// Analyze runs one analysis
func (la *LabelAnalyzer) Analyze(ctx context.Context, req types.AnalysisRequest) (*orchestrator.Result, error) {
	return la.orchestrator.Analyze(ctx, req)
}

// Credentials returns the credentials resolved at construction
func (la *LabelAnalyzer) Credentials() *auth.Credentials {
	return la.credentials
}

// Close releases backend connections
func (la *LabelAnalyzer) Close() error {
	var errs []error
	for _, c := range la.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	la.closers = nil
	return errors.Join(errs...)
}

// ResolveCredentials resolves only the providers the configured backends need
func ResolveCredentials(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*auth.Credentials, error) {
	var creds *auth.Credentials

	if NeedsAWS(cfg) {
		aws, err := auth.ResolveAWS(ctx, auth.AWSOptions{Profile: cfg.AWS.Profile, Region: cfg.AWS.Region})
		if err != nil {
			return nil, err
		}
		logger.Info("Using AWS credentials",
			zap.String("profile", aws.ProfileName()),
			zap.String("region", aws.Region))
		if aws.Region == "" {
			logger.Warn("No AWS region configured; set -region, AWS_REGION or a region in the profile")
		}
		creds = auth.Merge(creds, aws)
	}

	if NeedsGoogle(cfg) {
		google, err := auth.ResolveGoogle(ctx, auth.GoogleOptions{
			CredentialsFile: cfg.Google.CredentialsFile,
			Project:         cfg.Google.Project,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Using Google credentials", zap.String("project", cfg.Google.Project))
		creds = auth.Merge(creds, google)
	}

	if creds == nil {
		creds = &auth.Credentials{}
	}
	return creds, nil
}

// NeedsAWS reports whether the configured backends call AWS
func NeedsAWS(cfg *config.Config) bool {
	return cfg.Provider.Store == config.StoreS3 || cfg.Provider.Vision == config.VisionRekognition
}

// NeedsGoogle reports whether the configured backends call Google Cloud
func NeedsGoogle(cfg *config.Config) bool {
	return cfg.Provider.Store == config.StoreGCS || cfg.Provider.Vision == config.VisionGoogle
}

func (la *LabelAnalyzer) newStore(ctx context.Context, cfg *config.Config) (client.ObjectStore, error) {
	switch cfg.Provider.Store {
	case config.StoreS3:
		awsCfg, err := la.credentials.RequireAWS()
		if err != nil {
			return nil, err
		}
		return objectstore.NewS3(awsCfg), nil
	case config.StoreGCS:
		store, err := objectstore.NewGCS(ctx, la.credentials.Google...)
		if err != nil {
			return nil, err
		}
		la.closers = append(la.closers, store)
		return store, nil
	case config.StoreSupabase:
		return objectstore.NewSupabase(cfg.Supabase.URL, cfg.Supabase.Key)
	case config.StoreFile:
		return objectstore.NewLocal(), nil
	}
	return nil, fault.Errorf(fault.Usage, "select store", "unknown store %q", cfg.Provider.Store)
}

func (la *LabelAnalyzer) newAnalyzer(ctx context.Context, cfg *config.Config) (client.VisionAnalyzer, error) {
	switch cfg.Provider.Vision {
	case config.VisionRekognition:
		awsCfg, err := la.credentials.RequireAWS()
		if err != nil {
			return nil, err
		}
		return rekognition.NewClient(awsCfg), nil
	case config.VisionGoogle:
		var opts []gvision.Option
		if cfg.Provider.Store != config.StoreGCS {
			// the service can only read gs:// URIs by itself
			opts = append(opts, gvision.WithInlineContent())
		}
		c, err := gvision.NewClient(ctx, la.credentials.Google, opts...)
		if err != nil {
			return nil, err
		}
		la.closers = append(la.closers, c)
		return c, nil
	case config.VisionOllama:
		c, err := ollama.NewClient(cfg.Model.OllamaURL)
		if err != nil {
			return nil, fault.New(fault.Usage, "ollama client", err)
		}
		return detection.NewDetector(c, cfg.Model.Name), nil
	case config.VisionLlamaCPP:
		c, err := llamacpp.NewClient(cfg.Model.LlamaCPPURL)
		if err != nil {
			return nil, fault.New(fault.Usage, "llama.cpp client", err)
		}
		return detection.NewDetector(c, cfg.Model.Name), nil
	}
	return nil, fault.Errorf(fault.Usage, "select vision", "unknown vision backend %q", cfg.Provider.Vision)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
