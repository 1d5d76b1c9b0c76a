package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	labelanalyzer "github.com/menta2k/label-analyzer"
	"github.com/menta2k/label-analyzer/internal/config"
	"github.com/menta2k/label-analyzer/internal/logging"
	"github.com/menta2k/label-analyzer/internal/utils"
	"github.com/menta2k/label-analyzer/pkg/fault"
	"github.com/menta2k/label-analyzer/pkg/orchestrator"
	"github.com/menta2k/label-analyzer/pkg/types"
	"github.com/menta2k/label-analyzer/pkg/viewer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("label-analyzer", flag.ContinueOnError)

	var (
		configPath    string
		maxLabels     int
		minConfidence float64
		profile       string
		region        string
		store         string
		vision        string
		model         string
		url           string
		out           string
		ext           string
		quality       int
		lossless      bool
		show          bool
		viewerCmd     string
		jsonPath      string
		debug         bool
		version       bool
	)

	fs.StringVar(&configPath, "config", "", "config file (json or yaml); defaults to "+config.GetConfigPath()+" when present")
	fs.IntVar(&maxLabels, "max-labels", 0, "maximum number of labels to return, 0=service default")
	fs.Float64Var(&minConfidence, "min-confidence", -1, "minimum label confidence 0-100, -1=service default")
	fs.StringVar(&profile, "profile", "", "AWS shared config profile")
	fs.StringVar(&region, "region", "", "AWS region")
	fs.StringVar(&store, "store", "", "object store: s3|gcs|supabase|file (default s3)")
	fs.StringVar(&vision, "vision", "", "vision backend: rekognition|gcp|ollama|llamacpp (default rekognition)")
	fs.StringVar(&model, "model", "", "model name for the ollama and llamacpp backends")
	fs.StringVar(&url, "url", "", "model server URL (defaults: ollama=http://localhost:11435/api/chat, llamacpp=http://localhost:8080)")
	fs.StringVar(&out, "out", "", "write the annotated image to this path instead of a temporary file")
	fs.StringVar(&ext, "ext", "", "annotated image format: png|jpg|webp (default png)")
	fs.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	fs.BoolVar(&lossless, "lossless", false, "WebP output lossless mode")
	fs.BoolVar(&show, "show", true, "display the annotated image and wait for the viewer to close")
	fs.StringVar(&viewerCmd, "viewer", "", "viewer command, e.g. \"feh -Z\"; defaults to the platform opener")
	fs.StringVar(&jsonPath, "json", "", "write the detected labels as JSON to this path")
	fs.BoolVar(&debug, "debug", false, "verbose diagnostics on stderr")
	fs.BoolVar(&version, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] <bucket> <key>\n\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if version {
		fmt.Println(labelanalyzer.GetVersion())
		return 0
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	bucket, key := fs.Arg(0), fs.Arg(1)

	logger, err := logging.New(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return report(logger, fault.New(fault.Usage, "load config", err))
	}

	// flags given on the command line override file and environment
	urlSet := false
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-labels":
			cfg.Detect.MaxLabels = maxLabels
		case "min-confidence":
			// -1 is the only sentinel; other values are range checked by Validate
			if minConfidence == -1 {
				cfg.Detect.MinConfidence = nil
			} else {
				cfg.Detect.MinConfidence = types.Float64(minConfidence)
			}
		case "profile":
			cfg.AWS.Profile = profile
		case "region":
			cfg.AWS.Region = region
		case "store":
			cfg.Provider.Store = store
		case "vision":
			cfg.Provider.Vision = vision
		case "model":
			cfg.Model.Name = model
		case "url":
			urlSet = true
		case "out":
			cfg.Output.Path = out
			if ext == "" && utils.GetFileExtension(out) != "" {
				cfg.Output.Format = utils.NormalizeFormat(utils.GetFileExtension(out))
			}
		case "ext":
			cfg.Output.Format = ext
		case "quality":
			cfg.Output.Quality = quality
		case "lossless":
			cfg.Output.Lossless = lossless
		case "show":
			cfg.Output.Show = show
		case "viewer":
			cfg.Output.Viewer = viewerCmd
		case "json":
			cfg.Output.JSONPath = jsonPath
		}
	})

	// -url applies to the backend chosen after all other flags are in
	if urlSet {
		switch cfg.Provider.Vision {
		case config.VisionOllama:
			cfg.Model.OllamaURL = url
		case config.VisionLlamaCPP:
			cfg.Model.LlamaCPPURL = url
		}
	}

	var v viewer.Viewer = viewer.None{}
	if cfg.Output.Show {
		v = viewer.Default()
		if cfg.Output.Viewer != "" {
			cmd, err := viewer.Parse(cfg.Output.Viewer)
			if err != nil {
				return report(logger, fault.New(fault.Usage, "viewer", err))
			}
			v = cmd
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	la, err := labelanalyzer.New(ctx, cfg, logger, orchestrator.WithViewer(v))
	if err != nil {
		return report(logger, err)
	}
	defer la.Close()

	req := types.AnalysisRequest{
		Bucket:        bucket,
		Key:           key,
		MaxLabels:     cfg.Detect.MaxLabels,
		MinConfidence: cfg.Detect.MinConfidence,
	}
	if _, err := la.Analyze(ctx, req); err != nil {
		return report(logger, err)
	}
	return 0
}

// loadConfig layers the config file, .env and environment variables over the defaults
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// report prints err and its hint on stderr and returns the exit status
func report(logger *zap.Logger, err error) int {
	code := fault.ExitCode(err)
	logger.Debug("Run failed", zap.Error(err), zap.Int("exit_code", code), zap.String("code", fault.CodeOf(err)))

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if hint := fault.Hint(err); hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	return code
}
