package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/label-analyzer/internal/utils"
)

// Object store backends
const (
	StoreS3       = "s3"
	StoreGCS      = "gcs"
	StoreSupabase = "supabase"
	StoreFile     = "file"
)

// Vision backends
const (
	VisionRekognition = "rekognition"
	VisionGoogle      = "gcp"
	VisionOllama      = "ollama"
	VisionLlamaCPP    = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	AWS      AWSConfig      `json:"aws" yaml:"aws"`
	Google   GoogleConfig   `json:"google" yaml:"google"`
	Supabase SupabaseConfig `json:"supabase" yaml:"supabase"`
	Model    ModelConfig    `json:"model" yaml:"model"`
	Detect   DetectConfig   `json:"detect" yaml:"detect"`
	Output   OutputConfig   `json:"output" yaml:"output"`
}

// ProviderConfig selects the backends
type ProviderConfig struct {
	Store  string `json:"store" yaml:"store"`
	Vision string `json:"vision" yaml:"vision"`
}

// AWSConfig selects the shared config profile and region
type AWSConfig struct {
	Profile string `json:"profile" yaml:"profile"`
	Region  string `json:"region" yaml:"region"`
}

// GoogleConfig points at a credentials file; empty uses application default credentials
type GoogleConfig struct {
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Project         string `json:"project" yaml:"project"`
}

// SupabaseConfig holds the project URL. The service key is only read from SUPABASE_KEY.
type SupabaseConfig struct {
	URL string `json:"url" yaml:"url"`
	Key string `json:"-" yaml:"-"`
}

// ModelConfig holds configuration for local vision model servers
type ModelConfig struct {
	Name        string `json:"name" yaml:"name"`
	OllamaURL   string `json:"ollama_url" yaml:"ollama_url"`
	LlamaCPPURL string `json:"llamacpp_url" yaml:"llamacpp_url"`
}

// DetectConfig holds the detection parameters. Zero and nil keep the service defaults.
type DetectConfig struct {
	MaxLabels     int      `json:"max_labels" yaml:"max_labels"`
	MinConfidence *float64 `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
}

// OutputConfig holds configuration for the annotated image
type OutputConfig struct {
	Path     string `json:"path" yaml:"path"`
	Format   string `json:"format" yaml:"format"`
	Quality  int    `json:"quality" yaml:"quality"`
	Lossless bool   `json:"lossless" yaml:"lossless"`
	Stroke   int    `json:"stroke" yaml:"stroke"`
	Show     bool   `json:"show" yaml:"show"`
	Viewer   string `json:"viewer" yaml:"viewer"`
	JSONPath string `json:"json_path" yaml:"json_path"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Store:  StoreS3,
			Vision: VisionRekognition,
		},
		Model: ModelConfig{
			Name:        "openbmb/minicpm-v4.5",
			OllamaURL:   "http://localhost:11435/api/chat",
			LlamaCPPURL: "http://localhost:8080",
		},
		Output: OutputConfig{
			Format:  "png",
			Quality: 90,
			Stroke:  3,
			Show:    true,
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from environment variables
func (c *Config) ApplyEnv() {
	c.Provider.Store = getEnv("LABEL_ANALYZER_STORE", c.Provider.Store)
	c.Provider.Vision = getEnv("LABEL_ANALYZER_VISION", c.Provider.Vision)

	c.Google.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.Google.CredentialsFile)
	c.Google.Project = getEnv("GOOGLE_CLOUD_PROJECT", c.Google.Project)

	c.Supabase.URL = getEnv("SUPABASE_URL", c.Supabase.URL)
	c.Supabase.Key = getEnv("SUPABASE_KEY", c.Supabase.Key)

	c.Model.Name = getEnv("LABEL_ANALYZER_MODEL", c.Model.Name)
	c.Model.OllamaURL = getEnv("LABEL_ANALYZER_OLLAMA_URL", c.Model.OllamaURL)
	c.Model.LlamaCPPURL = getEnv("LABEL_ANALYZER_LLAMACPP_URL", c.Model.LlamaCPPURL)

	c.Detect.MaxLabels = getEnvAsInt("LABEL_ANALYZER_MAX_LABELS", c.Detect.MaxLabels)
	if v, ok := getEnvAsFloat("LABEL_ANALYZER_MIN_CONFIDENCE"); ok {
		c.Detect.MinConfidence = &v
	}

	c.Output.Viewer = getEnv("LABEL_ANALYZER_VIEWER", c.Output.Viewer)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Provider.Store {
	case StoreS3, StoreGCS, StoreFile:
	case StoreSupabase:
		if c.Supabase.URL == "" {
			return fmt.Errorf("supabase.url must be set for the supabase store")
		}
	default:
		return fmt.Errorf("provider.store must be one of s3, gcs, supabase, file; got %q", c.Provider.Store)
	}

	switch c.Provider.Vision {
	case VisionRekognition:
		if c.Provider.Store != StoreS3 {
			return fmt.Errorf("rekognition reads images from S3 only; provider.store is %q", c.Provider.Store)
		}
	case VisionGoogle:
	case VisionOllama, VisionLlamaCPP:
		if c.Model.Name == "" {
			return fmt.Errorf("model.name must be set for the %s backend", c.Provider.Vision)
		}
	default:
		return fmt.Errorf("provider.vision must be one of rekognition, gcp, ollama, llamacpp; got %q", c.Provider.Vision)
	}

	if c.Detect.MaxLabels < 0 {
		return fmt.Errorf("detect.max_labels must not be negative")
	}

	if m := c.Detect.MinConfidence; m != nil && (*m < 0 || *m > 100) {
		return fmt.Errorf("detect.min_confidence must be between 0 and 100")
	}

	switch strings.ToLower(c.Output.Format) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.format must be png, jpg or webp")
	}

	if ext := utils.NormalizeFormat(utils.GetFileExtension(c.Output.Path)); ext != "" && ext != utils.NormalizeFormat(c.Output.Format) {
		return fmt.Errorf("output.path extension %q does not match output.format %q", ext, c.Output.Format)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Output.Stroke < 1 {
		return fmt.Errorf("output.stroke must be positive")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "label-analyzer", "config.yaml")
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string) (float64, bool) {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
