package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()

	if c.Provider.Store != StoreS3 {
		t.Errorf("Expected store s3, got %s", c.Provider.Store)
	}
	if c.Provider.Vision != VisionRekognition {
		t.Errorf("Expected vision rekognition, got %s", c.Provider.Vision)
	}
	if c.Detect.MaxLabels != 0 || c.Detect.MinConfidence != nil {
		t.Error("Expected detection parameters to be left to the service")
	}
	if !c.Output.Show {
		t.Error("Expected display to be on by default")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `provider:
  store: gcs
  vision: gcp
detect:
  max_labels: 5
  min_confidence: 80
output:
  format: webp
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if c.Provider.Store != StoreGCS || c.Provider.Vision != VisionGoogle {
		t.Errorf("Expected gcs/gcp, got %s/%s", c.Provider.Store, c.Provider.Vision)
	}
	if c.Detect.MaxLabels != 5 {
		t.Errorf("Expected max labels 5, got %d", c.Detect.MaxLabels)
	}
	if c.Detect.MinConfidence == nil || *c.Detect.MinConfidence != 80 {
		t.Errorf("Expected min confidence 80, got %v", c.Detect.MinConfidence)
	}
	if c.Output.Format != "webp" {
		t.Errorf("Expected format webp, got %s", c.Output.Format)
	}
	// untouched fields keep their defaults
	if c.Output.Quality != 90 {
		t.Errorf("Expected default quality 90, got %d", c.Output.Quality)
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"aws": {"profile": "dev", "region": "eu-west-1"}, "output": {"show": false}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if c.AWS.Profile != "dev" || c.AWS.Region != "eu-west-1" {
		t.Errorf("Expected dev/eu-west-1, got %s/%s", c.AWS.Profile, c.AWS.Region)
	}
	if c.Output.Show {
		t.Error("Expected show to be disabled")
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LABEL_ANALYZER_STORE", "file")
	t.Setenv("LABEL_ANALYZER_VISION", "ollama")
	t.Setenv("LABEL_ANALYZER_MAX_LABELS", "7")
	t.Setenv("LABEL_ANALYZER_MIN_CONFIDENCE", "55.5")
	t.Setenv("SUPABASE_KEY", "secret")

	c := Default()
	c.ApplyEnv()

	if c.Provider.Store != StoreFile || c.Provider.Vision != VisionOllama {
		t.Errorf("Expected file/ollama, got %s/%s", c.Provider.Store, c.Provider.Vision)
	}
	if c.Detect.MaxLabels != 7 {
		t.Errorf("Expected max labels 7, got %d", c.Detect.MaxLabels)
	}
	if c.Detect.MinConfidence == nil || *c.Detect.MinConfidence != 55.5 {
		t.Errorf("Expected min confidence 55.5, got %v", c.Detect.MinConfidence)
	}
	if c.Supabase.Key != "secret" {
		t.Errorf("Expected supabase key from env, got %q", c.Supabase.Key)
	}
}

func TestApplyEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("LABEL_ANALYZER_MAX_LABELS", "many")
	t.Setenv("LABEL_ANALYZER_MIN_CONFIDENCE", "high")

	c := Default()
	c.Detect.MaxLabels = 3
	c.ApplyEnv()

	if c.Detect.MaxLabels != 3 {
		t.Errorf("Expected max labels to stay 3, got %d", c.Detect.MaxLabels)
	}
	if c.Detect.MinConfidence != nil {
		t.Errorf("Expected min confidence to stay unset, got %v", *c.Detect.MinConfidence)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("LABEL_ANALYZER_TEST_DOTENV=loaded\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("LABEL_ANALYZER_TEST_DOTENV") })

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("LABEL_ANALYZER_TEST_DOTENV"); got != "loaded" {
		t.Errorf("Expected loaded, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"unknown store", func(c *Config) { c.Provider.Store = "ftp" }, "provider.store"},
		{"unknown vision", func(c *Config) { c.Provider.Vision = "magic" }, "provider.vision"},
		{"rekognition needs s3", func(c *Config) { c.Provider.Store = StoreGCS }, "rekognition"},
		{"supabase needs url", func(c *Config) {
			c.Provider.Store = StoreSupabase
			c.Provider.Vision = VisionOllama
		}, "supabase.url"},
		{"model name", func(c *Config) {
			c.Provider.Vision = VisionLlamaCPP
			c.Model.Name = ""
		}, "model.name"},
		{"negative max labels", func(c *Config) { c.Detect.MaxLabels = -1 }, "max_labels"},
		{"min confidence range", func(c *Config) {
			v := 120.0
			c.Detect.MinConfidence = &v
		}, "min_confidence"},
		{"format", func(c *Config) { c.Output.Format = "gif" }, "output.format"},
		{"path extension unsupported", func(c *Config) { c.Output.Path = "out/annotated.bmp" }, "output.path"},
		{"path extension differs from format", func(c *Config) {
			c.Output.Path = "annotated.webp"
			c.Output.Format = "png"
		}, "output.path"},
		{"quality", func(c *Config) { c.Output.Quality = 0 }, "output.quality"},
		{"stroke", func(c *Config) { c.Output.Stroke = 0 }, "output.stroke"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	if !strings.HasSuffix(GetConfigPath(), "config.yaml") {
		t.Errorf("Unexpected config path %s", GetConfigPath())
	}
}

func TestValidateOutputPathMatchingFormat(t *testing.T) {
	for _, tt := range []struct{ path, format string }{
		{"annotated.jpeg", "jpg"},
		{"annotated.JPG", "jpeg"},
		{"annotated", "webp"},
		{"", "png"},
	} {
		c := Default()
		c.Output.Path = tt.path
		c.Output.Format = tt.format
		if err := c.Validate(); err != nil {
			t.Errorf("%q as %s: unexpected error %v", tt.path, tt.format, err)
		}
	}
}
