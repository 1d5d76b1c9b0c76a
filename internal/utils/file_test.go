package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateOutputFilename(t *testing.T) {
	tests := []struct {
		key, dir, suffix, format string
		want                     string
	}{
		{"photos/2024/beach.jpg", "out", "_labels", "png", filepath.Join("out", "beach_labels.png")},
		{"cat.JPEG", "", "_labels", "", "cat_labels.jpg"},
		{"noext", "", "_labels", "", "noext_labels.png"},
		{"dir/", "", "_labels", "webp", "dir_labels.webp"},
	}

	for _, tt := range tests {
		got := GenerateOutputFilename(tt.key, tt.dir, tt.suffix, tt.format)
		if got != tt.want {
			t.Errorf("GenerateOutputFilename(%q): expected %q, got %q", tt.key, tt.want, got)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename(" a:b*c?.png. "); got != "a_b_c_.png" {
		t.Errorf("Expected a_b_c_.png, got %q", got)
	}
}

func TestNormalizeFormat(t *testing.T) {
	for in, want := range map[string]string{".JPEG": "jpg", "png": "png", "WebP": "webp"} {
		if got := NormalizeFormat(in); got != want {
			t.Errorf("NormalizeFormat(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for size, want := range tests {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d): expected %q, got %q", size, want, got)
		}
	}
}

func TestEnsureDirAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	if FileExists(dir) {
		t.Error("FileExists should be false for a directory")
	}

	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(file) {
		t.Error("Expected file to exist")
	}
}
