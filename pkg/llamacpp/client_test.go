package llamacpp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/menta2k/label-analyzer/pkg/fault"
)

func TestSimpleQuery(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"labels\":[]}"}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	text, err := c.SimpleQuery(context.Background(), "qwen2-vl", "label this", []byte("\x89PNG\r\n\x1a\nrest"))
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if text != `{"labels":[]}` {
		t.Errorf("Unexpected reply %q", text)
	}

	if got.Model != "qwen2-vl" {
		t.Errorf("Expected model qwen2-vl, got %s", got.Model)
	}
	parts, ok := got.Messages[0].Content.([]interface{})
	if !ok || len(parts) != 2 {
		t.Fatalf("Expected text and image parts, got %#v", got.Messages[0].Content)
	}
	image := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})["url"].(string)
	if !strings.HasPrefix(image, "data:image/png;base64,") {
		t.Errorf("Expected PNG data URL, got %q", image[:30])
	}
}

func TestSimpleQueryHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.SimpleQuery(context.Background(), "m", "p", []byte("img"))
	if !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestSimpleQueryNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.SimpleQuery(context.Background(), "m", "p", nil)
	if !errors.Is(err, fault.ErrService) {
		t.Errorf("Expected ServiceError, got %v", err)
	}
}
