package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	storage_go "github.com/supabase-community/storage-go"

	"github.com/menta2k/label-analyzer/pkg/fault"
)

// SupabaseStore reads objects from Supabase Storage
type SupabaseStore struct {
	download func(ctx context.Context, bucket, path string) ([]byte, error)
}

// NewSupabase creates a store for the project at projectURL using a service key
func NewSupabase(projectURL, key string) (*SupabaseStore, error) {
	if projectURL == "" || key == "" {
		return nil, fault.New(fault.Auth, "supabase client", errors.New("SUPABASE_URL and SUPABASE_KEY must be set"))
	}
	base := strings.TrimSuffix(projectURL, "/") + "/storage/v1"
	sb := storage_go.NewClient(base, key, nil)
	return &SupabaseStore{
		download: func(ctx context.Context, bucket, path string) ([]byte, error) {
			return downloadObject(ctx, sb, base, bucket, path)
		},
	}, nil
}

// downloadObject is DownloadFile with the request bound to ctx and the
// HTTP status recorded on the returned StorageError
func downloadObject(ctx context.Context, sb *storage_go.Client, base, bucket, path string) ([]byte, error) {
	req, err := sb.NewRequest(http.MethodGet, base+"/object/"+bucket+"/"+path)
	if err != nil {
		return nil, err
	}
	res, err := sb.Do(req.WithContext(ctx), nil)
	if res != nil {
		defer res.Body.Close()
	}
	if err != nil {
		var se *storage_go.StorageError
		if errors.As(err, &se) && se.Status == 0 && res != nil {
			se.Status = res.StatusCode
		}
		return nil, err
	}
	return io.ReadAll(res.Body)
}

// Get downloads the object at key from the bucket
func (s *SupabaseStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.download(ctx, bucket, key)
	if err != nil {
		return nil, classifySupabase(fmt.Sprintf("get supabase://%s/%s", bucket, key), err)
	}
	return data, nil
}

// The storage API answers some failures with 400 and only the message
// tells them apart, so the status is checked first and the text second.
func classifySupabase(op string, err error) error {
	var se *storage_go.StorageError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return fault.FromHTTPStatus(op, se.Status, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "not_found"):
		return fault.New(fault.NotFound, op, err)
	case strings.Contains(msg, "invalid jwt"), strings.Contains(msg, "unauthorized"):
		return fault.New(fault.Auth, op, err)
	case strings.Contains(msg, "forbidden"), strings.Contains(msg, "access denied"),
		strings.Contains(msg, "row-level security"):
		return fault.New(fault.Permission, op, err)
	}
	return fault.New(fault.Service, op, err)
}
