package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Supabase uploads to a Supabase storage bucket through its REST API.
type Supabase struct {
	baseURL string
	key     string
	bucket  string
	client  *http.Client
}

// NewSupabase returns an uploader for bucket. key is the service role key.
func NewSupabase(baseURL, key, bucket string, timeout time.Duration) *Supabase {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Supabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		bucket:  bucket,
		client:  &http.Client{Timeout: timeout},
	}
}

// Upload overwrites any object already stored under objectPath.
func (s *Supabase) Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error) {
	p, err := CleanPath(objectPath)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, p)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "build upload request")
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "upload")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Errorf("upload %s: status %d: %s", p, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, p), nil
}
