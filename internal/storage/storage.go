package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

const (
	// Upload timeout — generous for multi-megabyte final videos
	uploadTimeout = 180 * time.Second

	// Download timeout
	downloadTimeout = 120 * time.Second

	// DefaultSignedURLTTL is the lifetime of a final video's download link.
	DefaultSignedURLTTL = 10 * time.Hour
)

// Client is a thin gateway over Supabase Storage. It is stateless and safe
// to share across concurrent jobs: every path it touches is namespaced by
// project ID. Each operation is a single attempt — failures surface as
// errors and the caller decides whether the job survives.
type Client struct {
	url        string
	serviceKey string
	Bucket     string
	client     *http.Client
}

func New(url, serviceKey, bucket string) *Client {
	return &Client{
		url:        url,
		serviceKey: serviceKey,
		Bucket:     bucket,
		client: &http.Client{
			Timeout: uploadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Upload stores content at the given bucket path. Uses PUT with x-upsert so
// re-uploading the same path overwrites the blob instead of duplicating it.
func (s *Client) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.Bucket, path)

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(uploadCtx, "PUT", url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Length", fmt.Sprintf("%d", len(data)))
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload of %s failed with status %d: %s", path, resp.StatusCode, truncate(string(body), 200))
	}

	return nil
}

// UploadFile uploads a file from a local path.
func (s *Client) UploadFile(ctx context.Context, storagePath, localPath, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", localPath, err)
	}

	return s.Upload(ctx, storagePath, data, contentType)
}

// DownloadURL fetches raw bytes from a signed or public URL. Used to pull
// generated media (stills, animated scene videos) into a job's workspace.
func (s *Client) DownloadURL(ctx context.Context, url string) ([]byte, error) {
	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("download of %s failed with status %d: %s", url, resp.StatusCode, truncate(string(body), 200))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download body: %w", err)
	}

	return data, nil
}

// GetPublicURL returns the public URL for a file.
func (s *Client) GetPublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.Bucket, path)
}

// SignedURL creates a time-limited read URL for a stored object.
func (s *Client) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.url, s.Bucket, path)

	body := fmt.Sprintf(`{"expiresIn": %d}`, int(ttl.Seconds()))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBufferString(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sign of %s failed with status %d: %s", path, resp.StatusCode, truncate(string(respBody), 200))
	}

	var result struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse signed URL response: %w", err)
	}

	return s.url + result.SignedURL, nil
}

// ---------------------------------------------------------------------------
// Path conventions — everything is namespaced by project ID so concurrent
// jobs never write over each other.
// ---------------------------------------------------------------------------

// ImagePath returns the storage path for a generated storyboard still.
func ImagePath(projectID, ext string) string {
	return fmt.Sprintf("%s/images/%s.%s", projectID, uuid.NewString(), ext)
}

// VideoPath returns the storage path for an animated scene video.
func VideoPath(projectID string) string {
	return fmt.Sprintf("%s/videos/%s.mp4", projectID, uuid.NewString())
}

// FinalVideoPath returns the fixed storage path for a project's final video.
// Rendering the same project twice overwrites the same blob.
func FinalVideoPath(projectID string) string {
	return fmt.Sprintf("%s/final_video.mp4", projectID)
}

// truncate limits a string to maxLen characters for log/error output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
