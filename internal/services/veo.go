package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edutoons/backend/internal/storage"
)

// ---------------------------------------------------------------------------
// Veo Image-to-Video Animator
// Uses the Google Gen AI SDK to animate a storyboard still. The still is
// passed as the first frame; the generated video is uploaded to the
// project's videos/ namespace and handed back as a signed URL, so callers
// see the same animate(image) -> videoURL contract as the standalone
// animation service.
// ---------------------------------------------------------------------------

const (
	defaultVeoModel    = "veo-3.1-generate-preview"
	veoPollInterval    = 10 * time.Second
	veoMaxPollDuration = 5 * time.Minute // Max time to wait for a single scene

	// Scenes are animated subtly: the narration carries the video, the
	// animation only has to keep the still alive.
	veoMotionPrompt = `Bring this illustration to life with subtle, natural movement. Preserve the art style, color palette, and composition of the source frame exactly. Favor gentle, grounded motion: drifting clouds, rustling leaves, soft breathing, slow camera drift. No generated audio or dialogue. Silent video only.`
)

// videoStore is the slice of the storage gateway the animator needs to park
// generated videos and hand out references.
type videoStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// VeoAnimator animates stills via Google's Veo model.
type VeoAnimator struct {
	apiKey string
	model  string
	store  videoStore
	client *http.Client // for fetching the source still
}

var _ Animator = (*VeoAnimator)(nil)

// NewVeoAnimator creates a Veo-backed animator.
// apiKey: the Gemini API key (the same key works for Gemini and Veo)
// model: the Veo model to use (empty string selects the default)
func NewVeoAnimator(apiKey, model string, store videoStore) *VeoAnimator {
	if model == "" {
		model = defaultVeoModel
	}
	return &VeoAnimator{
		apiKey: apiKey,
		model:  model,
		store:  store,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// AnimateImage generates a short video from the still at imageURL, stores it
// under {projectID}/videos/, and returns a signed URL for it.
//
// The async Veo operation is polled internally; this blocks the calling
// goroutine, which fits the worker architecture where each scene runs in its
// own goroutine.
func (s *VeoAnimator) AnimateImage(ctx context.Context, imageURL, projectID string) (string, error) {
	imageData, mimeType, err := s.fetchImage(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch source image: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create genai client: %w", err)
	}

	firstFrame := &genai.Image{
		ImageBytes: imageData,
		MIMEType:   mimeType,
	}

	config := &genai.GenerateVideosConfig{
		AspectRatio:      "16:9",
		Resolution:       "720p",
		PersonGeneration: "allow_adult",
		NumberOfVideos:   1,
	}

	log.Printf("[Veo] Starting animation (model=%s, project=%s, imageSize=%d bytes)", s.model, projectID, len(imageData))

	operation, err := client.Models.GenerateVideos(ctx, s.model, veoMotionPrompt, firstFrame, config)
	if err != nil {
		return "", fmt.Errorf("failed to start video generation: %w", err)
	}

	log.Printf("[Veo] Operation started: %s", operation.Name)

	// Poll until done, cancelled, or timed out
	deadline := time.Now().Add(veoMaxPollDuration)
	pollCount := 0
	for !operation.Done {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("video generation timed out after %v (polled %d times)", veoMaxPollDuration, pollCount)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("video generation cancelled: %w", ctx.Err())
		case <-time.After(veoPollInterval):
		}

		pollCount++
		operation, err = client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return "", fmt.Errorf("failed to poll operation (attempt %d): %w", pollCount, err)
		}

		log.Printf("[Veo] Poll %d: done=%v", pollCount, operation.Done)
	}

	if operation.Error != nil && len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return "", fmt.Errorf("video generation operation failed: %s", string(errJSON))
	}

	if operation.Response == nil {
		return "", fmt.Errorf("no response in completed operation after %d polls (operation: %s)", pollCount, operation.Name)
	}

	if operation.Response.RAIMediaFilteredCount > 0 {
		reasons := "unknown"
		if len(operation.Response.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(operation.Response.RAIMediaFilteredReasons, ", ")
		}
		return "", fmt.Errorf("video blocked by safety filters: %d video(s) filtered, reasons: %s", operation.Response.RAIMediaFilteredCount, reasons)
	}

	if len(operation.Response.GeneratedVideos) == 0 {
		return "", fmt.Errorf("no videos in response after %d polls", pollCount)
	}

	video := operation.Response.GeneratedVideos[0]
	if video.Video == nil {
		return "", fmt.Errorf("generated video object is nil")
	}

	log.Printf("[Veo] Video ready, downloading...")

	downloadURI := genai.NewDownloadURIFromVideo(video.Video)
	videoBytes, err := client.Files.Download(ctx, downloadURI, nil)
	if err != nil {
		return "", fmt.Errorf("failed to download generated video: %w", err)
	}

	if len(videoBytes) == 0 {
		return "", fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	// Park the video in the project's namespace and hand back a reference
	videoPath := storage.VideoPath(projectID)
	if err := s.store.Upload(ctx, videoPath, videoBytes, "video/mp4"); err != nil {
		return "", fmt.Errorf("failed to store generated video: %w", err)
	}

	signedURL, err := s.store.SignedURL(ctx, videoPath, storage.DefaultSignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign generated video: %w", err)
	}

	log.Printf("[Veo] Video stored at %s (%d bytes, %d polls)", videoPath, len(videoBytes), pollCount)

	return signedURL, nil
}

// fetchImage downloads the source still and reports its MIME type.
func (s *VeoAnimator) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/png"
	}

	return data, mimeType, nil
}
