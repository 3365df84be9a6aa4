package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// Animator — interface for image-to-video providers
// Animation is a long-running remote capability. From the pipeline's
// perspective it is one blocking call that yields a reference to the
// generated video; polling happens inside the provider.
// ---------------------------------------------------------------------------

// Animator turns a still image into a short animated video and returns a
// URL from which the video can be downloaded.
type Animator interface {
	AnimateImage(ctx context.Context, imageURL, projectID string) (string, error)
}

// ---------------------------------------------------------------------------
// Standalone animation service client
// Talks to the in-house animation API, which follows a deferred request
// pattern: submit generation → poll by request_id → receive the video URL.
// ---------------------------------------------------------------------------

const (
	animatorPollMinInterval   = 5 * time.Second  // Start polling every 5s
	animatorPollMaxInterval   = 20 * time.Second // Cap at 20s between polls
	animatorPollBackoffFactor = 1.5              // Multiply interval by 1.5 each attempt
	animatorMaxPollDuration   = 5 * time.Minute  // Hard timeout per scene
)

// AnimatorService is the REST client for the standalone animation API.
type AnimatorService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Animator = (*AnimatorService)(nil)

// NewAnimatorService creates a client for the standalone animation service.
func NewAnimatorService(baseURL, apiKey string) *AnimatorService {
	return &AnimatorService{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // Timeout for individual HTTP calls, not the full poll cycle
		},
	}
}

// animateRequest is the body for POST /animate
type animateRequest struct {
	URL       string `json:"url"`
	ProjectID string `json:"projectId"`
}

// animateSubmitResponse is the response from POST /animate
type animateSubmitResponse struct {
	RequestID string `json:"request_id"`
}

// animateResult is the response from GET /animate/{request_id}.
//
// The service returns 202 with {"status":"in-progress"} while rendering,
// and 200 with {"videoUrl":"..."} once the video has been generated and
// stored. A failed generation returns {"status":"failed","error":"..."}.
type animateResult struct {
	Status   string `json:"status"`
	VideoURL string `json:"videoUrl"`
	Error    string `json:"error"`
}

// AnimateImage submits the still for animation and blocks until the service
// reports the generated video's URL.
//
// Polling strategy: exponential backoff starting at 5s, scaling by 1.5x up
// to a 20s cap, with a 5 minute hard timeout per scene.
func (s *AnimatorService) AnimateImage(ctx context.Context, imageURL, projectID string) (string, error) {
	log.Printf("[Animator] Submitting animation (project=%s, image=%s)", projectID, imageURL)

	requestID, err := s.submitAnimation(ctx, animateRequest{URL: imageURL, ProjectID: projectID})
	if err != nil {
		return "", fmt.Errorf("failed to submit animation: %w", err)
	}

	log.Printf("[Animator] Animation submitted, request_id=%s", requestID)

	videoURL, err := s.pollForResult(ctx, requestID)
	if err != nil {
		return "", err
	}

	log.Printf("[Animator] Animation ready: %s", videoURL)
	return videoURL, nil
}

// submitAnimation sends the initial animation request and returns the request_id.
func (s *AnimatorService) submitAnimation(ctx context.Context, reqBody animateRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/animate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("animator returned status %d: %s", resp.StatusCode, string(body))
	}

	var submitResp animateSubmitResponse
	if err := json.Unmarshal(body, &submitResp); err != nil {
		return "", fmt.Errorf("failed to parse submit response: %w (body: %s)", err, string(body))
	}

	if submitResp.RequestID == "" {
		return "", fmt.Errorf("no request_id in submit response: %s", string(body))
	}

	return submitResp.RequestID, nil
}

// pollForResult polls GET /animate/{request_id} until the video URL is
// available, the generation fails, or the deadline passes.
func (s *AnimatorService) pollForResult(ctx context.Context, requestID string) (string, error) {
	deadline := time.Now().Add(animatorMaxPollDuration)
	pollCount := 0
	currentInterval := animatorPollMinInterval

	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("animation timed out after %v (polled %d times, request_id=%s)", animatorMaxPollDuration, pollCount, requestID)
		}

		pollCount++

		result, err := s.getResult(ctx, requestID)
		if err != nil {
			return "", fmt.Errorf("failed to poll animation result (attempt %d): %w", pollCount, err)
		}

		if result.VideoURL != "" {
			return result.VideoURL, nil
		}

		if result.Status == "failed" {
			errMsg := result.Error
			if errMsg == "" {
				errMsg = "unknown error"
			}
			return "", fmt.Errorf("animation failed: %s (request_id=%s)", errMsg, requestID)
		}

		log.Printf("[Animator] Poll %d: status=%s (next poll in %v)", pollCount, result.Status, currentInterval)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("animation cancelled: %w", ctx.Err())
		case <-time.After(currentInterval):
		}

		// Increase interval: 5s → 7.5s → 11.25s → 16.8s → 20s (capped)
		next := time.Duration(float64(currentInterval) * animatorPollBackoffFactor)
		if next > animatorPollMaxInterval {
			next = animatorPollMaxInterval
		}
		currentInterval = next
	}
}

// getResult fetches the current state of an animation request. Both 200
// (complete) and 202 (in-progress) are valid poll responses.
func (s *AnimatorService) getResult(ctx context.Context, requestID string) (*animateResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/animate/%s", s.baseURL, requestID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("animator returned status %d: %s", resp.StatusCode, string(body))
	}

	var result animateResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse animation result: %w (body: %s)", err, string(body))
	}

	return &result, nil
}
