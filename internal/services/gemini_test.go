package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateImage(t *testing.T) {
	imageBytes := []byte("png-image-bytes")

	var gotReq geminiGenerateContentRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "gemini-key" {
			t.Errorf("missing api key in query")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"parts": []map[string]interface{}{
							{"text": "here is your image"},
							{"inlineData": map[string]string{
								"mimeType": "image/png",
								"data":     base64.StdEncoding.EncodeToString(imageBytes),
							}},
						},
					},
				},
			},
		}
		respondTestJSON(w, http.StatusOK, resp)
	}))
	defer server.Close()

	svc := NewGeminiService("gemini-key")
	svc.baseURL = server.URL

	data, err := svc.GenerateImage(context.Background(), "a frog explaining photosynthesis")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}

	if string(data) != "png-image-bytes" {
		t.Errorf("unexpected image bytes: %s", data)
	}

	if len(gotReq.Contents) != 1 || len(gotReq.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected request contents: %+v", gotReq.Contents)
	}
	if !strings.Contains(gotReq.Contents[0].Parts[0].Text, "a frog explaining photosynthesis") {
		t.Errorf("prompt not forwarded: %s", gotReq.Contents[0].Parts[0].Text)
	}
	if gotReq.GenerationConfig == nil || gotReq.GenerationConfig.ImageConfig == nil ||
		gotReq.GenerationConfig.ImageConfig.AspectRatio != "16:9" {
		t.Errorf("expected 16:9 aspect ratio config, got %+v", gotReq.GenerationConfig)
	}
}

func TestGenerateImageNoImageInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"parts": []map[string]interface{}{
							{"text": "sorry, no image"},
						},
					},
				},
			},
		}
		respondTestJSON(w, http.StatusOK, resp)
	}))
	defer server.Close()

	svc := NewGeminiService("key")
	svc.baseURL = server.URL

	if _, err := svc.GenerateImage(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error when response has no image data")
	}
}

func TestGenerateImageAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := NewGeminiService("key")
	svc.baseURL = server.URL

	if _, err := svc.GenerateImage(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
