package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// Validation failures never reach the queue or the generation services, so a
// zero-value handler is enough for these cases.
func newValidationHandler() *Handler {
	return &Handler{}
}

func TestCreateRenderValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "invalid JSON",
			body: `{not json`,
			want: "Invalid request body",
		},
		{
			name: "missing project ID",
			body: `{"email":"a@b.com","data":[{"imageUrl":"http://x/i.png","script":"hi"}]}`,
			want: "projectId is required",
		},
		{
			name: "missing email",
			body: `{"projectId":"p1","data":[{"imageUrl":"http://x/i.png","script":"hi"}]}`,
			want: "Email is required",
		},
		{
			name: "no scenes",
			body: `{"projectId":"p1","email":"a@b.com","data":[]}`,
			want: "At least one scene is required",
		},
		{
			name: "scene missing image",
			body: `{"projectId":"p1","email":"a@b.com","data":[{"script":"hi"}]}`,
			want: "Scene 0 is missing imageUrl",
		},
		{
			name: "scene missing script",
			body: `{"projectId":"p1","email":"a@b.com","data":[{"imageUrl":"http://x/i.png","script":"hi"},{"imageUrl":"http://x/j.png"}]}`,
			want: "Scene 1 is missing script",
		},
	}

	h := newValidationHandler()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/renders", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.CreateRender(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}

			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp["error"] != tt.want {
				t.Errorf("expected error %q, got %q", tt.want, resp["error"])
			}
		})
	}
}

func TestCreateOutlineValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing content",
			body: `{"projectId":"p1"}`,
			want: "Content is required",
		},
		{
			name: "missing project ID",
			body: `{"content":"the water cycle"}`,
			want: "projectId is required",
		},
	}

	h := newValidationHandler()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/outlines", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.CreateOutline(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}

			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp["error"] != tt.want {
				t.Errorf("expected error %q, got %q", tt.want, resp["error"])
			}
		})
	}
}

func TestHealth(t *testing.T) {
	h := newValidationHandler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %q", resp["status"])
	}
}
