package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIKeyAuth(t *testing.T) {
	handler := APIKeyAuth("secret-key")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		setAuth    func(r *http.Request)
		wantStatus int
	}{
		{
			name:       "missing key",
			setAuth:    func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong key in header",
			setAuth:    func(r *http.Request) { r.Header.Set("X-API-Key", "wrong") },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "correct key in header",
			setAuth:    func(r *http.Request) { r.Header.Set("X-API-Key", "secret-key") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "correct key as bearer token",
			setAuth:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-key") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong bearer token",
			setAuth:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "non-bearer authorization ignored",
			setAuth:    func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/renders", nil)
			tt.setAuth(req)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
