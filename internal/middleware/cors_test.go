package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantCreds  string
		wantStatus int
	}{
		{"explicit origin", []string{"https://bpb.app"}, "https://bpb.app", http.MethodGet, "https://bpb.app", "true", http.StatusTeapot},
		{"wildcard has no credentials", []string{"*"}, "https://x.dev", http.MethodGet, "https://x.dev", "", http.StatusTeapot},
		{"foreign origin", []string{"https://bpb.app"}, "https://evil.dev", http.MethodGet, "", "", http.StatusTeapot},
		{"no origin header", []string{"*"}, "", http.MethodGet, "", "", http.StatusTeapot},
		{"preflight short-circuits", []string{"https://bpb.app"}, "https://bpb.app", http.MethodOptions, "https://bpb.app", "true", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/chat", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			CORS(tt.allowed)(ok).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Errorf("Allow-Credentials = %q, want %q", got, tt.wantCreds)
			}
			if tt.wantOrigin != "" && w.Header().Get("Access-Control-Expose-Headers") != exposedHeaders {
				t.Errorf("Expose-Headers = %q", w.Header().Get("Access-Control-Expose-Headers"))
			}
		})
	}
}
