package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func TestSPAHandler(t *testing.T) {
	root := fstest.MapFS{
		"index.html":    {Data: []byte("<html>coach</html>")},
		"assets/app.js": {Data: []byte("console.log('bpb')")},
	}
	h := newSPAHandler(root)

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{"root", "/", http.StatusOK, "coach"},
		{"static asset", "/assets/app.js", http.StatusOK, "bpb"},
		{"client route", "/plan/today", http.StatusOK, "coach"},
		{"unknown api", "/api/nope", http.StatusNotFound, "not found"},
		{"unknown ws", "/ws/nope", http.StatusNotFound, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body %q does not contain %q", w.Body.String(), tt.contains)
			}
		})
	}
}

func TestEmbeddedIndex(t *testing.T) {
	w := httptest.NewRecorder()
	SPAHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "BPB") {
		t.Errorf("status = %d body = %q", w.Code, w.Body.String())
	}
}
