package report

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledReporterIsNoop(t *testing.T) {
	r, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	r.CaptureError(errors.New("boom"), map[string]string{"component": "coach"})
	assert.True(t, r.Flush(time.Millisecond))

	called := false
	h := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNilReporterIsDisabled(t *testing.T) {
	var r *Reporter
	assert.False(t, r.Enabled())
	r.CaptureError(errors.New("boom"), nil)
}
