// Package api provides HTTP handlers for the BPB API.
package api

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/ashureev/bpb-coach/internal/coach"
	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/illustration"
	"github.com/go-chi/chi/v5"
)

// Repository is the persistence the API handlers use.
type Repository interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	SaveProfile(ctx context.Context, profile *domain.UserProfile) error
	GetTheme(ctx context.Context, userID string) (domain.Theme, error)
	SetTheme(ctx context.Context, userID string, theme domain.Theme) error
}

// Handler provides the profile, preference, illustration and export endpoints.
type Handler struct {
	repo      Repository
	coach     *coach.Service
	binder    *illustration.Binder
	aiEnabled bool
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo Repository, svc *coach.Service, binder *illustration.Binder, aiEnabled bool) *Handler {
	return &Handler{
		repo:      repo,
		coach:     svc,
		binder:    binder,
		aiEnabled: aiEnabled,
	}
}

// RegisterRoutes registers API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/config", h.GetConfig)
	r.Get("/api/profile", h.GetProfile)
	r.Put("/api/profile", h.PutProfile)
	r.Get("/api/preferences/theme", h.GetTheme)
	r.Put("/api/preferences/theme", h.PutTheme)
	r.Get("/api/illustrations", h.ListIllustrations)
	r.Get("/api/illustrations/{token}/download", h.DownloadIllustration)
	r.Get("/api/conversation/sections/{messageID}/{ordinal}/export", h.ExportSection)
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"ai_enabled":        h.aiEnabled,
		"illustration_mode": h.binder.Mode(),
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

var unsafeFileChars = strings.NewReplacer("/", "-", "\\", "-", "\"", "", "\n", " ", "\r", " ")

// preferredExtensions pins the extension where the mime table lists several.
var preferredExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// imageExtension returns the file extension for an image MIME type,
// defaulting to .png.
func imageExtension(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ".png"
	}
	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}

// attachment sets a download header for prefix-name.ext.
func attachment(w http.ResponseWriter, prefix, name, ext string) string {
	filename := prefix + strings.TrimSpace(unsafeFileChars.Replace(name)) + ext
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	return filename
}
