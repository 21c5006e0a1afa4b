package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/identity"
)

type themeBody struct {
	Theme domain.Theme `json:"theme"`
}

// GetTheme returns the caller's theme preference.
func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	theme, err := h.repo.GetTheme(r.Context(), userID)
	if err != nil {
		slog.Warn("Failed to load theme, using default", "user_id", userID, "error", err)
	}
	JSON(w, http.StatusOK, themeBody{Theme: theme})
}

// PutTheme stores the caller's theme preference.
func (h *Handler) PutTheme(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var body themeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	theme, ok := domain.ParseTheme(string(body.Theme))
	if !ok {
		Error(w, http.StatusBadRequest, "theme must be light or dark")
		return
	}
	if err := h.repo.SetTheme(r.Context(), userID, theme); err != nil {
		slog.Error("Failed to save theme", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save theme")
		return
	}
	JSON(w, http.StatusOK, themeBody{Theme: theme})
}
