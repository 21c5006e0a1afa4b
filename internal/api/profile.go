package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/identity"
	"github.com/ashureev/bpb-coach/internal/media"
)

type profileResponse struct {
	*domain.UserProfile
	Stored bool `json:"stored"`
}

// GetProfile returns the caller's profile, or the default one if none is stored.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if p == nil {
		JSON(w, http.StatusOK, profileResponse{UserProfile: domain.DefaultProfile(userID)})
		return
	}
	JSON(w, http.StatusOK, profileResponse{UserProfile: p, Stored: true})
}

// PutProfile overwrites the caller's profile.
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var p domain.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.UserID = userID

	level, err := domain.ParseLevel(string(p.Level))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	p.Level = level
	if err := p.Validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, photo := range p.Photos() {
		if _, err := media.DecodeDataURL(photo); err != nil {
			Error(w, http.StatusBadRequest, "photos must be base64 data URLs")
			return
		}
	}

	if err := h.repo.SaveProfile(r.Context(), &p); err != nil {
		slog.Error("Failed to save profile", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	slog.Info("Profile saved", "user_id", userID, "level", p.Level, "photos", len(p.Photos()))
	JSON(w, http.StatusOK, profileResponse{UserProfile: &p, Stored: true})
}
