package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/identity"
	"github.com/ashureev/bpb-coach/internal/media"
	"github.com/go-chi/chi/v5"
)

// ListIllustrations returns exercise name -> image bindings for the
// exercises of the caller's conversation.
func (h *Handler) ListIllustrations(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	conv := domain.ConversationKey{UserID: userID, SessionID: identity.SessionIDFromContext(r.Context())}

	tokens, err := h.coach.Tokens(r.Context(), conv)
	if err != nil {
		slog.Error("Failed to load conversation", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	JSON(w, http.StatusOK, h.binder.Bindings(tokens))
}

// DownloadIllustration serves one bound image as BPB-Exercise-<name>.<ext>,
// the extension following the image type.
// Inline images are decoded; hosted images are redirected to.
func (h *Handler) DownloadIllustration(w http.ResponseWriter, r *http.Request) {
	token, err := url.PathUnescape(chi.URLParam(r, "token"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid exercise name")
		return
	}
	rec, ok := h.binder.Lookup(token)
	if !ok {
		Error(w, http.StatusNotFound, "no illustration bound for this exercise")
		return
	}

	if !media.IsDataURL(rec.Ref) {
		http.Redirect(w, r, rec.Ref, http.StatusFound)
		return
	}
	img, err := media.DecodeDataURL(rec.Ref)
	if err != nil {
		slog.Error("Stored illustration is not decodable", "token", token, "error", err)
		Error(w, http.StatusInternalServerError, "illustration is corrupt")
		return
	}
	attachment(w, "BPB-Exercise-", token, imageExtension(img.MIMEType))
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	if _, err := w.Write(img.Data); err != nil {
		slog.Debug("Failed to write illustration", "token", token, "error", err)
	}
}

// ExportSection serves one rendered section of an assistant message as
// Markdown. X-BPB-Background carries the export background for the
// caller's theme.
func (h *Handler) ExportSection(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ordinal, err := strconv.Atoi(chi.URLParam(r, "ordinal"))
	if err != nil || ordinal < 0 {
		Error(w, http.StatusBadRequest, "invalid section ordinal")
		return
	}
	messageID := chi.URLParam(r, "messageID")
	conv := domain.ConversationKey{UserID: userID, SessionID: identity.SessionIDFromContext(r.Context())}

	msgs, err := h.coach.Messages(r.Context(), conv)
	if err != nil {
		slog.Error("Failed to load conversation", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	var msg *domain.ChatMessage
	for i := range msgs {
		if msgs[i].ID == messageID {
			msg = &msgs[i]
			break
		}
	}
	if msg == nil || msg.Role != domain.RoleAssistant {
		Error(w, http.StatusNotFound, "message not found")
		return
	}

	sections := h.coach.Parser().Parse(msg.Content)
	if ordinal >= len(sections) {
		Error(w, http.StatusNotFound, "section not found")
		return
	}
	section := sections[ordinal]

	theme, err := h.repo.GetTheme(r.Context(), userID)
	if err != nil {
		slog.Warn("Failed to load theme, using default", "user_id", userID, "error", err)
	}

	attachment(w, "BPB-", section.Title, ".md")
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("X-BPB-Background", theme.ExportBackground())
	if _, err := w.Write([]byte(section.Markdown())); err != nil {
		slog.Debug("Failed to write section export", "message_id", messageID, "error", err)
	}
}
