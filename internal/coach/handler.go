package coach

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/identity"
	"github.com/ashureev/bpb-coach/internal/media"
	"github.com/ashureev/bpb-coach/internal/plan"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize fits a body and a meal photo as data URLs.
const defaultMaxRequestBodySize = 16 << 20

// ProfileSource provides the stored profile for profile-driven submissions.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
}

// BindingSource resolves exercise names to bound images.
type BindingSource interface {
	Bindings(names []string) map[string]string
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Service      *Service
	Profiles     ProfileSource
	Bindings     BindingSource
	RateLimiter  *RateLimiter
	Log          ConversationLogger
	MaxBodyBytes int64
}

// Handler serves the chat endpoints.
type Handler struct {
	svc         *Service
	profiles    ProfileSource
	bindings    BindingSource
	rateLimiter *RateLimiter
	log         ConversationLogger
	maxBody     int64
}

// NewHandler creates a chat handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Log == nil {
		cfg.Log = noopConversationLogger{}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxRequestBodySize
	}
	if cfg.RateLimiter == nil {
		cfg.RateLimiter = NewRateLimiter(10, time.Minute)
	}
	return &Handler{
		svc:         cfg.Service,
		profiles:    cfg.Profiles,
		bindings:    cfg.Bindings,
		rateLimiter: cfg.RateLimiter,
		log:         cfg.Log,
		maxBody:     cfg.MaxBodyBytes,
	}
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Text   string   `json:"text"`
	Images []string `json:"images,omitempty"`
}

// SectionView is a parsed section ready for display.
type SectionView struct {
	plan.Section
	Lines []plan.Line `json:"lines"`
}

// MessageView is a transcript entry with its parsed sections.
type MessageView struct {
	domain.ChatMessage
	Sections []SectionView `json:"sections,omitempty"`
}

// ConversationView is the body of GET /api/conversation.
type ConversationView struct {
	Messages      []MessageView     `json:"messages"`
	Loading       bool              `json:"loading"`
	Illustrations map[string]string `json:"illustrations"`
}

// RegisterRoutes registers chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", h.HandleChat)
		r.Post("/start", h.HandleStart)
		r.Post("/replan", h.HandleReplan)
	})
	r.Get("/api/conversation", h.HandleConversation)
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
	if err := h.log.Close(); err != nil {
		slog.Warn("failed to close conversation logger", "error", err)
	}
}

// HandleChat handles POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.admit(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, `{"error": "request body too large"}`, http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	h.submit(w, r, conv, func(ctx context.Context) (*Result, error) {
		return h.svc.Submit(ctx, conv, req.Text, req.Images)
	})
}

// HandleStart handles POST /api/chat/start using the stored profile.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.handleProfileSubmission(w, r, h.svc.StartFromProfile)
}

// HandleReplan handles POST /api/chat/replan using the stored profile.
func (h *Handler) HandleReplan(w http.ResponseWriter, r *http.Request) {
	h.handleProfileSubmission(w, r, h.svc.Replan)
}

func (h *Handler) handleProfileSubmission(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, domain.ConversationKey, *domain.UserProfile) (*Result, error)) {
	conv, ok := h.admit(w, r)
	if !ok {
		return
	}

	profile := domain.DefaultProfile(conv.UserID)
	if h.profiles != nil {
		stored, err := h.profiles.GetProfile(r.Context(), conv.UserID)
		if err != nil {
			slog.Error("failed to load profile", "user_id", conv.UserID, "error", err)
			http.Error(w, `{"error": "failed to load profile"}`, http.StatusInternalServerError)
			return
		}
		if stored != nil {
			profile = stored
		}
	}

	h.submit(w, r, conv, func(ctx context.Context) (*Result, error) {
		return fn(ctx, conv, profile)
	})
}

// admit resolves the caller's conversation and applies the rate limit.
func (h *Handler) admit(w http.ResponseWriter, r *http.Request) (domain.ConversationKey, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return domain.ConversationKey{}, false
	}
	if !h.rateLimiter.Allow(userID) {
		http.Error(w, `{"error": "rate limit exceeded"}`, http.StatusTooManyRequests)
		return domain.ConversationKey{}, false
	}
	return domain.ConversationKey{UserID: userID, SessionID: identity.SessionIDFromContext(r.Context())}, true
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, conv domain.ConversationKey,
	fn func(context.Context) (*Result, error)) {
	reqID := chiMiddleware.GetReqID(r.Context())

	res, err := fn(r.Context())
	switch {
	case errors.Is(err, ErrEmptySubmission):
		http.Error(w, `{"error": "message text or an image is required"}`, http.StatusBadRequest)
		return
	case errors.Is(err, media.ErrInvalidDataURL):
		http.Error(w, `{"error": "images must be base64 data URLs"}`, http.StatusBadRequest)
		return
	case errors.Is(err, ErrBusy):
		http.Error(w, `{"error": "a reply is already pending"}`, http.StatusConflict)
		return
	case err != nil:
		slog.Error("chat submission failed", "user_id", conv.UserID, "session_id", conv.SessionID, "error", err)
		http.Error(w, `{"error": "failed to submit message"}`, http.StatusInternalServerError)
		return
	}

	slog.Info("Coach chat exchange",
		"user_id", conv.UserID,
		"session_id", conv.SessionID,
		"message_length", len(res.User.Content),
		"images", len(res.User.Images),
		"failed", res.Failed,
	)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	h.log.Log(ConversationLogEvent{
		Timestamp:  now,
		UserID:     conv.UserID,
		SessionID:  conv.SessionID,
		Channel:    "chat_http",
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: res.User.Content,
		Meta: map[string]any{
			"request_id": reqID,
			"message_id": res.User.ID,
			"images":     len(res.User.Images),
		},
	})
	h.log.Log(ConversationLogEvent{
		Timestamp:  now,
		UserID:     conv.UserID,
		SessionID:  conv.SessionID,
		Channel:    "chat_http",
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: res.Assistant.Content,
		Meta: map[string]any{
			"request_id": reqID,
			"message_id": res.Assistant.ID,
			"failed":     res.Failed,
		},
	})

	writeJSON(w, http.StatusOK, res)
}

// HandleConversation handles GET /api/conversation.
func (h *Handler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	conv := domain.ConversationKey{UserID: userID, SessionID: identity.SessionIDFromContext(r.Context())}

	msgs, err := h.svc.Messages(r.Context(), conv)
	if err != nil {
		slog.Error("failed to load conversation", "user_id", userID, "error", err)
		http.Error(w, `{"error": "failed to load conversation"}`, http.StatusInternalServerError)
		return
	}

	view := ConversationView{
		Messages:      make([]MessageView, 0, len(msgs)),
		Loading:       h.svc.Loading(conv),
		Illustrations: map[string]string{},
	}
	var tokens []string
	seen := make(map[string]struct{})
	for _, m := range msgs {
		mv := MessageView{ChatMessage: m}
		if m.Role == domain.RoleAssistant {
			for _, s := range h.svc.Parser().Parse(m.Content) {
				mv.Sections = append(mv.Sections, SectionView{Section: s, Lines: s.RenderBody()})
				if !s.Training {
					continue
				}
				for _, tok := range s.UniqueTokens() {
					if _, ok := seen[tok]; !ok {
						seen[tok] = struct{}{}
						tokens = append(tokens, tok)
					}
				}
			}
		}
		view.Messages = append(view.Messages, mv)
	}
	if h.bindings != nil && len(tokens) > 0 {
		view.Illustrations = h.bindings.Bindings(tokens)
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
