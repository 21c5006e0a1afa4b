package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/identity"
	"github.com/go-chi/chi/v5"
)

type stubProfiles struct{ profile *domain.UserProfile }

func (s stubProfiles) GetProfile(context.Context, string) (*domain.UserProfile, error) {
	return s.profile, nil
}

type stubBindings map[string]string

func (s stubBindings) Bindings(names []string) map[string]string {
	out := map[string]string{}
	for _, n := range names {
		if ref, ok := s[n]; ok {
			out[n] = ref
		}
	}
	return out
}

// testUserHeader lets a test act as another user; testConv is the default.
const testUserHeader = "X-Test-User"

func newTestRouter(t *testing.T, collab Collaborator, limit int) (chi.Router, *Service) {
	t.Helper()
	return newTestRouterWithBindings(t, collab, limit, stubBindings{"Squat": "https://img.example.com/squat.png"})
}

func newTestRouterWithBindings(t *testing.T, collab Collaborator, limit int, bindings BindingSource) (chi.Router, *Service) {
	t.Helper()
	svc := newTestService(t, collab, nil)
	h := NewHandler(HandlerConfig{
		Service:     svc,
		Profiles:    stubProfiles{},
		Bindings:    bindings,
		RateLimiter: NewRateLimiter(limit, time.Minute),
	})
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userID := testConv.UserID
			if u := req.Header.Get(testUserHeader); u != "" {
				userID = u
			}
			ctx := identity.WithIdentity(req.Context(), userID, testConv.SessionID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)
	return r, svc
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleChat(t *testing.T) {
	r, _ := newTestRouter(t, &fakeCollaborator{reply: "## Training Program\n[Squat]"}, 10)

	w := postJSON(t, r, "/api/chat", ChatRequest{Text: "hello"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.User.Content != "hello" || res.Assistant.Role != domain.RoleAssistant {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestHandleChatRejectsEmpty(t *testing.T) {
	r, _ := newTestRouter(t, &fakeCollaborator{reply: "ok"}, 10)

	w := postJSON(t, r, "/api/chat", ChatRequest{Text: " "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleChatRejectsMalformedBody(t *testing.T) {
	r, _ := newTestRouter(t, &fakeCollaborator{reply: "ok"}, 10)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	r, _ := newTestRouter(t, &fakeCollaborator{reply: "ok"}, 1)

	if w := postJSON(t, r, "/api/chat", ChatRequest{Text: "one"}); w.Code != http.StatusOK {
		t.Fatalf("first status = %d", w.Code)
	}
	if w := postJSON(t, r, "/api/chat", ChatRequest{Text: "two"}); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", w.Code)
	}
}

func TestHandleChatBusyConflict(t *testing.T) {
	collab := &fakeCollaborator{reply: "ok", started: make(chan struct{}, 1), release: make(chan struct{})}
	r, _ := newTestRouter(t, collab, 10)

	done := make(chan int, 1)
	go func() {
		done <- postJSON(t, r, "/api/chat", ChatRequest{Text: "first"}).Code
	}()
	<-collab.started

	if w := postJSON(t, r, "/api/chat", ChatRequest{Text: "second"}); w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	close(collab.release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first status = %d", code)
	}
}

func TestHandleStartUsesDefaultProfile(t *testing.T) {
	collab := &fakeCollaborator{reply: "plan"}
	r, _ := newTestRouter(t, collab, 10)

	if w := postJSON(t, r, "/api/chat/start", nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	want := ProfilePrompt(domain.DefaultProfile(testConv.UserID))
	if got := collab.last(t).Turns[0].Text; got != want {
		t.Errorf("prompt = %q, want %q", got, want)
	}
}

func TestHandleConversation(t *testing.T) {
	r, _ := newTestRouter(t, &fakeCollaborator{reply: "## Training Program\nDay 1: [Squat] ✅"}, 10)
	postJSON(t, r, "/api/chat", ChatRequest{Text: "plan"})

	req := httptest.NewRequest(http.MethodGet, "/api/conversation", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var view ConversationView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(view.Messages))
	}
	if view.Loading {
		t.Error("loading should be false after the reply")
	}
	assistant := view.Messages[1]
	if len(assistant.Sections) != 1 || !assistant.Sections[0].Training {
		t.Fatalf("unexpected sections: %+v", assistant.Sections)
	}
	lines := assistant.Sections[0].Lines
	if len(lines) != 1 || lines[0].Text != "Day 1: Squat ✅" || !lines[0].Emphasis {
		t.Errorf("unexpected lines: %+v", lines)
	}
	if view.Illustrations["Squat"] == "" {
		t.Error("expected Squat binding in view")
	}
}

func getConversation(t *testing.T, r http.Handler, userID string) ConversationView {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/conversation", nil)
	if userID != "" {
		req.Header.Set(testUserHeader, userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var view ConversationView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return view
}

func TestHandleConversationOnlyShowsOwnIllustrations(t *testing.T) {
	bindings := stubBindings{
		"Secret Rehab Drill": "https://img.example.com/rehab.png",
		"Squat":              "https://img.example.com/squat.png",
		"Oats":               "https://img.example.com/oats.png",
	}
	collab := &fakeCollaborator{reply: "## Training Program\nDay 1: [Secret Rehab Drill] 3x10\n## Nutrition Program\n[Oats]"}
	r, _ := newTestRouterWithBindings(t, collab, 10, bindings)

	if w := postJSON(t, r, "/api/chat", ChatRequest{Text: "plan"}); w.Code != http.StatusOK {
		t.Fatalf("chat status = %d", w.Code)
	}

	alice := getConversation(t, r, "")
	if len(alice.Illustrations) != 1 || alice.Illustrations["Secret Rehab Drill"] == "" {
		t.Errorf("owner illustrations = %v, want only the training exercise", alice.Illustrations)
	}

	bob := getConversation(t, r, "anon_bob")
	if len(bob.Messages) != 0 {
		t.Fatalf("other user sees %d messages", len(bob.Messages))
	}
	if len(bob.Illustrations) != 0 {
		t.Errorf("other user sees illustrations %v", bob.Illustrations)
	}
}
