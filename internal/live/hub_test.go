package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/bpb-coach/internal/coach"
	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestHub_RegisterAndPublish(t *testing.T) {
	h := NewHub()
	sub := h.Register("user123", "tab-1")

	h.Publish("user123", "tab-1", Event{Type: TypeMessage})
	h.Publish("user123", "tab-2", Event{Type: TypeLoading})

	select {
	case ev := <-sub.Events():
		if ev.Type != TypeMessage {
			t.Errorf("Expected message event, got %q", ev.Type)
		}
	default:
		t.Fatal("Expected a queued event")
	}
	select {
	case ev := <-sub.Events():
		t.Errorf("Unexpected event for another tab: %+v", ev)
	default:
	}
}

func TestHub_RegisterReplacesSession(t *testing.T) {
	h := NewHub()
	first := h.Register("user123", "tab-1")
	second := h.Register("user123", "tab-1")

	if _, ok := <-first.Events(); ok {
		t.Error("Expected replaced subscription to be closed")
	}

	// A stale unregister must not remove the replacement.
	h.Unregister(first)
	if !h.Active("user123", "tab-1") {
		t.Error("Expected replacement to stay active")
	}
	h.Unregister(second)
	if h.Active("user123", "tab-1") {
		t.Error("Expected session to be inactive")
	}
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	h := NewHub()
	h.buffer = 1
	sub := h.Register("user123", "tab-1")

	h.Publish("user123", "tab-1", Event{Type: TypeMessage})
	h.Publish("user123", "tab-1", Event{Type: TypeLoading})

	if got := len(sub.Events()); got != 1 {
		t.Errorf("Expected 1 buffered event, got %d", got)
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	h := NewHub()
	userID := "concurrentUser"
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			sub := h.Register(userID, "tab-"+strconv.Itoa(i%10))
			h.Unregister(sub)
		}
	}()
	for i := 0; i < 1000; i++ {
		h.Publish(userID, "tab-"+strconv.Itoa(i%10), Event{Type: TypeMessage})
	}
	<-done
}

func TestHub_CoachAndIllustrationEvents(t *testing.T) {
	h := NewHub()
	conv := domain.ConversationKey{UserID: "user123", SessionID: "tab-1"}
	tab1 := h.Register(conv.UserID, "tab-1")
	tab2 := h.Register(conv.UserID, "tab-2")

	h.OnCoachEvent(context.Background(), coach.Event{Type: coach.EventLoadingChanged, Conversation: conv, Loading: true})
	ev := <-tab1.Events()
	if ev.Type != TypeLoading || ev.Loading == nil || !*ev.Loading {
		t.Errorf("Unexpected loading event: %+v", ev)
	}
	if len(tab2.Events()) != 0 {
		t.Error("Coach events belong to one tab")
	}

	h.OnIllustrationBound(conv, domain.IllustrationRecord{Token: "Squat", Ref: "https://img/squat.png"})
	for _, sub := range []*Subscription{tab1, tab2} {
		ev := <-sub.Events()
		if ev.Type != TypeIllustration || ev.Token != "Squat" {
			t.Errorf("Unexpected illustration event: %+v", ev)
		}
	}
}

func TestWebSocketHandler_StreamsEvents(t *testing.T) {
	h := NewHub()
	ws := NewWebSocketHandler(h, "", true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := identity.WithIdentity(r.Context(), "user123", "tab-1")
		ws.ServeHTTP(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	deadline := time.Now().Add(2 * time.Second)
	for !h.Active("user123", "tab-1") {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for registration")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.Publish("user123", "tab-1", Event{Type: TypeIllustration, Token: "Squat", Ref: "https://img/squat.png"})

	var got Event
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Type != TypeIllustration || got.Token != "Squat" {
		t.Errorf("Unexpected event: %+v", got)
	}
}

func TestCheckOrigin(t *testing.T) {
	h := NewWebSocketHandler(NewHub(), "https://coach.example.com", false)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://coach.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := h.checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
