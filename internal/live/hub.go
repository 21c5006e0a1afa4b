// Package live pushes conversation events to connected browser tabs.
package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ashureev/bpb-coach/internal/coach"
	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/plan"
)

// Event types sent to clients.
const (
	TypeMessage      = "message"
	TypeLoading      = "loading"
	TypeIllustration = "illustration"
)

// Event is one JSON frame on the event stream.
type Event struct {
	Type     string              `json:"type"`
	Message  *domain.ChatMessage `json:"message,omitempty"`
	Sections []plan.Section      `json:"sections,omitempty"`
	Loading  *bool               `json:"loading,omitempty"`
	Token    string              `json:"token,omitempty"`
	Ref      string              `json:"ref,omitempty"`
}

// defaultBuffer is the per-subscription backlog before events are dropped.
const defaultBuffer = 64

// Subscription receives events for one user tab.
type Subscription struct {
	UserID    string
	SessionID string
	events    chan Event
	closeOnce sync.Once
}

// Events returns the receive channel. It is closed when the subscription
// is replaced or unregistered.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.events) })
}

// Hub tracks one subscription per user tab.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*Subscription
	buffer int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[string]*Subscription),
		buffer: defaultBuffer,
	}
}

// Register subscribes a tab, replacing any previous subscription for it.
func (h *Hub) Register(userID, sessionID string) *Subscription {
	sub := &Subscription{UserID: userID, SessionID: sessionID, events: make(chan Event, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.active[userID]; !exists {
		h.active[userID] = make(map[string]*Subscription)
	}
	if existing, exists := h.active[userID][sessionID]; exists {
		existing.close()
	}
	h.active[userID][sessionID] = sub
	slog.Info("Event stream registered", "user_id", userID, "session_id", sessionID)
	return sub
}

// Unregister removes sub if it is still the tab's current subscription.
func (h *Hub) Unregister(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessions, ok := h.active[sub.UserID]; ok {
		if current, exists := sessions[sub.SessionID]; exists && current == sub {
			delete(sessions, sub.SessionID)
			if len(sessions) == 0 {
				delete(h.active, sub.UserID)
			}
			slog.Info("Event stream unregistered", "user_id", sub.UserID, "session_id", sub.SessionID)
		}
	}
	sub.close()
}

// Active reports whether a tab has a subscription.
func (h *Hub) Active(userID, sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.active[userID][sessionID]
	return ok
}

// Publish sends ev to one tab. Slow subscribers lose events rather than
// blocking the publisher.
func (h *Hub) Publish(userID, sessionID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.active[userID][sessionID]
	if !ok {
		return
	}
	select {
	case sub.events <- ev:
	default:
		slog.Warn("Event stream backlog full, dropping event", "user_id", userID, "session_id", sessionID, "type", ev.Type)
	}
}

// PublishUser sends ev to every tab of a user.
func (h *Hub) PublishUser(userID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sid, sub := range h.active[userID] {
		select {
		case sub.events <- ev:
		default:
			slog.Warn("Event stream backlog full, dropping event", "user_id", userID, "session_id", sid, "type", ev.Type)
		}
	}
}

// OnCoachEvent forwards orchestrator events to the conversation's tab.
func (h *Hub) OnCoachEvent(_ context.Context, ev coach.Event) {
	conv := ev.Conversation
	switch ev.Type {
	case coach.EventMessageAppended:
		h.Publish(conv.UserID, conv.SessionID, Event{Type: TypeMessage, Message: ev.Message, Sections: ev.Sections})
	case coach.EventLoadingChanged:
		loading := ev.Loading
		h.Publish(conv.UserID, conv.SessionID, Event{Type: TypeLoading, Loading: &loading})
	}
}

// OnIllustrationBound announces a new binding to every tab of the user
// whose conversation produced it.
func (h *Hub) OnIllustrationBound(conv domain.ConversationKey, rec domain.IllustrationRecord) {
	h.PublishUser(conv.UserID, Event{Type: TypeIllustration, Token: rec.Token, Ref: rec.Ref})
}
