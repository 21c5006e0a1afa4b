// Package coach implements the conversation orchestrator: it keeps each
// athlete's transcript, sends bounded context to the AI collaborator and
// announces every appended message so illustrations can be bound.
package coach

import (
	"context"
	"errors"

	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/media"
	"github.com/ashureev/bpb-coach/internal/plan"
)

var (
	// ErrBusy is returned when a submission arrives while a reply is pending.
	ErrBusy = errors.New("a reply is already pending for this conversation")
	// ErrEmptySubmission is returned for blank text with no images.
	ErrEmptySubmission = errors.New("message text or an image is required")
	// ErrMissingAPIKey is returned by an unconfigured collaborator.
	ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not configured")
)

// Fixed user-facing assistant texts.
const (
	EmptyReplyText     = "Connection error."
	FailureReplyText   = "Sorry champ, please try again."
	DefaultPhotoPrompt = "Analyze these photos, champ."
)

// TurnRole is the collaborator-side author of a turn.
type TurnRole string

const (
	TurnUser  TurnRole = "user"
	TurnModel TurnRole = "model"
)

// Turn is one conversation turn sent to the collaborator.
type Turn struct {
	Role   TurnRole
	Text   string
	Images []media.Image
}

// ReplyRequest is the full context of one collaborator call. The last turn
// is always the new user turn.
type ReplyRequest struct {
	SystemInstruction string
	Temperature       float32
	Turns             []Turn
}

// Collaborator produces a text reply for a conversation.
type Collaborator interface {
	Reply(ctx context.Context, req ReplyRequest) (string, error)
}

// MessageStore persists transcripts.
type MessageStore interface {
	AppendMessage(ctx context.Context, conv domain.ConversationKey, msg *domain.ChatMessage) error
	ListMessages(ctx context.Context, conv domain.ConversationKey) ([]domain.ChatMessage, error)
}

// ErrorReporter receives collaborator failures.
type ErrorReporter interface {
	CaptureError(err error, tags map[string]string)
}

// EventType names an orchestrator event.
type EventType string

const (
	// EventMessageAppended fires once per appended message.
	EventMessageAppended EventType = "message"
	// EventLoadingChanged fires when a conversation enters or leaves loading.
	EventLoadingChanged EventType = "loading"
)

// Event is delivered to subscribers synchronously, in order.
type Event struct {
	Type         EventType
	Conversation domain.ConversationKey
	Message      *domain.ChatMessage
	// Sections is set for assistant messages.
	Sections []plan.Section
	Loading  bool
}

// EventFunc handles an orchestrator event.
type EventFunc func(ctx context.Context, ev Event)

// Result holds the two messages appended by one submission.
type Result struct {
	User      domain.ChatMessage `json:"user"`
	Assistant domain.ChatMessage `json:"assistant"`
	// Failed is true when the assistant message is the failure text.
	Failed bool `json:"failed"`
}
