package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/media"
	"github.com/ashureev/bpb-coach/internal/plan"
	"github.com/oklog/ulid/v2"
)

// Options configures a Service.
type Options struct {
	Collaborator Collaborator
	Store        MessageStore
	Parser       *plan.Parser
	Reporter     ErrorReporter
	Logger       *slog.Logger

	// HistoryWindow is how many prior messages are sent as context.
	HistoryWindow int
	Temperature   float32
	Timeout       time.Duration
}

// DefaultOptions returns the reference context policy.
func DefaultOptions() Options {
	return Options{
		HistoryWindow: 5,
		Temperature:   0.7,
		Timeout:       90 * time.Second,
	}
}

type conversation struct {
	mu       sync.Mutex
	loaded   bool
	messages []domain.ChatMessage
	loading  bool
}

// Service orchestrates conversations. Each conversation accepts one
// submission at a time; different conversations proceed independently.
type Service struct {
	collab   Collaborator
	store    MessageStore
	parser   *plan.Parser
	reporter ErrorReporter
	logger   *slog.Logger
	window   int
	temp     float32
	timeout  time.Duration

	mu    sync.Mutex
	convs map[domain.ConversationKey]*conversation

	subMu       sync.RWMutex
	subscribers []EventFunc
}

// NewService creates an orchestrator.
func NewService(opts Options) (*Service, error) {
	if opts.Collaborator == nil {
		return nil, fmt.Errorf("coach: collaborator is required")
	}
	if opts.Parser == nil {
		opts.Parser = plan.NewParser("")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HistoryWindow < 0 {
		opts.HistoryWindow = 0
	}
	return &Service{
		collab:   opts.Collaborator,
		store:    opts.Store,
		parser:   opts.Parser,
		reporter: opts.Reporter,
		logger:   opts.Logger,
		window:   opts.HistoryWindow,
		temp:     opts.Temperature,
		timeout:  opts.Timeout,
		convs:    make(map[domain.ConversationKey]*conversation),
	}, nil
}

// Subscribe registers fn for every future event.
func (s *Service) Subscribe(fn EventFunc) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Parser returns the parser used for assistant replies.
func (s *Service) Parser() *plan.Parser {
	return s.parser
}

// Submit appends the user's message, asks the collaborator for a reply and
// appends it. Collaborator failures become the fixed failure message and are
// not returned. Only ErrEmptySubmission, ErrBusy, invalid image references
// and transcript load errors are returned.
func (s *Service) Submit(ctx context.Context, conv domain.ConversationKey, text string, images []string) (*Result, error) {
	if strings.TrimSpace(text) == "" && len(images) == 0 {
		return nil, ErrEmptySubmission
	}
	decoded := make([]media.Image, 0, len(images))
	for i, ref := range images {
		img, err := media.DecodeDataURL(ref)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		decoded = append(decoded, img)
	}

	c, err := s.conversation(ctx, conv)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	history := append([]domain.ChatMessage(nil), domain.RecentMessages(c.messages, s.window)...)
	userMsg := s.newMessage(len(c.messages), domain.RoleUser, text, images)
	c.messages = append(c.messages, userMsg)
	c.loading = true
	c.mu.Unlock()

	s.persist(ctx, conv, &userMsg)
	s.emit(ctx, Event{Type: EventMessageAppended, Conversation: conv, Message: &userMsg})
	s.emit(ctx, Event{Type: EventLoadingChanged, Conversation: conv, Loading: true})

	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
		s.emit(ctx, Event{Type: EventLoadingChanged, Conversation: conv, Loading: false})
	}()

	reply, failed := s.reply(ctx, conv, history, text, decoded)

	c.mu.Lock()
	assistantMsg := s.newMessage(len(c.messages), domain.RoleAssistant, reply, nil)
	c.messages = append(c.messages, assistantMsg)
	c.mu.Unlock()

	s.persist(ctx, conv, &assistantMsg)
	s.emit(ctx, Event{
		Type:         EventMessageAppended,
		Conversation: conv,
		Message:      &assistantMsg,
		Sections:     s.parser.Parse(assistantMsg.Content),
	})

	return &Result{User: userMsg, Assistant: assistantMsg, Failed: failed}, nil
}

// StartFromProfile submits the opening request built from p, with its photos.
func (s *Service) StartFromProfile(ctx context.Context, conv domain.ConversationKey, p *domain.UserProfile) (*Result, error) {
	return s.Submit(ctx, conv, ProfilePrompt(p), p.Photos())
}

// Replan asks for a revised program after a profile edit.
func (s *Service) Replan(ctx context.Context, conv domain.ConversationKey, p *domain.UserProfile) (*Result, error) {
	return s.Submit(ctx, conv, ReplanMessage, p.Photos())
}

// Messages returns a copy of the transcript.
func (s *Service) Messages(ctx context.Context, conv domain.ConversationKey) ([]domain.ChatMessage, error) {
	c, err := s.conversation(ctx, conv)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ChatMessage(nil), c.messages...), nil
}

// Tokens returns the distinct exercise names of every training section in
// conv's assistant messages, in order of first appearance.
func (s *Service) Tokens(ctx context.Context, conv domain.ConversationKey) ([]string, error) {
	msgs, err := s.Messages(ctx, conv)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, m := range msgs {
		if m.Role != domain.RoleAssistant {
			continue
		}
		for _, sec := range s.parser.Parse(m.Content) {
			if !sec.Training {
				continue
			}
			for _, tok := range sec.UniqueTokens() {
				if _, ok := seen[tok]; ok {
					continue
				}
				seen[tok] = struct{}{}
				out = append(out, tok)
			}
		}
	}
	return out, nil
}

// Loading reports whether a reply is pending for conv.
func (s *Service) Loading(conv domain.ConversationKey) bool {
	s.mu.Lock()
	c, ok := s.convs[conv]
	s.mu.Unlock()
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (s *Service) reply(ctx context.Context, conv domain.ConversationKey, history []domain.ChatMessage, text string, images []media.Image) (string, bool) {
	req := ReplyRequest{
		SystemInstruction: SystemInstruction,
		Temperature:       s.temp,
		Turns:             BuildTurns(history, text, images),
	}

	// Replies complete even if the client goes away.
	callCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.collab.Reply(callCtx, req)
	if err != nil {
		s.logger.Error("coach reply failed",
			"user_id", conv.UserID,
			"session_id", conv.SessionID,
			"turns", len(req.Turns),
			"error", err,
		)
		if s.reporter != nil {
			s.reporter.CaptureError(err, map[string]string{"component": "coach", "user_id": conv.UserID})
		}
		return FailureReplyText, true
	}
	s.logger.Info("coach reply received",
		"user_id", conv.UserID,
		"session_id", conv.SessionID,
		"turns", len(req.Turns),
		"duration", time.Since(start),
		"reply_length", len(out),
	)
	if strings.TrimSpace(out) == "" {
		return EmptyReplyText, false
	}
	return out, false
}

// BuildTurns converts prior messages and a new submission into collaborator
// turns. Prior turns carry text only; images ride on the final user turn.
func BuildTurns(history []domain.ChatMessage, text string, images []media.Image) []Turn {
	turns := make([]Turn, 0, len(history)+1)
	for _, m := range history {
		role := TurnUser
		if m.Role == domain.RoleAssistant {
			role = TurnModel
		}
		turns = append(turns, Turn{Role: role, Text: m.Content})
	}
	if strings.TrimSpace(text) == "" {
		text = DefaultPhotoPrompt
	}
	return append(turns, Turn{Role: TurnUser, Text: text, Images: images})
}

func (s *Service) conversation(ctx context.Context, key domain.ConversationKey) (*conversation, error) {
	s.mu.Lock()
	c, ok := s.convs[key]
	if !ok {
		c = &conversation{}
		s.convs[key] = c
	}
	s.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c, nil
	}
	if s.store != nil {
		msgs, err := s.store.ListMessages(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load transcript: %w", err)
		}
		c.messages = msgs
	}
	c.loaded = true
	return c, nil
}

func (s *Service) newMessage(seq int, role domain.Role, content string, images []string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        ulid.Make().String(),
		Seq:       seq,
		Role:      role,
		Content:   content,
		Images:    images,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *Service) persist(ctx context.Context, conv domain.ConversationKey, msg *domain.ChatMessage) {
	if s.store == nil {
		return
	}
	if err := s.store.AppendMessage(context.WithoutCancel(ctx), conv, msg); err != nil {
		s.logger.Error("failed to persist message",
			"user_id", conv.UserID,
			"session_id", conv.SessionID,
			"message_id", msg.ID,
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, ev Event) {
	s.subMu.RLock()
	subs := append([]EventFunc(nil), s.subscribers...)
	s.subMu.RUnlock()
	ctx = context.WithoutCancel(ctx)
	for _, fn := range subs {
		fn(ctx, ev)
	}
}
