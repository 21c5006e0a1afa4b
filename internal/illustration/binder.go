package illustration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/media"
	"github.com/ashureev/bpb-coach/internal/plan"
)

// Mode selects how unbound exercise names get an image.
type Mode string

const (
	// ModeFallback assigns a stock gallery image by name hash.
	ModeFallback Mode = "fallback"
	// ModeGenerate asks an image generator for each unbound name.
	ModeGenerate Mode = "generate"
)

// ParseMode validates a configured mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFallback, ModeGenerate:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown illustration mode %q", s)
}

// ErrNoImage is returned by generators that produced no image data.
var ErrNoImage = errors.New("no image data in response")

// Generator produces an illustration for a free-text prompt.
type Generator interface {
	GenerateIllustration(ctx context.Context, prompt string) (media.Image, error)
}

// AssetStore publishes generated images and returns their public URL.
type AssetStore interface {
	Put(ctx context.Context, token string, img media.Image) (string, error)
}

// Store persists bindings.
type Store interface {
	SaveIllustration(ctx context.Context, rec *domain.IllustrationRecord) error
}

// BoundFunc is called after a new binding is recorded for a conversation.
type BoundFunc func(conv domain.ConversationKey, rec domain.IllustrationRecord)

// SectionKey identifies one section of one message.
type SectionKey struct {
	MessageID string
	Ordinal   int
}

// Config configures a Binder.
type Config struct {
	Mode      Mode
	Gallery   []string
	Generator Generator
	Assets    AssetStore
	Store     Store
	OnBound   BoundFunc
	Logger    *slog.Logger

	// GenerateTimeout bounds each generation call, upload included.
	// Zero means DefaultGenerateTimeout.
	GenerateTimeout time.Duration
}

// DefaultGenerateTimeout bounds one generation call when none is configured.
const DefaultGenerateTimeout = 60 * time.Second

// Binder maps exercise names to images. Bindings are append-only: once a
// name is bound it is never rebound or evicted.
type Binder struct {
	mode      Mode
	gallery   []string
	generator Generator
	assets    AssetStore
	store     Store
	onBound   BoundFunc
	logger    *slog.Logger
	timeout   time.Duration

	mu       sync.Mutex
	bindings map[string]domain.IllustrationRecord
	inFlight map[SectionKey]struct{}
	pending  map[string]struct{} // names with a generation call outstanding

	wg sync.WaitGroup
}

// NewBinder creates a binder.
func NewBinder(cfg Config) (*Binder, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeFallback
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.Gallery) == 0 {
		cfg.Gallery = DefaultGallery
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = DefaultGenerateTimeout
	}
	if cfg.Mode == ModeGenerate && cfg.Generator == nil {
		return nil, fmt.Errorf("illustration mode %q requires a generator", cfg.Mode)
	}
	return &Binder{
		mode:      cfg.Mode,
		gallery:   cfg.Gallery,
		generator: cfg.Generator,
		assets:    cfg.Assets,
		store:     cfg.Store,
		onBound:   cfg.OnBound,
		logger:    cfg.Logger,
		timeout:   cfg.GenerateTimeout,
		bindings:  make(map[string]domain.IllustrationRecord),
		inFlight:  make(map[SectionKey]struct{}),
		pending:   make(map[string]struct{}),
	}, nil
}

// Mode returns the active binding policy.
func (b *Binder) Mode() Mode {
	return b.mode
}

// SetOnBound replaces the binding callback. Call before the binder is used.
func (b *Binder) SetOnBound(fn BoundFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onBound = fn
}

// Load seeds previously persisted bindings. Existing names are kept.
func (b *Binder) Load(records []*domain.IllustrationRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range records {
		if _, ok := b.bindings[rec.Token]; !ok {
			b.bindings[rec.Token] = *rec
		}
	}
}

// Lookup returns the binding for name.
func (b *Binder) Lookup(name string) (domain.IllustrationRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.bindings[name]
	return rec, ok
}

// Bindings returns name -> image reference for the bound names among names.
// Unbound names are omitted.
func (b *Binder) Bindings(names []string) map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(names))
	for _, name := range names {
		if rec, ok := b.bindings[name]; ok {
			out[name] = rec.Ref
		}
	}
	return out
}

// InFlight reports whether a pass for key is running.
func (b *Binder) InFlight(key SectionKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.inFlight[key]
	return ok
}

// FallbackFor returns the gallery image name resolves to.
func (b *Binder) FallbackFor(name string) string {
	return b.gallery[GalleryIndex(name, len(b.gallery))]
}

// BindMessage runs a binding pass for every training section of msg.
// Sections that are not training sections are ignored even when they
// contain bracketed text.
func (b *Binder) BindMessage(ctx context.Context, conv domain.ConversationKey, msg domain.ChatMessage, sections []plan.Section) {
	for _, s := range sections {
		if !s.Training || len(s.Tokens) == 0 {
			continue
		}
		b.BindSection(ctx, conv, SectionKey{MessageID: msg.ID, Ordinal: s.Ordinal}, s.Tokens)
	}
}

// BindSection binds every unbound name in tokens. It returns false without
// doing anything when a pass for key is already in flight.
//
// Fallback passes complete before BindSection returns. Generate passes run
// in the background; use Wait to block until they finish.
func (b *Binder) BindSection(ctx context.Context, conv domain.ConversationKey, key SectionKey, tokens []string) bool {
	b.mu.Lock()
	if _, busy := b.inFlight[key]; busy {
		b.mu.Unlock()
		b.logger.Debug("illustration pass already in flight", "message_id", key.MessageID, "section", key.Ordinal)
		return false
	}
	b.inFlight[key] = struct{}{}
	b.mu.Unlock()

	if b.mode == ModeFallback {
		defer b.finish(key)
		b.bindFallback(ctx, conv, tokens)
		return true
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.finish(key)
		b.bindGenerated(context.WithoutCancel(ctx), conv, key, tokens)
	}()
	return true
}

// Wait blocks until all background passes have finished.
func (b *Binder) Wait() {
	b.wg.Wait()
}

func (b *Binder) finish(key SectionKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inFlight, key)
}

func (b *Binder) bindFallback(ctx context.Context, conv domain.ConversationKey, tokens []string) {
	for _, name := range tokens {
		if name == "" {
			continue
		}
		b.record(ctx, conv, domain.IllustrationRecord{
			Token:     name,
			Ref:       b.FallbackFor(name),
			Source:    domain.SourceGallery,
			CreatedAt: time.Now().UTC(),
		})
	}
}

func (b *Binder) bindGenerated(ctx context.Context, conv domain.ConversationKey, key SectionKey, tokens []string) {
	for _, name := range tokens {
		if name == "" || !b.claim(name) {
			continue
		}
		ref, err := b.generate(ctx, name)
		b.release(name)
		if err != nil {
			b.logger.Warn("illustration generation failed",
				"token", name,
				"message_id", key.MessageID,
				"section", key.Ordinal,
				"error", err,
			)
			continue
		}
		b.record(ctx, conv, domain.IllustrationRecord{
			Token:     name,
			Ref:       ref,
			Source:    domain.SourceGenerated,
			CreatedAt: time.Now().UTC(),
		})
	}
}

// claim marks name as being generated; false if it is bound or pending.
func (b *Binder) claim(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.bindings[name]; ok {
		return false
	}
	if _, ok := b.pending[name]; ok {
		return false
	}
	b.pending[name] = struct{}{}
	return true
}

func (b *Binder) release(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, name)
}

func (b *Binder) generate(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	img, err := b.generator.GenerateIllustration(ctx, Prompt(name))
	if err != nil {
		return "", err
	}
	if len(img.Data) == 0 {
		return "", ErrNoImage
	}
	if b.assets != nil {
		url, err := b.assets.Put(ctx, name, img)
		if err == nil {
			return url, nil
		}
		b.logger.Warn("illustration upload failed, keeping inline image", "token", name, "error", err)
	}
	return media.EncodeDataURL(img.MIMEType, img.Data), nil
}

// record stores rec unless the name is already bound.
func (b *Binder) record(ctx context.Context, conv domain.ConversationKey, rec domain.IllustrationRecord) {
	b.mu.Lock()
	if _, ok := b.bindings[rec.Token]; ok {
		b.mu.Unlock()
		return
	}
	b.bindings[rec.Token] = rec
	onBound := b.onBound
	b.mu.Unlock()

	if b.store != nil {
		if err := b.store.SaveIllustration(ctx, &rec); err != nil {
			b.logger.Error("failed to persist illustration", "token", rec.Token, "error", err)
		}
	}
	if onBound != nil {
		onBound(conv, rec)
	}
}

// Prompt describes an exercise for the image generator.
func Prompt(name string) string {
	return fmt.Sprintf("A clean, instructional fitness illustration of a person performing the exercise %q "+
		"with correct form, neutral gym background, no text or watermarks.", name)
}
