// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/bpb-coach/internal/domain"
)

// Repository defines the interface for persisting users, profiles,
// transcripts, illustration bindings and preferences.
type Repository interface {
	// GetUser retrieves a user by their user ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// GetProfile returns the stored profile, or nil if none was saved.
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)

	// SaveProfile overwrites the user's profile.
	SaveProfile(ctx context.Context, profile *domain.UserProfile) error

	// AppendMessage stores one transcript entry.
	AppendMessage(ctx context.Context, conv domain.ConversationKey, msg *domain.ChatMessage) error

	// ListMessages returns a conversation in sequence order.
	ListMessages(ctx context.Context, conv domain.ConversationKey) ([]domain.ChatMessage, error)

	// SaveIllustration records a binding. Existing bindings are never replaced.
	SaveIllustration(ctx context.Context, rec *domain.IllustrationRecord) error

	// ListIllustrations returns every stored binding.
	ListIllustrations(ctx context.Context) ([]*domain.IllustrationRecord, error)

	// GetTheme returns the stored theme, or DefaultTheme.
	GetTheme(ctx context.Context, userID string) (domain.Theme, error)

	// SetTheme stores the theme preference.
	SetTheme(ctx context.Context, userID string, theme domain.Theme) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
