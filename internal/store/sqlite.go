package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/bpb-coach/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	messageMu sync.Mutex // serializes seq allocation per database
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	return openSQLite(dbPath)
}

func openSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		age INTEGER NOT NULL,
		weight_kg REAL NOT NULL,
		height_cm REAL NOT NULL,
		level TEXT NOT NULL,
		goal TEXT NOT NULL,
		available_days TEXT NOT NULL,
		body_photo TEXT,
		meal_photo TEXT,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		images_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_conv_seq ON messages(user_id, session_id, seq);

	CREATE TABLE IF NOT EXISTS illustrations (
		token TEXT PRIMARY KEY,
		ref TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS preferences (
		user_id TEXT PRIMARY KEY,
		theme TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT user_id, username, created_at, updated_at FROM users WHERE user_id = ?`

	var user domain.User
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&user.UserID, &user.Username, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username, user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetProfile returns the stored profile, or nil if none was saved.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := `
		SELECT user_id, age, weight_kg, height_cm, level, goal, available_days,
		       body_photo, meal_photo, updated_at
		FROM profiles WHERE user_id = ?`

	var p domain.UserProfile
	var level string
	var body, meal sql.NullString
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.Age, &p.WeightKg, &p.HeightCm, &level, &p.Goal, &p.AvailableDays,
		&body, &meal, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	p.Level = domain.Level(level)
	p.BodyPhoto = body.String
	p.MealPhoto = meal.String
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// SaveProfile overwrites the user's profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, p *domain.UserProfile) error {
	query := `
	INSERT INTO profiles (user_id, age, weight_kg, height_cm, level, goal, available_days, body_photo, meal_photo, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		age = excluded.age,
		weight_kg = excluded.weight_kg,
		height_cm = excluded.height_cm,
		level = excluded.level,
		goal = excluded.goal,
		available_days = excluded.available_days,
		body_photo = excluded.body_photo,
		meal_photo = excluded.meal_photo,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		p.UserID, p.Age, p.WeightKg, p.HeightCm, string(p.Level), p.Goal, p.AvailableDays,
		nullString(p.BodyPhoto), nullString(p.MealPhoto), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// AppendMessage stores one transcript entry.
// Retries with exponential backoff when SQLite reports it is busy.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conv domain.ConversationKey, msg *domain.ChatMessage) error {
	images, err := json.Marshal(msg.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}

	err = retryWrite(ctx, "append_message", func() error {
		return s.appendMessageOnce(ctx, conv, msg, string(images))
	})
	if err != nil {
		return fmt.Errorf("append message for %s: %w", conv.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) appendMessageOnce(ctx context.Context, conv domain.ConversationKey, msg *domain.ChatMessage, images string) error {
	s.messageMu.Lock()
	defer s.messageMu.Unlock()

	query := `
	INSERT INTO messages (id, user_id, session_id, seq, role, content, images_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, conv.UserID, conv.SessionID, msg.Seq, string(msg.Role), msg.Content, images, msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation in sequence order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conv domain.ConversationKey) ([]domain.ChatMessage, error) {
	query := `
		SELECT id, seq, role, content, images_json, created_at
		FROM messages WHERE user_id = ? AND session_id = ?
		ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, conv.UserID, conv.SessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var role string
		var images sql.NullString
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.Seq, &role, &msg.Content, &images, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.CreatedAt = time.UnixMilli(createdAt).UTC()
		if images.Valid && images.String != "" && images.String != "null" {
			if err := json.Unmarshal([]byte(images.String), &msg.Images); err != nil {
				return nil, fmt.Errorf("decode images for %s: %w", msg.ID, err)
			}
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// SaveIllustration records a binding. Existing bindings are never replaced.
func (s *SQLiteStore) SaveIllustration(ctx context.Context, rec *domain.IllustrationRecord) error {
	query := `
	INSERT INTO illustrations (token, ref, source, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(token) DO NOTHING`

	err := retryWrite(ctx, "save_illustration", func() error {
		_, err := s.db.ExecContext(ctx, query, rec.Token, rec.Ref, string(rec.Source), rec.CreatedAt.Unix())
		return err
	})
	if err != nil {
		return fmt.Errorf("save illustration: %w", err)
	}
	return nil
}

// ListIllustrations returns every stored binding.
func (s *SQLiteStore) ListIllustrations(ctx context.Context) ([]*domain.IllustrationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token, ref, source, created_at FROM illustrations ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query illustrations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close illustration rows", "error", closeErr)
		}
	}()

	var out []*domain.IllustrationRecord
	for rows.Next() {
		var rec domain.IllustrationRecord
		var source string
		var createdAt int64
		if err := rows.Scan(&rec.Token, &rec.Ref, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("scan illustration row: %w", err)
		}
		rec.Source = domain.IllustrationSource(source)
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate illustrations: %w", err)
	}
	return out, nil
}

// GetTheme returns the stored theme, or DefaultTheme.
func (s *SQLiteStore) GetTheme(ctx context.Context, userID string) (domain.Theme, error) {
	var theme string
	err := s.db.QueryRowContext(ctx, `SELECT theme FROM preferences WHERE user_id = ?`, userID).Scan(&theme)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultTheme, nil
	}
	if err != nil {
		return domain.DefaultTheme, fmt.Errorf("get theme: %w", err)
	}
	t, _ := domain.ParseTheme(theme)
	return t, nil
}

// SetTheme stores the theme preference.
func (s *SQLiteStore) SetTheme(ctx context.Context, userID string, theme domain.Theme) error {
	query := `
	INSERT INTO preferences (user_id, theme, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET theme = excluded.theme, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, userID, string(theme), time.Now().Unix()); err != nil {
		return fmt.Errorf("set theme: %w", err)
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
