package domain

import (
	"fmt"
	"strings"
	"time"
)

// Level is the athlete's training experience.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// ParseLevel normalizes a level string.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelBeginner:
		return LevelBeginner, nil
	case LevelIntermediate:
		return LevelIntermediate, nil
	case LevelAdvanced:
		return LevelAdvanced, nil
	}
	return "", fmt.Errorf("unknown level %q", s)
}

// UserProfile holds the biometric data the coach plans around.
// Each edit overwrites the previous profile; no history is kept.
type UserProfile struct {
	UserID        string    `json:"-"`
	Age           int       `json:"age"`
	WeightKg      float64   `json:"weight"`
	HeightCm      float64   `json:"height"`
	Level         Level     `json:"level"`
	Goal          string    `json:"goal"`
	AvailableDays string    `json:"available_days"`
	BodyPhoto     string    `json:"body_photo,omitempty"` // data URL
	MealPhoto     string    `json:"meal_photo,omitempty"` // data URL
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultProfile returns the profile shown before the athlete edits anything.
func DefaultProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:        userID,
		Age:           25,
		WeightKg:      70,
		HeightCm:      175,
		Level:         LevelBeginner,
		Goal:          "fat loss and muscle gain",
		AvailableDays: "4 days (Sat, Sun, Tue, Wed)",
	}
}

// Validate checks that the profile is usable for prompt assembly.
func (p *UserProfile) Validate() error {
	if p.Age <= 0 || p.Age > 120 {
		return fmt.Errorf("age must be between 1 and 120")
	}
	if p.WeightKg <= 0 {
		return fmt.Errorf("weight must be positive")
	}
	if p.HeightCm <= 0 {
		return fmt.Errorf("height must be positive")
	}
	if _, err := ParseLevel(string(p.Level)); err != nil {
		return err
	}
	if strings.TrimSpace(p.Goal) == "" {
		return fmt.Errorf("goal cannot be empty")
	}
	return nil
}

// Photos returns the attached photos in submission order: body, then meal.
func (p *UserProfile) Photos() []string {
	var out []string
	if p.BodyPhoto != "" {
		out = append(out, p.BodyPhoto)
	}
	if p.MealPhoto != "" {
		out = append(out, p.MealPhoto)
	}
	return out
}
