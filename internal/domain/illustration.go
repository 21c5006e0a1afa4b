package domain

import "time"

// IllustrationSource records how a binding was produced.
type IllustrationSource string

const (
	SourceGallery   IllustrationSource = "gallery"
	SourceGenerated IllustrationSource = "generated"
)

// IllustrationRecord is a persisted exercise-name to image binding.
type IllustrationRecord struct {
	Token     string             `json:"token"`
	Ref       string             `json:"ref"` // URL or data URL
	Source    IllustrationSource `json:"source"`
	CreatedAt time.Time          `json:"created_at"`
}
