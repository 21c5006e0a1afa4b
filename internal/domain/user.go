// Package domain contains core domain types for the BPB coaching service.
package domain

import (
	"time"
)

// User represents an anonymous per-device user.
type User struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
