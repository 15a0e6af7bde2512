package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is the server-side proof of an authenticated client. The id is the
// only value that ever leaves the server, wrapped in a signed cookie.
type Session struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Active reports whether the session may authenticate requests at the given
// instant. The expiry boundary is inclusive: ExpiresAt <= now is expired.
func (s *Session) Active(now time.Time) bool {
	return !s.DeletedAt.Valid && s.ExpiresAt.After(now)
}
