package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Verification token purposes. The purpose is fixed at issuance; redemption
// in reset-password mode is honoured only when the stored purpose matches.
const (
	TokenPurposeLogin         = "login"
	TokenPurposeVerifyEmail   = "verify_email"
	TokenPurposeResetPassword = "reset_password"
)

// User is the identity record. PasswordHash is nil for accounts created
// through the OTP flow that never set a password.
type User struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `json:"name"`

	PasswordHash    *string    `json:"-"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`

	// At most one live verification token per user; both columns are always
	// written together in a single update.
	VerificationToken          *string    `gorm:"uniqueIndex" json:"-"`
	VerificationTokenExpiresAt *time.Time `json:"-"`
	VerificationTokenPurpose   string     `json:"-"`

	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// EmailVerified reports whether email ownership has been proven.
func (u *User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}
