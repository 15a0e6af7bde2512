package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/models"
)

// ErrNotFound indicates that no record matches the lookup.
var ErrNotFound = errors.New("store: not found")

// UserStore is the persistence adapter for user records. Inputs are assumed
// to be validated by the engine; the store only translates them to queries.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore constructs a UserStore backed by the provided database.
func NewUserStore(db *gorm.DB) (*UserStore, error) {
	if db == nil {
		return nil, errors.New("user store: db is required")
	}
	return &UserStore{db: db}, nil
}

// FindByID returns the active user with the given id. Soft-deleted users are
// invisible to every lookup on this store.
func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user store: find by id: %w", err)
	}
	return &user, nil
}

// FindByEmail returns the active user with the given email. Emails are stored
// lowercased, so the lookup is case-insensitive by normalising the input.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Take(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user store: find by email: %w", err)
	}
	return &user, nil
}

// FindByToken returns the user holding the given verification token. Unless
// includeExpired is set, the token must still be inside its validity window;
// the expiry instant itself counts as expired.
func (s *UserStore) FindByToken(ctx context.Context, token string, includeExpired bool, now time.Time) (*models.User, error) {
	query := s.db.WithContext(ctx).Where("verification_token = ?", token)
	if !includeExpired {
		query = query.Where("verification_token_expires_at > ?", now)
	}

	var user models.User
	err := query.Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user store: find by token: %w", err)
	}
	return &user, nil
}

// Create persists a new user.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("user store: create: %w", err)
	}
	return nil
}

// Update applies a partial column update to the user with the given id.
func (s *UserStore) Update(ctx context.Context, id string, updates map[string]any) (*models.User, error) {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("user store: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

// SetVerificationToken stores a fresh token, expiry, and purpose in a single
// update, overwriting any prior token so at most one is ever live.
func (s *UserStore) SetVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time, purpose string) error {
	_, err := s.Update(ctx, userID, map[string]any{
		"verification_token":            token,
		"verification_token_expires_at": expiresAt,
		"verification_token_purpose":    purpose,
	})
	return err
}

// ConsumeVerificationToken clears the token pair and marks the email verified
// in one update. Consumption happens before any session is issued and is
// never retried, so a redeemed token can never be replayed.
func (s *UserStore) ConsumeVerificationToken(ctx context.Context, userID string, verifiedAt time.Time) error {
	_, err := s.Update(ctx, userID, map[string]any{
		"verification_token":            nil,
		"verification_token_expires_at": nil,
		"verification_token_purpose":    "",
		"email_verified_at":             verifiedAt,
	})
	return err
}

// UpdatePassword replaces the stored credential hash.
func (s *UserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.Update(ctx, userID, map[string]any{"password_hash": passwordHash})
	return err
}

// SoftDelete marks the user deleted; the record disappears from all lookups.
func (s *UserStore) SoftDelete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("user store: soft delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearStaleTokens removes verification tokens whose expiry passed before the
// given instant. Used by maintenance; redemption already filters on expiry.
func (s *UserStore) ClearStaleTokens(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("verification_token IS NOT NULL AND verification_token_expires_at <= ?", before).
		Updates(map[string]any{
			"verification_token":            nil,
			"verification_token_expires_at": nil,
			"verification_token_purpose":    "",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("user store: clear stale tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
