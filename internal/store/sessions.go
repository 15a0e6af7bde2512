package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/models"
)

// SessionStore is the persistence adapter for session records.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore constructs a SessionStore backed by the provided database.
func NewSessionStore(db *gorm.DB) (*SessionStore, error) {
	if db == nil {
		return nil, errors.New("session store: db is required")
	}
	return &SessionStore{db: db}, nil
}

// CreateReplacing revokes every session owned by the user and inserts a fresh
// one in a single transaction, enforcing the single-active-session policy.
// Under concurrent sign-ins the last committed transaction wins.
func (s *SessionStore) CreateReplacing(ctx context.Context, userID string, expiresAt time.Time) (*models.Session, error) {
	session := &models.Session{
		UserID:    userID,
		ExpiresAt: expiresAt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, fmt.Errorf("session store: create: %w", err)
	}

	return session, nil
}

// FindActiveByID loads a session together with its owning user, filtering
// revoked and expired sessions. The user is preloaded under the same
// soft-delete scope, so a deleted owner surfaces as a nil User.
func (s *SessionStore) FindActiveByID(ctx context.Context, id string, now time.Time) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("id = ? AND expires_at > ?", id, now).
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session store: find active: %w", err)
	}
	return &session, nil
}

// DeleteAllForUser revokes every session owned by the user. Revoking zero
// sessions is not an error; the count lets callers observe idempotence.
func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session store: delete all for user: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete revokes a single session by id.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&models.Session{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("session store: delete: %w", err)
	}
	return nil
}

// CountActiveForUser reports the number of sessions that could still
// authenticate requests for the user.
func (s *SessionStore) CountActiveForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("session store: count active: %w", err)
	}
	return count, nil
}

// PurgeExpired hard-deletes sessions that expired or were revoked before the
// given instant. Expiry is enforced at read time; this only reclaims rows.
func (s *SessionStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Unscoped().
		Where("expires_at <= ? OR deleted_at IS NOT NULL", before).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session store: purge expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}
