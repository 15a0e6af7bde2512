package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/models"
)

// Audit actions recorded by the auth engine.
const (
	AuditActionSignUp        = "auth.signup"
	AuditActionLogin         = "auth.login"
	AuditActionOTPRequest    = "auth.otp.request"
	AuditActionOTPVerify     = "auth.otp.verify"
	AuditActionPasswordReset = "auth.password.reset"
	AuditActionLogout        = "auth.logout"
)

// Audit results.
const (
	AuditResultSuccess = "success"
	AuditResultFailure = "failure"
)

// AuditEntry captures a single audit event to persist.
type AuditEntry struct {
	UserID    *string
	Action    string
	Result    string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
}

// AuditService persists audit log entries. Writes are best-effort from the
// engine's point of view; failures are logged by the caller, never returned
// to the end user.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// Log stores an audit entry, marshalling metadata into a JSON column.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit service: action is required")
	}
	if strings.TrimSpace(entry.Result) == "" {
		return errors.New("audit service: result is required")
	}

	var payload datatypes.JSON
	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		payload = datatypes.JSON(encoded)
	}

	log := models.AuditLog{
		UserID:    entry.UserID,
		Action:    strings.TrimSpace(entry.Action),
		Result:    strings.TrimSpace(entry.Result),
		IPAddress: strings.TrimSpace(entry.IPAddress),
		UserAgent: strings.TrimSpace(entry.UserAgent),
		Metadata:  payload,
	}

	if err := s.db.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("audit service: create entry: %w", err)
	}

	return nil
}

// CleanupOlderThan removes audit entries older than the retention window and
// reports how many rows were deleted.
func (s *AuditService) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, errors.New("audit service: retention days must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// Recent returns the newest audit entries for a user, newest first.
func (s *AuditService) Recent(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("audit service: list entries: %w", err)
	}

	return logs, nil
}
