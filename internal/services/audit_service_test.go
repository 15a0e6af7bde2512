package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/models"
)

func newAuditService(t *testing.T) (*AuditService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	svc, err := NewAuditService(db)
	require.NoError(t, err)
	return svc, db
}

func TestAuditLogAndRecent(t *testing.T) {
	svc, _ := newAuditService(t)
	ctx := context.Background()
	userID := "user-1"

	require.NoError(t, svc.Log(ctx, AuditEntry{
		UserID:    &userID,
		Action:    AuditActionLogin,
		Result:    AuditResultSuccess,
		IPAddress: "203.0.113.9",
		UserAgent: "test-agent",
		Metadata:  map[string]any{"flow": "password"},
	}))
	require.NoError(t, svc.Log(ctx, AuditEntry{
		UserID: &userID,
		Action: AuditActionLogout,
		Result: AuditResultSuccess,
	}))

	logs, err := svc.Recent(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	actions := []string{logs[0].Action, logs[1].Action}
	require.ElementsMatch(t, []string{AuditActionLogin, AuditActionLogout}, actions)
	for _, log := range logs {
		if log.Action == AuditActionLogin {
			require.Contains(t, string(log.Metadata), "password")
		}
	}
}

func TestAuditLogRequiresActionAndResult(t *testing.T) {
	svc, _ := newAuditService(t)
	ctx := context.Background()

	require.Error(t, svc.Log(ctx, AuditEntry{Result: AuditResultSuccess}))
	require.Error(t, svc.Log(ctx, AuditEntry{Action: AuditActionLogin}))
}

func TestAuditCleanupOlderThan(t *testing.T) {
	svc, db := newAuditService(t)
	ctx := context.Background()

	require.NoError(t, svc.Log(ctx, AuditEntry{Action: AuditActionLogin, Result: AuditResultSuccess}))
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("1 = 1").
		Update("created_at", time.Now().AddDate(0, 0, -120)).Error)
	require.NoError(t, svc.Log(ctx, AuditEntry{Action: AuditActionLogout, Result: AuditResultSuccess}))

	removed, err := svc.CleanupOlderThan(ctx, 90)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	_, err = svc.CleanupOlderThan(ctx, 0)
	require.Error(t, err)
}
