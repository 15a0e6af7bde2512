package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openModelTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}, &Session{}, &AuditLog{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func TestUserBeforeCreateAssignsUUID(t *testing.T) {
	db := openModelTestDB(t)

	user := &User{Email: "a@b.com", Name: "a"}
	require.NoError(t, db.Create(user).Error)
	require.NotEmpty(t, user.ID)

	_, err := uuid.Parse(user.ID)
	require.NoError(t, err)
}

func TestUserSoftDeleteHidesRecord(t *testing.T) {
	db := openModelTestDB(t)

	user := &User{Email: "gone@b.com"}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Delete(user).Error)

	var found User
	err := db.Where("email = ?", "gone@b.com").Take(&found).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Still present when soft-deleted rows are included.
	err = db.Unscoped().Where("email = ?", "gone@b.com").Take(&found).Error
	require.NoError(t, err)
	require.True(t, found.DeletedAt.Valid)
}

func TestUserHelpers(t *testing.T) {
	hash := "$2a$10$abcdefghijklmnopqrstuv"
	now := time.Now()

	user := User{}
	require.False(t, user.HasPassword())
	require.False(t, user.EmailVerified())

	user.PasswordHash = &hash
	user.EmailVerifiedAt = &now
	require.True(t, user.HasPassword())
	require.True(t, user.EmailVerified())
}

func TestSessionActiveBoundary(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	session := Session{ExpiresAt: now.Add(time.Hour)}
	require.True(t, session.Active(now))

	// The expiry instant itself is already expired.
	session.ExpiresAt = now
	require.False(t, session.Active(now))

	session.ExpiresAt = now.Add(time.Hour)
	session.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
	require.False(t, session.Active(now))
}
