package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/models"
)

func openStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Session{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func newStores(t *testing.T) (*UserStore, *SessionStore) {
	t.Helper()

	db := openStoreTestDB(t)
	users, err := NewUserStore(db)
	require.NoError(t, err)
	sessions, err := NewSessionStore(db)
	require.NoError(t, err)
	return users, sessions
}

func TestUserStoreFindByEmailIsCaseInsensitive(t *testing.T) {
	users, _ := newStores(t)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &models.User{Email: "mixed@example.com"}))

	found, err := users.FindByEmail(ctx, "  MiXeD@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "mixed@example.com", found.Email)
}

func TestUserStoreSoftDeletedInvisible(t *testing.T) {
	users, _ := newStores(t)
	ctx := context.Background()

	user := &models.User{Email: "ghost@example.com"}
	require.NoError(t, users.Create(ctx, user))
	require.NoError(t, users.SoftDelete(ctx, user.ID))

	_, err := users.FindByID(ctx, user.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = users.FindByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, users.SoftDelete(ctx, user.ID), ErrNotFound)
}

func TestUserStoreTokenLifecycle(t *testing.T) {
	users, _ := newStores(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	user := &models.User{Email: "token@example.com"}
	require.NoError(t, users.Create(ctx, user))

	require.NoError(t, users.SetVerificationToken(ctx, user.ID, "tok-1", now.Add(24*time.Hour), models.TokenPurposeLogin))

	found, err := users.FindByToken(ctx, "tok-1", false, now)
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)
	require.Equal(t, models.TokenPurposeLogin, found.VerificationTokenPurpose)

	// Overwriting leaves exactly one live token.
	require.NoError(t, users.SetVerificationToken(ctx, user.ID, "tok-2", now.Add(24*time.Hour), models.TokenPurposeResetPassword))
	_, err = users.FindByToken(ctx, "tok-1", false, now)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, users.ConsumeVerificationToken(ctx, user.ID, now))
	_, err = users.FindByToken(ctx, "tok-2", false, now)
	require.ErrorIs(t, err, ErrNotFound)

	found, err = users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, found.EmailVerified())
	require.Nil(t, found.VerificationToken)
}

func TestUserStoreTokenExpiryBoundary(t *testing.T) {
	users, _ := newStores(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	user := &models.User{Email: "expiry@example.com"}
	require.NoError(t, users.Create(ctx, user))
	require.NoError(t, users.SetVerificationToken(ctx, user.ID, "tok", now, models.TokenPurposeLogin))

	// A token at its expiry instant is already expired.
	_, err := users.FindByToken(ctx, "tok", false, now)
	require.ErrorIs(t, err, ErrNotFound)

	found, err := users.FindByToken(ctx, "tok", true, now)
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)
}

func TestUserStoreClearStaleTokens(t *testing.T) {
	users, _ := newStores(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	stale := &models.User{Email: "stale@example.com"}
	fresh := &models.User{Email: "fresh@example.com"}
	require.NoError(t, users.Create(ctx, stale))
	require.NoError(t, users.Create(ctx, fresh))
	require.NoError(t, users.SetVerificationToken(ctx, stale.ID, "old", now.Add(-time.Hour), models.TokenPurposeLogin))
	require.NoError(t, users.SetVerificationToken(ctx, fresh.ID, "new", now.Add(time.Hour), models.TokenPurposeLogin))

	cleared, err := users.ClearStaleTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, cleared)

	_, err = users.FindByToken(ctx, "new", false, now)
	require.NoError(t, err)
}

func TestSessionStoreReplaceEnforcesSingleSession(t *testing.T) {
	users, sessions := newStores(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	user := &models.User{Email: "single@example.com"}
	require.NoError(t, users.Create(ctx, user))

	first, err := sessions.CreateReplacing(ctx, user.ID, now.Add(24*time.Hour))
	require.NoError(t, err)
	second, err := sessions.CreateReplacing(ctx, user.ID, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	count, err := sessions.CountActiveForUser(ctx, user.ID, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	_, err = sessions.FindActiveByID(ctx, first.ID, now)
	require.ErrorIs(t, err, ErrNotFound)

	found, err := sessions.FindActiveByID(ctx, second.ID, now)
	require.NoError(t, err)
	require.NotNil(t, found.User)
	require.Equal(t, user.ID, found.User.ID)
}

func TestSessionStoreExpiredInvisible(t *testing.T) {
	users, sessions := newStores(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	user := &models.User{Email: "late@example.com"}
	require.NoError(t, users.Create(ctx, user))

	session, err := sessions.CreateReplacing(ctx, user.ID, now)
	require.NoError(t, err)

	_, err = sessions.FindActiveByID(ctx, session.ID, now)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStoreDeleteAllIdempotent(t *testing.T) {
	users, sessions := newStores(t)
	ctx := context.Background()

	user := &models.User{Email: "none@example.com"}
	require.NoError(t, users.Create(ctx, user))

	count, err := sessions.DeleteAllForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSessionStorePurgeExpired(t *testing.T) {
	users, sessions := newStores(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	user := &models.User{Email: "purge@example.com"}
	require.NoError(t, users.Create(ctx, user))

	_, err := sessions.CreateReplacing(ctx, user.ID, now.Add(-time.Hour))
	require.NoError(t, err)

	purged, err := sessions.PurgeExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)
}
