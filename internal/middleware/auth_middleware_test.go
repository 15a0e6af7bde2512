package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/internal/store"
)

func newAuthTestRouter(t *testing.T) (*gin.Engine, *iauth.SessionService, *models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Session{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	users, err := store.NewUserStore(db)
	require.NoError(t, err)
	sessionStore, err := store.NewSessionStore(db)
	require.NoError(t, err)

	codec, err := iauth.NewCookieCodec(iauth.CookieCodecConfig{Secret: "middleware-secret"})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(sessionStore, codec, iauth.SessionConfig{TTL: time.Hour})
	require.NoError(t, err)

	user := &models.User{Email: "mw@example.com"}
	require.NoError(t, users.Create(context.Background(), user))

	router := gin.New()
	router.Use(Auth(sessions))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    c.GetString(CtxUserIDKey),
			"session_id": c.GetString(CtxSessionIDKey),
		})
	})

	return router, sessions, user
}

func TestAuthMiddlewareAllowsValidCookie(t *testing.T) {
	router, sessions, user := newAuthTestRouter(t)

	_, cookie, err := sessions.Create(context.Background(), user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), user.ID)
}

func TestAuthMiddlewareRejectsMissingCookie(t *testing.T) {
	router, _, _ := newAuthTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_AUTHENTICATED")
}

func TestAuthMiddlewareRejectsTamperedCookie(t *testing.T) {
	router, sessions, user := newAuthTestRouter(t)

	_, cookie, err := sessions.Create(context.Background(), user.ID)
	require.NoError(t, err)
	cookie.Value += "x"

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsRevokedSession(t *testing.T) {
	router, sessions, user := newAuthTestRouter(t)
	ctx := context.Background()

	_, cookie, err := sessions.Create(ctx, user.ID)
	require.NoError(t, err)
	_, err = sessions.RevokeAllForUser(ctx, user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The stale cookie is cleared in the response.
	cleared := rec.Result().Cookies()
	require.NotEmpty(t, cleared)
	require.Equal(t, sessions.CookieName(), cleared[0].Name)
	require.Empty(t, cleared[0].Value)
}
