package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/pkg/errors"
	"github.com/charlesng35/authgate/pkg/response"
)

const (
	CtxUserKey      = "authUser"
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
)

// Auth enforces cookie-based session authentication. Requests without a
// resolvable session are rejected with a single undifferentiated 401.
func Auth(sessions *iauth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := c.Cookie(sessions.CookieName())
		if err != nil {
			response.Error(c, errors.ErrNotAuthenticated)
			c.Abort()
			return
		}

		session, user, err := sessions.Resolve(c.Request.Context(), value)
		if err != nil {
			// Expired or revoked cookies are cleared so clients stop sending them.
			http.SetCookie(c.Writer, sessions.ClearCookie())
			response.Error(c, errors.ErrNotAuthenticated)
			c.Abort()
			return
		}

		c.Set(CtxUserKey, user)
		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxSessionIDKey, session.ID)

		c.Next()
	}
}
