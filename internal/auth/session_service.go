package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/internal/store"
	apperrors "github.com/charlesng35/authgate/pkg/errors"
	"github.com/charlesng35/authgate/pkg/metrics"
)

// DefaultSessionTTL is the fallback session lifetime.
const DefaultSessionTTL = 24 * time.Hour

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	TTL        time.Duration
	CookieName string
	Secure     bool
	Clock      func() time.Time
}

// SessionService manages issuance, resolution, and revocation of sessions.
// Issuing a session always revokes the user's prior sessions first: the
// platform enforces a single active session per user.
type SessionService struct {
	sessions   *store.SessionStore
	codec      *CookieCodec
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

// NewSessionService constructs a session manager from its collaborators.
func NewSessionService(sessions *store.SessionStore, codec *CookieCodec, cfg SessionConfig) (*SessionService, error) {
	if sessions == nil {
		return nil, errors.New("session service: session store is required")
	}
	if codec == nil {
		return nil, errors.New("session service: cookie codec is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	name := strings.TrimSpace(cfg.CookieName)
	if name == "" {
		name = DefaultCookieName
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		sessions:   sessions,
		codec:      codec,
		ttl:        ttl,
		cookieName: name,
		secure:     cfg.Secure,
		now:        clock,
	}, nil
}

// CookieName returns the name under which the session cookie is set.
func (s *SessionService) CookieName() string {
	return s.cookieName
}

// Create issues a fresh session for the user, revoking all prior ones, and
// returns the session together with its Set-Cookie value.
func (s *SessionService) Create(ctx context.Context, userID string) (*models.Session, *http.Cookie, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, errors.New("session service: user id is required")
	}

	expiresAt := s.now().Add(s.ttl)
	session, err := s.sessions.CreateReplacing(ctx, userID, expiresAt)
	if err != nil {
		return nil, nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	value, err := s.codec.Encode(session.ID, expiresAt)
	if err != nil {
		return nil, nil, fmt.Errorf("session service: encode cookie: %w", err)
	}

	return session, buildCookie(s.cookieName, value, expiresAt, s.secure), nil
}

// Resolve authenticates a request from its session-cookie value. Every
// failure mode — missing value, bad signature, unknown or expired session,
// soft-deleted owner — collapses into ErrNotAuthenticated so callers cannot
// tell which stage rejected them.
func (s *SessionService) Resolve(ctx context.Context, cookieValue string) (*models.Session, *models.User, error) {
	sessionID, err := s.codec.Decode(strings.TrimSpace(cookieValue))
	if err != nil {
		return nil, nil, apperrors.ErrNotAuthenticated
	}

	session, err := s.sessions.FindActiveByID(ctx, sessionID, s.now())
	if err != nil {
		return nil, nil, apperrors.ErrNotAuthenticated
	}

	if session.User == nil {
		// Owner was soft-deleted after the session was issued.
		return nil, nil, apperrors.ErrNotAuthenticated
	}

	return session, session.User, nil
}

// RevokeAllForUser revokes every session the user owns. Revoking zero
// sessions succeeds and reports zero affected.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	count, err := s.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("session service: revoke all: %w", err)
	}

	for i := int64(0); i < count; i++ {
		metrics.ActiveSessions.Dec()
	}

	return count, nil
}

// ClearCookie returns an expired cookie that removes the session cookie from
// the client.
func (s *SessionService) ClearCookie() *http.Cookie {
	cookie := buildCookie(s.cookieName, "", time.Unix(0, 0), s.secure)
	cookie.MaxAge = -1
	return cookie
}

// CleanupExpired reclaims rows for sessions that can no longer authenticate.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.sessions.PurgeExpired(ctx, s.now())
}
