package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "authgate_session"

// CookieCodecConfig bundles the configuration required to build a CookieCodec.
type CookieCodecConfig struct {
	Secret string
	Issuer string
	Clock  func() time.Time
}

// cookieClaims is the payload carried by the session cookie. Only the opaque
// session id ever leaves the server; no user data is embedded.
type cookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CookieCodec signs and verifies session-cookie values. It is a pure
// encode/decode pair, independent of any HTTP framework.
type CookieCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewCookieCodec constructs a codec from the server secret.
func NewCookieCodec(cfg CookieCodecConfig) (*CookieCodec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("cookie codec: secret must be provided")
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &CookieCodec{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		now:    now,
	}, nil
}

// Encode signs the session id into a cookie value. The signature expiry
// mirrors the session expiry; the authoritative check stays server-side.
func (c *CookieCodec) Encode(sessionID string, expiresAt time.Time) (string, error) {
	if sessionID == "" {
		return "", errors.New("cookie codec: session id is required")
	}

	now := c.now()
	claims := &cookieClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("cookie codec: sign: %w", err)
	}

	return signed, nil
}

// Decode verifies a cookie value and returns the embedded session id.
func (c *CookieCodec) Decode(value string) (string, error) {
	if value == "" {
		return "", errors.New("cookie codec: value is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)

	var claims cookieClaims
	_, err := parser.ParseWithClaims(value, &claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("cookie codec: parse: %w", err)
	}

	if c.issuer != "" && claims.Issuer != c.issuer {
		return "", errors.New("cookie codec: invalid issuer")
	}

	if claims.SessionID == "" {
		return "", errors.New("cookie codec: missing session id claim")
	}

	return claims.SessionID, nil
}

// buildCookie assembles the session cookie with the hardening attributes the
// browser needs: HttpOnly always, SameSite=Lax, Secure in production.
func buildCookie(name, value string, expiresAt time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
