package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, clock func() time.Time) *CookieCodec {
	t.Helper()

	codec, err := NewCookieCodec(CookieCodecConfig{
		Secret: "test-cookie-secret",
		Issuer: "authgate",
		Clock:  clock,
	})
	require.NoError(t, err)
	return codec
}

func TestCookieCodecRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, func() time.Time { return now })

	value, err := codec.Encode("session-123", now.Add(24*time.Hour))
	require.NoError(t, err)
	require.NotContains(t, value, "session-123")

	sessionID, err := codec.Decode(value)
	require.NoError(t, err)
	require.Equal(t, "session-123", sessionID)
}

func TestCookieCodecRejectsTampering(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, func() time.Time { return now })

	value, err := codec.Encode("session-123", now.Add(time.Hour))
	require.NoError(t, err)

	_, err = codec.Decode(value + "x")
	require.Error(t, err)

	_, err = codec.Decode("")
	require.Error(t, err)

	_, err = codec.Decode("not-a-token")
	require.Error(t, err)
}

func TestCookieCodecRejectsWrongSecret(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, func() time.Time { return now })

	other, err := NewCookieCodec(CookieCodecConfig{
		Secret: "different-secret",
		Issuer: "authgate",
		Clock:  func() time.Time { return now },
	})
	require.NoError(t, err)

	value, err := codec.Encode("session-123", now.Add(time.Hour))
	require.NoError(t, err)

	_, err = other.Decode(value)
	require.Error(t, err)
}

func TestCookieCodecRejectsExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	current := now
	codec := newTestCodec(t, func() time.Time { return current })

	value, err := codec.Encode("session-123", now.Add(time.Hour))
	require.NoError(t, err)

	current = now.Add(2 * time.Hour)
	_, err = codec.Decode(value)
	require.Error(t, err)
}

func TestBuildCookieAttributes(t *testing.T) {
	expires := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)

	cookie := buildCookie("authgate_session", "value", expires, true)
	require.Equal(t, "authgate_session", cookie.Name)
	require.Equal(t, "/", cookie.Path)
	require.True(t, cookie.HttpOnly)
	require.True(t, cookie.Secure)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, expires, cookie.Expires)

	dev := buildCookie("authgate_session", "value", expires, false)
	require.False(t, dev.Secure)
}
