package jwt

import (
	"net/http/httptest"
	"testing"
	"time"

	"haultrack/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)

	token, claims, err := mgr.IssueUserToken("user-1", user.RoleDriver)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, user.RoleDriver, claims.Role)

	_, parsed, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", parsed.Subject)
	assert.Equal(t, user.RoleDriver, parsed.Role)
}

func TestParseAndValidate_WrongSecret(t *testing.T) {
	token, _, err := NewManager("secret-a", time.Hour).IssueUserToken("user-1", user.RoleDriver)
	require.NoError(t, err)

	_, _, err = NewManager("secret-b", time.Hour).ParseAndValidate(token)
	assert.Error(t, err)
}

func TestParseAndValidate_Expired(t *testing.T) {
	token, _, err := NewManager("test-secret", -time.Minute).IssueUserToken("user-1", user.RoleDriver)
	require.NoError(t, err)

	_, _, err = NewManager("test-secret", time.Hour).ParseAndValidate(token)
	assert.Error(t, err)
}

func TestIssueUserToken_InvalidRole(t *testing.T) {
	_, _, err := NewManager("test-secret", time.Hour).IssueUserToken("user-1", user.Role("GHOST"))
	assert.Error(t, err)
}

func TestRoleAllowed(t *testing.T) {
	claims := NewUserClaims("user-1", user.RoleDispatcher, time.Hour)

	assert.NoError(t, RoleAllowed(claims, user.RoleDispatcher, user.RoleAdmin))
	assert.ErrorIs(t, RoleAllowed(claims, user.RoleDriver), ErrRoleForbidden)
}

func TestFromQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/tracking?token=abc123", nil)
	assert.Equal(t, "abc123", FromQuery(r))

	r = httptest.NewRequest("GET", "/ws/tracking?token=Bearer%20abc123", nil)
	assert.Equal(t, "abc123", FromQuery(r))

	r = httptest.NewRequest("GET", "/ws/tracking", nil)
	assert.Equal(t, "", FromQuery(r))
}

func TestFromAuthorization(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	_, err := FromAuthorization(r)
	assert.ErrorIs(t, err, ErrNoAuthHeader)

	r.Header.Set("Authorization", "Basic abc")
	_, err = FromAuthorization(r)
	assert.ErrorIs(t, err, ErrBadAuthScheme)

	r.Header.Set("Authorization", "Bearer abc")
	raw, err := FromAuthorization(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", raw)
}
