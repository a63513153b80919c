package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-admin/core/user"
)

func TestIssuer(t *testing.T) {
	iss := NewIssuer("secret", "Masomo", time.Hour)
	usr := user.User{ID: 7, Username: "admin", Email: "admin@masomo.cd", Roles: []string{user.RoleAdminOwner}}

	token, err := iss.Issue(usr)
	require.NoError(t, err)

	claims, err := iss.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, usr.Roles, claims.User().Roles)
	assert.Equal(t, 7, claims.User().ID)

	_, err = NewIssuer("other", "Masomo", time.Hour).Verify(token)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestIssuer_Refresh(t *testing.T) {
	iss := NewIssuer("secret", "Masomo", time.Hour)
	start := time.Now()
	iss.now = func() time.Time { return start }

	token, err := iss.Issue(user.User{ID: 1, Username: "admin"})
	require.NoError(t, err)

	iss.now = func() time.Time { return start.Add(30 * time.Minute) }
	refreshed, claims, err := iss.Refresh(token)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed)
	assert.Equal(t, start.Unix(), claims.OrigIssuedAt)

	// the original login is too old
	iss.now = func() time.Time { return start }
	old, err := iss.Sign(iss.Claims(user.User{ID: 1}, start.Add(-5*time.Hour).Unix()))
	require.NoError(t, err)
	_, _, err = iss.Refresh(old)
	assert.Equal(t, ErrRefreshExpired, err)
}

func TestParseExpiry(t *testing.T) {
	iss := NewIssuer("secret", "Masomo", 2*time.Hour)
	token, err := iss.Issue(user.User{ID: 1})
	require.NoError(t, err)

	exp, err := ParseExpiry(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), exp, 5*time.Second)

	_, err = ParseExpiry("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
