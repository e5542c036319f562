package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword("hunter22", hash))
	assert.False(t, CheckPassword("hunter23", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("secret", time.Hour)

	token, err := svc.GenerateToken(7, "mod", false, []string{PermLookup}, true)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "mod", claims.Username)
	assert.True(t, claims.PasswordChangeRequired)
	assert.True(t, claims.HasPermission(PermLookup))
	assert.False(t, claims.HasPermission(PermNotify))
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := NewService("secret", time.Hour)

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewService("other", time.Hour).GenerateToken(1, "mod", true, nil, false)
	require.NoError(t, err)
	_, err = svc.ValidateToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewService("secret", -time.Minute).GenerateToken(1, "mod", true, nil, false)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHasPermission(t *testing.T) {
	admin := &Claims{IsAdmin: true}
	for _, p := range AllPermissions {
		assert.True(t, admin.HasPermission(p))
	}

	var none *Claims
	assert.False(t, none.HasPermission(PermLookup))
}

func TestValidatePermissions(t *testing.T) {
	assert.NoError(t, ValidatePermissions([]string{PermNotify, PermIngest}))
	assert.NoError(t, ValidatePermissions(nil))
	assert.ErrorIs(t, ValidatePermissions([]string{"altcheck.everything"}), ErrUnknownPermission)
}
