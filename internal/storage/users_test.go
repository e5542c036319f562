package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, "mod", "hash", false, []string{"altcheck.notify", "altcheck.alts", "altcheck.alts"}))

	user, err := store.GetUserByUsername(ctx, "mod")
	require.NoError(t, err)
	assert.Equal(t, "mod", user.Username)
	assert.Equal(t, "hash", user.PasswordHash)
	assert.False(t, user.IsAdmin)
	assert.True(t, user.PasswordChangeRequired)
	assert.Equal(t, []string{"altcheck.alts", "altcheck.notify"}, user.Permissions)
	assert.Nil(t, user.LastLogin)
	assert.False(t, user.CreatedAt.IsZero())

	byID, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, byID.Username)
}

func TestUsers_Duplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, "mod", "hash", false, nil))
	err := store.CreateUser(ctx, "mod", "hash2", true, nil)
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestUsers_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.ErrorIs(t, store.DeleteUser(ctx, "ghost"), ErrUserNotFound)
	assert.ErrorIs(t, store.UpdateUserPermissions(ctx, 999, nil), ErrUserNotFound)
}

func TestUsers_Updates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, "mod", "hash", false, nil))
	user, err := store.GetUserByUsername(ctx, "mod")
	require.NoError(t, err)
	assert.Empty(t, user.Permissions)

	require.NoError(t, store.UpdateUserPassword(ctx, user.ID, "newhash"))
	require.NoError(t, store.UpdateUserAdmin(ctx, user.ID, true))
	require.NoError(t, store.UpdateUserPermissions(ctx, user.ID, []string{"altcheck.ingest"}))
	require.NoError(t, store.UpdateUserLastLogin(ctx, user.ID))

	user, err = store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", user.PasswordHash)
	assert.False(t, user.PasswordChangeRequired)
	assert.True(t, user.IsAdmin)
	assert.Equal(t, []string{"altcheck.ingest"}, user.Permissions)
	assert.NotNil(t, user.LastLogin)

	require.NoError(t, store.ResetUserPassword(ctx, user.ID, "temp"))
	user, err = store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, user.PasswordChangeRequired)
}

func TestUsers_ListAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zed", "amy", "mod"} {
		require.NoError(t, store.CreateUser(ctx, name, "hash", false, nil))
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "amy", users[0].Username)
	assert.Equal(t, "zed", users[2].Username)

	require.NoError(t, store.DeleteUser(ctx, "mod"))
	users, err = store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
