package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskdesk/domain"
	"github.com/fastygo/taskdesk/repository/memory"
)

func TestResolveReadsCurrentDirectoryState(t *testing.T) {
	users := memory.NewUserRepository()
	uc := New(users, nil)
	ctx := context.Background()

	user := &domain.User{Name: "Kim", Email: "kim@example.com", Department: "legal", Role: domain.RoleSupervisor}
	require.NoError(t, users.Create(ctx, user))

	caller, err := uc.Resolve(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Caller{ID: user.ID, Role: domain.RoleSupervisor, Department: "legal", Email: "kim@example.com"}, caller)

	_, err = uc.Resolve(ctx, "deleted-user")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestProfileAndList(t *testing.T) {
	users := memory.NewUserRepository()
	uc := New(users, nil)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com"} {
		require.NoError(t, users.Create(ctx, &domain.User{Name: email, Email: email, Role: domain.RoleUser}))
	}

	list, err := uc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	me, err := uc.GetProfile(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, list[0].Email, me.Email)

	_, err = uc.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
