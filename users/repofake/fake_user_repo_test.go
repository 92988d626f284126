package fakeuserrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-shop-console/users"
	fakeuserrepo "github.com/jrsteele09/go-shop-console/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestFakeUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()

	u := &users.User{Email: "Jane@Test.com", Role: users.RoleStaff}
	require.NoError(t, repo.Create(ctx, u))
	require.NotEmpty(t, u.ID)

	err := repo.Create(ctx, &users.User{Email: "jane@test.com"})
	require.ErrorIs(t, err, users.ErrEmailExists)

	got, err := repo.GetByEmail(ctx, "JANE@test.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "jane@test.com", got.Email)

	// returned records are copies
	got.Role = users.RoleAdmin
	again, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, users.RoleStaff, again.Role)

	now := time.Now()
	require.NoError(t, repo.SetLastLogin(ctx, "jane@test.com", now))
	require.NoError(t, repo.SetBlocked(ctx, "jane@test.com", true))
	again, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, again.Blocked)
	require.True(t, again.LastLogin.Equal(now))

	require.ErrorIs(t, repo.SetBlocked(ctx, "missing@test.com", true), users.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "jane@test.com"))
	_, err = repo.GetByEmail(ctx, "jane@test.com")
	require.ErrorIs(t, err, users.ErrNotFound)
}

func TestFakeUserRepoList(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()
	for _, email := range []string{"c@test.com", "a@test.com", "b@test.com"} {
		require.NoError(t, repo.Upsert(ctx, &users.User{Email: email, Role: users.RoleUser}))
	}

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Len(t, page.Users, 1)
	require.Equal(t, "b@test.com", page.Users[0].Email)

	page, err = repo.List(ctx, 5, 10)
	require.NoError(t, err)
	require.Empty(t, page.Users)
}
