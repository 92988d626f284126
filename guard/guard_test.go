package guard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-shop-console/guard"
	"github.com/jrsteele09/go-shop-console/session"
	"github.com/jrsteele09/go-shop-console/users"
	"github.com/stretchr/testify/require"
)

var allRoles = []users.Role{users.RoleAdmin, users.RoleStaff, users.RoleUser}

// staticSource serves a fixed snapshot
type staticSource struct {
	snap session.Snapshot
}

func (s *staticSource) Snapshot() session.Snapshot {
	return s.snap
}

func signedIn(role users.Role) session.Snapshot {
	return session.Snapshot{
		User:  &session.User{ID: "u-1", Email: "someone@test.com", Role: role},
		Token: "token",
	}
}

func TestDecide(t *testing.T) {
	admin := users.NewRoleSet(users.RoleAdmin)

	require.Equal(t, guard.RedirectToLogin, guard.Decide(false, "", admin))
	require.Equal(t, guard.RedirectToLogin, guard.Decide(false, users.RoleAdmin, admin))
	require.Equal(t, guard.RedirectToForbidden, guard.Decide(true, users.RoleUser, admin))
	require.Equal(t, guard.Allow, guard.Decide(true, users.RoleAdmin, admin))
	require.Equal(t, guard.Allow, guard.Decide(true, users.RoleUser, users.NewRoleSet()))
}

func TestEvaluate_RoleGate(t *testing.T) {
	// every subset of the role taxonomy, empty set excluded
	for mask := 1; mask < 1<<len(allRoles); mask++ {
		var members []users.Role
		for i, r := range allRoles {
			if mask&(1<<i) != 0 {
				members = append(members, r)
			}
		}
		required := users.NewRoleSet(members...)

		for _, role := range allRoles {
			want := guard.DeniedWrongRole
			if required.Contains(role) {
				want = guard.Allowed
			}
			require.Equal(t, want, guard.Evaluate(signedIn(role), required), "role %s against %s", role, required)
		}
	}
}

func TestEvaluate_States(t *testing.T) {
	admin := users.NewRoleSet(users.RoleAdmin)

	loading := signedIn(users.RoleAdmin)
	loading.Loading = true
	require.Equal(t, guard.Checking, guard.Evaluate(loading, admin))
	require.Equal(t, guard.Checking, guard.Evaluate(session.Snapshot{Loading: true}, admin))

	require.Equal(t, guard.DeniedUnauthenticated, guard.Evaluate(session.Snapshot{}, admin))
	// a token without a user is not a session
	require.Equal(t, guard.DeniedUnauthenticated, guard.Evaluate(session.Snapshot{Token: "t"}, nil))
	require.Equal(t, guard.Allowed, guard.Evaluate(signedIn(users.RoleUser), nil))
}

func TestRequire(t *testing.T) {
	source := &staticSource{}
	g := guard.New(source, guard.WithRetryAfter(2))
	handler := g.Require(users.RoleAdmin, users.RoleStaff)(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("dashboard"))
	})

	serve := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/admin/orders?page=2", nil))
		return rec
	}

	t.Run("checking shows neither content nor redirect", func(t *testing.T) {
		source.snap = session.Snapshot{Loading: true}
		rec := serve()
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "2", rec.Header().Get("Retry-After"))
		require.Empty(t, rec.Header().Get("Location"))
		require.NotContains(t, rec.Body.String(), "dashboard")
	})

	t.Run("unauthenticated goes to login with next", func(t *testing.T) {
		source.snap = session.Snapshot{}
		rec := serve()
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/login?next=%2Fadmin%2Forders%3Fpage%3D2", rec.Header().Get("Location"))
	})

	t.Run("wrong role goes to forbidden", func(t *testing.T) {
		source.snap = signedIn(users.RoleUser)
		rec := serve()
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, guard.DefaultForbiddenPath, rec.Header().Get("Location"))
	})

	t.Run("allowed roles reach the view", func(t *testing.T) {
		for _, role := range []users.Role{users.RoleAdmin, users.RoleStaff} {
			source.snap = signedIn(role)
			rec := serve()
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "dashboard", rec.Body.String())
		}
	})

	t.Run("sign out applies on the next request", func(t *testing.T) {
		source.snap = signedIn(users.RoleAdmin)
		require.Equal(t, http.StatusOK, serve().Code)
		source.snap = session.Snapshot{}
		require.Equal(t, http.StatusSeeOther, serve().Code)
	})
}

func TestRequire_FollowsStore(t *testing.T) {
	storage := session.NewMemoryStorage()
	store := session.NewStore(storage)
	g := guard.New(store, guard.WithLoginPath("/admin/login"))

	required := users.NewRoleSet(users.RoleAdmin)
	require.Equal(t, guard.Checking, g.State(required))

	// nothing persisted, so the fetcher is never called
	require.NoError(t, store.Initialize(t.Context(), session.ProfileFetcherFunc(nil)))
	require.Equal(t, guard.DeniedUnauthenticated, g.State(required))

	user := signedIn(users.RoleAdmin).User
	require.NoError(t, store.SetSession(t.Context(), user, "token"))
	require.Equal(t, guard.Allowed, g.State(required))
	require.Equal(t, "/admin/login?next=%2Fadmin", g.LoginURL("/admin"))
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"/account":               "/account",
		"/admin/users?page=2":    "/admin/users?page=2",
		"":                       "/",
		"account":                "/",
		"//evil.example":         "/",
		"/\\evil.example":        "/",
		"https://evil.example/x": "/",
		"/ok\r\nSet-Cookie: x":   "/",
		"javascript:alert(1)":    "/",
	}
	for next, want := range cases {
		require.Equal(t, want, guard.SafeNext(next, "/"), next)
	}
}
